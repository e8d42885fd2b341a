package crypto

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quantumwager/wagerd/internal/domain"
)

// Session is the authenticated identity carried by a bearer token.
type Session struct {
	UserID        string
	WalletAddress string
}

type sessionClaims struct {
	WalletAddress string `json:"wallet"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer signing with secret. Tokens expire
// after ttl.
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Issue mints a signed token for the session.
func (t *TokenIssuer) Issue(s Session) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		WalletAddress: s.WalletAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("crypto: sign token: %w", err)
	}
	return token, nil
}

// Verify parses and validates a token, returning the session it carries.
// Expired, malformed, or foreign tokens map to domain.ErrUnauthorized.
func (t *TokenIssuer) Verify(raw string) (Session, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Session{}, domain.ErrUnauthorized
	}
	if claims.Subject == "" {
		return Session{}, domain.ErrUnauthorized
	}
	return Session{UserID: claims.Subject, WalletAddress: claims.WalletAddress}, nil
}
