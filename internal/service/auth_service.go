package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantumwager/wagerd/internal/crypto"
	"github.com/quantumwager/wagerd/internal/domain"
)

// Challenge is a pending login challenge handed to a wallet.
type Challenge struct {
	Nonce     string
	Message   string
	ExpiresAt time.Time
	NewUser   bool
}

// AuthService handles the wallet challenge-response login flow and sessions.
type AuthService struct {
	users    domain.UserStore
	tokens   *crypto.TokenIssuer
	nonceTTL time.Duration
	logger   *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(users domain.UserStore, tokens *crypto.TokenIssuer, nonceTTL time.Duration, logger *slog.Logger) *AuthService {
	if nonceTTL <= 0 {
		nonceTTL = 5 * time.Minute
	}
	return &AuthService{
		users:    users,
		tokens:   tokens,
		nonceTTL: nonceTTL,
		logger:   logger,
	}
}

// challengeMessage is what wallets are asked to sign. It embeds the nonce so
// a signature can never be replayed across challenges.
func challengeMessage(nonce string) string {
	return "Sign in to QuantumWager\n\nNonce: " + nonce
}

// RequestChallenge issues a single-use login nonce for the wallet, creating
// the account on first contact.
func (s *AuthService) RequestChallenge(ctx context.Context, walletAddress string) (Challenge, error) {
	walletAddress = strings.TrimSpace(walletAddress)
	if walletAddress == "" {
		return Challenge{}, fmt.Errorf("auth_service: empty wallet address: %w", domain.ErrInvalidInput)
	}

	newUser := false
	user, err := s.users.GetByWallet(ctx, walletAddress)
	if errors.Is(err, domain.ErrNotFound) {
		user = domain.User{
			ID:            uuid.NewString(),
			WalletAddress: walletAddress,
			TotalVolume:   decimal.Zero,
			WinRate:       decimal.Zero,
		}
		if createErr := s.users.Create(ctx, user); createErr != nil {
			// A concurrent first request may have won the insert.
			if errors.Is(createErr, domain.ErrAlreadyExists) {
				user, err = s.users.GetByWallet(ctx, walletAddress)
				if err != nil {
					return Challenge{}, fmt.Errorf("auth_service: refetch wallet: %w", err)
				}
			} else {
				return Challenge{}, fmt.Errorf("auth_service: create user: %w", createErr)
			}
		} else {
			newUser = true
		}
	} else if err != nil {
		return Challenge{}, fmt.Errorf("auth_service: lookup wallet: %w", err)
	}

	nonce, err := crypto.NewNonce()
	if err != nil {
		return Challenge{}, fmt.Errorf("auth_service: %w", err)
	}

	expires := time.Now().Add(s.nonceTTL)
	if err := s.users.SetChallenge(ctx, user.ID, nonce, expires); err != nil {
		return Challenge{}, fmt.Errorf("auth_service: store challenge: %w", err)
	}

	s.logger.InfoContext(ctx, "auth_service: challenge issued",
		slog.String("user_id", user.ID),
		slog.Bool("new_user", newUser),
	)

	return Challenge{
		Nonce:     nonce,
		Message:   challengeMessage(nonce),
		ExpiresAt: expires,
		NewUser:   newUser,
	}, nil
}

// Verify checks a signed challenge and, on success, burns the nonce and
// returns a session token alongside the user.
func (s *AuthService) Verify(ctx context.Context, walletAddress, message, signature string) (string, domain.User, error) {
	user, err := s.users.GetByWallet(ctx, walletAddress)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.User{}, domain.ErrNotFound
		}
		return "", domain.User{}, fmt.Errorf("auth_service: lookup wallet: %w", err)
	}

	if user.Nonce == nil || user.NonceExpires == nil || time.Now().After(*user.NonceExpires) {
		return "", domain.User{}, domain.ErrNonceExpired
	}

	// The signed message must carry the challenge we issued.
	if !strings.Contains(message, *user.Nonce) {
		return "", domain.User{}, domain.ErrInvalidSignature
	}

	if err := crypto.VerifyWalletSignature(walletAddress, message, signature); err != nil {
		return "", domain.User{}, err
	}

	// Burn the nonce so the same signature cannot log in twice.
	if err := s.users.ClearChallenge(ctx, user.ID); err != nil {
		return "", domain.User{}, fmt.Errorf("auth_service: burn challenge: %w", err)
	}

	token, err := s.tokens.Issue(crypto.Session{
		UserID:        user.ID,
		WalletAddress: user.WalletAddress,
	})
	if err != nil {
		return "", domain.User{}, fmt.Errorf("auth_service: %w", err)
	}

	s.logger.InfoContext(ctx, "auth_service: wallet verified",
		slog.String("user_id", user.ID),
	)

	return token, user, nil
}

// Logout clears any pending challenge for the user. Session tokens are
// stateless; clients drop theirs.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.users.ClearChallenge(ctx, userID); err != nil {
		return fmt.Errorf("auth_service: logout %q: %w", userID, err)
	}
	return nil
}

// Profile returns the authenticated user's account.
func (s *AuthService) Profile(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("auth_service: get profile %q: %w", userID, err)
	}
	return user, nil
}
