// Package crypto covers wallet signature verification and session tokens.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/quantumwager/wagerd/internal/domain"
)

// NonceBytes is the entropy of a login challenge before hex encoding.
const NonceBytes = 16

// NewNonce returns a fresh hex-encoded login challenge.
func NewNonce() (string, error) {
	buf := make([]byte, NonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("crypto: generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// VerifyWalletSignature checks that signature is a valid ed25519 signature of
// message by the key behind walletAddress. Addresses and signatures travel
// base58-encoded; the address is the raw public key.
func VerifyWalletSignature(walletAddress, message, signature string) error {
	pub, err := base58.Decode(walletAddress)
	if err != nil {
		return fmt.Errorf("crypto: decode wallet address: %w", domain.ErrInvalidSignature)
	}
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("crypto: wallet address is not a public key: %w", domain.ErrInvalidSignature)
	}

	sig, err := base58.Decode(signature)
	if err != nil {
		return fmt.Errorf("crypto: decode signature: %w", domain.ErrInvalidSignature)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("crypto: bad signature length %d: %w", len(sig), domain.ErrInvalidSignature)
	}

	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig) {
		return domain.ErrInvalidSignature
	}
	return nil
}
