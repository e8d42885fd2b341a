package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a wallet-backed platform account. Users are created implicitly on
// the first nonce request for an unseen wallet address and are never deleted.
type User struct {
	ID            string
	WalletAddress string // base58-encoded ed25519 public key, unique
	Username      *string
	Email         *string

	ReputationScore    int
	TotalVolume        decimal.Decimal
	WinRate            decimal.Decimal
	TotalPredictions   int
	CorrectPredictions int
	IsVerified         bool
	KYCLevel           int

	// Authentication challenge state. Nil when no challenge is pending.
	Nonce        *string
	NonceExpires *time.Time

	LastActive *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AdminKYCLevel is the minimum KYC tier for market management operations.
const AdminKYCLevel = 3

// IsAdmin reports whether the user's KYC tier grants admin access.
func (u User) IsAdmin() bool {
	return u.KYCLevel >= AdminKYCLevel
}

// UserUpdate enumerates the mutable profile attributes. Nil fields are left
// unchanged.
type UserUpdate struct {
	Username *string
	Email    *string
}
