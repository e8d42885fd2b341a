package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TxTypeStake  TransactionType = "STAKE"
	TxTypePayout TransactionType = "PAYOUT"
)

// TransactionStatus tracks the settlement state of a ledger entry.
type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "PENDING"
	TxStatusCompleted TransactionStatus = "COMPLETED"
	TxStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is an immutable ledger entry recording a stake or payout event.
// Entries are created once and never mutated.
type Transaction struct {
	ID         string
	UserID     string
	MarketID   *string
	PositionID *string
	Type       TransactionType
	Amount     decimal.Decimal
	TxHash     *string // external chain proof, when one exists
	Status     TransactionStatus
	CreatedAt  time.Time
}
