package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction statuses
const (
	TransactionStatusPending    = "pending"
	TransactionStatusProcessing = "processing"
	TransactionStatusCompleted  = "completed"
	TransactionStatusReleased   = "released"
	TransactionStatusRefunded   = "refunded"
	TransactionStatusFailed     = "failed"
	TransactionStatusCancelled  = "cancelled"
)

// Valid state transitions: from -> []to. Completed is the escrow hold: funds
// are captured but not yet owed to the provider. Exactly one transition away
// from completed may ever succeed.
var ValidTransactionTransitions = map[string][]string{
	TransactionStatusPending:    {TransactionStatusProcessing, TransactionStatusFailed, TransactionStatusCancelled},
	TransactionStatusProcessing: {TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled},
	TransactionStatusCompleted:  {TransactionStatusReleased, TransactionStatusRefunded},
	TransactionStatusReleased:   {},
	TransactionStatusRefunded:   {},
	TransactionStatusFailed:     {},
	TransactionStatusCancelled:  {},
}

func IsValidTransactionTransition(from, to string) bool {
	allowed, ok := ValidTransactionTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalTransactionStatus reports whether no further transition exists.
func IsTerminalTransactionStatus(status string) bool {
	allowed, ok := ValidTransactionTransitions[status]
	return ok && len(allowed) == 0
}

// NonTerminalTransactionStatuses are the statuses that block a second payment
// attempt against the same offer.
var NonTerminalTransactionStatuses = []string{
	TransactionStatusPending,
	TransactionStatusProcessing,
	TransactionStatusCompleted,
}

type Transaction struct {
	ID             uuid.UUID       `json:"id"`
	OfferID        uuid.UUID       `json:"offer_id"`
	BuyerUserID    uuid.UUID       `json:"buyer_user_id"`
	ProviderUserID uuid.UUID       `json:"provider_user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
	GatewayRef     *string         `json:"gateway_ref,omitempty"`
	ErrorMessage   *string         `json:"error_message,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	ReleasedAt     *time.Time      `json:"released_at,omitempty"`
	RefundedAt     *time.Time      `json:"refunded_at,omitempty"`
}

// UserTransactionStats aggregates transactions where the user appears as
// buyer or provider. A transaction only counts as completed once funds were
// actually released, not merely escrowed.
type UserTransactionStats struct {
	TotalTransactions     int             `json:"total_transactions"`
	CompletedTransactions int             `json:"completed_transactions"`
	PendingTransactions   int             `json:"pending_transactions"`
	RefundedTransactions  int             `json:"refunded_transactions"`
	TotalSpent            decimal.Decimal `json:"total_spent"`
	TotalEarned           decimal.Decimal `json:"total_earned"`
}
