package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Need statuses
const (
	NeedStatusActive     = "active"
	NeedStatusInProgress = "in_progress"
	NeedStatusCompleted  = "completed"
	NeedStatusCancelled  = "cancelled"
	NeedStatusExpired    = "expired"
)

// Valid state transitions: from -> []to
var ValidNeedTransitions = map[string][]string{
	NeedStatusActive:     {NeedStatusInProgress, NeedStatusCompleted, NeedStatusCancelled, NeedStatusExpired},
	NeedStatusInProgress: {NeedStatusCompleted, NeedStatusCancelled},
	NeedStatusCompleted:  {},
	NeedStatusCancelled:  {},
	NeedStatusExpired:    {},
}

func IsValidNeedTransition(from, to string) bool {
	allowed, ok := ValidNeedTransitions[from]
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

type Need struct {
	ID          uuid.UUID        `json:"id"`
	BuyerUserID uuid.UUID        `json:"buyer_user_id"`
	Title       string           `json:"title"`
	Description *string          `json:"description,omitempty"`
	Category    string           `json:"category"`
	BudgetMin   *decimal.Decimal `json:"budget_min,omitempty"`
	BudgetMax   *decimal.Decimal `json:"budget_max,omitempty"`
	Currency    string           `json:"currency"`
	Status      string           `json:"status"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NeedWithOfferCount embeds Need and adds the offer count to avoid N+1 queries.
type NeedWithOfferCount struct {
	Need
	OfferCount int `json:"offer_count"`
}
