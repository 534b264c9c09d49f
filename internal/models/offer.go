package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Offer statuses
const (
	OfferStatusPending   = "pending"
	OfferStatusAccepted  = "accepted"
	OfferStatusRejected  = "rejected"
	OfferStatusWithdrawn = "withdrawn"
)

// Valid state transitions: from -> []to. Accepted, rejected and withdrawn are
// terminal for the offer itself; payment state lives on the transaction.
var ValidOfferTransitions = map[string][]string{
	OfferStatusPending:   {OfferStatusAccepted, OfferStatusRejected, OfferStatusWithdrawn},
	OfferStatusAccepted:  {},
	OfferStatusRejected:  {},
	OfferStatusWithdrawn: {},
}

func IsValidOfferTransition(from, to string) bool {
	allowed, ok := ValidOfferTransitions[from]
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

type Offer struct {
	ID             uuid.UUID       `json:"id"`
	NeedID         uuid.UUID       `json:"need_id"`
	ProviderUserID uuid.UUID       `json:"provider_user_id"`
	Price          decimal.Decimal `json:"price"`
	Currency       string          `json:"currency"`
	DeliveryDays   int             `json:"delivery_days"`
	Description    string          `json:"description"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// OfferWithNeed embeds Offer and adds need info to avoid N+1 queries.
type OfferWithNeed struct {
	Offer
	NeedTitle       string    `json:"need_title"`
	NeedBuyerUserID uuid.UUID `json:"need_buyer_user_id"`
	NeedStatus      string    `json:"need_status"`
}
