package dto

import "time"

type RegisterRequest struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	DisplayName *string `json:"display_name,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateNeedRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Category    string     `json:"category"`
	BudgetMin   *string    `json:"budget_min,omitempty"` // numeric as string
	BudgetMax   *string    `json:"budget_max,omitempty"`
	Currency    string     `json:"currency"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type CreateOfferRequest struct {
	Price        string `json:"price"` // numeric as string
	Currency     string `json:"currency"`
	DeliveryDays int    `json:"delivery_days"`
	Description  string `json:"description"`
}

type RejectOfferRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type InitializePaymentRequest struct {
	Card    CardRequest    `json:"card"`
	Billing BillingRequest `json:"billing_address"`
}

type CardRequest struct {
	HolderName string `json:"holder_name"`
	Number     string `json:"number"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	CVC        string `json:"cvc"`
}

type BillingRequest struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code,omitempty"`
}

type ReleasePaymentRequest struct {
	Notes *string `json:"notes,omitempty"`
}

type RefundPaymentRequest struct {
	Reason string `json:"reason"`
}
