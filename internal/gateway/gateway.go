// Package gateway defines the payment gateway capability the escrow engine
// consumes: authorize a card charge (possibly via a 3-D Secure challenge) and
// parse the asynchronous confirmation callback. The engine depends on this
// contract only, never on a concrete provider's wire format.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// Authorization outcomes.
const (
	StatusSucceeded         = "succeeded"
	StatusChallengeRequired = "challenge_required"
	StatusFailed            = "failed"
)

type Card struct {
	HolderName string `json:"holder_name"`
	Number     string `json:"number"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	CVC        string `json:"cvc"`
}

type BillingAddress struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code,omitempty"`
}

type AuthorizeRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Card           Card            `json:"card"`
	BillingAddress BillingAddress  `json:"billing_address"`
	// Reference ties the authorization back to our transaction record.
	Reference string `json:"reference"`
}

type AuthorizeResult struct {
	// TransactionRef is the gateway correlation id used to match callbacks.
	TransactionRef string `json:"transaction_ref"`
	Status         string `json:"status"`
	// ChallengeHTML is the 3-D Secure redirect content the client must render
	// when Status is challenge_required.
	ChallengeHTML string `json:"challenge_html,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type CallbackResult struct {
	TransactionRef string `json:"transaction_ref"`
	Succeeded      bool   `json:"succeeded"`
	FailureReason  string `json:"failure_reason,omitempty"`
}

type Adapter interface {
	// Authorize must respect ctx cancellation; implementations carry a
	// bounded timeout so a hung provider cannot pin a transaction in pending.
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error)
	ParseCallback(payload []byte) (*CallbackResult, error)
}
