package events

import "context"

// Event types
const (
	EventOfferCreated             = "offer_created"
	EventOfferStatusChanged       = "offer_status_changed"
	EventTransactionStatusChanged = "transaction_status_changed"
	EventUserNotification         = "user_notification"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
