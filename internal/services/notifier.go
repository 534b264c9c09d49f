package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/needmarket/backend/internal/events"
)

// Notifier delivers user-facing events. Delivery is fire-and-forget: a failed
// notification is logged and dropped, it never rolls back the mutation that
// triggered it.
type Notifier interface {
	NotifyNewOffer(ctx context.Context, buyerID, needID, offerID uuid.UUID)
	NotifyOfferAccepted(ctx context.Context, providerID, offerID uuid.UUID)
	NotifyOfferRejected(ctx context.Context, providerID, offerID uuid.UUID, reason string)
	NotifyOfferWithdrawn(ctx context.Context, providerID, offerID uuid.UUID)
	NotifyPaymentReleased(ctx context.Context, providerID, transactionID uuid.UUID)
	NotifyPaymentRefunded(ctx context.Context, buyerID, providerID, transactionID uuid.UUID, reason string)
}

const notificationStream = "events:notifications"

// EventNotifier publishes notifications onto the redis event stream consumed
// by the delivery bridge.
type EventNotifier struct {
	publisher events.Publisher
	log       *zap.Logger
}

func NewEventNotifier(publisher events.Publisher, log *zap.Logger) *EventNotifier {
	return &EventNotifier{publisher: publisher, log: log}
}

func (n *EventNotifier) publish(ctx context.Context, kind string, payload map[string]any) {
	payload["kind"] = kind
	err := n.publisher.Publish(ctx, notificationStream, events.Event{
		Type:    events.EventUserNotification,
		Payload: payload,
	})
	if err != nil {
		n.log.Warn("notification publish failed", zap.String("kind", kind), zap.Error(err))
	}
}

func (n *EventNotifier) NotifyNewOffer(ctx context.Context, buyerID, needID, offerID uuid.UUID) {
	n.publish(ctx, "new_offer", map[string]any{
		"user_id":  buyerID.String(),
		"need_id":  needID.String(),
		"offer_id": offerID.String(),
	})
}

func (n *EventNotifier) NotifyOfferAccepted(ctx context.Context, providerID, offerID uuid.UUID) {
	n.publish(ctx, "offer_accepted", map[string]any{
		"user_id":  providerID.String(),
		"offer_id": offerID.String(),
	})
}

func (n *EventNotifier) NotifyOfferRejected(ctx context.Context, providerID, offerID uuid.UUID, reason string) {
	payload := map[string]any{
		"user_id":  providerID.String(),
		"offer_id": offerID.String(),
	}
	if reason != "" {
		payload["reason"] = reason
	}
	n.publish(ctx, "offer_rejected", payload)
}

func (n *EventNotifier) NotifyOfferWithdrawn(ctx context.Context, providerID, offerID uuid.UUID) {
	n.publish(ctx, "offer_withdrawn", map[string]any{
		"user_id":  providerID.String(),
		"offer_id": offerID.String(),
	})
}

func (n *EventNotifier) NotifyPaymentReleased(ctx context.Context, providerID, transactionID uuid.UUID) {
	n.publish(ctx, "payment_released", map[string]any{
		"user_id":        providerID.String(),
		"transaction_id": transactionID.String(),
	})
}

func (n *EventNotifier) NotifyPaymentRefunded(ctx context.Context, buyerID, providerID, transactionID uuid.UUID, reason string) {
	payload := map[string]any{
		"buyer_id":       buyerID.String(),
		"provider_id":    providerID.String(),
		"transaction_id": transactionID.String(),
	}
	if reason != "" {
		payload["reason"] = reason
	}
	n.publish(ctx, "payment_refunded", payload)
}
