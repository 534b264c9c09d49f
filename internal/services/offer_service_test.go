package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/needmarket/backend/internal/apperr"
	"github.com/needmarket/backend/internal/models"
)

type offerServiceFixture struct {
	svc      *OfferService
	needs    *fakeNeedStore
	offers   *fakeOfferStore
	audit    *fakeAuditStore
	notifier *fakeNotifier
	pub      *fakePublisher

	buyerID    uuid.UUID
	providerID uuid.UUID
	needID     uuid.UUID
}

func newOfferServiceFixture(t *testing.T) *offerServiceFixture {
	t.Helper()

	f := &offerServiceFixture{
		needs:      newFakeNeedStore(),
		audit:      &fakeAuditStore{},
		notifier:   &fakeNotifier{},
		pub:        &fakePublisher{},
		buyerID:    uuid.New(),
		providerID: uuid.New(),
	}
	f.offers = newFakeOfferStore(f.needs)
	f.needID = f.needs.add(models.Need{
		BuyerUserID: f.buyerID,
		Title:       "Fix my roof",
		Category:    "home",
		Currency:    "EUR",
		Status:      models.NeedStatusActive,
	})
	f.svc = NewOfferService(f.offers, f.needs, f.audit, f.notifier, f.pub, zap.NewNop())
	return f
}

func (f *offerServiceFixture) createOffer(t *testing.T) *models.Offer {
	t.Helper()
	offer, err := f.svc.CreateOffer(context.Background(), f.needID, f.providerID,
		decimal.NewFromInt(500), "EUR", 7, "I can fix it within a week")
	require.NoError(t, err)
	return offer
}

func TestCreateOffer(t *testing.T) {
	f := newOfferServiceFixture(t)

	offer := f.createOffer(t)

	assert.Equal(t, models.OfferStatusPending, offer.Status)
	assert.Equal(t, f.needID, offer.NeedID)
	assert.Equal(t, 1, f.notifier.newOffers)
	assert.Contains(t, f.audit.actions(), "offer_created")
}

func TestCreateOfferOnOwnNeed(t *testing.T) {
	f := newOfferServiceFixture(t)

	_, err := f.svc.CreateOffer(context.Background(), f.needID, f.buyerID,
		decimal.NewFromInt(500), "EUR", 7, "bidding on my own need")

	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, 0, f.notifier.newOffers)
}

func TestCreateOfferValidation(t *testing.T) {
	f := newOfferServiceFixture(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		needID       uuid.UUID
		price        decimal.Decimal
		currency     string
		deliveryDays int
		description  string
	}{
		{"unknown need", uuid.New(), decimal.NewFromInt(500), "EUR", 7, "valid description"},
		{"zero price", f.needID, decimal.Zero, "EUR", 7, "valid description"},
		{"negative price", f.needID, decimal.NewFromInt(-10), "EUR", 7, "valid description"},
		{"currency mismatch", f.needID, decimal.NewFromInt(500), "USD", 7, "valid description"},
		{"zero delivery days", f.needID, decimal.NewFromInt(500), "EUR", 0, "valid description"},
		{"description too short", f.needID, decimal.NewFromInt(500), "EUR", 7, "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateOffer(ctx, tt.needID, f.providerID, tt.price, tt.currency, tt.deliveryDays, tt.description)
			assert.True(t, apperr.Is(err, apperr.KindValidation), "expected validation error, got %v", err)
		})
	}
}

func TestCreateOfferOnClosedNeed(t *testing.T) {
	f := newOfferServiceFixture(t)
	closedID := f.needs.add(models.Need{
		BuyerUserID: f.buyerID,
		Title:       "Old need",
		Category:    "home",
		Currency:    "EUR",
		Status:      models.NeedStatusCancelled,
	})

	_, err := f.svc.CreateOffer(context.Background(), closedID, f.providerID,
		decimal.NewFromInt(500), "EUR", 7, "too late to bid")

	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestAcceptOffer(t *testing.T) {
	f := newOfferServiceFixture(t)
	offer := f.createOffer(t)

	err := f.svc.AcceptOffer(context.Background(), offer.ID, f.buyerID)
	require.NoError(t, err)

	stored, err := f.offers.GetByID(context.Background(), offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusAccepted, stored.Status)

	need, err := f.needs.GetByID(context.Background(), f.needID)
	require.NoError(t, err)
	assert.Equal(t, models.NeedStatusInProgress, need.Status)

	assert.Equal(t, 1, f.notifier.accepted)
}

func TestAcceptOfferNotBuyer(t *testing.T) {
	f := newOfferServiceFixture(t)
	offer := f.createOffer(t)

	err := f.svc.AcceptOffer(context.Background(), offer.ID, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	err = f.svc.AcceptOffer(context.Background(), offer.ID, f.providerID)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	stored, _ := f.offers.GetByID(context.Background(), offer.ID)
	assert.Equal(t, models.OfferStatusPending, stored.Status)
}

func TestAcceptOfferLeavesSiblingsPending(t *testing.T) {
	f := newOfferServiceFixture(t)
	first := f.createOffer(t)

	otherProvider := uuid.New()
	second, err := f.svc.CreateOffer(context.Background(), f.needID, otherProvider,
		decimal.NewFromInt(450), "EUR", 5, "I can do it cheaper")
	require.NoError(t, err)

	require.NoError(t, f.svc.AcceptOffer(context.Background(), first.ID, f.buyerID))

	sibling, err := f.offers.GetByID(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusPending, sibling.Status)
}

func TestAcceptOfferTwice(t *testing.T) {
	f := newOfferServiceFixture(t)
	offer := f.createOffer(t)

	require.NoError(t, f.svc.AcceptOffer(context.Background(), offer.ID, f.buyerID))

	err := f.svc.AcceptOffer(context.Background(), offer.ID, f.buyerID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, 1, f.notifier.accepted)
}

func TestRejectOffer(t *testing.T) {
	f := newOfferServiceFixture(t)
	offer := f.createOffer(t)

	err := f.svc.RejectOffer(context.Background(), offer.ID, f.buyerID, "budget too high")
	require.NoError(t, err)

	stored, _ := f.offers.GetByID(context.Background(), offer.ID)
	assert.Equal(t, models.OfferStatusRejected, stored.Status)
	assert.Equal(t, 1, f.notifier.rejected)
	assert.Equal(t, "budget too high", f.notifier.lastReason)
}

func TestRejectAcceptedOffer(t *testing.T) {
	f := newOfferServiceFixture(t)
	offer := f.createOffer(t)
	require.NoError(t, f.svc.AcceptOffer(context.Background(), offer.ID, f.buyerID))

	err := f.svc.RejectOffer(context.Background(), offer.ID, f.buyerID, "changed my mind")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestWithdrawOffer(t *testing.T) {
	f := newOfferServiceFixture(t)
	offer := f.createOffer(t)

	err := f.svc.WithdrawOffer(context.Background(), offer.ID, f.providerID)
	require.NoError(t, err)

	stored, _ := f.offers.GetByID(context.Background(), offer.ID)
	assert.Equal(t, models.OfferStatusWithdrawn, stored.Status)
	assert.Equal(t, 1, f.notifier.withdrawn)
}

func TestWithdrawOfferNotOwner(t *testing.T) {
	f := newOfferServiceFixture(t)
	offer := f.createOffer(t)

	err := f.svc.WithdrawOffer(context.Background(), offer.ID, f.buyerID)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestWithdrawAcceptedOffer(t *testing.T) {
	f := newOfferServiceFixture(t)
	offer := f.createOffer(t)
	require.NoError(t, f.svc.AcceptOffer(context.Background(), offer.ID, f.buyerID))

	err := f.svc.WithdrawOffer(context.Background(), offer.ID, f.providerID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestGetOfferNotFound(t *testing.T) {
	f := newOfferServiceFixture(t)

	_, err := f.svc.GetOffer(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestOfferAuditTrail(t *testing.T) {
	f := newOfferServiceFixture(t)
	offer := f.createOffer(t)
	require.NoError(t, f.svc.AcceptOffer(context.Background(), offer.ID, f.buyerID))

	events, err := f.svc.GetOfferEvents(context.Background(), offer.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "offer_created", events[0].Action)
	assert.Equal(t, "offer_status_pending_to_accepted", events[1].Action)
}
