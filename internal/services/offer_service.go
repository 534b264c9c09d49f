package services

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/needmarket/backend/internal/access"
	"github.com/needmarket/backend/internal/apperr"
	"github.com/needmarket/backend/internal/events"
	"github.com/needmarket/backend/internal/models"
	"github.com/needmarket/backend/internal/repositories"
)

// Offer description length bounds.
const (
	offerDescriptionMinLen = 3
	offerDescriptionMaxLen = 2000
)

// OfferService owns the offer lifecycle: pending -> accepted/rejected/withdrawn.
type OfferService struct {
	offerRepo OfferStore
	needRepo  NeedStore
	auditRepo AuditStore
	notifier  Notifier
	publisher events.Publisher
	log       *zap.Logger
}

func NewOfferService(
	offerRepo OfferStore,
	needRepo NeedStore,
	auditRepo AuditStore,
	notifier Notifier,
	publisher events.Publisher,
	log *zap.Logger,
) *OfferService {
	return &OfferService{
		offerRepo: offerRepo,
		needRepo:  needRepo,
		auditRepo: auditRepo,
		notifier:  notifier,
		publisher: publisher,
		log:       log,
	}
}

// transition validates and performs an offer status transition with audit
// logging. The repository write is a compare-and-swap on the current status,
// so two concurrent transitions cannot both win.
func (s *OfferService) transition(ctx context.Context, offer *models.Offer, newStatus string, actorID *uuid.UUID, meta map[string]any) error {
	if !models.IsValidOfferTransition(offer.Status, newStatus) {
		return apperr.Conflict("offer is %s, expected %s", offer.Status, models.OfferStatusPending)
	}

	ok, err := s.offerRepo.UpdateStatusFrom(ctx, offer.ID, offer.Status, newStatus)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("offer was modified concurrently, reload and retry")
	}

	oldStatus := offer.Status
	offer.Status = newStatus

	if meta == nil {
		meta = map[string]any{}
	}
	meta["old_status"] = oldStatus
	meta["new_status"] = newStatus
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   "user",
		Action:      "offer_status_" + oldStatus + "_to_" + newStatus,
		EntityType:  "offer",
		EntityID:    &offer.ID,
		Meta:        meta,
	})

	_ = s.publisher.Publish(ctx, "events:offer", events.Event{
		Type: events.EventOfferStatusChanged,
		Payload: map[string]any{
			"offer_id":   offer.ID.String(),
			"need_id":    offer.NeedID.String(),
			"old_status": oldStatus,
			"new_status": newStatus,
		},
	})

	return nil
}

func (s *OfferService) CreateOffer(ctx context.Context, needID, providerID uuid.UUID, price decimal.Decimal, currency string, deliveryDays int, description string) (*models.Offer, error) {
	need, err := s.needRepo.GetByID(ctx, needID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.Validation("need does not exist")
		}
		return nil, err
	}

	if need.Status != models.NeedStatusActive {
		return nil, apperr.Validation("need is %s, offers can only be made on active needs", need.Status)
	}
	if !access.CanProviderCreateOffer(need, providerID) {
		return nil, apperr.Validation("you cannot offer on your own need")
	}
	if !price.IsPositive() {
		return nil, apperr.Validation("price must be positive")
	}
	if currency != need.Currency {
		return nil, apperr.Validation("offer currency %s does not match need currency %s", currency, need.Currency)
	}
	if deliveryDays <= 0 {
		return nil, apperr.Validation("delivery duration must be at least one day")
	}
	if n := utf8.RuneCountInString(description); n < offerDescriptionMinLen || n > offerDescriptionMaxLen {
		return nil, apperr.Validation("description must be between %d and %d characters", offerDescriptionMinLen, offerDescriptionMaxLen)
	}

	offer := &models.Offer{
		NeedID:         needID,
		ProviderUserID: providerID,
		Price:          price,
		Currency:       currency,
		DeliveryDays:   deliveryDays,
		Description:    description,
		Status:         models.OfferStatusPending,
	}
	if err := s.offerRepo.Create(ctx, offer); err != nil {
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &providerID,
		ActorType:   "user",
		Action:      "offer_created",
		EntityType:  "offer",
		EntityID:    &offer.ID,
		Meta:        map[string]any{"need_id": needID.String(), "price": price.String(), "currency": currency},
	})
	_ = s.publisher.Publish(ctx, "events:offer", events.Event{
		Type: events.EventOfferCreated,
		Payload: map[string]any{
			"offer_id": offer.ID.String(),
			"need_id":  needID.String(),
		},
	})

	s.notifier.NotifyNewOffer(ctx, need.BuyerUserID, needID, offer.ID)

	return offer, nil
}

// AcceptOffer marks the offer accepted and moves the need into progress.
// Sibling offers on the same need stay pending: payment initialization is
// what stops a non-accepted offer from being paid.
func (s *OfferService) AcceptOffer(ctx context.Context, offerID, buyerID uuid.UUID) error {
	offer, need, err := s.loadOfferWithNeed(ctx, offerID)
	if err != nil {
		return err
	}
	if !access.CanBuyerManageOffer(need, buyerID) {
		return apperr.Unauthorized("only the need's buyer can accept an offer")
	}
	if offer.Status != models.OfferStatusPending {
		return apperr.Conflict("offer is %s, only pending offers can be accepted", offer.Status)
	}

	if err := s.transition(ctx, offer, models.OfferStatusAccepted, &buyerID, nil); err != nil {
		return err
	}

	// Best effort: the need may already be in progress from a previous accept.
	if _, err := s.needRepo.UpdateStatusFrom(ctx, need.ID, models.NeedStatusActive, models.NeedStatusInProgress); err != nil {
		s.log.Warn("failed to move need into progress", zap.String("need_id", need.ID.String()), zap.Error(err))
	}

	s.notifier.NotifyOfferAccepted(ctx, offer.ProviderUserID, offer.ID)
	return nil
}

func (s *OfferService) RejectOffer(ctx context.Context, offerID, buyerID uuid.UUID, reason string) error {
	offer, need, err := s.loadOfferWithNeed(ctx, offerID)
	if err != nil {
		return err
	}
	if !access.CanBuyerManageOffer(need, buyerID) {
		return apperr.Unauthorized("only the need's buyer can reject an offer")
	}
	if offer.Status != models.OfferStatusPending {
		return apperr.Conflict("offer is %s, only pending offers can be rejected", offer.Status)
	}

	var meta map[string]any
	if reason != "" {
		meta = map[string]any{"reason": reason}
	}
	if err := s.transition(ctx, offer, models.OfferStatusRejected, &buyerID, meta); err != nil {
		return err
	}

	s.notifier.NotifyOfferRejected(ctx, offer.ProviderUserID, offer.ID, reason)
	return nil
}

// WithdrawOffer lets the owning provider pull a pending offer. Accepted
// offers cannot be withdrawn: that would orphan an escrowed transaction.
func (s *OfferService) WithdrawOffer(ctx context.Context, offerID, providerID uuid.UUID) error {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("offer not found")
		}
		return err
	}
	if !access.CanProviderManageOffer(offer, providerID) {
		return apperr.Unauthorized("only the offer's provider can withdraw it")
	}
	if offer.Status != models.OfferStatusPending {
		return apperr.Conflict("offer is %s, only pending offers can be withdrawn", offer.Status)
	}

	if err := s.transition(ctx, offer, models.OfferStatusWithdrawn, &providerID, nil); err != nil {
		return err
	}

	s.notifier.NotifyOfferWithdrawn(ctx, offer.ProviderUserID, offer.ID)
	return nil
}

func (s *OfferService) GetOffer(ctx context.Context, id uuid.UUID) (*models.OfferWithNeed, error) {
	offer, err := s.offerRepo.GetByIDWithNeed(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("offer not found")
		}
		return nil, err
	}
	return offer, nil
}

func (s *OfferService) ListOffers(ctx context.Context, f repositories.OfferFilter) ([]models.Offer, error) {
	return s.offerRepo.List(ctx, f)
}

func (s *OfferService) GetOfferEvents(ctx context.Context, offerID uuid.UUID) ([]models.AuditLog, error) {
	return s.auditRepo.GetByEntity(ctx, "offer", offerID, 100, 0)
}

func (s *OfferService) loadOfferWithNeed(ctx context.Context, offerID uuid.UUID) (*models.Offer, *models.Need, error) {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, apperr.NotFound("offer not found")
		}
		return nil, nil, err
	}
	need, err := s.needRepo.GetByID(ctx, offer.NeedID)
	if err != nil {
		return nil, nil, err
	}
	return offer, need, nil
}
