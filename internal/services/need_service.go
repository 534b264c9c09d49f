package services

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/needmarket/backend/internal/apperr"
	"github.com/needmarket/backend/internal/models"
	"github.com/needmarket/backend/internal/repositories"
)

const (
	needTitleMaxLen       = 200
	needDescriptionMaxLen = 5000
)

type NeedService struct {
	needRepo  NeedStore
	auditRepo AuditStore
	log       *zap.Logger
}

func NewNeedService(needRepo NeedStore, auditRepo AuditStore, log *zap.Logger) *NeedService {
	return &NeedService{needRepo: needRepo, auditRepo: auditRepo, log: log}
}

type CreateNeedInput struct {
	Title       string
	Description *string
	Category    string
	BudgetMin   *decimal.Decimal
	BudgetMax   *decimal.Decimal
	Currency    string
	ExpiresAt   *time.Time
}

func (s *NeedService) CreateNeed(ctx context.Context, buyerID uuid.UUID, input CreateNeedInput) (*models.Need, error) {
	if n := utf8.RuneCountInString(input.Title); n == 0 || n > needTitleMaxLen {
		return nil, apperr.Validation("title must be between 1 and %d characters", needTitleMaxLen)
	}
	if input.Description != nil && utf8.RuneCountInString(*input.Description) > needDescriptionMaxLen {
		return nil, apperr.Validation("description must be at most %d characters", needDescriptionMaxLen)
	}
	if input.Category == "" {
		return nil, apperr.Validation("category is required")
	}
	if input.Currency == "" {
		return nil, apperr.Validation("currency is required")
	}
	if input.BudgetMin != nil && !input.BudgetMin.IsPositive() {
		return nil, apperr.Validation("minimum budget must be positive")
	}
	if input.BudgetMax != nil && !input.BudgetMax.IsPositive() {
		return nil, apperr.Validation("maximum budget must be positive")
	}
	if input.BudgetMin != nil && input.BudgetMax != nil && input.BudgetMin.GreaterThan(*input.BudgetMax) {
		return nil, apperr.Validation("minimum budget cannot exceed maximum budget")
	}
	if input.ExpiresAt != nil && input.ExpiresAt.Before(time.Now()) {
		return nil, apperr.Validation("expiry must be in the future")
	}

	need := &models.Need{
		BuyerUserID: buyerID,
		Title:       input.Title,
		Description: input.Description,
		Category:    input.Category,
		BudgetMin:   input.BudgetMin,
		BudgetMax:   input.BudgetMax,
		Currency:    input.Currency,
		Status:      models.NeedStatusActive,
		ExpiresAt:   input.ExpiresAt,
	}
	if err := s.needRepo.Create(ctx, need); err != nil {
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &buyerID,
		ActorType:   "user",
		Action:      "need_created",
		EntityType:  "need",
		EntityID:    &need.ID,
		Meta:        map[string]any{"category": need.Category, "currency": need.Currency},
	})

	return need, nil
}

func (s *NeedService) GetNeed(ctx context.Context, id uuid.UUID) (*models.Need, error) {
	need, err := s.needRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("need not found")
		}
		return nil, err
	}
	return need, nil
}

func (s *NeedService) ListNeeds(ctx context.Context, f repositories.NeedFilter) ([]models.NeedWithOfferCount, error) {
	return s.needRepo.List(ctx, f)
}

// CancelNeed lets the owning buyer close an active need. Needs already in
// progress are settled through the payment path, not cancelled directly.
func (s *NeedService) CancelNeed(ctx context.Context, needID, buyerID uuid.UUID) error {
	need, err := s.GetNeed(ctx, needID)
	if err != nil {
		return err
	}
	if need.BuyerUserID != buyerID {
		return apperr.Unauthorized("only the need's buyer can cancel it")
	}
	if need.Status != models.NeedStatusActive {
		return apperr.Conflict("need is %s, only active needs can be cancelled", need.Status)
	}

	ok, err := s.needRepo.UpdateStatusFrom(ctx, needID, models.NeedStatusActive, models.NeedStatusCancelled)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("need was modified concurrently, reload and retry")
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &buyerID,
		ActorType:   "user",
		Action:      "need_cancelled",
		EntityType:  "need",
		EntityID:    &needID,
	})
	return nil
}
