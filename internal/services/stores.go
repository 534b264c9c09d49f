package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/needmarket/backend/internal/models"
	"github.com/needmarket/backend/internal/repositories"
)

// Storage interfaces consumed by the services. The pgx repositories satisfy
// them; tests substitute in-memory fakes.

type NeedStore interface {
	Create(ctx context.Context, n *models.Need) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Need, error)
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	List(ctx context.Context, f repositories.NeedFilter) ([]models.NeedWithOfferCount, error)
}

type OfferStore interface {
	Create(ctx context.Context, o *models.Offer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	GetByIDWithNeed(ctx context.Context, id uuid.UUID) (*models.OfferWithNeed, error)
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	List(ctx context.Context, f repositories.OfferFilter) ([]models.Offer, error)
}

type TransactionStore interface {
	Create(ctx context.Context, t *models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetByGatewayRef(ctx context.Context, ref string) (*models.Transaction, error)
	GetActiveByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Transaction, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, gatewayRef string) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) (bool, error)
	MarkReleased(ctx context.Context, id uuid.UUID) (bool, error)
	MarkRefunded(ctx context.Context, id uuid.UUID, meta map[string]any) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
	FailStaleProcessing(ctx context.Context, maxAge time.Duration) ([]uuid.UUID, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry models.AuditLog) error
	GetByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit, offset int) ([]models.AuditLog, error)
}
