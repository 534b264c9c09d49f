package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/needmarket/backend/internal/models"
)

type OfferRepo struct {
	pool *pgxpool.Pool
}

func NewOfferRepo(pool *pgxpool.Pool) *OfferRepo {
	return &OfferRepo{pool: pool}
}

func (r *OfferRepo) Create(ctx context.Context, o *models.Offer) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO offers (need_id, provider_user_id, price, currency, delivery_days, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, o.NeedID, o.ProviderUserID, o.Price, o.Currency, o.DeliveryDays, o.Description, o.Status,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (r *OfferRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var o models.Offer
	err := r.pool.QueryRow(ctx, `
		SELECT id, need_id, provider_user_id, price, currency, delivery_days, description, status, created_at, updated_at
		FROM offers WHERE id = $1
	`, id).Scan(&o.ID, &o.NeedID, &o.ProviderUserID, &o.Price, &o.Currency, &o.DeliveryDays,
		&o.Description, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OfferRepo) GetByIDWithNeed(ctx context.Context, id uuid.UUID) (*models.OfferWithNeed, error) {
	var o models.OfferWithNeed
	err := r.pool.QueryRow(ctx, `
		SELECT o.id, o.need_id, o.provider_user_id, o.price, o.currency, o.delivery_days, o.description,
		       o.status, o.created_at, o.updated_at,
		       n.title, n.buyer_user_id, n.status
		FROM offers o
		JOIN needs n ON n.id = o.need_id
		WHERE o.id = $1
	`, id).Scan(&o.ID, &o.NeedID, &o.ProviderUserID, &o.Price, &o.Currency, &o.DeliveryDays, &o.Description,
		&o.Status, &o.CreatedAt, &o.UpdatedAt,
		&o.NeedTitle, &o.NeedBuyerUserID, &o.NeedStatus)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateStatusFrom performs a compare-and-swap on the offer status: the write
// only lands when the row is still in the expected state, which is what keeps
// two concurrent accepts from both succeeding.
func (r *OfferRepo) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE offers SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type OfferFilter struct {
	NeedID         *uuid.UUID
	ProviderUserID *uuid.UUID
	Status         *string
	Limit          int
	Offset         int
}

func (r *OfferRepo) List(ctx context.Context, f OfferFilter) ([]models.Offer, error) {
	query := `
		SELECT id, need_id, provider_user_id, price, currency, delivery_days, description, status, created_at, updated_at
		FROM offers
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.NeedID != nil {
		where = append(where, fmt.Sprintf("need_id = $%d", argIdx))
		args = append(args, *f.NeedID)
		argIdx++
	}
	if f.ProviderUserID != nil {
		where = append(where, fmt.Sprintf("provider_user_id = $%d", argIdx))
		args = append(args, *f.ProviderUserID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []models.Offer
	for rows.Next() {
		var o models.Offer
		if err := rows.Scan(&o.ID, &o.NeedID, &o.ProviderUserID, &o.Price, &o.Currency, &o.DeliveryDays,
			&o.Description, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}
