package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/needmarket/backend/internal/models"
)

type NeedRepo struct {
	pool *pgxpool.Pool
}

func NewNeedRepo(pool *pgxpool.Pool) *NeedRepo {
	return &NeedRepo{pool: pool}
}

func (r *NeedRepo) Create(ctx context.Context, n *models.Need) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO needs (buyer_user_id, title, description, category, budget_min, budget_max, currency, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, n.BuyerUserID, n.Title, n.Description, n.Category, n.BudgetMin, n.BudgetMax, n.Currency, n.Status, n.ExpiresAt,
	).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
}

func (r *NeedRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Need, error) {
	var n models.Need
	err := r.pool.QueryRow(ctx, `
		SELECT id, buyer_user_id, title, description, category, budget_min, budget_max,
		       currency, status, expires_at, created_at, updated_at
		FROM needs WHERE id = $1
	`, id).Scan(&n.ID, &n.BuyerUserID, &n.Title, &n.Description, &n.Category, &n.BudgetMin, &n.BudgetMax,
		&n.Currency, &n.Status, &n.ExpiresAt, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateStatusFrom performs a compare-and-swap on the need status. It reports
// whether the row was actually moved, so concurrent writers cannot both win.
func (r *NeedRepo) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE needs SET status = $1, updated_at = now() WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type NeedFilter struct {
	BuyerUserID *uuid.UUID
	Status      *string
	Category    *string
	Limit       int
	Offset      int
}

func (r *NeedRepo) List(ctx context.Context, f NeedFilter) ([]models.NeedWithOfferCount, error) {
	query := `
		SELECT n.id, n.buyer_user_id, n.title, n.description, n.category, n.budget_min, n.budget_max,
		       n.currency, n.status, n.expires_at, n.created_at, n.updated_at,
		       (SELECT COUNT(*) FROM offers o WHERE o.need_id = n.id) AS offer_count
		FROM needs n
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.BuyerUserID != nil {
		where = append(where, fmt.Sprintf("n.buyer_user_id = $%d", argIdx))
		args = append(args, *f.BuyerUserID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("n.status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}
	if f.Category != nil {
		where = append(where, fmt.Sprintf("n.category = $%d", argIdx))
		args = append(args, *f.Category)
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
	query += fmt.Sprintf(" ORDER BY n.created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var needs []models.NeedWithOfferCount
	for rows.Next() {
		var n models.NeedWithOfferCount
		if err := rows.Scan(&n.ID, &n.BuyerUserID, &n.Title, &n.Description, &n.Category, &n.BudgetMin, &n.BudgetMax,
			&n.Currency, &n.Status, &n.ExpiresAt, &n.CreatedAt, &n.UpdatedAt, &n.OfferCount); err != nil {
			return nil, err
		}
		needs = append(needs, n)
	}
	return needs, rows.Err()
}

// ExpireOverdue moves active needs past their expiry to expired and returns
// the ids it touched, for audit logging by the worker.
func (r *NeedRepo) ExpireOverdue(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE needs SET status = $1, updated_at = now()
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at < now()
		RETURNING id
	`, models.NeedStatusExpired, models.NeedStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
