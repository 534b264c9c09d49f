package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/needmarket/backend/internal/models"
)

// ErrNotFound is returned when a lookup resolves no row.
var ErrNotFound = pgx.ErrNoRows

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new pending transaction. The partial unique index on
// offer_id over non-terminal statuses makes a second concurrent insert for
// the same offer fail; callers detect that with IsUniqueViolation.
func (r *TransactionRepo) Create(ctx context.Context, t *models.Transaction) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO transactions (offer_id, buyer_user_id, provider_user_id, amount, currency, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, t.OfferID, t.BuyerUserID, t.ProviderUserID, t.Amount, t.Currency, t.Status, t.Metadata,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

const transactionColumns = `
	id, offer_id, buyer_user_id, provider_user_id, amount, currency, status,
	gateway_ref, error_message, metadata, created_at, updated_at,
	completed_at, released_at, refunded_at
`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.OfferID, &t.BuyerUserID, &t.ProviderUserID, &t.Amount, &t.Currency, &t.Status,
		&t.GatewayRef, &t.ErrorMessage, &t.Metadata, &t.CreatedAt, &t.UpdatedAt,
		&t.CompletedAt, &t.ReleasedAt, &t.RefundedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
}

func (r *TransactionRepo) GetByGatewayRef(ctx context.Context, ref string) (*models.Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE gateway_ref = $1`, ref))
}

// GetActiveByOfferID returns the non-terminal transaction for an offer, if any.
func (r *TransactionRepo) GetActiveByOfferID(ctx context.Context, offerID uuid.UUID) (*models.Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE offer_id = $1 AND status = ANY($2)`,
		offerID, models.NonTerminalTransactionStatuses))
}

// MarkProcessing moves pending -> processing and records the gateway
// correlation id. Guarded by the expected status so retries cannot clobber a
// later state.
func (r *TransactionRepo) MarkProcessing(ctx context.Context, id uuid.UUID, gatewayRef string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions SET status = $1, gateway_ref = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, models.TransactionStatusProcessing, gatewayRef, id, models.TransactionStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkCompleted moves processing -> completed: the escrow hold point.
func (r *TransactionRepo) MarkCompleted(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions SET status = $1, completed_at = now(), updated_at = now()
		WHERE id = $2 AND status = $3
	`, models.TransactionStatusCompleted, id, models.TransactionStatusProcessing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFailed records a gateway failure from pending or processing.
func (r *TransactionRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions SET status = $1, error_message = $2, updated_at = now()
		WHERE id = $3 AND status IN ($4, $5)
	`, models.TransactionStatusFailed, errMsg, id,
		models.TransactionStatusPending, models.TransactionStatusProcessing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkReleased moves completed -> released. At most one settlement away from
// completed ever wins the compare-and-swap.
func (r *TransactionRepo) MarkReleased(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions SET status = $1, released_at = now(), updated_at = now()
		WHERE id = $2 AND status = $3
	`, models.TransactionStatusReleased, id, models.TransactionStatusCompleted)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRefunded moves completed -> refunded and merges the refund reason into
// the metadata document.
func (r *TransactionRepo) MarkRefunded(ctx context.Context, id uuid.UUID, meta map[string]any) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions
		SET status = $1, refunded_at = now(), updated_at = now(),
		    metadata = COALESCE(metadata, '{}'::jsonb) || $2
		WHERE id = $3 AND status = $4
	`, models.TransactionStatusRefunded, meta, id, models.TransactionStatusCompleted)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByUser returns every transaction where the user is buyer or provider.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE buyer_user_id = $1 OR provider_user_id = $1
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	return txns, rows.Err()
}

// FailStaleProcessing fails transactions stuck in processing longer than
// maxAge (abandoned 3-D Secure challenges) and returns the touched ids.
func (r *TransactionRepo) FailStaleProcessing(ctx context.Context, maxAge time.Duration) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE transactions SET status = $1, error_message = $2, updated_at = now()
		WHERE status = $3 AND updated_at < now() - ($4 || ' seconds')::interval
		RETURNING id
	`, models.TransactionStatusFailed, "payment challenge not completed in time",
		models.TransactionStatusProcessing, fmt.Sprintf("%d", int(maxAge.Seconds())))
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

// IsUniqueViolation reports whether err is a postgres unique constraint
// violation (two non-terminal transactions for one offer).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
