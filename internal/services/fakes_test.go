package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/needmarket/backend/internal/events"
	"github.com/needmarket/backend/internal/gateway"
	"github.com/needmarket/backend/internal/models"
	"github.com/needmarket/backend/internal/repositories"
)

// In-memory store fakes. They reproduce the compare-and-swap semantics of the
// pgx repositories so the services' concurrency guards are actually exercised.

type fakeNeedStore struct {
	mu    sync.Mutex
	needs map[uuid.UUID]*models.Need
}

func newFakeNeedStore() *fakeNeedStore {
	return &fakeNeedStore{needs: map[uuid.UUID]*models.Need{}}
}

func (f *fakeNeedStore) Create(_ context.Context, n *models.Need) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	cp := *n
	f.needs[n.ID] = &cp
	return nil
}

func (f *fakeNeedStore) GetByID(_ context.Context, id uuid.UUID) (*models.Need, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.needs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeNeedStore) UpdateStatusFrom(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.needs[id]
	if !ok || n.Status != from {
		return false, nil
	}
	n.Status = to
	return true, nil
}

func (f *fakeNeedStore) List(_ context.Context, _ repositories.NeedFilter) ([]models.NeedWithOfferCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.NeedWithOfferCount
	for _, n := range f.needs {
		out = append(out, models.NeedWithOfferCount{Need: *n})
	}
	return out, nil
}

func (f *fakeNeedStore) add(n models.Need) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	f.needs[n.ID] = &n
	return n.ID
}

type fakeOfferStore struct {
	mu     sync.Mutex
	offers map[uuid.UUID]*models.Offer
	needs  *fakeNeedStore
}

func newFakeOfferStore(needs *fakeNeedStore) *fakeOfferStore {
	return &fakeOfferStore{offers: map[uuid.UUID]*models.Offer{}, needs: needs}
}

func (f *fakeOfferStore) Create(_ context.Context, o *models.Offer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	f.offers[o.ID] = &cp
	return nil
}

func (f *fakeOfferStore) GetByID(_ context.Context, id uuid.UUID) (*models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOfferStore) GetByIDWithNeed(ctx context.Context, id uuid.UUID) (*models.OfferWithNeed, error) {
	o, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := f.needs.GetByID(ctx, o.NeedID)
	if err != nil {
		return nil, err
	}
	return &models.OfferWithNeed{
		Offer:           *o,
		NeedTitle:       n.Title,
		NeedBuyerUserID: n.BuyerUserID,
		NeedStatus:      n.Status,
	}, nil
}

func (f *fakeOfferStore) UpdateStatusFrom(_ context.Context, id uuid.UUID, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.offers[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (f *fakeOfferStore) List(_ context.Context, filter repositories.OfferFilter) ([]models.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Offer
	for _, o := range f.offers {
		if filter.NeedID != nil && o.NeedID != *filter.NeedID {
			continue
		}
		if filter.ProviderUserID != nil && o.ProviderUserID != *filter.ProviderUserID {
			continue
		}
		if filter.Status != nil && o.Status != *filter.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeOfferStore) add(o models.Offer) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	f.offers[o.ID] = &o
	return o.ID
}

type fakeTransactionStore struct {
	mu   sync.Mutex
	txns map[uuid.UUID]*models.Transaction
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{txns: map[uuid.UUID]*models.Transaction{}}
}

func (f *fakeTransactionStore) Create(_ context.Context, t *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.txns {
		if existing.OfferID == t.OfferID && !models.IsTerminalTransactionStatus(existing.Status) {
			return &uniqueViolationError{}
		}
	}
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	f.txns[t.ID] = &cp
	return nil
}

func (f *fakeTransactionStore) GetByID(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.txns[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTransactionStore) GetByGatewayRef(_ context.Context, ref string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.txns {
		if t.GatewayRef != nil && *t.GatewayRef == ref {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeTransactionStore) GetActiveByOfferID(_ context.Context, offerID uuid.UUID) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.txns {
		if t.OfferID == offerID && !models.IsTerminalTransactionStatus(t.Status) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeTransactionStore) MarkProcessing(_ context.Context, id uuid.UUID, gatewayRef string) (bool, error) {
	return f.cas(id, models.TransactionStatusProcessing, func(t *models.Transaction) bool {
		if t.Status != models.TransactionStatusPending {
			return false
		}
		t.GatewayRef = &gatewayRef
		return true
	})
}

func (f *fakeTransactionStore) MarkCompleted(_ context.Context, id uuid.UUID) (bool, error) {
	return f.cas(id, models.TransactionStatusCompleted, func(t *models.Transaction) bool {
		if t.Status != models.TransactionStatusProcessing {
			return false
		}
		now := time.Now()
		t.CompletedAt = &now
		return true
	})
}

func (f *fakeTransactionStore) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) (bool, error) {
	return f.cas(id, models.TransactionStatusFailed, func(t *models.Transaction) bool {
		if t.Status != models.TransactionStatusPending && t.Status != models.TransactionStatusProcessing {
			return false
		}
		t.ErrorMessage = &errMsg
		return true
	})
}

func (f *fakeTransactionStore) MarkReleased(_ context.Context, id uuid.UUID) (bool, error) {
	return f.cas(id, models.TransactionStatusReleased, func(t *models.Transaction) bool {
		if t.Status != models.TransactionStatusCompleted {
			return false
		}
		now := time.Now()
		t.ReleasedAt = &now
		return true
	})
}

func (f *fakeTransactionStore) MarkRefunded(_ context.Context, id uuid.UUID, meta map[string]any) (bool, error) {
	return f.cas(id, models.TransactionStatusRefunded, func(t *models.Transaction) bool {
		if t.Status != models.TransactionStatusCompleted {
			return false
		}
		now := time.Now()
		t.RefundedAt = &now
		if t.Metadata == nil {
			t.Metadata = map[string]any{}
		}
		for k, v := range meta {
			t.Metadata[k] = v
		}
		return true
	})
}

func (f *fakeTransactionStore) cas(id uuid.UUID, to string, guard func(*models.Transaction) bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.txns[id]
	if !ok {
		return false, nil
	}
	if !guard(t) {
		return false, nil
	}
	t.Status = to
	t.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeTransactionStore) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Transaction
	for _, t := range f.txns {
		if t.BuyerUserID == userID || t.ProviderUserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTransactionStore) FailStaleProcessing(_ context.Context, maxAge time.Duration) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	var ids []uuid.UUID
	for _, t := range f.txns {
		if t.Status == models.TransactionStatusProcessing && t.UpdatedAt.Before(cutoff) {
			t.Status = models.TransactionStatusFailed
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (f *fakeTransactionStore) add(t models.Transaction) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now()
	}
	f.txns[t.ID] = &t
	return t.ID
}

// uniqueViolationError mimics the duplicate-key error raised by the partial
// unique index on transactions(offer_id).
type uniqueViolationError struct{}

func (e *uniqueViolationError) Error() string { return "duplicate key value violates unique constraint" }

type fakeAuditStore struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (f *fakeAuditStore) Log(_ context.Context, entry models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditStore) GetByEntity(_ context.Context, entityType string, entityID uuid.UUID, _, _ int) ([]models.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AuditLog
	for _, e := range f.entries {
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAuditStore) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	Stream string
	Type   string
}

func (f *fakePublisher) Publish(_ context.Context, stream string, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{Stream: stream, Type: event.Type})
	return nil
}

type fakeNotifier struct {
	mu         sync.Mutex
	newOffers  int
	accepted   int
	rejected   int
	withdrawn  int
	released   int
	refunded   int
	lastReason string
}

func (f *fakeNotifier) NotifyNewOffer(_ context.Context, _, _, _ uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newOffers++
}

func (f *fakeNotifier) NotifyOfferAccepted(_ context.Context, _, _ uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted++
}

func (f *fakeNotifier) NotifyOfferRejected(_ context.Context, _, _ uuid.UUID, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected++
	f.lastReason = reason
}

func (f *fakeNotifier) NotifyOfferWithdrawn(_ context.Context, _, _ uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.withdrawn++
}

func (f *fakeNotifier) NotifyPaymentReleased(_ context.Context, _, _ uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

func (f *fakeNotifier) NotifyPaymentRefunded(_ context.Context, _, _, _ uuid.UUID, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refunded++
	f.lastReason = reason
}

// stubGateway lets each test script the authorization outcome.
type stubGateway struct {
	authorize func(ctx context.Context, req gateway.AuthorizeRequest) (*gateway.AuthorizeResult, error)
	parse     func(payload []byte) (*gateway.CallbackResult, error)
}

func (s *stubGateway) Authorize(ctx context.Context, req gateway.AuthorizeRequest) (*gateway.AuthorizeResult, error) {
	if s.authorize != nil {
		return s.authorize(ctx, req)
	}
	return &gateway.AuthorizeResult{
		TransactionRef: "gw-" + req.Reference,
		Status:         gateway.StatusChallengeRequired,
		ChallengeHTML:  "<form>challenge</form>",
	}, nil
}

func (s *stubGateway) ParseCallback(payload []byte) (*gateway.CallbackResult, error) {
	if s.parse != nil {
		return s.parse(payload)
	}
	return nil, nil
}
