package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/needmarket/backend/internal/access"
	"github.com/needmarket/backend/internal/apperr"
	"github.com/needmarket/backend/internal/config"
	"github.com/needmarket/backend/internal/events"
	"github.com/needmarket/backend/internal/gateway"
	"github.com/needmarket/backend/internal/models"
	"github.com/needmarket/backend/internal/repositories"
)

// PaymentService owns the escrow transaction state machine:
// pending -> processing -> completed -> released|refunded, with failure and
// cancellation branches. No other path mutates transaction records.
type PaymentService struct {
	txnRepo   TransactionStore
	offerRepo OfferStore
	needRepo  NeedStore
	auditRepo AuditStore
	gw        gateway.Adapter
	notifier  Notifier
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewPaymentService(
	txnRepo TransactionStore,
	offerRepo OfferStore,
	needRepo NeedStore,
	auditRepo AuditStore,
	gw gateway.Adapter,
	notifier Notifier,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		txnRepo:   txnRepo,
		offerRepo: offerRepo,
		needRepo:  needRepo,
		auditRepo: auditRepo,
		gw:        gw,
		notifier:  notifier,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// InitializePaymentResult carries what the client needs to continue the flow:
// either the 3-D Secure challenge to render, or confirmation that the charge
// went straight through and the callback will settle it.
type InitializePaymentResult struct {
	Transaction   *models.Transaction `json:"transaction"`
	Status        string              `json:"status"`
	ChallengeHTML string              `json:"challenge_html,omitempty"`
}

// InitializePayment creates the escrow transaction for an accepted offer and
// asks the gateway to authorize the charge. All preconditions are checked
// before any record is written; a rejected request leaves nothing behind.
func (s *PaymentService) InitializePayment(ctx context.Context, offerID, buyerID uuid.UUID, card gateway.Card, billing gateway.BillingAddress) (*InitializePaymentResult, error) {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.Validation("offer does not exist")
		}
		return nil, err
	}
	if offer.Status != models.OfferStatusAccepted {
		return nil, apperr.Validation("offer is %s, payment can only be initialized for an accepted offer", offer.Status)
	}

	need, err := s.needRepo.GetByID(ctx, offer.NeedID)
	if err != nil {
		return nil, err
	}
	if need.BuyerUserID != buyerID {
		return nil, apperr.Validation("only the need's buyer can pay for this offer")
	}

	if existing, err := s.txnRepo.GetActiveByOfferID(ctx, offerID); err == nil && existing != nil {
		return nil, apperr.Validation("offer already has a payment in %s state", existing.Status)
	} else if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	txn := &models.Transaction{
		OfferID:        offer.ID,
		BuyerUserID:    buyerID,
		ProviderUserID: offer.ProviderUserID,
		Amount:         offer.Price,
		Currency:       offer.Currency,
		Status:         models.TransactionStatusPending,
	}
	if err := s.txnRepo.Create(ctx, txn); err != nil {
		if repositories.IsUniqueViolation(err) {
			return nil, apperr.Validation("offer already has an active payment")
		}
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &buyerID,
		ActorType:   "user",
		Action:      "payment_initialized",
		EntityType:  "transaction",
		EntityID:    &txn.ID,
		Meta:        map[string]any{"offer_id": offer.ID.String(), "amount": txn.Amount.String(), "currency": txn.Currency},
	})

	// The one blocking external call. Bounded so a hung provider cannot pin
	// the record in pending forever.
	authCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	result, err := s.gw.Authorize(authCtx, gateway.AuthorizeRequest{
		Amount:         txn.Amount,
		Currency:       txn.Currency,
		Card:           card,
		BillingAddress: billing,
		Reference:      txn.ID.String(),
	})
	if err != nil {
		s.failTransaction(ctx, txn, err.Error())
		return nil, apperr.Gateway(err, "payment authorization failed")
	}
	if result.Status == gateway.StatusFailed {
		reason := result.FailureReason
		if reason == "" {
			reason = "authorization declined"
		}
		s.failTransaction(ctx, txn, reason)
		return nil, apperr.Gateway(nil, "payment authorization failed: %s", reason)
	}

	ok, err := s.txnRepo.MarkProcessing(ctx, txn.ID, result.TransactionRef)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("transaction is no longer pending")
	}
	txn.Status = models.TransactionStatusProcessing
	txn.GatewayRef = &result.TransactionRef

	s.publishStatus(ctx, txn, models.TransactionStatusPending)

	return &InitializePaymentResult{
		Transaction:   txn,
		Status:        result.Status,
		ChallengeHTML: result.ChallengeHTML,
	}, nil
}

// HandlePaymentCallback processes the gateway's asynchronous confirmation.
// Callbacks can be retried or arrive out of order, so redelivery against a
// transaction that already settled is a no-op.
func (s *PaymentService) HandlePaymentCallback(ctx context.Context, payload []byte) error {
	cb, err := s.gw.ParseCallback(payload)
	if err != nil {
		return apperr.Validation("invalid payment callback: %v", err)
	}

	txn, err := s.txnRepo.GetByGatewayRef(ctx, cb.TransactionRef)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.NotFound("no transaction for gateway reference %s", cb.TransactionRef)
		}
		return err
	}

	// Idempotency guard: anything past processing already consumed a callback.
	if txn.Status != models.TransactionStatusProcessing {
		s.log.Info("duplicate payment callback ignored",
			zap.String("transaction_id", txn.ID.String()),
			zap.String("status", txn.Status),
		)
		return nil
	}

	if !cb.Succeeded {
		if ok, err := s.txnRepo.MarkFailed(ctx, txn.ID, cb.FailureReason); err != nil {
			return err
		} else if !ok {
			return nil // lost the race to another delivery
		}
		txn.Status = models.TransactionStatusFailed
		_ = s.auditRepo.Log(ctx, models.AuditLog{
			ActorType:  "gateway",
			Action:     "payment_failed",
			EntityType: "transaction",
			EntityID:   &txn.ID,
			Meta:       map[string]any{"reason": cb.FailureReason},
		})
		s.publishStatus(ctx, txn, models.TransactionStatusProcessing)
		return nil
	}

	ok, err := s.txnRepo.MarkCompleted(ctx, txn.ID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	txn.Status = models.TransactionStatusCompleted

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorType:  "gateway",
		Action:     "payment_completed",
		EntityType: "transaction",
		EntityID:   &txn.ID,
	})
	s.publishStatus(ctx, txn, models.TransactionStatusProcessing)
	return nil
}

// ReleasePayment transfers escrowed funds to the provider and completes the
// underlying need. Only the transaction's buyer may release, and only from
// the completed (escrow hold) state.
func (s *PaymentService) ReleasePayment(ctx context.Context, transactionID, buyerID uuid.UUID, notes string) error {
	txn, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if !access.CanBuyerSettleTransaction(txn, buyerID) {
		return apperr.Unauthorized("only the buyer may release escrowed funds")
	}
	if txn.Status != models.TransactionStatusCompleted {
		return apperr.Conflict("transaction is %s, funds can only be released from %s",
			txn.Status, models.TransactionStatusCompleted)
	}

	ok, err := s.txnRepo.MarkReleased(ctx, txn.ID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("transaction is no longer %s, it was settled concurrently", models.TransactionStatusCompleted)
	}
	txn.Status = models.TransactionStatusReleased

	s.settleNeed(ctx, txn, models.NeedStatusCompleted)

	meta := map[string]any{}
	if notes != "" {
		meta["notes"] = notes
	}
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &buyerID,
		ActorType:   "user",
		Action:      "payment_released",
		EntityType:  "transaction",
		EntityID:    &txn.ID,
		Meta:        meta,
	})
	s.publishStatus(ctx, txn, models.TransactionStatusCompleted)
	s.notifier.NotifyPaymentReleased(ctx, txn.ProviderUserID, txn.ID)
	return nil
}

// RefundPayment returns escrowed funds to the buyer and cancels the
// underlying need. Both parties are notified.
func (s *PaymentService) RefundPayment(ctx context.Context, transactionID, userID uuid.UUID, reason string) error {
	if reason == "" {
		return apperr.Validation("refund reason is required")
	}

	txn, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if !access.CanBuyerSettleTransaction(txn, userID) {
		return apperr.Unauthorized("only the buyer may request a refund")
	}
	if txn.Status != models.TransactionStatusCompleted {
		return apperr.Conflict("transaction is %s, refunds are only possible from %s",
			txn.Status, models.TransactionStatusCompleted)
	}

	ok, err := s.txnRepo.MarkRefunded(ctx, txn.ID, map[string]any{"refund_reason": reason})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("transaction is no longer %s, it was settled concurrently", models.TransactionStatusCompleted)
	}
	txn.Status = models.TransactionStatusRefunded

	s.settleNeed(ctx, txn, models.NeedStatusCancelled)

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   "user",
		Action:      "payment_refunded",
		EntityType:  "transaction",
		EntityID:    &txn.ID,
		Meta:        map[string]any{"reason": reason},
	})
	s.publishStatus(ctx, txn, models.TransactionStatusCompleted)
	s.notifier.NotifyPaymentRefunded(ctx, txn.BuyerUserID, txn.ProviderUserID, txn.ID, reason)
	return nil
}

// GetTransaction returns the transaction if userID is a party to it.
func (s *PaymentService) GetTransaction(ctx context.Context, transactionID, userID uuid.UUID) (*models.Transaction, error) {
	txn, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !access.CanUserAccessTransaction(txn, userID) {
		return nil, apperr.Unauthorized("transaction belongs to another user")
	}
	return txn, nil
}

func (s *PaymentService) CanUserAccessTransaction(ctx context.Context, transactionID, userID uuid.UUID) (bool, error) {
	txn, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return false, err
	}
	return access.CanUserAccessTransaction(txn, userID), nil
}

// GetUserTransactionStats aggregates over every transaction where the user
// appears as buyer or provider. Completed means funds actually released;
// refunded amounts are excluded from spend.
func (s *PaymentService) GetUserTransactionStats(ctx context.Context, userID uuid.UUID) (*models.UserTransactionStats, error) {
	txns, err := s.txnRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &models.UserTransactionStats{
		TotalSpent:  decimal.Zero,
		TotalEarned: decimal.Zero,
	}
	for _, t := range txns {
		stats.TotalTransactions++
		switch t.Status {
		case models.TransactionStatusReleased:
			stats.CompletedTransactions++
			if t.BuyerUserID == userID {
				stats.TotalSpent = stats.TotalSpent.Add(t.Amount)
			}
			if t.ProviderUserID == userID {
				stats.TotalEarned = stats.TotalEarned.Add(t.Amount)
			}
		case models.TransactionStatusPending:
			stats.PendingTransactions++
		case models.TransactionStatusRefunded:
			stats.RefundedTransactions++
		}
	}
	return stats, nil
}

func (s *PaymentService) GetTransactionEvents(ctx context.Context, transactionID uuid.UUID) ([]models.AuditLog, error) {
	return s.auditRepo.GetByEntity(ctx, "transaction", transactionID, 100, 0)
}

// --- helpers ---

func (s *PaymentService) getTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.txnRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("transaction not found")
		}
		return nil, err
	}
	return txn, nil
}

func (s *PaymentService) failTransaction(ctx context.Context, txn *models.Transaction, reason string) {
	if _, err := s.txnRepo.MarkFailed(ctx, txn.ID, reason); err != nil {
		s.log.Error("failed to record gateway failure",
			zap.String("transaction_id", txn.ID.String()), zap.Error(err))
		return
	}
	old := txn.Status
	txn.Status = models.TransactionStatusFailed
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorType:  "gateway",
		Action:     "payment_failed",
		EntityType: "transaction",
		EntityID:   &txn.ID,
		Meta:       map[string]any{"reason": reason},
	})
	s.publishStatus(ctx, txn, old)
}

// settleNeed moves the need tied to the transaction's offer into its final
// status. Best effort: the transaction settlement already committed and must
// not be rolled back by a need lookup failure.
func (s *PaymentService) settleNeed(ctx context.Context, txn *models.Transaction, needStatus string) {
	offer, err := s.offerRepo.GetByID(ctx, txn.OfferID)
	if err != nil {
		s.log.Error("failed to load offer while settling need",
			zap.String("transaction_id", txn.ID.String()), zap.Error(err))
		return
	}
	for _, from := range []string{models.NeedStatusInProgress, models.NeedStatusActive} {
		ok, err := s.needRepo.UpdateStatusFrom(ctx, offer.NeedID, from, needStatus)
		if err != nil {
			s.log.Error("failed to settle need",
				zap.String("need_id", offer.NeedID.String()), zap.Error(err))
			return
		}
		if ok {
			return
		}
	}
	s.log.Warn("need was not in a settleable status",
		zap.String("need_id", offer.NeedID.String()),
		zap.String("target", needStatus))
}

func (s *PaymentService) publishStatus(ctx context.Context, txn *models.Transaction, oldStatus string) {
	_ = s.publisher.Publish(ctx, "events:transaction", events.Event{
		Type: events.EventTransactionStatusChanged,
		Payload: map[string]any{
			"transaction_id": txn.ID.String(),
			"offer_id":       txn.OfferID.String(),
			"old_status":     oldStatus,
			"new_status":     txn.Status,
		},
	})
}
