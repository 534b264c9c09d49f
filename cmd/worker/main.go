package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/needmarket/backend/internal/config"
	"github.com/needmarket/backend/internal/db"
	"github.com/needmarket/backend/internal/models"
	"github.com/needmarket/backend/internal/repositories"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Repos
	txnRepo := repositories.NewTransactionRepo(pool)
	needRepo := repositories.NewNeedRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	log.Info("worker started")

	// Run jobs on tickers
	staleTicker := time.NewTicker(2 * time.Minute)
	expiryTicker := time.NewTicker(5 * time.Minute)
	defer staleTicker.Stop()
	defer expiryTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-staleTicker.C:
			runStaleProcessingSweep(ctx, txnRepo, auditRepo, cfg, log)
		case <-expiryTicker.C:
			runNeedExpiry(ctx, needRepo, auditRepo, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runStaleProcessingSweep fails transactions stuck in processing past the
// configured timeout. The gateway never delivered a callback for these.
func runStaleProcessingSweep(ctx context.Context, txnRepo *repositories.TransactionRepo, auditRepo *repositories.AuditRepo, cfg *config.Config, log *zap.Logger) {
	maxAge := time.Duration(cfg.ProcessingTimeoutSeconds) * time.Second

	ids, err := txnRepo.FailStaleProcessing(ctx, maxAge)
	if err != nil {
		log.Error("failed to sweep stale transactions", zap.Error(err))
		return
	}

	for _, id := range ids {
		log.Warn("failed stale processing transaction",
			zap.String("transaction_id", id.String()),
			zap.Duration("max_age", maxAge),
		)
		_ = auditRepo.Log(ctx, models.AuditLog{
			ActorType:  "system",
			Action:     "transaction_status_processing_to_failed",
			EntityType: "transaction",
			EntityID:   &id,
			Meta:       map[string]any{"reason": "gateway callback timeout"},
		})
	}
}

func runNeedExpiry(ctx context.Context, needRepo *repositories.NeedRepo, auditRepo *repositories.AuditRepo, log *zap.Logger) {
	ids, err := needRepo.ExpireOverdue(ctx)
	if err != nil {
		log.Error("failed to expire needs", zap.Error(err))
		return
	}

	for _, id := range ids {
		log.Info("expired need", zap.String("need_id", id.String()))
		_ = auditRepo.Log(ctx, models.AuditLog{
			ActorType:  "system",
			Action:     "need_expired",
			EntityType: "need",
			EntityID:   &id,
		})
	}
}
