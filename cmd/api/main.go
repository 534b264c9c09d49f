package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/needmarket/backend/internal/config"
	"github.com/needmarket/backend/internal/db"
	"github.com/needmarket/backend/internal/events"
	"github.com/needmarket/backend/internal/gateway"
	apphttp "github.com/needmarket/backend/internal/http"
	"github.com/needmarket/backend/internal/http/handlers"
	"github.com/needmarket/backend/internal/repositories"
	"github.com/needmarket/backend/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	needRepo := repositories.NewNeedRepo(pool)
	offerRepo := repositories.NewOfferRepo(pool)
	txnRepo := repositories.NewTransactionRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)

	// Services
	gw := gateway.NewHTTPAdapter(cfg.GatewayBaseURL, cfg.GatewayAPIKey, cfg.GatewayTimeout, log)
	notifier := services.NewEventNotifier(publisher, log)
	needService := services.NewNeedService(needRepo, auditRepo, log)
	offerService := services.NewOfferService(offerRepo, needRepo, auditRepo, notifier, publisher, log)
	paymentService := services.NewPaymentService(txnRepo, offerRepo, needRepo, auditRepo, gw, notifier, publisher, cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, cfg, log)
	userHandler := handlers.NewUserHandler(userRepo, log)
	needHandler := handlers.NewNeedHandler(needService, log)
	offerHandler := handlers.NewOfferHandler(offerService, log)
	paymentHandler := handlers.NewPaymentHandler(paymentService, log)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, userHandler, needHandler, offerHandler, paymentHandler)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
