package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/needmarket/backend/internal/config"
	"github.com/needmarket/backend/internal/http/handlers"
	"github.com/needmarket/backend/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	needHandler *handlers.NeedHandler,
	offerHandler *handlers.OfferHandler,
	paymentHandler *handlers.PaymentHandler,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	// Gateway webhook (public: carries its own correlation id)
	api.Post("/payments/callback", paymentHandler.HandleCallback)

	// Rate-limited endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Post("/me/ping", userHandler.Ping)

	// Needs
	protected.Post("/needs", needHandler.CreateNeed)
	protected.Get("/needs", needHandler.ListNeeds)
	protected.Get("/needs/:id", needHandler.GetNeed)
	protected.Post("/needs/:id/cancel", needHandler.CancelNeed)

	// Offers
	protected.Post("/needs/:id/offers", offerHandler.CreateOffer)
	protected.Get("/needs/:id/offers", offerHandler.ListNeedOffers)
	protected.Get("/offers/my", offerHandler.ListMyOffers)
	protected.Get("/offers/:id", offerHandler.GetOffer)
	protected.Post("/offers/:id/accept", offerHandler.AcceptOffer)
	protected.Post("/offers/:id/reject", offerHandler.RejectOffer)
	protected.Post("/offers/:id/withdraw", offerHandler.WithdrawOffer)
	protected.Get("/offers/:id/events", offerHandler.GetOfferEvents)

	// Payments
	protected.Post("/offers/:id/payment", paymentHandler.InitializePayment)
	protected.Get("/transactions/:id", paymentHandler.GetTransaction)
	protected.Post("/transactions/:id/release", paymentHandler.ReleasePayment)
	protected.Post("/transactions/:id/refund", paymentHandler.RefundPayment)
	protected.Get("/transactions/:id/events", paymentHandler.GetTransactionEvents)
	protected.Get("/me/transactions/stats", paymentHandler.GetMyTransactionStats)
}
