package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware throttles with a redis counter. Authenticated requests
// are keyed by user id so one user cannot burn a shared NAT's budget;
// anonymous requests fall back to the client IP.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := c.IP()
		if userID := GetUserID(c); userID != uuid.Nil {
			subject = userID.String()
		}
		key := fmt.Sprintf("rl:%s:%s", c.Path(), subject)

		ctx := context.Background()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			return c.Next() // fail open
		}

		if count == 1 {
			rdb.Expire(ctx, key, window)
		}

		if count > int64(limit) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}

		return c.Next()
	}
}
