package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/needmarket/backend/internal/apperr"
	"github.com/needmarket/backend/internal/http/dto"
)

// writeError maps the service error taxonomy onto HTTP statuses. Unknown
// errors are logged and hidden behind a generic 500.
func writeError(c *fiber.Ctx, log *zap.Logger, err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	case apperr.KindUnauthorized:
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})
	case apperr.KindNotFound:
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: err.Error()})
	case apperr.KindConflict:
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	case apperr.KindGateway:
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: err.Error()})
	default:
		log.Error("unhandled error", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
}
