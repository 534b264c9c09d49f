package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/needmarket/backend/internal/gateway"
	"github.com/needmarket/backend/internal/http/dto"
	"github.com/needmarket/backend/internal/middleware"
	"github.com/needmarket/backend/internal/services"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
	log            *zap.Logger
}

func NewPaymentHandler(paymentService *services.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, log: log}
}

func (h *PaymentHandler) InitializePayment(c *fiber.Ctx) error {
	offerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}

	var req dto.InitializePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Card.Number == "" || req.Card.CVC == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "card details are required"})
	}

	card := gateway.Card{
		HolderName: req.Card.HolderName,
		Number:     req.Card.Number,
		ExpMonth:   req.Card.ExpMonth,
		ExpYear:    req.Card.ExpYear,
		CVC:        req.Card.CVC,
	}
	billing := gateway.BillingAddress{
		Line1:      req.Billing.Line1,
		City:       req.Billing.City,
		Country:    req.Billing.Country,
		PostalCode: req.Billing.PostalCode,
	}

	buyerID := middleware.GetUserID(c)
	result, err := h.paymentService.InitializePayment(c.Context(), offerID, buyerID, card, billing)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: result})
}

// HandleCallback receives the gateway's webhook. It is unauthenticated: the
// payload carries its own correlation id and redelivery is a no-op.
func (h *PaymentHandler) HandleCallback(c *fiber.Ctx) error {
	if err := h.paymentService.HandlePaymentCallback(c.Context(), c.Body()); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *PaymentHandler) GetTransaction(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	userID := middleware.GetUserID(c)
	txn, err := h.paymentService.GetTransaction(c.Context(), id, userID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: txn})
}

func (h *PaymentHandler) ReleasePayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	var req dto.ReleasePaymentRequest
	_ = c.BodyParser(&req)
	notes := ""
	if req.Notes != nil {
		notes = *req.Notes
	}

	buyerID := middleware.GetUserID(c)
	if err := h.paymentService.ReleasePayment(c.Context(), id, buyerID, notes); err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *PaymentHandler) RefundPayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	var req dto.RefundPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	userID := middleware.GetUserID(c)
	if err := h.paymentService.RefundPayment(c.Context(), id, userID, req.Reason); err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *PaymentHandler) GetMyTransactionStats(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	stats, err := h.paymentService.GetUserTransactionStats(c.Context(), userID)
	if err != nil {
		h.log.Error("get transaction stats failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: stats})
}

func (h *PaymentHandler) GetTransactionEvents(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	userID := middleware.GetUserID(c)
	if ok, err := h.paymentService.CanUserAccessTransaction(c.Context(), id, userID); err != nil {
		return writeError(c, h.log, err)
	} else if !ok {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "transaction belongs to another user"})
	}

	events, err := h.paymentService.GetTransactionEvents(c.Context(), id)
	if err != nil {
		h.log.Error("get transaction events failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: events})
}
