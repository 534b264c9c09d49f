package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/needmarket/backend/internal/http/dto"
	"github.com/needmarket/backend/internal/middleware"
	"github.com/needmarket/backend/internal/repositories"
	"github.com/needmarket/backend/internal/services"
)

type OfferHandler struct {
	offerService *services.OfferService
	log          *zap.Logger
}

func NewOfferHandler(offerService *services.OfferService, log *zap.Logger) *OfferHandler {
	return &OfferHandler{offerService: offerService, log: log}
}

func (h *OfferHandler) CreateOffer(c *fiber.Ctx) error {
	needID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid need id"})
	}

	var req dto.CreateOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid price"})
	}

	providerID := middleware.GetUserID(c)
	offer, err := h.offerService.CreateOffer(c.Context(), needID, providerID, price, req.Currency, req.DeliveryDays, req.Description)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: offer})
}

func (h *OfferHandler) GetOffer(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}

	offer, err := h.offerService.GetOffer(c.Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: offer})
}

func (h *OfferHandler) ListNeedOffers(c *fiber.Ctx) error {
	needID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid need id"})
	}

	filter := repositories.OfferFilter{NeedID: &needID, Limit: 50}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}

	offers, err := h.offerService.ListOffers(c.Context(), filter)
	if err != nil {
		h.log.Error("list offers failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: offers})
}

func (h *OfferHandler) ListMyOffers(c *fiber.Ctx) error {
	providerID := middleware.GetUserID(c)
	filter := repositories.OfferFilter{ProviderUserID: &providerID, Limit: 50}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}

	offers, err := h.offerService.ListOffers(c.Context(), filter)
	if err != nil {
		h.log.Error("list offers failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: offers})
}

func (h *OfferHandler) AcceptOffer(c *fiber.Ctx) error {
	offerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}

	buyerID := middleware.GetUserID(c)
	if err := h.offerService.AcceptOffer(c.Context(), offerID, buyerID); err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *OfferHandler) RejectOffer(c *fiber.Ctx) error {
	offerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}

	var req dto.RejectOfferRequest
	_ = c.BodyParser(&req)
	reason := ""
	if req.Reason != nil {
		reason = *req.Reason
	}

	buyerID := middleware.GetUserID(c)
	if err := h.offerService.RejectOffer(c.Context(), offerID, buyerID, reason); err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *OfferHandler) WithdrawOffer(c *fiber.Ctx) error {
	offerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}

	providerID := middleware.GetUserID(c)
	if err := h.offerService.WithdrawOffer(c.Context(), offerID, providerID); err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *OfferHandler) GetOfferEvents(c *fiber.Ctx) error {
	offerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}

	events, err := h.offerService.GetOfferEvents(c.Context(), offerID)
	if err != nil {
		h.log.Error("get offer events failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: events})
}
