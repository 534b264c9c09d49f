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

type NeedHandler struct {
	needService *services.NeedService
	log         *zap.Logger
}

func NewNeedHandler(needService *services.NeedService, log *zap.Logger) *NeedHandler {
	return &NeedHandler{needService: needService, log: log}
}

func (h *NeedHandler) CreateNeed(c *fiber.Ctx) error {
	var req dto.CreateNeedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	input := services.CreateNeedInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Currency:    req.Currency,
		ExpiresAt:   req.ExpiresAt,
	}
	if req.BudgetMin != nil {
		d, err := decimal.NewFromString(*req.BudgetMin)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid budget_min"})
		}
		input.BudgetMin = &d
	}
	if req.BudgetMax != nil {
		d, err := decimal.NewFromString(*req.BudgetMax)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid budget_max"})
		}
		input.BudgetMax = &d
	}

	buyerID := middleware.GetUserID(c)
	need, err := h.needService.CreateNeed(c.Context(), buyerID, input)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: need})
}

func (h *NeedHandler) GetNeed(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid need id"})
	}

	need, err := h.needService.GetNeed(c.Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: need})
}

func (h *NeedHandler) ListNeeds(c *fiber.Ctx) error {
	filter := repositories.NeedFilter{Limit: 20}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := c.Query("category"); v != "" {
		filter.Category = &v
	}
	if c.Query("mine") == "true" {
		userID := middleware.GetUserID(c)
		filter.BuyerUserID = &userID
	}

	needs, err := h.needService.ListNeeds(c.Context(), filter)
	if err != nil {
		h.log.Error("list needs failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: needs})
}

func (h *NeedHandler) CancelNeed(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid need id"})
	}

	buyerID := middleware.GetUserID(c)
	if err := h.needService.CancelNeed(c.Context(), id, buyerID); err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}
