package rest

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"shopsense/domain"
	"shopsense/pkg/logger"
)

type (
	RecommendationHandler struct {
		validate           *validator.Validate
		recommenderService RecommenderService
		timeout            time.Duration
	}

	RecommenderService interface {
		GetRecommendations(ctx context.Context, identity domain.Identity, limit int) (*domain.RecommendationResult, error)
		GetCartRecommendations(ctx context.Context, identity domain.Identity, cartIDs []uint64, limit int) (*domain.RecommendationResult, error)
		RecordInteraction(ctx context.Context, identity domain.Identity, productID uint64, interactionType string, eventContext map[string]interface{}) error
	}

	InteractionInput struct {
		ProductID uint64                 `json:"product_id" validate:"required"`
		Type      string                 `json:"type" validate:"required,oneof=view click cart_add purchase"`
		Context   map[string]interface{} `json:"context"`
	}
)

func NewRecommendationHandler(recommenderService RecommenderService) *RecommendationHandler {
	return &RecommendationHandler{
		validate:           validator.New(),
		recommenderService: recommenderService,
		timeout:            10 * time.Second,
	}
}

func (h *RecommendationHandler) GetRecommendations(c echo.Context) error {
	identity := identityFrom(c)
	if identity == (domain.Identity{}) {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "no requester identity"})
	}

	limit := 0
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid limit"})
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	result, err := h.recommenderService.GetRecommendations(ctx, identity, limit)
	if err != nil {
		logger.Error("failed to get recommendations", "identity", identity.Key(), "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(result))
}

func (h *RecommendationHandler) GetCartRecommendations(c echo.Context) error {
	identity := identityFrom(c)
	if identity == (domain.Identity{}) {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "no requester identity"})
	}

	cartIDs, err := parseCartItems(c.QueryParam("items"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	result, err := h.recommenderService.GetCartRecommendations(ctx, identity, cartIDs, 0)
	if err != nil {
		logger.Error("failed to get cart recommendations", "identity", identity.Key(), "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(result))
}

func (h *RecommendationHandler) RecordInteraction(c echo.Context) error {
	identity := identityFrom(c)
	if identity == (domain.Identity{}) {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "no requester identity"})
	}

	var request InteractionInput
	if err := c.Bind(&request); err != nil {
		logger.Error("invalid request body", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		logger.Error("failed interaction validation", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	err := h.recommenderService.RecordInteraction(ctx, identity, request.ProductID, request.Type, request.Context)
	if err != nil {
		logger.Error("failed to record interaction", "identity", identity.Key(), "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(map[string]interface{}{
		"product_id": request.ProductID,
		"type":       request.Type,
	}))
}

// parseCartItems parses the comma-separated product ids of the live cart.
func parseCartItems(raw string) ([]uint64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
