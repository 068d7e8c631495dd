package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"

	"shopsense/pkg/logger"
)

type (
	AnalyticsHandler struct {
		analyticsService AnalyticsService
		timeout          time.Duration
	}

	AnalyticsService interface {
		BestSellers(ctx context.Context, window time.Duration, limit int) ([]uint64, error)
		Trending(ctx context.Context, window time.Duration, limit int) ([]uint64, error)
	}
)

const (
	bestSellerWindow = 30 * 24 * time.Hour
	trendingWindow   = 48 * time.Hour
	shelfLimit       = 20
)

func NewAnalyticsHandler(analyticsService AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		timeout:          10 * time.Second,
	}
}

func (h *AnalyticsHandler) GetBestSellers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	ids, err := h.analyticsService.BestSellers(ctx, bestSellerWindow, shelfLimit)
	if err != nil {
		logger.Error("failed to get best sellers", "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(map[string]interface{}{
		"product_ids": ids,
	}))
}

func (h *AnalyticsHandler) GetTrending(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	ids, err := h.analyticsService.Trending(ctx, trendingWindow, shelfLimit)
	if err != nil {
		logger.Error("failed to get trending products", "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(map[string]interface{}{
		"product_ids": ids,
	}))
}
