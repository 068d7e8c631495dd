package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"shopsense/business/orders"
	"shopsense/domain"
	"shopsense/pkg/logger"
)

type (
	OrdersHandler struct {
		validate      *validator.Validate
		ordersService OrdersService
		timeout       time.Duration
	}

	OrdersService interface {
		Checkout(ctx context.Context, userID uint, lines []orders.LineInput, offerID *uint64) (*domain.Order, error)
		Orders(ctx context.Context, userID uint, window time.Duration) ([]domain.Order, error)
	}

	OrderLineInput struct {
		ProductID uint64 `json:"product_id" validate:"required"`
		Quantity  int    `json:"quantity" validate:"required,gte=1"`
	}

	CheckoutInput struct {
		Items   []OrderLineInput `json:"items" validate:"required,min=1,dive"`
		OfferID *uint64          `json:"offer_id"`
	}
)

const orderHistoryWindow = 365 * 24 * time.Hour

func NewOrdersHandler(ordersService OrdersService) *OrdersHandler {
	return &OrdersHandler{
		validate:      validator.New(),
		ordersService: ordersService,
		timeout:       10 * time.Second,
	}
}

func (h *OrdersHandler) Checkout(c echo.Context) error {
	userID, ok := c.Get("user_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "user not authenticated"})
	}

	var request CheckoutInput
	if err := c.Bind(&request); err != nil {
		logger.Error("invalid request body", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		logger.Error("failed checkout validation", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	lines := make([]orders.LineInput, 0, len(request.Items))
	for _, item := range request.Items {
		lines = append(lines, orders.LineInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	order, err := h.ordersService.Checkout(ctx, userID, lines, request.OfferID)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrEmptyOrder), errors.Is(err, orders.ErrOfferInvalid):
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		case errors.Is(err, orders.ErrOutOfStock):
			return c.JSON(http.StatusConflict, ResponseError{Message: err.Error()})
		default:
			logger.Error("failed to create order", "user_id", userID, "error", err)
			return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
		}
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(order))
}

func (h *OrdersHandler) GetOrders(c echo.Context) error {
	userID, ok := c.Get("user_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "user not authenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	ordersList, err := h.ordersService.Orders(ctx, userID, orderHistoryWindow)
	if err != nil {
		logger.Error("failed to list orders", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(ordersList))
}
