package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"shopsense/business/offers"
	"shopsense/domain"
	"shopsense/pkg/logger"
)

type (
	OfferHandler struct {
		validate     *validator.Validate
		offerService OfferService
		timeout      time.Duration
	}

	OfferService interface {
		RefreshOffers(ctx context.Context, userID uint) ([]offers.OfferView, error)
		ActiveOffers(ctx context.Context, userID uint) ([]offers.OfferView, error)
		Redeem(ctx context.Context, userID uint, offerID, orderID uint64) (*domain.PersonalizedOffer, error)
	}

	RedeemInput struct {
		OrderID uint64 `json:"order_id" validate:"required"`
	}
)

func NewOfferHandler(offerService OfferService) *OfferHandler {
	return &OfferHandler{
		validate:     validator.New(),
		offerService: offerService,
		timeout:      10 * time.Second,
	}
}

// GetOffers tops the user up to the configured number of live offers and
// returns the active set.
func (h *OfferHandler) GetOffers(c echo.Context) error {
	userID, ok := c.Get("user_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "user not authenticated"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	views, err := h.offerService.RefreshOffers(ctx, userID)
	if err != nil {
		if errors.Is(err, offers.ErrNotEligible) {
			return c.JSON(http.StatusForbidden, ResponseError{Message: err.Error()})
		}
		logger.Error("failed to refresh offers", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(views))
}

func (h *OfferHandler) RedeemOffer(c echo.Context) error {
	userID, ok := c.Get("user_id").(uint)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "user not authenticated"})
	}

	offerID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid offer id"})
	}

	var request RedeemInput
	if err := c.Bind(&request); err != nil {
		logger.Error("invalid request body", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		logger.Error("failed redeem validation", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	offer, err := h.offerService.Redeem(ctx, userID, offerID, request.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, offers.ErrOfferNotFound):
			return c.JSON(http.StatusNotFound, ResponseError{Message: err.Error()})
		case errors.Is(err, offers.ErrOfferUnusable):
			return c.JSON(http.StatusConflict, ResponseError{Message: err.Error()})
		default:
			logger.Error("failed to redeem offer", "user_id", userID, "offer_id", offerID, "error", err)
			return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
		}
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(offer))
}
