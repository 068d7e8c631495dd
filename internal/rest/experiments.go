package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"shopsense/business/recommender"
	"shopsense/pkg/logger"
)

type (
	ExperimentHandler struct {
		validate          *validator.Validate
		experimentService ExperimentService
		timeout           time.Duration
	}

	ExperimentService interface {
		SetExperiment(ctx context.Context, exp *recommender.Experiment)
		Experiment() *recommender.Experiment
	}

	BlendWeightsInput struct {
		Linear       float64 `json:"linear" validate:"gte=0"`
		Neighborhood float64 `json:"neighborhood" validate:"gte=0"`
		Basket       float64 `json:"basket" validate:"gte=0"`
	}

	VariantInput struct {
		Name    string             `json:"name" validate:"required"`
		Traffic float64            `json:"traffic" validate:"gte=0,lte=100"`
		Weights *BlendWeightsInput `json:"weights"`
	}

	ExperimentInput struct {
		Name     string         `json:"name" validate:"required"`
		Variants []VariantInput `json:"variants" validate:"required,min=2,dive"`
	}
)

func NewExperimentHandler(experimentService ExperimentService) *ExperimentHandler {
	return &ExperimentHandler{
		validate:          validator.New(),
		experimentService: experimentService,
		timeout:           10 * time.Second,
	}
}

// StartExperiment replaces the running blend-weight experiment. A variant
// without weights serves the default blend and acts as control.
func (h *ExperimentHandler) StartExperiment(c echo.Context) error {
	var request ExperimentInput
	if err := c.Bind(&request); err != nil {
		logger.Error("invalid request body", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.validate.Struct(&request); err != nil {
		logger.Error("failed experiment validation", "error", err)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	variants := make([]recommender.Variant, 0, len(request.Variants))
	for _, v := range request.Variants {
		variant := recommender.Variant{Name: v.Name, Traffic: v.Traffic}
		if v.Weights != nil {
			variant.Weights = &recommender.BlendWeights{
				Linear:       v.Weights.Linear,
				Neighborhood: v.Weights.Neighborhood,
				Basket:       v.Weights.Basket,
			}
		}
		variants = append(variants, variant)
	}

	exp, err := recommender.NewExperiment(request.Name, variants)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	h.experimentService.SetExperiment(ctx, exp)
	return c.JSON(http.StatusOK, fres.Response.StatusOK(exp))
}

// GetExperiment returns the running experiment, or 404 when none is active.
// Per-variant outcome counters are exposed on /metrics.
func (h *ExperimentHandler) GetExperiment(c echo.Context) error {
	exp := h.experimentService.Experiment()
	if exp == nil {
		return c.JSON(http.StatusNotFound, ResponseError{Message: "no experiment running"})
	}
	return c.JSON(http.StatusOK, fres.Response.StatusOK(exp))
}

// StopExperiment deactivates the running experiment, returning every
// identity to the default blend.
func (h *ExperimentHandler) StopExperiment(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	h.experimentService.SetExperiment(ctx, nil)
	return c.JSON(http.StatusOK, fres.Response.StatusOK(nil))
}
