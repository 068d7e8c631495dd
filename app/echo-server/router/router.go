package router

import (
	"github.com/labstack/echo/v4"

	"shopsense/internal/middleware"
	"shopsense/internal/rest"
)

// SetRecommendationRoutes serves everyone: guests get a session cookie from
// the optional auth middleware and are tracked through it.
func SetRecommendationRoutes(api *echo.Group, handler *rest.RecommendationHandler) {
	reco := api.Group("/recommendations", middleware.OptionalAuth())
	reco.GET("", handler.GetRecommendations)
	reco.GET("/cart", handler.GetCartRecommendations)
}

func SetInteractionRoutes(api *echo.Group, handler *rest.RecommendationHandler) {
	interactions := api.Group("/interactions", middleware.OptionalAuth())
	interactions.POST("", handler.RecordInteraction)
}

func SetOfferRoutes(api *echo.Group, handler *rest.OfferHandler) {
	offers := api.Group("/offers", middleware.AuthMiddleware())
	offers.GET("", handler.GetOffers)
	offers.POST("/:id/redeem", handler.RedeemOffer)
}

func SetOrdersRoutes(api *echo.Group, handler *rest.OrdersHandler) {
	orders := api.Group("/orders", middleware.AuthMiddleware())
	orders.POST("", handler.Checkout)
	orders.GET("", handler.GetOrders)
}

func SetExperimentRoutes(api *echo.Group, handler *rest.ExperimentHandler) {
	experiment := api.Group("/admin/experiment", middleware.AuthMiddleware(), middleware.AdminOnly())
	experiment.PUT("", handler.StartExperiment)
	experiment.GET("", handler.GetExperiment)
	experiment.DELETE("", handler.StopExperiment)
}

func SetAnalyticsRoutes(api *echo.Group, handler *rest.AnalyticsHandler) {
	products := api.Group("/products")
	products.GET("/best-sellers", handler.GetBestSellers)
	products.GET("/trending", handler.GetTrending)
}
