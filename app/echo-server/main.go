package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shopsense/app/echo-server/router"
	"shopsense/business/analytics"
	"shopsense/business/offers"
	ordersService "shopsense/business/orders"
	"shopsense/business/recommender"
	psqlRepo "shopsense/internal/repository/postgres"
	redisRepo "shopsense/internal/repository/redis"
	"shopsense/internal/rest"
	"shopsense/pkg/config"
	"shopsense/pkg/database"
	redisdb "shopsense/pkg/database/redis"
	"shopsense/pkg/logger"
	"shopsense/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting Shopsense", "version", cfg.App.Version)

	metrics.Init()

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	logger.Info("Database connected successfully")

	// Optional second cache tier
	var cacheStore recommender.CacheStore
	if cfg.Redis.Enabled {
		redisClient, err := redisdb.NewRedisClient(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", "error", err)
		}
		defer redisdb.CloseRedisClient(redisClient)
		cacheStore = redisRepo.NewResultStore(redisClient)
		logger.Info("Redis connected successfully")
	}

	// Init repo
	interactionRepo := psqlRepo.NewInteractionRepository(db)
	productsRepo := psqlRepo.NewProductRepository(db)
	ordersRepo := psqlRepo.NewOrdersRepository(db)
	offerRepo := psqlRepo.NewOfferRepository(db)

	// Init service
	engineCfg := recommender.DefaultConfig()
	engineCfg.TopK = cfg.Engine.TopK
	engineCfg.CandidateCap = cfg.Engine.CandidateCap
	engineCfg.CacheTTL = cfg.Engine.CacheTTL
	engineCfg.DiversityCap = cfg.Engine.DiversityCap

	resultCache := recommender.NewResultCache(engineCfg.CacheTTL, cacheStore)
	recommenderService := recommender.NewService(interactionRepo, productsRepo, ordersRepo, resultCache, engineCfg)
	analyticsService := analytics.NewService(ordersRepo, interactionRepo)
	trainer := recommender.NewTrainer(recommenderService, analyticsService, cfg.Engine.TrainInterval, engineCfg)

	offersCfg := offers.Config{
		MaxPercent:     cfg.Offers.MaxPercent,
		ScoreThreshold: cfg.Offers.ScoreThreshold,
		TTL:            cfg.Offers.TTL,
		PerUser:        cfg.Offers.PerUser,
	}
	offersService := offers.NewService(offerRepo, productsRepo, recommenderService, offersCfg, nil)
	checkoutService := ordersService.NewService(ordersRepo, productsRepo, recommenderService, offersService)

	// Background jobs
	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	go trainer.Run(jobsCtx)
	go runOfferCleanup(jobsCtx, offersService)

	// Init handler
	recommendationHandler := rest.NewRecommendationHandler(recommenderService)
	offerHandler := rest.NewOfferHandler(offersService)
	ordersHandler := rest.NewOrdersHandler(checkoutService)
	analyticsHandler := rest.NewAnalyticsHandler(analyticsService)
	experimentHandler := rest.NewExperimentHandler(recommenderService)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:8080"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Setup routes
	api := e.Group("/api/v1")
	router.SetRecommendationRoutes(api, recommendationHandler)
	router.SetInteractionRoutes(api, recommendationHandler)
	router.SetOfferRoutes(api, offerHandler)
	router.SetOrdersRoutes(api, ordersHandler)
	router.SetAnalyticsRoutes(api, analyticsHandler)
	router.SetExperimentRoutes(api, experimentHandler)

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopJobs()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}

// runOfferCleanup sweeps dead offers hourly.
func runOfferCleanup(ctx context.Context, offersService *offers.Service) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := offersService.CleanupExpired(ctx); err != nil {
				logger.Error("offer cleanup failed", "error", err)
			}
		}
	}
}
