package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/epeers/nexus/config"
	_ "github.com/epeers/nexus/docs"
	"github.com/epeers/nexus/internal/alphavantage"
	"github.com/epeers/nexus/internal/cache"
	"github.com/epeers/nexus/internal/database"
	"github.com/epeers/nexus/internal/dispatch"
	"github.com/epeers/nexus/internal/handlers"
	"github.com/epeers/nexus/internal/middleware"
	"github.com/epeers/nexus/internal/models"
	"github.com/epeers/nexus/internal/repository"
	"github.com/epeers/nexus/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Nexus API
// @version         1.0
// @description     Resolve Portfolios and Nexus Codes into trades and dispatch them after confirmation.
// @BasePath        /
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid LOG_LEVEL %q: %v", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	// Create context for initialization
	ctx := context.Background()

	// Initialize database connection
	db, err := database.New(ctx, cfg.PGURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize AlphaVantage client
	avClient := alphavantage.NewClient(cfg.AVKey, cfg.AVRPS)

	// Initialize caches: process memory first, then the shared redis tier if configured
	quoteCaches := []services.QuoteCache{cache.NewMemoryCache(cfg.QuoteTTL)}
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCacheFromURL(ctx, cfg.RedisURL, cfg.QuoteTTL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisCache.Close()
		quoteCaches = append(quoteCaches, redisCache)
	}

	// Initialize repositories
	// Postgres is the slowest tier and survives restarts
	quoteRepo := repository.NewQuoteRepository(db.Pool, cfg.QuoteTTL)
	if purged, err := quoteRepo.PurgeExpired(ctx); err != nil {
		log.Warnf("Failed to purge expired quotes: %v", err)
	} else if purged > 0 {
		log.Infof("Purged %d expired quotes", purged)
	}
	quoteCaches = append(quoteCaches, quoteRepo)

	definitionRepo := repository.NewDefinitionRepository(db.Pool)

	// Initialize services
	pricingSvc := services.NewPricingService(avClient, quoteCaches...)
	scorer := services.NewQuoteScorer(pricingSvc)
	commands := services.NewCommandRegistry(cfg.BreakoutThreshold, services.BreakoutPolicy(cfg.BreakoutPolicy))
	resolver := services.NewResolver(commands, cfg.MaxResolveDepth)
	validator := services.NewValidator(definitionRepo)
	entitlements := services.NewQuotaEntitlements(definitionRepo, cfg.MaxDefinitionsPerUser)
	definitionSvc := services.NewDefinitionService(definitionRepo, validator, resolver, entitlements, scorer)
	allocator := services.NewAllocator(pricingSvc)

	// Initialize dispatchers
	var brokerDefaults *models.BrokerCredentials
	if cfg.BrokerConfigured() {
		brokerDefaults = &models.BrokerCredentials{
			APIKey:    cfg.AlpacaAPIKey,
			APISecret: cfg.AlpacaAPISecret,
			BaseURL:   cfg.AlpacaBaseURL,
		}
	} else {
		log.Info("No default brokerage account configured; runs must supply credentials to trade")
	}
	broker := dispatch.NewBrokerDispatcher(brokerDefaults, nil)

	var sender dispatch.EmailSender
	if cfg.SESFrom != "" {
		ses, err := dispatch.NewSESSender(ctx, cfg.SESRegion, cfg.SESFrom)
		if err != nil {
			log.Fatalf("Failed to configure SES: %v", err)
		}
		sender = ses
	}
	email := dispatch.NewEmailDispatcher(sender)

	coordinator := services.NewCoordinator(services.CoordinatorDeps{
		Store:       definitionRepo,
		Resolver:    resolver,
		Allocator:   allocator,
		Market:      scorer,
		Holdings:    broker,
		Dispatchers: []services.Dispatcher{broker, email},
		ConfirmTTL:  cfg.RunConfirmTTL,
	})

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go coordinator.RunSweeper(sweepCtx, time.Minute)

	// Initialize handlers
	definitionHandler := handlers.NewDefinitionHandler(definitionSvc)
	userHandler := handlers.NewUserHandler(definitionSvc)
	runHandler := handlers.NewRunHandler(coordinator)

	// Setup Gin router
	router := gin.Default()

	// Apply global middleware
	router.Use(middleware.Metrics())
	router.Use(middleware.ValidateUser())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	handlers.RegisterRoutes(router, definitionHandler, userHandler, runHandler)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Give outstanding requests 5 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
