package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/avthrift/payments-api/internal/auth"
	"github.com/avthrift/payments-api/internal/config"
	"github.com/avthrift/payments-api/internal/database"
	"github.com/avthrift/payments-api/internal/idempotency"
	"github.com/avthrift/payments-api/internal/inventory"
	"github.com/avthrift/payments-api/internal/notifications"
	"github.com/avthrift/payments-api/internal/orders"
	"github.com/avthrift/payments-api/internal/payments"
	"github.com/avthrift/payments-api/internal/validation"
	"github.com/avthrift/payments-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the payments API server with graceful shutdown support
// It sets up all required services, database connections, and API routes
func main() {
	cfg := config.Load()

	// Install custom request validation rules
	if err := validation.Register(); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to register validators")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.DBPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	idemService := idempotency.NewService(db)

	inventoryService := inventory.NewService(db)
	emailSender := notifications.NewEmailSender("orders@avthrift.example")

	orderService := orders.NewService(db, emailSender, inventoryService, emailSender)
	orderHandlers := orders.NewGinHandlers(orderService, idemService, cfg.OrdersWebhookSecret, cfg.OrdersWebhookAllowedIPs)

	gateway := payments.NewGatewayClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey)
	paymentService := payments.NewService(db, gateway, orderService, notifications.LogReporter{})
	paymentHandlers := payments.NewGinHandlers(
		paymentService,
		orderService,
		idemService,
		cfg.PaystackSecretKey,
		cfg.PaystackWebhookIPs,
		cfg.SupportedCurrencies,
	)

	// Create and start reconciliation processor
	processor := payments.NewProcessor(paymentService, idemService)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go processor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg.JWTSecret, authHandlers, orderHandlers, paymentHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Order routes: Protected by JWT authentication, webhooks excepted
// - Payment routes: Protected by JWT authentication, webhooks excepted
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	orderHandlers *orders.GinHandlers,
	paymentHandlers *payments.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order routes
		orderGroup := v1.Group("/orders")
		orderGroup.POST("/webhooks/payment", orderHandlers.PaymentWebhookHandler())
		orderGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			orderGroup.POST("", orderHandlers.CreateOrderHandler())
			orderGroup.GET("/:order_id", orderHandlers.GetOrderHandler())
			orderGroup.PATCH("/:order_id", orderHandlers.UpdateOrderHandler())
			orderGroup.POST("/:order_id/pay", orderHandlers.PayOrderHandler())
			orderGroup.POST("/:order_id/cancel", orderHandlers.CancelOrderHandler())
		}

		// Payment routes
		paymentGroup := v1.Group("/payments")
		paymentGroup.GET("/health", paymentHandlers.HealthHandler())
		paymentGroup.POST("/webhooks/paystack", paymentHandlers.WebhookHandler())
		paymentGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			paymentGroup.POST("/paystack/initialize", paymentHandlers.InitializeHandler())
			paymentGroup.POST("/intents", paymentHandlers.UpsertIntentHandler())
			paymentGroup.GET("/intents/:reference", paymentHandlers.GetIntentHandler())
		}
	}
}
