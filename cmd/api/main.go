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

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/creatorstack/storefront/config"
	"github.com/creatorstack/storefront/pkg/api/handlers"
	custommw "github.com/creatorstack/storefront/pkg/api/middleware"
	"github.com/creatorstack/storefront/pkg/cache"
	"github.com/creatorstack/storefront/pkg/chat"
	"github.com/creatorstack/storefront/pkg/email"
	"github.com/creatorstack/storefront/pkg/jobs"
	"github.com/creatorstack/storefront/pkg/metrics"
	custommiddleware "github.com/creatorstack/storefront/pkg/middleware"
	"github.com/creatorstack/storefront/pkg/payments"
	"github.com/creatorstack/storefront/pkg/settlement"
	"github.com/creatorstack/storefront/pkg/store"
	"github.com/creatorstack/storefront/pkg/visits"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.APIEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.APIEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize the entity store
	st, err := store.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer st.Close()

	// Initialize Redis cache
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	// Core services
	emailService := email.NewService(cfg.EmailFrom, cfg.EmailFromName, cfg.SendGridAPIKey)

	settlementService := settlement.NewService(st)
	settlementService.SetEmailSender(emailService)

	visitService := visits.NewService(st)

	paymentService := payments.NewService(st, settlementService, &payments.Config{
		SecretKey:                  cfg.StripeSecretKey,
		WebhookSecret:              cfg.StripeWebhookSecret,
		ContentStudioWebhookSecret: cfg.StripeContentStudioWebhookSecret,
	})
	paymentService.SetEventCache(redisClient)

	chatService := chat.NewService(cfg.OpenAIAPIKey)
	chatLimiter := custommiddleware.NewFixedWindowLimiter(
		cfg.ChatRateLimitRequests,
		time.Duration(cfg.ChatRateLimitWindowSeconds)*time.Second,
	)

	// Cron jobs
	cronManager := jobs.NewCronManager(st, nil)
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to set up cron jobs: %v", err)
	}
	cronManager.Start()

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	webhookRateLimiter := custommiddleware.NewRateLimiter(100, 20) // Stripe redeliveries spike

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	e.Use(prometheusMetrics.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig()))
	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.SecurityHeadersConfig{}))
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Health check endpoints (public)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "CreatorStack Storefront API",
			"version":     "0.1.0",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}

		if err := redisClient.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"cache":  "down",
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
			"cache":    "up",
		})
	})

	// Prometheus metrics endpoint (public)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Handlers
	purchaseHandler := handlers.NewPurchaseHandler(settlementService, prometheusMetrics)
	webhookHandler := handlers.NewWebhookHandler(paymentService, prometheusMetrics)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	visitHandler := handlers.NewVisitHandler(visitService, prometheusMetrics)
	chatHandler := handlers.NewChatHandler(chatService, chatLimiter, prometheusMetrics)
	emailHandler := handlers.NewEmailHandler(emailService, prometheusMetrics)
	billingHandler := handlers.NewBillingHandler(paymentService, cfg.BillingReturnURL)

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Webhooks carry their own signature auth and a higher rate cap
	v1.POST("/webhooks/stripe", webhookHandler.StripeWebhook, webhookRateLimiter.RateLimitMiddleware())
	v1.POST("/webhooks/stripe/content-studio", webhookHandler.StripeWebhookContentStudio, webhookRateLimiter.RateLimitMiddleware())

	// Public endpoints
	v1.POST("/payments/intent", paymentHandler.CreateIntent)
	v1.POST("/visits", visitHandler.TrackVisit)
	v1.POST("/emails/send", emailHandler.SendEmail)
	v1.POST("/billing/portal", billingHandler.CreatePortalSession)

	// Authenticated endpoints
	authed := v1.Group("", custommw.JWTMiddleware(cfg.JWTSecret))
	authed.POST("/purchases/complete", purchaseHandler.CompletePurchase)
	authed.POST("/chat", chatHandler.Chat)

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 Storefront API starting on %s", address)
	log.Printf("🛡️  Rate limiting: %d req/min (burst: %d), chat %d req/%ds per user",
		cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst,
		cfg.ChatRateLimitRequests, cfg.ChatRateLimitWindowSeconds)
	log.Printf("⏰ Cron jobs: Daily 3AM (prune stale visits)")

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	cronManager.Stop()
	log.Println("✅ Cron jobs stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
