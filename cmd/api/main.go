package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/talendro/talendro-api/config"
	"github.com/talendro/talendro-api/internal/ai"
	"github.com/talendro/talendro-api/internal/cache"
	"github.com/talendro/talendro-api/internal/email"
	"github.com/talendro/talendro-api/internal/handlers"
	"github.com/talendro/talendro-api/internal/middleware"
	"github.com/talendro/talendro-api/internal/payments"
	"github.com/talendro/talendro-api/internal/repository"
	"github.com/talendro/talendro-api/internal/services"
	"github.com/talendro/talendro-api/internal/voice"
	"github.com/talendro/talendro-api/pkg/db"
	"github.com/talendro/talendro-api/pkg/httpclient"
	"github.com/talendro/talendro-api/pkg/jwt"
	"github.com/talendro/talendro-api/pkg/logger"
	"github.com/talendro/talendro-api/pkg/metrics"
	"github.com/talendro/talendro-api/pkg/profiling"
	"github.com/talendro/talendro-api/pkg/s3storage"
	"github.com/talendro/talendro-api/pkg/tracing"
)

// registerPublicRoutes registers the purchase and interview API
func registerPublicRoutes(
	api *gin.RouterGroup,
	generalRL, checkoutRL, coachRL *middleware.RateLimiter,
	discountHandler *handlers.DiscountHandler,
	checkoutHandler *handlers.CheckoutHandler,
	paymentHandler *handlers.PaymentHandler,
	sessionHandler *handlers.SessionHandler,
	coachHandler *handlers.CoachHandler,
	entitlementHandler *handlers.EntitlementHandler,
	resultsHandler *handlers.ResultsHandler,
	voiceHandler *handlers.VoiceHandler,
	errorLogHandler *handlers.ErrorLogHandler,
) {
	api.POST("/discount/validate", generalRL.Middleware(), middleware.BodySizeLimitMiddleware(10*1024), discountHandler.Validate)
	api.POST("/checkout", checkoutRL.Middleware(), middleware.BodySizeLimitMiddleware(100*1024), checkoutHandler.Create)
	api.POST("/payment/verify", generalRL.Middleware(), middleware.BodySizeLimitMiddleware(10*1024), paymentHandler.Verify)

	api.POST("/session/start", generalRL.Middleware(), middleware.BodySizeLimitMiddleware(10*1024), sessionHandler.Start)
	// Documents carry full resume and job description text.
	api.POST("/session/:id/documents", generalRL.Middleware(), middleware.BodySizeLimitMiddleware(1*1024*1024), sessionHandler.SaveDocuments)
	api.POST("/session/:id/pause", generalRL.Middleware(), middleware.BodySizeLimitMiddleware(10*1024), sessionHandler.Pause)
	api.POST("/session/:id/resume", generalRL.Middleware(), sessionHandler.Resume)
	api.POST("/session/:id/abandon", generalRL.Middleware(), sessionHandler.Abandon)
	api.POST("/session/:id/complete", generalRL.Middleware(), middleware.BodySizeLimitMiddleware(1*1024*1024), resultsHandler.Complete)
	api.GET("/session/:id/report", generalRL.Middleware(), resultsHandler.GetReport)

	api.POST("/coach/turn", coachRL.Middleware(), middleware.BodySizeLimitMiddleware(100*1024), coachHandler.Turn)

	api.POST("/entitlement/check", generalRL.Middleware(), middleware.BodySizeLimitMiddleware(10*1024), entitlementHandler.Check)
	api.POST("/entitlement/consume", generalRL.Middleware(), middleware.BodySizeLimitMiddleware(10*1024), entitlementHandler.Consume)

	api.POST("/voice/signed-url", generalRL.Middleware(), middleware.BodySizeLimitMiddleware(10*1024), voiceHandler.SignedURL)
	api.GET("/voice/stream/:id", voiceHandler.Stream)
	api.POST("/voice/stream/:id/finish", generalRL.Middleware(), middleware.BodySizeLimitMiddleware(10*1024), voiceHandler.Finish)

	api.POST("/errors/report", checkoutRL.Middleware(), middleware.BodySizeLimitMiddleware(100*1024), errorLogHandler.Report)
}

// registerAuthRoutes registers magic-link sign-in and the admin surface.
// Skipped entirely when no JWT secret is configured.
func registerAuthRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authRL *middleware.RateLimiter,
	authHandler *handlers.AuthHandler,
	subscriptionHandler *handlers.SubscriptionHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *jwt.TokenManager,
) {
	if tokenManager == nil {
		logger.Warn("Auth routes disabled: USER_SESSION_JWT_SECRET not configured")
		return
	}

	auth := router.Group("/api/v1/auth")
	auth.POST("/request-login", authRL.Middleware(), middleware.BodySizeLimitMiddleware(10*1024), authHandler.RequestLogin)
	auth.POST("/verify", middleware.BodySizeLimitMiddleware(10*1024), authHandler.VerifyLogin)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/me",
		middleware.UserSessionMiddleware(tokenManager, cfg.UserSession.CookieDomain, cfg.UserSession.CookieSecure),
		authHandler.Me)

	subscription := router.Group("/api/v1/subscription")
	subscription.Use(middleware.UserSessionMiddleware(tokenManager, cfg.UserSession.CookieDomain, cfg.UserSession.CookieSecure))
	subscription.POST("/cancel", subscriptionHandler.Cancel)
	subscription.POST("/reactivate", subscriptionHandler.Reactivate)

	admin := router.Group("/api/v1/admin")
	admin.POST("/login", authRL.Middleware(), middleware.BodySizeLimitMiddleware(10*1024), authHandler.AdminLogin)

	protected := admin.Group("")
	protected.Use(middleware.AdminSessionMiddleware(tokenManager, cfg.UserSession.CookieDomain, cfg.UserSession.CookieSecure))
	protected.GET("/me", authHandler.AdminMe)
	protected.POST("/logout", authHandler.AdminLogout)
	protected.GET("/discount", adminHandler.ListDiscounts)
	protected.POST("/discount", middleware.BodySizeLimitMiddleware(10*1024), adminHandler.CreateDiscount)
	protected.POST("/discount/:id/active", middleware.BodySizeLimitMiddleware(10*1024), adminHandler.SetDiscountActive)
	protected.GET("/errors", adminHandler.ListErrors)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	err = logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.Server.AppEnv,
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting Talendro API",
		zap.String("version", cfg.Observability.ServiceVersion),
		zap.String("environment", cfg.Server.AppEnv),
	)

	tracerShutdown, err := tracing.InitTracer(
		cfg.Observability.ServiceName,
		cfg.Observability.ServiceNamespace,
		cfg.Observability.ServiceVersion,
		cfg.Observability.ServiceInstanceID,
		cfg.Server.AppEnv,
		cfg.Observability.OTLPEndpoint,
	)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tracerShutdown(ctx); shutdownErr != nil {
			logger.Error("Failed to shutdown tracer", zap.Error(shutdownErr))
		}
	}()

	profilerStop, err := profiling.InitProfiler(
		cfg.Profiling,
		cfg.Observability.ServiceName,
		cfg.Observability.ServiceNamespace,
		cfg.Observability.ServiceVersion,
		cfg.Observability.ServiceInstanceID,
		cfg.Server.AppEnv,
	)
	if err != nil {
		logger.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer profilerStop()

	metrics.RecordInfrastructureMetrics()

	pool, err := db.NewPool(context.Background(), db.PoolConfig{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		logger.Fatal("Failed to initialize database connection pool", zap.Error(err))
	}
	defer pool.Close()

	// Object storage is optional; without credentials report archiving is
	// skipped and everything else works.
	var storageClient s3storage.ClientInterface
	if cfg.Storage.AccessKeyID != "" && cfg.Storage.SecretAccessKey != "" {
		client, storageErr := s3storage.NewClient(
			cfg.Storage.AccessKeyID,
			cfg.Storage.SecretAccessKey,
			cfg.Storage.BucketName,
			cfg.Storage.Endpoint,
			cfg.Storage.Region,
		)
		if storageErr != nil {
			logger.Fatal("Failed to initialize storage client", zap.Error(storageErr))
		}
		storageClient = client
	}

	// Repositories
	sessionRepo := repository.NewSessionRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	discountRepo := repository.NewDiscountRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	errorLogRepo := repository.NewErrorLogRepository(pool)
	webhookRepo := repository.NewWebhookEventRepository(pool)

	discountCache := cache.NewDiscountCache(discountRepo, time.Duration(cfg.Cache.DiscountTTLSeconds)*time.Second)

	// External clients
	httpClient := httpclient.NewStandardClient()
	stripeClient := payments.NewClient(cfg.Stripe)
	aiClient := ai.NewClient(cfg.OpenAI, httpClient)
	emailClient := email.NewClient(cfg.Email, httpClient)
	voiceProvider := voice.NewProvider(cfg.Voice, httpClient)

	var tokenManager *jwt.TokenManager
	if cfg.UserSession.JWTSecret != "" {
		tokenManager = jwt.NewTokenManager(cfg.UserSession.JWTSecret, cfg.UserSession.JWTIssuer, cfg.UserSession.SessionTTLHours)
	}

	// Services. Results feeds both payment verification (stored reports) and
	// the voice pipeline; auth doubles as the webhook's login-link sender.
	entitlementService := services.NewEntitlementService(profileRepo, cfg)
	discountService := services.NewDiscountService(discountCache, discountRepo)
	checkoutService := services.NewCheckoutService(sessionRepo, discountRepo, stripeClient)
	resultsService := services.NewResultsService(sessionRepo, messageRepo, resultRepo, aiClient, emailClient, storageClient)
	paymentService := services.NewPaymentService(sessionRepo, profileRepo, discountRepo, stripeClient, emailClient, resultsService, cfg)
	sessionService := services.NewSessionService(sessionRepo, messageRepo, profileRepo, entitlementService, emailClient, cfg)
	coachService := services.NewCoachService(sessionRepo, messageRepo, aiClient)
	voiceService := services.NewVoiceService(sessionRepo, resultsService, voiceProvider)
	authService := services.NewAuthService(profileRepo, emailClient, tokenManager, cfg)
	webhookService := services.NewWebhookService(webhookRepo, profileRepo, stripeClient, emailClient, authService, cfg)
	errorLogService := services.NewErrorLogService(errorLogRepo, aiClient, emailClient, cfg)

	// CORS and websocket upgrades share the origin allow-list
	allowedOrigins := cfg.Server.AllowedOrigins
	if cfg.IsDevelopment() {
		allowedOrigins = append(allowedOrigins, "http://localhost:3000", "http://127.0.0.1:3000")
	}

	// Handlers
	discountHandler := handlers.NewDiscountHandler(discountService)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	coachHandler := handlers.NewCoachHandler(coachService)
	entitlementHandler := handlers.NewEntitlementHandler(entitlementService)
	resultsHandler := handlers.NewResultsHandler(resultsService)
	voiceHandler := handlers.NewVoiceHandler(voiceService, allowedOrigins)
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	errorLogHandler := handlers.NewErrorLogHandler(errorLogService)
	authHandler := handlers.NewAuthHandler(authService, tokenManager, cfg.UserSession.CookieDomain, cfg.UserSession.CookieSecure)
	adminHandler := handlers.NewAdminHandler(services.NewAdminService(discountRepo, errorLogRepo, discountCache))
	subscriptionHandler := handlers.NewSubscriptionHandler(services.NewSubscriptionService(profileRepo, stripeClient))
	healthHandler := handlers.NewHealthHandler(func(ctx context.Context) error {
		return pingDatabase(ctx, pool)
	})

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Observability.ServiceName))
	router.Use(middleware.ObservabilityMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Stripe-Signature", "traceparent", "tracestate"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true, // session cookies
		MaxAge:           12 * time.Hour,
	}))

	// Rate limits by abuse profile: checkout and error reporting are spam
	// targets, coach turns are expensive, auth is brute-forceable.
	generalRL := middleware.NewRateLimiter(100, 200)
	checkoutRL := middleware.NewRateLimiter(5, 10)
	coachRL := middleware.NewRateLimiter(20, 40)
	authRL := middleware.NewRateLimiter(0.05, 5) // 3 req/min
	webhookRL := middleware.NewRateLimiter(50, 100)

	// Operational endpoints stay unversioned
	ops := router.Group("/api")
	ops.GET("/health/live", healthHandler.Live)
	ops.GET("/health/ready", healthHandler.Ready)
	ops.GET("/metrics", generalRL.Middleware(), gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")

	// Stripe signs its own payloads; the webhook route has no body-size
	// middleware and relies on the service-level signature check.
	api.POST("/webhook/stripe", webhookRL.Middleware(), webhookHandler.HandleStripe)

	registerPublicRoutes(api, generalRL, checkoutRL, coachRL,
		discountHandler, checkoutHandler, paymentHandler, sessionHandler,
		coachHandler, entitlementHandler, resultsHandler, voiceHandler, errorLogHandler)

	registerAuthRoutes(router, cfg, authRL, authHandler, subscriptionHandler, adminHandler, tokenManager)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second, // coach turns wait on the AI provider
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("Server started", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Error-log resolution emails run in the background; let them drain.
	errorLogService.Wait()

	logger.Info("Server exited")
}

func pingDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}
