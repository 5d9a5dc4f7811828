package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/taskflow-ai/taskflow-api/api/openapi"
	"github.com/taskflow-ai/taskflow-api/internal/config"
	"github.com/taskflow-ai/taskflow-api/internal/database"
	"github.com/taskflow-ai/taskflow-api/internal/events"
	"github.com/taskflow-ai/taskflow-api/internal/handlers"
	"github.com/taskflow-ai/taskflow-api/internal/logger"
	"github.com/taskflow-ai/taskflow-api/internal/middleware"
	"github.com/taskflow-ai/taskflow-api/internal/services/ai"
	"github.com/taskflow-ai/taskflow-api/internal/services/oidc"
	"github.com/taskflow-ai/taskflow-api/internal/services/session"
	"github.com/taskflow-ai/taskflow-api/internal/services/stats"
	"github.com/taskflow-ai/taskflow-api/internal/services/todos"
	"github.com/taskflow-ai/taskflow-api/internal/telemetry"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const (
	version              = "1.0.0"
	configReloadInterval = time.Minute
	authRateLimitDefault = "20-M"
)

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	envFile := flag.String("env-file", ".env", "Optional .env file loaded before reading the environment")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatalf("Failed to load environment file: %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override debug mode if flag is set
	debugMode := cfg.ServerDebugMode || *debugFlag

	// Initialize logger
	zapLogger, err := logger.New(debugMode, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		// Sync errors on stderr are expected in containers
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Duration("categorize_timeout", cfg.CategorizeTimeout),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	tracingEnabled := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), telemetry.DefaultServiceName, cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracingEnabled = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Connect to database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	healthChecker := handlers.NewHealthChecker(db)

	// Rate limit counters live in Redis; a single instance can fall back to memory
	var limiterStore limiter.Store
	redisLimiter, err := middleware.NewRedisRateLimiter(context.Background(), cfg.RedisURL)
	if err != nil {
		zapLogger.Warn("failed_to_connect_to_redis_using_in_memory_rate_limits", zap.Error(err))
		limiterStore = memory.NewStore()
	} else {
		defer func() {
			if err := redisLimiter.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		limiterStore, err = redisstore.NewStoreWithOptions(redisLimiter.Client(), limiter.StoreOptions{
			Prefix:   "taskflow_ratelimit",
			MaxRetry: 3,
		})
		if err != nil {
			zapLogger.Fatal("failed_to_create_redis_rate_limit_store", zap.Error(err))
		}
		healthChecker.AddCheck("redis", redisLimiter.Ping)
		zapLogger.Info("connected_to_redis")
	}

	// Lifecycle events are optional
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQURL != "" {
		rabbit, err := connectRabbitMQ(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Error("event_publishing_disabled", zap.Error(err))
		} else {
			publisher = rabbit
			healthChecker.AddCheck("rabbitmq", rabbit.HealthCheck)
			defer func() {
				if err := rabbit.Close(); err != nil {
					zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
				}
			}()
		}
	}

	// Initialize repositories
	todoRepo := database.NewTodoRepository(db)
	userRepo := database.NewUserRepository(db)
	oidcConfigRepo := database.NewOIDCConfigRepository(db)
	corsConfigRepo := database.NewCorsConfigRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	// Initialize AI provider
	categorizer, err := createCategorizer(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Warn("failed_to_create_ai_provider_categorization_disabled", zap.Error(err))
		categorizer = nil
	}

	statsLocation, err := cfg.Location()
	if err != nil {
		zapLogger.Fatal("invalid_stats_timezone", zap.Error(err))
	}

	// Initialize services
	todoService := todos.NewService(todoRepo, categorizer, zapLogger,
		todos.WithPublisher(publisher),
		todos.WithCategorizeTimeout(cfg.CategorizeTimeout),
		todos.WithDefaultCategory(cfg.DefaultCategory),
	)
	statsService := stats.NewService(todoRepo, statsLocation, zapLogger)

	oidcProvider := oidc.NewProvider(oidcConfigRepo, nil)
	jwksManager := oidc.NewJWKSManager(nil)
	tokenVerifier := oidc.NewTokenVerifier(oidcProvider, jwksManager, cfg.OIDCProvider)

	sessions, err := session.NewManager(cfg.SessionSecret, session.DefaultTTL, cfg.SessionCookieSecure)
	if err != nil {
		zapLogger.Warn("session_cookies_disabled", zap.Error(err))
		sessions = nil
	}
	authenticator := middleware.NewAuthenticator(userRepo, tokenVerifier, sessions, zapLogger)
	authMW := middleware.Auth(authenticator, zapLogger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(oidcProvider, tokenVerifier, userRepo, sessions, cfg.OIDCProvider, cfg.SessionCookieSecure, zapLogger)
	todoHandler := handlers.NewTodoHandler(todoService, zapLogger)
	statsHandler := handlers.NewStatsHandler(statsService, zapLogger)
	openAPIHandler, err := handlers.NewOpenAPIHandler(openapi.Document)
	if err != nil {
		zapLogger.Fatal("invalid_openapi_document", zap.Error(err))
	}

	// Setup router
	r := mux.NewRouter()

	// Middleware registered first wraps outermost
	zapLogger.Info("setting_up_middleware")
	if tracingEnabled {
		r.Use(otelmux.Middleware(telemetry.DefaultServiceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	corsReloader := middleware.NewCORSReloader(corsConfigRepo, cfg.FrontendURL, zapLogger, configReloadInterval)
	r.Use(corsReloader.Middleware())
	r.Use(middleware.RequestID)
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	// Rate limits are applied per route group, after authentication where there is one
	apiRateLimit := middleware.NewRateLimitReloader(limiterStore, ratelimitConfigRepo, database.RatelimitKeyDefault, cfg.RateLimitDefault, zapLogger, configReloadInterval)
	authRateLimit := middleware.NewRateLimitReloader(limiterStore, ratelimitConfigRepo, database.RatelimitKeyAuth, authRateLimitDefault, zapLogger, configReloadInterval)
	apiRateLimitMW := apiRateLimit.Middleware()
	authRateLimitMW := authRateLimit.Middleware()

	// Public routes (no rate limiting for health checks)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET") // Legacy endpoint
	r.HandleFunc("/version", versionInfo).Methods("GET")
	openAPIHandler.RegisterRoutes(r)

	// API v1 routes
	apiRouter := r.PathPrefix("/api/v1").Subrouter()

	// Auth routes
	authRouter := apiRouter.PathPrefix("/auth").Subrouter()

	publicAuthRouter := authRouter.PathPrefix("").Subrouter()
	publicAuthRouter.Use(authRateLimitMW)
	authHandler.RegisterRoutes(publicAuthRouter)

	protectedAuthRouter := authRouter.PathPrefix("").Subrouter()
	protectedAuthRouter.Use(authMW, apiRateLimitMW)
	authHandler.RegisterProtectedRoutes(protectedAuthRouter)

	// Todo routes (protected)
	todosRouter := apiRouter.PathPrefix("/todos").Subrouter()
	todosRouter.Use(authMW, apiRateLimitMW)
	todoHandler.RegisterRoutes(todosRouter)

	// Dashboard routes (protected)
	dashboardRouter := apiRouter.PathPrefix("/dashboard").Subrouter()
	dashboardRouter.Use(authMW, apiRateLimitMW)
	statsHandler.RegisterRoutes(dashboardRouter)

	// Preflight requests are answered by the CORS middleware; this keeps the
	// router from turning them into 405s
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	zapLogger.Info("middleware_setup_complete")

	// Setup server
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB max header size
	}

	// CORS and rate limit hot-reload loops
	reloadCtx, reloadCancel := context.WithCancel(context.Background())
	defer reloadCancel()
	go corsReloader.Start(reloadCtx)
	go apiRateLimit.Start(reloadCtx)
	go authRateLimit.Start(reloadCtx)

	// Start server in a goroutine
	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	reloadCancel()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectRabbitMQ retries with exponential backoff to ride out broker startup delays
func connectRabbitMQ(url string, zapLogger *zap.Logger) (*events.RabbitMQPublisher, error) {
	const maxRetries = 10
	const initialDelay = 2 * time.Second
	const maxDelay = 30 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		publisher, err := events.NewRabbitMQPublisher(url)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return publisher, nil
		}
		lastErr = err

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > maxDelay {
			delay = maxDelay
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, lastErr)
}

// createCategorizer creates the categorization provider named by AI_PROVIDER
func createCategorizer(cfg *config.Config, zapLogger *zap.Logger, debugMode bool) (ai.Categorizer, error) {
	registry := ai.NewDefaultRegistry(zapLogger, debugMode)
	return registry.GetProvider(cfg.AIProvider, map[string]string{
		"api_key":  cfg.OpenAIKey,
		"model":    cfg.AIModel,
		"base_url": cfg.AIBaseURL,
	})
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	// Only expose minimal version info
	_, _ = fmt.Fprintf(w, `{"version":"%s","timestamp":"%s"}`, version, time.Now().UTC().Format(time.RFC3339))
}
