package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/featureflags"
	"github.com/aryan0dhankhar/rentaladmin/internal/handler"
	"github.com/aryan0dhankhar/rentaladmin/internal/infrastructure/gridfs"
	"github.com/aryan0dhankhar/rentaladmin/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/rentaladmin/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/rentaladmin/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentaladmin/internal/observability/tracing"
	"github.com/aryan0dhankhar/rentaladmin/internal/reliability/retry"
	"github.com/aryan0dhankhar/rentaladmin/internal/repository"
	"github.com/aryan0dhankhar/rentaladmin/internal/security"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/audit"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/auth"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/middleware"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/ratelimit"
	"github.com/aryan0dhankhar/rentaladmin/internal/service"
	"github.com/aryan0dhankhar/rentaladmin/internal/worker"
	"github.com/aryan0dhankhar/rentaladmin/pkg/config"
	"github.com/aryan0dhankhar/rentaladmin/pkg/database"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	serviceName = "rentaladmin"
	// uploads younger than this may still belong to an in-flight create
	imageSweepGrace = time.Hour
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger and tracing
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting rental admin server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, log, serviceName, cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Connect to Postgres, Redis and Mongo
	startup := retry.StartupConfig()
	pool, err := retry.Do(ctx, startup, log, "postgres connect", func(ctx context.Context) (*database.ConnectionPool, error) {
		return database.NewConnectionPool(ctx, &database.Config{
			URL:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: 30 * time.Minute,
		}, log)
	})
	if err != nil {
		log.Error("failed to connect to Postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := retry.Do(ctx, startup, log, "redis connect", func(context.Context) (*redis.Client, error) {
		return redis.NewClient(cfg.RedisURL, cfg.RedisNamespace)
	})
	if err != nil {
		log.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	mongoClient, err := retry.Do(ctx, startup, log, "mongo connect", func(ctx context.Context) (*mongo.Client, error) {
		return gridfs.NewClient(ctx, cfg.MongoURI)
	})
	if err != nil {
		log.Error("failed to connect to MongoDB", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())

	// 4. Initialize repositories and stores
	db := pool.GetDB()
	tx := repository.NewTransactor(db, log)
	profileRepo := repository.NewPostgresProfileRepository(db, log)
	propertyRepo := repository.NewPostgresPropertyRepository(db, log)
	bookingRepo := repository.NewPostgresBookingRepository(db, log)
	actionRepo := repository.NewPostgresAdminActionRepository(db, log)
	credentialRepo := repository.NewPostgresCredentialRepository(db, log)
	sessionStore := repository.NewRedisSessionStore(redisClient, log)
	objectStore := gridfs.NewStore(mongoClient.Database(cfg.MongoDatabase), cfg.BackendURL, log)

	// 5. Initialize identity and authorization
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer)
	identityService := service.NewIdentityService(
		credentialRepo,
		profileRepo,
		sessionStore,
		service.NewLogNotifier(log),
		tokenManager,
		tx,
		service.IdentityConfig{
			SessionTTL:      cfg.SessionTTL,
			VerificationTTL: cfg.VerificationTTL,
			SignupEnabled:   featureflags.Checker(featureflags.PublicSignup),
		},
		log,
	)
	gate := security.NewGate(identityService, profileRepo, log)
	auditWriter := audit.NewWriter(actionRepo, log)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)

	// 6. Initialize admin services
	propertyService := service.NewPropertyService(propertyRepo, tx, objectStore, gate, auditWriter, cfg.MaxPageSize, log)
	bookingService := service.NewBookingService(bookingRepo, tx, gate, auditWriter, cfg.MaxPageSize, log)
	userService := service.NewUserService(profileRepo, tx, gate, auditWriter, cfg.MaxPageSize, log)
	analyticsService := service.NewAnalyticsService(propertyRepo, bookingRepo, profileRepo, actionRepo, gate, auditWriter, log)

	// 7. Initialize handlers and routes
	routes := &handler.Routes{
		Auth:       handler.NewAuthHandler(identityService, rateLimiter, cfg.Environment == "production", log),
		Properties: handler.NewPropertyHandler(propertyService, cfg.DefaultPageSize, int64(cfg.MaxUploadMB)<<20, log),
		Bookings:   handler.NewBookingHandler(bookingService, cfg.DefaultPageSize, log),
		Users:      handler.NewUserHandler(userService, cfg.DefaultPageSize, log),
		Analytics:  handler.NewAnalyticsHandler(analyticsService, log),
		Storage:    handler.NewStorageHandler(objectStore, log),
		Health: handler.NewHealthHandler(map[string]handler.CheckFunc{
			"postgres": pool.Health,
			"redis":    redisClient.Ping,
			"mongo": func(ctx context.Context) error {
				return mongoClient.Ping(ctx, nil)
			},
		}, featureflags.Snapshot, log),
		Logger: log,
	}

	mux := http.NewServeMux()
	routes.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	// 8. Chain middleware: request ID -> CORS -> sanitize -> api key -> session
	// -> admin gate -> rate limit -> audit -> content type
	rootHandler := middleware.Chain(metrics.HTTPMetricsMiddleware(mux),
		middleware.RequestID(log),
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.SanitizeInputs(log),
		middleware.APIKey(cfg.BackendAPIKey, log),
		middleware.Session(),
		middleware.AdminArea(gate, auditWriter, log),
		middleware.RateLimitMiddleware(rateLimiter, log),
		middleware.AuditMiddleware(auditWriter),
		middleware.ValidateContentType(log),
	)

	// 9. Start orphaned image sweeper in background
	if cfg.ImageSweepInterval > 0 {
		sweeper := worker.NewImageSweeper(
			objectStore,
			propertyRepo,
			service.PropertyImageBucket,
			imageSweepGrace,
			cfg.ImageSweepInterval,
			log,
		)
		go sweeper.Start(ctx)
	} else {
		log.Info("image sweeper disabled")
	}

	// 10. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      otelhttp.NewHandler(rootHandler, serviceName),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Int("rate_limit", cfg.RateLimitRequests),
		slog.Duration("rate_limit_window", cfg.RateLimitWindow),
		slog.Bool("public_signup", featureflags.Enabled(featureflags.PublicSignup)),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			sigChan <- syscall.SIGTERM
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop image sweeper
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}
