package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-equip/internal/api"
	"github.com/hugh/go-equip/internal/api/middleware"
	"github.com/hugh/go-equip/internal/auth"
	"github.com/hugh/go-equip/internal/authz"
	"github.com/hugh/go-equip/internal/database"
	"github.com/hugh/go-equip/internal/invitation"
	"github.com/hugh/go-equip/internal/notify"
	"github.com/hugh/go-equip/internal/orgcontext"
	"github.com/hugh/go-equip/internal/organization"
	"github.com/hugh/go-equip/internal/uploads"
	"github.com/hugh/go-equip/pkg/config"
	"github.com/hugh/go-equip/pkg/crypto"
	"github.com/hugh/go-equip/pkg/queue"
	"github.com/hugh/go-equip/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting go-equip server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis", "error", err)
		redisClient = nil
	}

	// Invitation emails go through the worker when Redis is up
	var (
		asynqClient *asynq.Client
		dispatcher  notify.Dispatcher = notify.NoopDispatcher{}
	)
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
		dispatcher = notify.NewAsynqDispatcher(asynqClient, logger)
	} else {
		logger.Warn("invitation emails disabled: no Redis")
	}

	// Initialize services
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService)

	contexts := orgcontext.NewStore(db)
	gate := authz.NewGate(contexts, contexts, logger)
	orgService := organization.NewService(db, gate, contexts, logger)
	invitationService := invitation.NewService(db, gate, logger,
		invitation.WithTTL(cfg.Invitation.TTL()),
		invitation.WithNotifier(dispatcher),
		invitation.WithAcceptURLBase(cfg.Invitation.AcceptURLBase),
	)

	// Upload bodies are age-encrypted before they reach the blob store
	encryptor, err := crypto.NewEncryptor(cfg.Storage.EncryptionKey)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	if cfg.Storage.EncryptionKey == "" {
		logger.Warn("STORAGE_ENCRYPTION_KEY not set, using generated key - uploads will be unreadable after restart")
	}
	logger.Info("upload encryption enabled", "recipient", encryptor.PublicKey())

	blobs, err := uploads.NewBlobStore(context.Background(), &cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to initialize blob store", "provider", cfg.Storage.Provider, "error", err)
		os.Exit(1)
	}
	uploadService := uploads.NewService(db, blobs, encryptor, logger)

	// Rate limiting; the Redis backend shares counters across replicas
	var limiter, uploadLimiter middleware.Limiter
	switch {
	case cfg.RateLimit.Backend == "redis" && redisClient != nil:
		limiter = middleware.NewRedisRateLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds, logger)
		uploadLimiter = middleware.NewRedisRateLimiter(redisClient, uploadRequests(cfg), cfg.RateLimit.WindowSeconds, logger)
	case cfg.RateLimit.Requests > 0:
		if cfg.RateLimit.Backend == "redis" {
			logger.Warn("redis rate limiter unavailable, falling back to memory")
		}
		limiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds)
		uploadLimiter = middleware.NewRateLimiter(uploadRequests(cfg), cfg.RateLimit.WindowSeconds)
	}

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:                db,
		Redis:             redisClient,
		Logger:            logger,
		JWTService:        jwtService,
		AuthService:       authService,
		Gate:              gate,
		OrgService:        orgService,
		InvitationService: invitationService,
		UploadService:     uploadService,
		Limiter:           limiter,
		UploadLimiter:     uploadLimiter,
		SecureCookies:     !cfg.Server.IsDevelopment(),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if closer, ok := blobs.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("failed to close blob store", "error", err)
		}
	}

	// Close Asynq client
	if asynqClient != nil {
		asynqClient.Close()
	}

	// Close Redis connection
	if redisClient != nil {
		redisClient.Close()
	}

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}

// uploadRequests caps uploads at a tenth of the general budget per user.
func uploadRequests(cfg *config.Config) int {
	n := cfg.RateLimit.Requests / 10
	if n < 1 {
		n = 1
	}
	return n
}
