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

	"github.com/BradenHooton/snipvault/internal/auth"
	"github.com/BradenHooton/snipvault/internal/background"
	"github.com/BradenHooton/snipvault/internal/config"
	"github.com/BradenHooton/snipvault/internal/database"
	"github.com/BradenHooton/snipvault/internal/handlers"
	"github.com/BradenHooton/snipvault/internal/ratelimit"
	"github.com/BradenHooton/snipvault/internal/repositories"
	"github.com/BradenHooton/snipvault/internal/routes"
	"github.com/BradenHooton/snipvault/internal/services"
	"github.com/BradenHooton/snipvault/pkg/crypto"
	pkglogger "github.com/BradenHooton/snipvault/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("db_driver", cfg.Database.Driver),
		slog.String("rate_limit_backend", cfg.RateLimit.Backend),
	)

	encryptionKey, err := crypto.DeriveKey(cfg.Crypto.EncryptionKey)
	if err != nil {
		logger.Error("invalid encryption key", slog.Any("error", err))
		os.Exit(1)
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Initialize storage and run migrations
	store, err := openStorage(startupCtx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.close()

	// Rate limit counters
	rateLimits, closeRateLimits, err := openRateLimitStore(startupCtx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize rate limit store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeRateLimits()

	// Initialize services
	auditLogger := pkglogger.NewAuditLogger(logger)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Auth.TimingBaseDelay,
		RandomDelay: cfg.Auth.TimingRandomSpan,
	})
	authService := services.NewAuthService(store.users, store.sessions, timingDelay, services.AuthConfig{
		SessionTTL:      cfg.Auth.SessionTTL,
		MaxFailedLogins: cfg.Auth.MaxFailedLogins,
		LockoutDuration: cfg.Auth.LockoutDuration,
	}, logger, auditLogger)
	noteService := services.NewNoteService(store.notes, encryptionKey, logger)

	// Bootstrap the owner account if configured
	if err := ensureOwner(startupCtx, authService, cfg, logger); err != nil {
		logger.Error("failed to ensure owner account", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize handlers and router
	router := routes.NewRouter(routes.Config{
		Env:                 cfg.Server.Env,
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		GeneralPolicy:       ratelimit.General(cfg.RateLimit.GeneralMax, cfg.RateLimit.Window),
		AuthPolicy:          ratelimit.Auth(cfg.RateLimit.AuthMax, cfg.RateLimit.Window),
		NoteWritesPerMinute: cfg.RateLimit.NoteWritesPerMinute,
	}, routes.Dependencies{
		AuthHandler:   handlers.NewAuthHandler(authService, auth.SessionCookieConfig(cfg.Server.IsProduction()), cfg.Auth.SessionTTL, logger),
		NoteHandler:   handlers.NewNoteHandler(noteService, logger),
		HealthHandler: handlers.NewHealthHandler(store.health, logger),
		Sessions:      authService,
		RateLimits:    rateLimits,
		Logger:        logger,
		AuditLogger:   auditLogger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(authService, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return
	}

	logger.Info("server stopped gracefully")
}

// storage bundles the repositories of the configured driver
type storage struct {
	users    services.UserRepository
	sessions services.SessionRepository
	notes    services.NoteRepository
	health   handlers.Pinger
	close    func()
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(cfg.Database.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return &storage{
			users:    repositories.NewSQLiteUserRepository(db),
			sessions: repositories.NewSQLiteSessionRepository(db),
			notes:    repositories.NewSQLiteNoteRepository(db),
			health:   db,
			close:    db.Close,
		}, nil

	case config.DriverPostgres:
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return &storage{
			users:    repositories.NewUserRepository(db),
			sessions: repositories.NewSessionRepository(db),
			notes:    repositories.NewNoteRepository(db),
			health:   db,
			close:    db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
}

func openRateLimitStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ratelimit.Store, func(), error) {
	if cfg.RateLimit.Backend != config.RateLimitBackendRedis {
		return ratelimit.NewMemoryStore(cfg.RateLimit.MaxKeys), func() {}, nil
	}

	client, err := ratelimit.NewRedisClient(ctx, cfg.RateLimit.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis rate limit store")

	return ratelimit.NewRedisStore(client), func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close redis client", slog.Any("error", err))
		}
	}, nil
}

// ensureOwner creates the configured owner account if OWNER_USERNAME and OWNER_PASSWORD are set
func ensureOwner(ctx context.Context, authService *services.AuthService, cfg *config.Config, logger *slog.Logger) error {
	if cfg.Auth.OwnerUsername == "" {
		logger.Info("no OWNER_USERNAME set, skipping owner bootstrap")
		return nil
	}

	created, err := authService.EnsureOwner(ctx, cfg.Auth.OwnerUsername, cfg.Auth.OwnerPassword)
	if err != nil {
		return fmt.Errorf("failed to create owner: %w", err)
	}

	if created {
		logger.Info("owner account created", slog.String("username", cfg.Auth.OwnerUsername))
	} else {
		logger.Info("owner account already exists")
	}
	return nil
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
