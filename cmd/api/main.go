// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Yomira identity HTTP server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool) and run migrations.
//  4. Start the worker pool that bounds store and cache calls.
//  5. Pick the cache: Redis when REDIS_URL is set, in-process otherwise.
//  6. Wire repositories, services and HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/taibuivan/yomira-identity/internal/api"
	"github.com/taibuivan/yomira-identity/internal/platform/cache"
	"github.com/taibuivan/yomira-identity/internal/platform/config"
	"github.com/taibuivan/yomira-identity/internal/platform/constants"
	"github.com/taibuivan/yomira-identity/internal/platform/metrics"
	"github.com/taibuivan/yomira-identity/internal/platform/middleware"
	"github.com/taibuivan/yomira-identity/internal/platform/migration"
	pgstore "github.com/taibuivan/yomira-identity/internal/platform/postgres"
	redisstore "github.com/taibuivan/yomira-identity/internal/platform/redis"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/internal/platform/workerpool"
	"github.com/taibuivan/yomira-identity/internal/users/account"
	"github.com/taibuivan/yomira-identity/internal/users/auth"
	"github.com/taibuivan/yomira-identity/internal/users/federation"
)

// memoryCacheCapacity bounds the in-process cache when Redis is not configured.
const memoryCacheCapacity = 100_000

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Yomira] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("redis", cfg.RedisURL != ""),
		slog.Any("trusted_providers", cfg.TrustedProviders),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 4. Worker Pool ────────────────────────────────────────────────────
	workers := workerpool.New(cfg.WorkerPoolSize, cfg.PoolCheckoutTimeout)
	metrics.ObserveWorkerPool(workers.InFlight, workers.Size())

	// ── 5. Cache ──────────────────────────────────────────────────────────
	var (
		store      cache.Store
		checkCache func(ctx context.Context) error
	)

	if cfg.RedisURL != "" {
		var rdb *goredis.Client
		rdb, err = redisstore.NewClient(startupCtx, redisstore.Options{URL: cfg.RedisURL, PoolSize: cfg.RedisPoolSize}, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()

		// Separate slots: a hanging Redis must never hold database capacity.
		cacheWorkers := workerpool.New(cfg.CacheWorkerPoolSize, cfg.CacheCallTimeout)
		store = cache.NewRedisStore(rdb, cacheWorkers, cfg.CacheCallTimeout)
		checkCache = func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) }
	} else {
		memory := cache.NewMemoryStore(memoryCacheCapacity)
		defer memory.Close()

		store = memory
		log.Warn("redis_not_configured", slog.String("cache", "in-process"))
	}

	// ── 6. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) },
		CheckCache:    checkCache,
	}, log)

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	tokenService, err := sec.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	must(log, err, "initialize token service")

	userRepository := auth.NewCachedUserRepository(auth.NewUserRepository(pool, workers), store, cfg.CacheTTL)
	identityRepository := auth.NewCachedIdentityRepository(auth.NewIdentityRepository(pool, workers), store, cfg.CacheTTL)

	authService := auth.NewService(
		userRepository,
		identityRepository,
		sec.NewPasswordHasher(cfg.BcryptCost),
		tokenService,
		auth.Options{TokenTTL: cfg.TokenTTL, TrustedProviders: cfg.TrustedProviders},
	)

	resolver := federation.NewResolver(nil,
		federation.NewGoogleProvider(cfg.GoogleUserInfoURL),
		federation.NewFacebookProvider(cfg.FacebookUserInfoURL),
	)

	// Server lifetime context: stops background sweepers on shutdown.
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	throttle := middleware.RateLimitWith(serverCtx, rate.Limit(constants.CredentialRateLimitRPS), constants.CredentialRateLimitBurst)

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, resolver, throttle),
		Account:   account.NewHandler(account.NewService(userRepository)),
	}

	server := api.NewServer(serverCtx, cfg, log, authService, handlers)

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
