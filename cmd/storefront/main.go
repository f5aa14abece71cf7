package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tebex-storefront/api/controllers"
	"github.com/angelmondragon/tebex-storefront/api/middleware"
	"github.com/angelmondragon/tebex-storefront/api/routes"
	"github.com/angelmondragon/tebex-storefront/internal/catalog"
	"github.com/angelmondragon/tebex-storefront/internal/handshake"
	"github.com/angelmondragon/tebex-storefront/internal/sessions"
	"github.com/angelmondragon/tebex-storefront/internal/snapshots"
	"github.com/angelmondragon/tebex-storefront/pkg/config"
	"github.com/angelmondragon/tebex-storefront/pkg/db"
	"github.com/angelmondragon/tebex-storefront/pkg/logger"
	"github.com/angelmondragon/tebex-storefront/pkg/metrics"
	"github.com/angelmondragon/tebex-storefront/pkg/migrate"
	"github.com/angelmondragon/tebex-storefront/pkg/redis"
	"github.com/angelmondragon/tebex-storefront/pkg/tebex"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "storefront stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	basketMetrics := metrics.NewBasketMetrics(reg)

	commerce, err := tebex.NewClient(cfg.Tebex.AccountToken,
		tebex.WithBaseURL(cfg.Tebex.BaseURL),
		tebex.WithTimeout(cfg.Tebex.Timeout),
		tebex.WithLogger(logg),
		tebex.WithMetrics(metrics.NewCommerceMetrics(reg)),
	)
	if err != nil {
		return err
	}

	readiness := map[string]controllers.Pinger{}
	var rateLimiter middleware.RateLimiterStore
	var cache redis.KV
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)
		readiness["redis"] = redisClient
		rateLimiter = redisClient
		cache = redisClient
	}

	var persister snapshots.Persister
	switch strings.ToLower(cfg.Persistence.Driver) {
	case config.PersistenceGorm:
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return err
		}
		closers = append(closers, dbClient.Close)
		readiness["db"] = dbClient
		if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
			return err
		}
		persister = snapshots.NewGormPersister(dbClient.DB(), cfg.Persistence.SnapshotTTL)
	default:
		if redisClient == nil {
			logg.Warn(ctx, "redis not configured, baskets are kept in memory only")
			break
		}
		persister = snapshots.NewRedisPersister(redisClient, cfg.Persistence.SnapshotTTL)
	}

	responder, err := handshake.NewResponder(cfg.Auth.PageOrigin)
	if err != nil {
		return err
	}

	registry, err := sessions.NewRegistry(sessions.Params{
		Commerce:  commerce,
		Persister: persister,
		Handshake: handshake.Options{
			PageOrigin:   cfg.Auth.PageOrigin,
			GuardDelay:   cfg.Auth.GuardDelay,
			AbandonAfter: cfg.Auth.AbandonAfter,
			PopupWidth:   cfg.Auth.PopupWidth,
			PopupHeight:  cfg.Auth.PopupHeight,
		},
		IdleTTL: cfg.Session.IdleTTL,
		Logger:  logg,
		Metrics: basketMetrics,
	})
	if err != nil {
		return err
	}
	closers = append(closers, func() error {
		registry.Close()
		return nil
	})
	go func() {
		if err := registry.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "session sweeper stopped", err)
		}
	}()

	deps := routes.Deps{
		Sessions:    registry,
		Catalog:     catalog.NewService(commerce, cache, cfg.Catalog.CacheTTL, logg),
		Responder:   responder,
		RateLimiter: rateLimiter,
		Readiness:   readiness,
		Gatherer:    reg,
	}

	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"persistence": cfg.Persistence.Driver,
		"page_origin": cfg.Auth.PageOrigin,
	})
	logg.Info(logCtx, "starting storefront server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down storefront server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
