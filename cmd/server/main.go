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

	"github.com/jackc/pgx/v5/pgxpool"

	apispec "github.com/everest/authsvc/api"
	"github.com/everest/authsvc/internal/access"
	"github.com/everest/authsvc/internal/api"
	"github.com/everest/authsvc/internal/api/handler"
	"github.com/everest/authsvc/internal/cache"
	"github.com/everest/authsvc/internal/company"
	"github.com/everest/authsvc/internal/config"
	"github.com/everest/authsvc/internal/idp"
	"github.com/everest/authsvc/internal/metrics"
	"github.com/everest/authsvc/internal/reconciler"
	"github.com/everest/authsvc/internal/rolerequest"
	"github.com/everest/authsvc/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Warn("database not reachable at startup; health will report degraded", "error", err)
	}

	claims, cachePinger := initCache(ctx, cfg)

	httpClient := &http.Client{Timeout: cfg.IdPTimeout}
	broker := idp.NewBroker(cfg.IdP(), httpClient)
	gateway := idp.NewGateway(cfg.IdP(), broker, httpClient)

	users := user.NewRepository(pool)
	svc := access.NewService(access.Deps{
		Gateway:   gateway,
		Users:     users,
		Companies: company.NewRepository(pool),
		Requests:  rolerequest.NewRepository(pool),
		Cache:     claims,
		CacheTTL:  cfg.ClaimsCacheTTL,
	})

	router := api.NewRouter(api.RouterDeps{
		Service:            svc,
		DBPinger:           pool,
		CachePinger:        cachePinger,
		Version:            cfg.Version,
		OpenAPISpec:        apispec.OpenAPISpec,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
		LoginRateBurst:     cfg.LoginRateBurst,
		TrustProxy:         cfg.TrustProxy,
	})

	if cfg.ReconcilerInterval > 0 {
		rec := reconciler.New(users, gateway, time.Duration(cfg.ReconcilerInterval)*time.Second)
		go rec.Start(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting authsvc server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(logHandler))
}

// initCache connects the claims cache when REDIS_URL is set. Any failure
// falls back to no caching.
func initCache(ctx context.Context, cfg *config.Config) (cache.ClaimsCache, handler.Pinger) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("redis unavailable; claims cache disabled", "error", err)
		return nil, nil
	}
	ping := handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	return cache.NewRedisCache(rdb), ping
}
