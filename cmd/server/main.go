// Package main is the entrypoint for the bioverify review server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/bioverify/internal/api"
	"github.com/kiranshivaraju/bioverify/internal/api/handler"
	mw "github.com/kiranshivaraju/bioverify/internal/api/middleware"
	"github.com/kiranshivaraju/bioverify/internal/bioverify"
	"github.com/kiranshivaraju/bioverify/internal/cache"
	"github.com/kiranshivaraju/bioverify/internal/config"
	"github.com/kiranshivaraju/bioverify/internal/tracker"
	"github.com/kiranshivaraju/bioverify/pkg/models"
)

const (
	shutdownTimeout   = 30 * time.Second
	cacheWriteTimeout = 5 * time.Second
)

func main() {
	slog.SetDefault(newLogger(os.Stdout, slog.LevelInfo))

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level, _ := cfg.Log.SlogLevel()
	slog.SetDefault(newLogger(os.Stdout, level))
	slog.Info("config loaded", "api_url", cfg.API.BaseURL, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := cache.New(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}
	defer c.Close()

	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("ping cache: %w", err)
	}
	slog.Info("cache ready", "backend", cacheBackend(cfg.Redis.URL))

	client := bioverify.NewHTTPClient(cfg.API)
	registry := newRegistry(ctx, client, c, cfg.Poll.Interval)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newRouter(cfg, client, c, registry),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		registry.StopAll()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	registry.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newRegistry builds the tracker registry. Jobs that complete while being
// watched are cached so later views skip the API.
func newRegistry(ctx context.Context, client tracker.JobFetcher, c cache.Cache, interval time.Duration) *tracker.Registry {
	return tracker.NewRegistry(ctx, client,
		tracker.WithInterval(interval),
		tracker.WithOnComplete(func(job *models.AnalysisJob) {
			wctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
			defer cancel()
			if err := cache.SetJobSnapshot(wctx, c, job); err != nil {
				slog.Warn("failed to cache completed job", "analysis_id", job.ID, "error", err)
			}
		}),
	)
}

func newRouter(cfg *config.Config, client bioverify.Client, c cache.Cache, registry *tracker.Registry) http.Handler {
	probe := &http.Client{Timeout: cfg.API.Timeout}

	return api.NewRouter(api.Dependencies{
		RateLimit: mw.NewRateLimit(c, cfg.Server.RateLimit),

		HealthHandler:      handler.NewHealthHandler(client, c, registry),
		SubmitHandler:      handler.NewSubmitHandler(client, registry),
		ListHandler:        handler.NewListHandler(client),
		GetAnalysisHandler: handler.NewGetAnalysisHandler(registry, c),
		ReleaseHandler:     handler.NewReleaseHandler(registry),
		EvidenceHandler:    handler.NewEvidenceHandler(client, c, probe),
	})
}

func cacheBackend(redisURL string) string {
	if redisURL == "" {
		return "memory"
	}
	return "redis"
}
