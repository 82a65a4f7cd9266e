// Package main is the entrypoint for the Feedlens API server.
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

	"github.com/kiranshivaraju/feedlens/internal/ai"
	"github.com/kiranshivaraju/feedlens/internal/api"
	"github.com/kiranshivaraju/feedlens/internal/api/handler"
	mw "github.com/kiranshivaraju/feedlens/internal/api/middleware"
	"github.com/kiranshivaraju/feedlens/internal/cache"
	"github.com/kiranshivaraju/feedlens/internal/config"
	"github.com/kiranshivaraju/feedlens/internal/credentials"
	"github.com/kiranshivaraju/feedlens/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config; fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create stores and seed AI settings
	pgStore := store.NewPostgresStore(pool, store.NewSealer(cfg.Credentials.Secret))
	if err := seedSettings(ctx, pgStore, cfg.AI); err != nil {
		return err
	}
	analyses := store.NewLiveAnalysisStore(pgStore, redisCache)

	// 6. Create the analysis workflow
	gateway := credentials.NewGateway(pgStore)
	svc := ai.NewAnalysisService(pgStore, analyses, gateway)

	// 7. Build router with dependencies
	router := api.NewRouter(newDependencies(cfg, pgStore, analyses, redisCache, svc))

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Analysis rounds against local models can run for minutes; event
		// streams stay open indefinitely.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func newDependencies(cfg *config.Config, s store.Store, sub store.Subscriber, c cache.Cache, svc *ai.AnalysisService) api.Dependencies {
	return api.Dependencies{
		CORS:      api.NewCORS(cfg.Server.CORSOrigins),
		RateLimit: mw.NewRateLimit(c, cfg.Server.RateLimitPerMinute),

		HealthHandler: handler.NewHealthHandler(s, c),

		CreateFeedback: handler.NewCreateFeedbackHandler(s),
		ListFeedback:   handler.NewListFeedbackHandler(s),
		GetFeedback:    handler.NewGetFeedbackHandler(s),

		StartAnalysis:    handler.NewStartAnalysisHandler(svc),
		GetAnalysis:      handler.NewGetAnalysisHandler(svc),
		AnalysisEvents:   handler.NewAnalysisEventsHandler(svc, sub),
		AnswerQuestion:   handler.NewAnswerHandler(svc),
		PassToUser:       handler.NewPassToUserHandler(svc),
		CreateFollowUp:   handler.NewFollowUpHandler(svc),
		MarkFollowUpCopy: handler.NewFollowUpCopiedHandler(svc),

		TestConnection: handler.NewTestConnectionHandler(svc),
		ListModels:     handler.NewListModelsHandler(svc, s, c),
		GetSettings:    handler.NewGetSettingsHandler(s),
		PutSettings:    handler.NewPutSettingsHandler(s),
		PutCredential:  handler.NewPutCredentialHandler(s),
	}
}
