package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alem-hub/learnhub/config"
	"github.com/alem-hub/learnhub/internal/application/command"
	"github.com/alem-hub/learnhub/internal/application/query"
	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/learnhub/internal/infrastructure/security"
	httpserver "github.com/alem-hub/learnhub/internal/interface/http"
	"github.com/alem-hub/learnhub/internal/interface/http/health"
	"github.com/alem-hub/learnhub/pkg/logger"
	"github.com/alem-hub/learnhub/pkg/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return serve(cmd.Context(), cfg, log)
	},
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log.Info("starting LearnHub",
		logger.String("version", cfg.App.Version),
		logger.String("driver", cfg.Database.Driver),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 1. ТРАССИРОВКА
	// ─────────────────────────────────────────────────────────────────────────
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("failed to flush traces", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database connection...")
		store.close()
	}()

	checks := health.NewRegistry(cfg.App.Version)
	checks.Register("database", health.Ping(store))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		cat         catalog.Catalog = store.catalog
		rateLimiter httpserver.RateLimiter
	)

	if cfg.Redis.Enabled {
		log.Info("connecting to Redis...")
		cache, err := redis.NewCache(ctx, redisConfig(cfg))
		if err != nil {
			log.Warn("redis unavailable, continuing without cache", logger.Err(err))
		} else {
			defer func() { _ = cache.Close() }()

			cat = redis.NewCatalogCache(store.catalog, cache, cfg.Redis.CatalogTTL, log)
			if cfg.HTTP.RateLimitPerMinute > 0 {
				rateLimiter = redis.NewRateLimiter(cache, cfg.HTTP.RateLimitPerMinute, time.Minute)
			}
			checks.Register("redis", health.Ping(cache))
			log.Info("redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПРИЛОЖЕНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	levels, err := cfg.Leveling.Table()
	if err != nil {
		return fmt.Errorf("invalid leveling table: %w", err)
	}

	rules := command.ProgressRules{
		CompletionThreshold: cfg.Progress.CompletionThreshold,
		DefaultReward:       cfg.Progress.DefaultReward,
		RequireAccess:       cfg.Progress.RequireAccess,
	}

	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	access := query.NewAccessResolver(cat, store.purchases)

	deps := httpserver.Dependencies{
		UpdateProgress: command.NewUpdateProgressHandler(cat, store.progress, access, rules, log),
		SubmitLesson:   command.NewSubmitLessonHandler(cat, store.progress, store.accounts, levels, rules, log),
		PurchaseCourse: command.NewPurchaseCourseHandler(cat, store.purchases, log),
		Auth:           command.NewAuthHandler(store.accounts, security.NewPasswordHasher(), tokens, levels, log),
		UpdateProfile:  command.NewUpdateProfileHandler(store.accounts, levels, log),
		Access:         access,
		Catalog:        query.NewCatalogViews(cat, store.progress, access, rules.DefaultReward),
		ListPurchases:  query.NewListPurchasesHandler(store.purchases),
		CheckPurchase:  query.NewCheckPurchaseHandler(store.purchases),
		GetProfile:     query.NewGetProfileHandler(store.accounts, levels),
		Tokens:         tokens,
		RateLimiter:    rateLimiter,
		Logger:         log,
		HealthChecker:  checks,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpserver.Config{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:     1 << 20,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
		Version:            cfg.App.Version,
		Debug:              cfg.IsDevelopment(),
	}
	server := httpserver.NewServer(httpCfg, deps)

	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("LearnHub is running", logger.String("http_address", httpCfg.Address()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("http server error", logger.Err(err))
			return err
		}
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}

// redisConfig переводит настройки окружения в конфигурацию клиента.
func redisConfig(cfg *config.Config) redis.Config {
	return redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Timeout:  cfg.Redis.Timeout,
	}
}
