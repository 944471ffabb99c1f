package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alem-hub/learnhub/config"
	"github.com/alem-hub/learnhub/internal/domain/account"
	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/domain/progress"
	"github.com/alem-hub/learnhub/internal/domain/purchase"
	"github.com/alem-hub/learnhub/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/learnhub/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/learnhub/pkg/logger"
)

// catalogStore - каталог с возможностью записи (нужен для seed).
type catalogStore interface {
	catalog.Catalog
	catalog.Writer
}

// storage объединяет репозитории выбранного драйвера.
type storage struct {
	driver    string
	catalog   catalogStore
	progress  progress.Repository
	purchases purchase.Repository
	accounts  account.Repository
	ping      func(context.Context) error
	close     func()
}

// Ping проверяет доступность хранилища (для health checks).
func (s *storage) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// poolOptions переносит настройки пула из конфигурации.
func poolOptions(cfg *config.Config) postgres.PoolOptions {
	return postgres.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	}
}

// openStorage открывает хранилище по DATABASE_DRIVER и применяет миграции.
func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		conn, err := postgres.Connect(ctx, cfg.Database.URL, poolOptions(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		store := postgres.NewStore(conn)
		log.Info("database connection established", logger.String("driver", cfg.Database.Driver))
		return &storage{
			driver:    cfg.Database.Driver,
			catalog:   store.Catalog(),
			progress:  store.Progress(),
			purchases: store.Purchases(),
			accounts:  store.Accounts(),
			ping:      conn.Ping,
			close:     conn.Close,
		}, nil

	default:
		if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}

		store, err := sqlite.Open(cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}

		log.Info("database opened",
			logger.String("driver", cfg.Database.Driver),
			logger.String("path", cfg.Database.SQLitePath),
		)
		return &storage{
			driver:    cfg.Database.Driver,
			catalog:   store.Catalog(),
			progress:  store.Progress(),
			purchases: store.Purchases(),
			accounts:  store.Accounts(),
			ping:      store.Ping,
			close:     func() { _ = store.Close() },
		}, nil
	}
}
