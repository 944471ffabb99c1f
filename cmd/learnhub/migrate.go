package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alem-hub/learnhub/config"
	"github.com/alem-hub/learnhub/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/learnhub/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: "Apply pending migrations. SQLite stores are migrated whenever they are opened; " +
		"--status and --rollback are available for postgres only.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		status, _ := cmd.Flags().GetBool("status")
		rollback, _ := cmd.Flags().GetBool("rollback")

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		if cfg.Database.Driver != config.DriverPostgres {
			if status || rollback {
				return fmt.Errorf("--status and --rollback require DATABASE_DRIVER=postgres")
			}
			store, err := openStorage(ctx, cfg, log)
			if err != nil {
				return err
			}
			store.close()
			log.Info("migrations completed")
			return nil
		}

		return migratePostgres(ctx, cfg, log, status, rollback)
	},
}

func init() {
	migrateCmd.Flags().Bool("status", false, "Print applied and pending migrations")
	migrateCmd.Flags().Bool("rollback", false, "Roll back the last applied migration")
}

func migratePostgres(ctx context.Context, cfg *config.Config, log *logger.Logger, status, rollback bool) error {
	conn, err := postgres.Connect(ctx, cfg.Database.URL, poolOptions(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	migrator := postgres.NewMigrator(conn)

	switch {
	case rollback:
		if err := migrator.Rollback(ctx); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		log.Info("last migration rolled back")
	case status:
	default:
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	migrations, err := migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		if m.Applied {
			applied++
		}
		log.Info("migration",
			logger.Int("version", m.Version),
			logger.String("name", m.Name),
			logger.Bool("applied", m.Applied),
		)
	}
	log.Info("migrations completed", logger.Int("applied", applied), logger.Int("total", len(migrations)))
	return nil
}
