package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationLockID is the pg_advisory_xact_lock key that serializes
// concurrent migrators (several API instances starting at once).
const migrationLockID = 0x6c6561726e687562

// Migration is one NNNN_name.{up,down}.sql pair from the migrations directory.
type Migration struct {
	Version int
	Name    string
	up      string
	down    string

	Applied   bool
	AppliedAt time.Time
}

// Migrator applies the embedded schema and records progress in
// schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator loads the embedded migrations. Files are compiled in, so a
// malformed name is a programming error and panics.
func NewMigrator(conn *Connection) *Migrator {
	migrations, err := loadMigrations(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return &Migrator{conn: conn, migrations: migrations}
}

func loadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrMigrationFailed, dir, err)
	}

	byVersion := make(map[int]*Migration)
	for _, e := range entries {
		base, direction, ok := strings.Cut(strings.TrimSuffix(e.Name(), ".sql"), ".")
		if e.IsDir() || !ok || (direction != "up" && direction != "down") {
			continue
		}
		num, name, ok := strings.Cut(base, "_")
		version, err := strconv.Atoi(num)
		if !ok || err != nil || version <= 0 {
			return nil, fmt.Errorf("%w: bad file name %q", ErrMigrationFailed, e.Name())
		}

		body, err := fs.ReadFile(fsys, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrMigrationFailed, e.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if direction == "up" {
			m.up = string(body)
		} else {
			m.down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.up == "" {
			return nil, fmt.Errorf("%w: version %d has no up script", ErrMigrationFailed, m.Version)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return a.Version - b.Version })
	return out, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Pool().Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("%w: create schema_migrations: %v", ErrMigrationFailed, err)
	}
	return nil
}

func appliedVersions(ctx context.Context, q Querier) (map[int]time.Time, error) {
	rows, err := q.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%w: list applied: %v", ErrMigrationFailed, err)
	}
	out := make(map[int]time.Time)
	var (
		version int
		at      time.Time
	)
	_, err = pgx.ForEachRow(rows, []any{&version, &at}, func() error {
		out[version] = at
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan applied: %v", ErrMigrationFailed, err)
	}
	return out, nil
}

// Migrate applies pending migrations in version order. Each one runs in its
// own transaction holding the advisory lock, and re-checks schema_migrations
// under that lock so a concurrent migrator never applies it twice.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}

	for _, mig := range m.migrations {
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(migrationLockID)); err != nil {
				return err
			}
			applied, err := appliedVersions(ctx, tx)
			if err != nil {
				return err
			}
			if _, done := applied[mig.Version]; done {
				return nil
			}
			if _, err := tx.Exec(ctx, mig.up); err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: %04d_%s: %w", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
	}
	return nil
}

// Rollback reverts the newest applied migration. Nothing applied is a no-op.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}

	return m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(migrationLockID)); err != nil {
			return err
		}
		applied, err := appliedVersions(ctx, tx)
		if err != nil || len(applied) == 0 {
			return err
		}

		latest := slices.Max(mapKeys(applied))
		i := slices.IndexFunc(m.migrations, func(mig Migration) bool { return mig.Version == latest })
		if i < 0 || m.migrations[i].down == "" {
			return fmt.Errorf("%w: no down script for version %d", ErrMigrationFailed, latest)
		}

		if _, err := tx.Exec(ctx, m.migrations[i].down); err != nil {
			return fmt.Errorf("%w: revert %d: %w", ErrMigrationFailed, latest, err)
		}
		_, err = tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, latest)
		return err
	})
}

// Status lists every known migration and whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, m.conn.Pool())
	if err != nil {
		return nil, err
	}

	out := slices.Clone(m.migrations)
	for i := range out {
		out[i].AppliedAt, out[i].Applied = applied[out[i].Version]
	}
	return out, nil
}

func mapKeys(m map[int]time.Time) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
