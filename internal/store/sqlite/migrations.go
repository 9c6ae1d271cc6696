package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/jmoiron/sqlx"

	"github.com/MrSnakeDoc/linkdump/internal/logger"
)

// Migration is one schema step. Migrations are applied in Version order and
// each one runs inside its own transaction.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// DefaultMigrations returns the schema history of the links database.
func DefaultMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create links",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS "links" (
					url            TEXT PRIMARY KEY NOT NULL,
					title          TEXT,
					tags           TEXT NOT NULL DEFAULT '[]',
					via            TEXT,
					notes          TEXT,
					found_at       INTEGER,
					read_at        INTEGER,
					published_at   INTEGER,
					from_filename  TEXT,
					image          TEXT,
					src            BLOB,
					meta           TEXT,
					last_fetched   INTEGER,
					last_processed INTEGER,
					http_headers   BLOB
				)`,
			},
		},
		{
			Version: 2,
			Name:    "add hidden flag",
			Statements: []string{
				`ALTER TABLE "links" ADD COLUMN hidden INTEGER NOT NULL DEFAULT 0`,
				`CREATE INDEX IF NOT EXISTS links_found_at ON "links" (found_at)`,
			},
		},
		{
			Version: 3,
			Name:    "add extracted text",
			Statements: []string{
				`ALTER TABLE "links" ADD COLUMN extracted_text TEXT`,
			},
		},
	}
}

const createVersionTable = `CREATE TABLE IF NOT EXISTS database_version (
	id      INTEGER PRIMARY KEY,
	version INTEGER NOT NULL
)`

const upsertVersion = `INSERT INTO database_version (id, version) VALUES (0, ?)
	ON CONFLICT (id) DO UPDATE SET version = excluded.version`

// Migrate brings db up to the last migration and returns the resulting
// schema version.
func Migrate(ctx context.Context, db *sqlx.DB, migrations []Migration, log logger.Logger) (int, error) {
	if _, err := db.ExecContext(ctx, createVersionTable); err != nil {
		return 0, fmt.Errorf("failed to create version table: %w", err)
	}

	current, err := schemaVersion(ctx, db)
	if err != nil {
		return 0, err
	}

	ordered := slices.Clone(migrations)
	slices.SortFunc(ordered, func(a, b Migration) int { return a.Version - b.Version })

	for _, m := range ordered {
		if m.Version <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return current, err
		}
		current = m.Version
		log.Info("applied migration",
			logger.Int("version", m.Version),
			logger.String("name", m.Name))
	}

	return current, nil
}

func schemaVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	var version int
	err := db.GetContext(ctx, &version, `SELECT version FROM database_version WHERE id = 0`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func apply(ctx context.Context, db *sqlx.DB, m Migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
	}

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, upsertVersion, m.Version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}
