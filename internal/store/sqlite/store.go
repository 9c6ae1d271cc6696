// Package sqlite is the SQLite implementation of the link store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/MrSnakeDoc/linkdump/internal/domain"
	"github.com/MrSnakeDoc/linkdump/internal/logger"
	"github.com/MrSnakeDoc/linkdump/internal/store"
	"github.com/MrSnakeDoc/linkdump/internal/utils"
)

const driverName = "sqlite3"

// linkColumns lists the columns read by Get and Glob.
const linkColumns = `url, title, tags, via, notes, found_at, read_at, published_at,
	from_filename, image, src, extracted_text, meta, last_fetched, last_processed,
	http_headers, hidden`

// listColumns skips the source body.
const listColumns = `url, title, tags, via, notes, found_at, read_at, published_at,
	from_filename, image, NULL AS src, extracted_text, meta, last_fetched, last_processed,
	http_headers, hidden`

const upsertLink = `INSERT INTO "links" (
		url, title, tags, via, notes, found_at, read_at, published_at,
		from_filename, image, src, extracted_text, meta, last_fetched, last_processed,
		http_headers, hidden
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (url) DO UPDATE SET
		title = excluded.title,
		tags = excluded.tags,
		via = excluded.via,
		notes = excluded.notes,
		found_at = excluded.found_at,
		read_at = excluded.read_at,
		published_at = excluded.published_at,
		from_filename = excluded.from_filename,
		image = excluded.image,
		src = excluded.src,
		extracted_text = excluded.extracted_text,
		meta = excluded.meta,
		last_fetched = excluded.last_fetched,
		last_processed = excluded.last_processed,
		http_headers = excluded.http_headers,
		hidden = excluded.hidden`

var _ store.Store = (*Store)(nil)

// Store keeps links in a single SQLite table. All access goes through one
// connection, so SQLite never sees concurrent writers.
type Store struct {
	db *sqlx.DB
}

// Open connects to dsn, serializes the pool to one connection and applies
// migrations.
func Open(ctx context.Context, dsn string, migrations []Migration, log logger.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	version, err := Migrate(ctx, db, migrations, log)
	if err != nil {
		utils.Close(db)
		return nil, err
	}

	log.Debug("sqlite store ready",
		logger.String("dsn", dsn),
		logger.Int("schema_version", version))

	return NewStore(db), nil
}

// NewStore wraps an already migrated database.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, url string) (*domain.Link, error) {
	var row linkRow
	err := s.db.GetContext(ctx, &row, `SELECT `+linkColumns+` FROM "links" WHERE url = ?`, url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return row.toLink()
}

func (s *Store) Values(ctx context.Context) ([]*domain.Link, error) {
	return s.query(ctx, `SELECT `+listColumns+` FROM "links"`)
}

func (s *Store) Glob(ctx context.Context, pattern string) ([]*domain.Link, error) {
	return s.query(ctx, `SELECT `+linkColumns+` FROM "links" WHERE url GLOB ?`, pattern)
}

func (s *Store) Write(ctx context.Context, link *domain.Link) (bool, error) {
	args, err := writeArgs(link)
	if err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, upsertLink, args...)
	if err != nil {
		return false, fmt.Errorf("failed to write link %s: %w", link.URL, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

// ───── browsing ─────

func (s *Store) List(ctx context.Context, params store.ListParams) ([]*domain.Link, error) {
	where, args := listFilter(params)

	limit := params.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, params.Offset)

	return s.query(ctx,
		`SELECT `+listColumns+` FROM "links"`+where+` ORDER BY found_at DESC LIMIT ? OFFSET ?`,
		args...)
}

func (s *Store) Count(ctx context.Context, params store.ListParams) (int, error) {
	where, args := listFilter(params)

	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM "links"`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count links: %w", err)
	}
	return count, nil
}

func (s *Store) AllTags(ctx context.Context) ([]string, error) {
	var encoded []string
	if err := s.db.SelectContext(ctx, &encoded, `SELECT tags FROM "links"`); err != nil {
		return nil, fmt.Errorf("failed to select tags: %w", err)
	}

	seen := make(map[string]struct{})
	for _, raw := range encoded {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			continue
		}
		for _, tag := range tags {
			if tag != "" {
				seen[tag] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out, nil
}

// ───── maintenance ─────

func (s *Store) SetHidden(ctx context.Context, url string, hidden bool) (bool, error) {
	value := 0
	if hidden {
		value = 1
	}

	result, err := s.db.ExecContext(ctx, `UPDATE "links" SET hidden = ? WHERE url = ?`, value, url)
	if err != nil {
		return false, fmt.Errorf("failed to update hidden flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*domain.Link, error) {
	var rows []linkRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select links: %w", err)
	}

	links := make([]*domain.Link, 0, len(rows))
	for _, row := range rows {
		link, err := row.toLink()
		if err != nil {
			continue
		}
		links = append(links, link)
	}
	return links, nil
}

func listFilter(params store.ListParams) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if params.Query != "" {
		clauses = append(clauses, `(url LIKE '%' || ? || '%' OR title LIKE '%' || ? || '%')`)
		args = append(args, params.Query, params.Query)
	}
	if params.Tag != "" {
		clauses = append(clauses, `tags LIKE '%' || ? || '%'`)
		args = append(args, params.Tag)
	}
	if params.Hidden != nil {
		value := 0
		if *params.Hidden {
			value = 1
		}
		clauses = append(clauses, `hidden = ?`)
		args = append(args, value)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
