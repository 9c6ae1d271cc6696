package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/linkdump/internal/codec"
	"github.com/MrSnakeDoc/linkdump/internal/domain"
)

// linkRow mirrors one row of the links table.
type linkRow struct {
	URL           string         `db:"url"`
	Title         sql.NullString `db:"title"`
	Tags          sql.NullString `db:"tags"`
	Via           sql.NullString `db:"via"`
	Notes         sql.NullString `db:"notes"`
	FoundAt       sql.NullInt64  `db:"found_at"`
	ReadAt        sql.NullInt64  `db:"read_at"`
	PublishedAt   sql.NullInt64  `db:"published_at"`
	FromFilename  sql.NullString `db:"from_filename"`
	Image         sql.NullString `db:"image"`
	Src           []byte         `db:"src"`
	ExtractedText sql.NullString `db:"extracted_text"`
	Meta          sql.NullString `db:"meta"`
	LastFetched   sql.NullInt64  `db:"last_fetched"`
	LastProcessed sql.NullInt64  `db:"last_processed"`
	HTTPHeaders   []byte         `db:"http_headers"`
	Hidden        sql.NullInt64  `db:"hidden"`
}

// toLink decodes a row. Undecodable optional columns are dropped rather
// than failing the whole row.
func (r linkRow) toLink() (*domain.Link, error) {
	link := domain.NewLink(r.URL)

	link.Title = nullString(r.Title)
	link.Notes = nullString(r.Notes)
	link.FromFilename = nullString(r.FromFilename)
	link.Image = nullString(r.Image)
	link.ExtractedText = nullString(r.ExtractedText)

	link.FoundAt = fromMillis(r.FoundAt)
	link.ReadAt = fromMillis(r.ReadAt)
	link.PublishedAt = fromMillis(r.PublishedAt)
	link.LastFetched = fromMillis(r.LastFetched)
	link.LastProcessed = fromMillis(r.LastProcessed)
	link.Hidden = r.Hidden.Valid && r.Hidden.Int64 != 0

	if r.Tags.Valid && r.Tags.String != "" {
		if err := json.Unmarshal([]byte(r.Tags.String), &link.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags of %s: %w", r.URL, err)
		}
	}

	if r.Via.Valid && r.Via.String != "" && r.Via.String != "null" {
		var via domain.Via
		if err := json.Unmarshal([]byte(r.Via.String), &via); err == nil {
			link.Via = &via
		}
	}

	if r.Meta.Valid && r.Meta.String != "" {
		var meta map[string][]string
		if err := json.Unmarshal([]byte(r.Meta.String), &meta); err == nil {
			link.Meta = meta
		}
	}

	if r.Src != nil {
		if src, err := codec.Decompress(r.Src); err == nil {
			link.Src = src
		}
	}

	if r.HTTPHeaders != nil {
		if raw, err := codec.Decompress(r.HTTPHeaders); err == nil {
			var headers map[string][]string
			if err := json.Unmarshal(raw, &headers); err == nil {
				link.HTTPHeaders = headers
			}
		}
	}

	return link, nil
}

// writeArgs are the bound parameters of the upsert, in column order.
func writeArgs(link *domain.Link) ([]any, error) {
	tags, err := json.Marshal(link.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	var via any
	if link.Via != nil {
		raw, err := json.Marshal(link.Via)
		if err != nil {
			return nil, fmt.Errorf("failed to encode via: %w", err)
		}
		via = string(raw)
	}

	var meta any
	if link.Meta != nil {
		raw, err := json.Marshal(link.Meta)
		if err != nil {
			return nil, fmt.Errorf("failed to encode meta: %w", err)
		}
		meta = string(raw)
	}

	var src any
	if link.Src != nil {
		packed, err := codec.Compress(link.Src)
		if err != nil {
			return nil, err
		}
		src = packed
	}

	var headers any
	if link.HTTPHeaders != nil {
		raw, err := json.Marshal(link.HTTPHeaders)
		if err != nil {
			return nil, fmt.Errorf("failed to encode http headers: %w", err)
		}
		packed, err := codec.Compress(raw)
		if err != nil {
			return nil, err
		}
		headers = packed
	}

	hidden := 0
	if link.Hidden {
		hidden = 1
	}

	return []any{
		link.URL,
		ptrValue(link.Title),
		string(tags),
		via,
		ptrValue(link.Notes),
		toMillis(link.FoundAt),
		toMillis(link.ReadAt),
		toMillis(link.PublishedAt),
		ptrValue(link.FromFilename),
		ptrValue(link.Image),
		src,
		ptrValue(link.ExtractedText),
		meta,
		toMillis(link.LastFetched),
		toMillis(link.LastProcessed),
		headers,
		hidden,
	}, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func ptrValue(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func toMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
