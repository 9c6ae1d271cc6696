package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/linkdump/internal/domain"
	"github.com/MrSnakeDoc/linkdump/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkdump/internal/logger"
	"github.com/MrSnakeDoc/linkdump/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type linkResponse struct {
	URL         string      `json:"url"`
	Title       *string     `json:"title,omitempty"`
	Tags        []string    `json:"tags"`
	Via         *domain.Via `json:"via,omitempty"`
	Notes       *string     `json:"notes,omitempty"`
	FoundAt     *time.Time  `json:"found_at,omitempty"`
	ReadAt      *time.Time  `json:"read_at,omitempty"`
	PublishedAt *time.Time  `json:"published_at,omitempty"`
	Image       *string     `json:"image,omitempty"`
	Hidden      bool        `json:"hidden"`
}

type linksResponse struct {
	Total  int            `json:"total"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
	Links  []linkResponse `json:"links"`
}

// Links pages through stored links, newest first.
// Query parameters: q (url or title substring), tag, hidden, offset, limit.
func Links(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		params := store.ListParams{
			Query:  strings.TrimSpace(q.Get("q")),
			Tag:    strings.TrimSpace(q.Get("tag")),
			Offset: atoiOr(q.Get("offset"), 0),
			Limit:  atoiOr(q.Get("limit"), defaultPageSize),
		}
		if params.Limit <= 0 || params.Limit > maxPageSize {
			params.Limit = defaultPageSize
		}
		if params.Offset < 0 {
			params.Offset = 0
		}
		if v := q.Get("hidden"); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				params.Hidden = &b
			}
		} else {
			visible := false
			params.Hidden = &visible
		}

		links, err := d.Store.List(r.Context(), params)
		if err != nil {
			d.Logger.Error("failed to list links", logger.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		total, err := d.Store.Count(r.Context(), params)
		if err != nil {
			d.Logger.Error("failed to count links", logger.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		resp := linksResponse{
			Total:  total,
			Offset: params.Offset,
			Limit:  params.Limit,
			Links:  make([]linkResponse, 0, len(links)),
		}
		for _, l := range links {
			resp.Links = append(resp.Links, linkResponse{
				URL:         l.URL,
				Title:       l.Title,
				Tags:        l.Tags.Sorted(),
				Via:         l.Via,
				Notes:       l.Notes,
				FoundAt:     l.FoundAt,
				ReadAt:      l.ReadAt,
				PublishedAt: l.PublishedAt,
				Image:       l.Image,
				Hidden:      l.Hidden,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
