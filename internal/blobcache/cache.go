// Package blobcache stores large per-link payloads (source bodies and
// extracted text) outside the link database.
package blobcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

const (
	sourcePrefix = "src!"
	textPrefix   = "txt!"
)

// ErrCorrupt is returned when stored content no longer matches its digest.
var ErrCorrupt = errors.New("blob content does not match its digest")

// Cache is a content-addressed key/value store without eviction.
type Cache interface {
	// Read returns the blob stored under key. A miss is (nil, false, nil).
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, data []byte) error
	Ping(ctx context.Context) error
}

// SourceKey is the key of a link's fetched body.
func SourceKey(url string) string { return sourcePrefix + url }

// TextKey is the key of a link's extracted text.
func TextKey(url string) string { return textPrefix + url }

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
