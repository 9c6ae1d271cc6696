package blobcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var _ Cache = (*FS)(nil)

// FS keeps blobs on disk. Content lives under content/<aa>/<sha256> and
// each key has an index entry holding the digest of its current content,
// so identical bodies are stored once.
type FS struct {
	root string
}

// NewFS prepares root for use.
func NewFS(root string) (*FS, error) {
	for _, dir := range []string{"index", "content"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	return &FS{root: root}, nil
}

// Root returns the cache directory.
func (c *FS) Root() string { return c.root }

func (c *FS) Read(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	ref, err := os.ReadFile(c.indexPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache index: %w", err)
	}

	sum := strings.TrimSpace(string(ref))
	data, err := os.ReadFile(c.contentPath(sum))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache content: %w", err)
	}

	if digest(data) != sum {
		return nil, false, fmt.Errorf("%s: %w", key, ErrCorrupt)
	}
	return data, true, nil
}

func (c *FS) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sum := digest(data)
	content := c.contentPath(sum)
	if _, err := os.Stat(content); errors.Is(err, fs.ErrNotExist) {
		if err := writeAtomic(content, data); err != nil {
			return fmt.Errorf("failed to write cache content: %w", err)
		}
	}

	if err := writeAtomic(c.indexPath(key), []byte(sum)); err != nil {
		return fmt.Errorf("failed to write cache index: %w", err)
	}
	return nil
}

func (c *FS) Ping(context.Context) error {
	info, err := os.Stat(c.root)
	if err != nil {
		return fmt.Errorf("cache directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cache root %s is not a directory", c.root)
	}
	return nil
}

func (c *FS) indexPath(key string) string {
	h := digest([]byte(key))
	return filepath.Join(c.root, "index", h[:2], h)
}

func (c *FS) contentPath(sum string) string {
	prefix := "00"
	if len(sum) >= 2 {
		prefix = sum[:2]
	}
	return filepath.Join(c.root, "content", prefix, sum)
}

// writeAtomic writes through a temp file in the target directory and
// renames it into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
