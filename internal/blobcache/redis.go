package blobcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkdump/internal/codec"
)

var _ Cache = (*Redis)(nil)

// Redis keeps blobs in Redis, zstd-compressed and deduplicated by digest.
// Entries never expire.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps a connected client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (c *Redis) Read(ctx context.Context, key string) ([]byte, bool, error) {
	sum, err := c.client.Get(ctx, IndexKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Cache miss
		}
		return nil, false, fmt.Errorf("failed to read cache index: %w", err)
	}

	packed, err := c.client.Get(ctx, ContentKey(sum)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache content: %w", err)
	}

	data, err := codec.Decompress(packed)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", key, err)
	}
	if digest(data) != sum {
		return nil, false, fmt.Errorf("%s: %w", key, ErrCorrupt)
	}
	return data, true, nil
}

func (c *Redis) Write(ctx context.Context, key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}

	packed, err := codec.Compress(data)
	if err != nil {
		return err
	}

	sum := digest(data)
	pipe := c.client.TxPipeline()
	pipe.SetNX(ctx, ContentKey(sum), packed, 0)
	pipe.Set(ctx, IndexKey(key), sum, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (c *Redis) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis cache unavailable: %w", err)
	}
	return nil
}
