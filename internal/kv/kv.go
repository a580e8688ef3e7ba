// Package kv is the small key-value persistence port behind the token store
// and the usage tracker. Values are opaque bytes; callers own the encoding.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/suPer8Hu/ai-debate/internal/config"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: not found")

// Store persists values by key. Set and Remove are durable when they return.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes the key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Closer is implemented by stores holding a connection.
type Closer interface {
	Close() error
}

// Open builds the store selected by cfg.StateBackend.
func Open(cfg config.Config) (Store, error) {
	switch cfg.StateBackend {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0o700); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
		return OpenGorm("sqlite", cfg.StatePath)
	case "mysql":
		return OpenGorm("mysql", cfg.StateDSN)
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisStore(rdb, cfg.RedisPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported state backend: %s", cfg.StateBackend)
	}
}
