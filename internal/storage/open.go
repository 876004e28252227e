package storage

import (
	"context"
	"fmt"
)

// Backend kinds selectable by configuration.
const (
	KindSQLite = "sqlite"
	KindRedis  = "redis"
	KindMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Kind       string
	SQLitePath string
	RedisURL   string
}

// Open creates the backend described by opts.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Kind {
	case KindSQLite, "":
		return NewSQLiteBackend(opts.SQLitePath)
	case KindRedis:
		return NewRedisBackend(ctx, opts.RedisURL)
	case KindMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Kind)
	}
}
