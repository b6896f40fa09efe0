package kv

import (
	"context"
	"strings"
)

// Options selects a backend. Postgres wins over SQLite; with neither set the store is in-memory.
type Options struct {
	DatabaseURL string
	SQLitePath  string
}

// NewStore creates the configured backend.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	if url := strings.TrimSpace(opts.DatabaseURL); url != "" {
		return NewPostgresStore(ctx, url)
	}
	if path := strings.TrimSpace(opts.SQLitePath); path != "" {
		return NewSQLiteStore(path)
	}
	return NewMemoryStore(), nil
}

// Backend names the backend NewStore would pick for opts.
func Backend(opts Options) string {
	switch {
	case strings.TrimSpace(opts.DatabaseURL) != "":
		return "postgres"
	case strings.TrimSpace(opts.SQLitePath) != "":
		return "sqlite"
	default:
		return "memory"
	}
}
