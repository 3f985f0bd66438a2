package storage

import (
	"context"
	"strings"
)

// DefaultSQLitePath is used when no DSN is configured
const DefaultSQLitePath = "portal-chat.db"

// Open picks a backend from the DSN. postgres:// and postgresql:// URLs open
// PostgreSQL; anything else is a SQLite path.
func Open(ctx context.Context, dsn string) (Store, error) {
	if IsPostgresDSN(dsn) {
		pg, err := NewPostgresStorage(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	path := strings.TrimPrefix(dsn, "sqlite://")
	if path == "" {
		path = DefaultSQLitePath
	}
	lite, err := NewSQLiteStorage(path)
	if err != nil {
		return nil, err
	}
	return lite, nil
}

// IsPostgresDSN reports whether Open would use the PostgreSQL backend
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
