package storage

import (
	"context"
	"fmt"
)

// Options selects and locates a storage backend.
type Options struct {
	Driver string
	// DSN is a file path for sqlite and a connection URL for postgres.
	DSN string
}

// Open returns a ready SecretStore. Any failure is reported as ErrUnavailable
// wrapping the underlying cause.
func Open(ctx context.Context, opts Options) (SecretStore, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		s, err := NewSQLiteBackend(ctx, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return s, nil
	case DriverPostgres:
		p, err := NewPostgresBackend(ctx, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", ErrUnavailable, opts.Driver)
	}
}
