package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Open connects to the database named by driver and url and returns an Engine.
// "postgres" uses a pgx pool; "sqlite" and "mysql" use database/sql.
func Open(ctx context.Context, driver, url string, opts PoolOptions) (Engine, error) {
	switch driver {
	case "postgres", "postgresql", "pgx":
		cfg, err := pgxpool.ParseConfig(url)
		if err != nil {
			return nil, fmt.Errorf("parse database url: %w", err)
		}
		if opts.MaxOpenConns > 0 {
			cfg.MaxConns = int32(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			cfg.MinConns = int32(min(opts.MaxIdleConns, opts.MaxOpenConns))
		}
		if opts.ConnMaxLifetime > 0 {
			cfg.MaxConnLifetime = opts.ConnMaxLifetime
		}
		if opts.ConnMaxIdleTime > 0 {
			cfg.MaxConnIdleTime = opts.ConnMaxIdleTime
		}

		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return NewPgEngine(pool), nil

	case "sqlite", "sqlite3", "mysql":
		return OpenSQL(ctx, driver, url, opts)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
