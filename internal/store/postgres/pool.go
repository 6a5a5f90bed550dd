// Package postgres is the transactional persistence layer: connection
// pooling, schema bootstrap, category resolution and the batch write
// coordinator.
package postgres

import (
	"context"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Beginner is the slice of pgxpool.Pool the coordinator needs; tests
// substitute a fake.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NewPool opens a pgx connection pool against the configured database URL
// and verifies connectivity with a ping. Every connection registers the
// shopspring decimal codec so NUMERIC columns round-trip without float
// conversion.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse database URL: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, classifyError("connect", fmt.Errorf("postgres: create pool: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classifyError("ping", fmt.Errorf("postgres: ping: %w", err))
	}
	return pool, nil
}
