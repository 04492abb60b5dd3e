// Package database implements the pooled Postgres/TimescaleDB access
// facade: connection pool lifecycle, bulk bar insert via COPY, and
// prepared upserts for the registry's tables.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotInitialized is returned by any method called before Init, or
// after Close.
var ErrNotInitialized = errors.New("database: not initialized")

// ErrNotFound is returned when a lookup by key finds no row.
var ErrNotFound = errors.New("database: not found")

// DB owns the connection pool for one service (registry or collector).
// Mis-ordered access before Init fails loudly via ErrNotInitialized.
type DB struct {
	pool *pgxpool.Pool
}

// New returns an unopened DB. Call Init before use.
func New() *DB {
	return &DB{}
}

// Init opens the connection pool against dsn. It must be called exactly
// once before any other method.
func (d *DB) Init(ctx context.Context, dsn string) error {
	if dsn == "" {
		return fmt.Errorf("database: DSN is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("database: opening pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("database: pinging pool: %w", err)
	}
	d.pool = pool
	return nil
}

// Close drains the connection pool. Safe to call on an uninitialized DB.
func (d *DB) Close() {
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
}

func (d *DB) requirePool() (*pgxpool.Pool, error) {
	if d.pool == nil {
		return nil, ErrNotInitialized
	}
	return d.pool, nil
}
