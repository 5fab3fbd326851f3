// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sudb

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// DefaultPoolSize is used when Config.PoolSize is not positive. The
// daemon and an occasional CLI invocation are the only clients.
const DefaultPoolSize = 4

// Config holds the parameters for opening the database.
type Config struct {
	// Path is the database file. Required.
	Path string

	// PoolSize is the number of pooled connections. Defaults to
	// DefaultPoolSize.
	PoolSize int

	// Logger receives migration and fallback messages. Defaults to a
	// discard logger.
	Logger *slog.Logger
}

// DB is the opened su database. It is safe for concurrent use.
type DB struct {
	pool   *sqlitex.Pool
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the database at cfg.Path and brings
// its schema to the current version.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if cfg.Path == "" {
		return nil, fmt.Errorf("sudb: Path is required")
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("sudb: opening %s: %w", cfg.Path, err)
	}

	db := &DB{pool: pool, path: cfg.Path, logger: logger}
	if err := db.Write(ctx, func(conn *sqlite.Conn) error {
		return migrate(conn, logger)
	}); err != nil {
		pool.Close()
		return nil, fmt.Errorf("sudb: migrating %s: %w", cfg.Path, err)
	}
	logger.Debug("su database opened", "path", cfg.Path, "pool_size", poolSize)
	return db, nil
}

// The daemon writes while the CLI reads, so connections use WAL and
// wait on a busy database instead of failing.
var connPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
}

func prepareConn(conn *sqlite.Conn) error {
	for _, pragma := range connPragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// Close waits for borrowed connections and closes the pool.
func (db *DB) Close() error {
	if err := db.pool.Close(); err != nil {
		return fmt.Errorf("sudb: closing %s: %w", db.path, err)
	}
	return nil
}

// Read runs fn on a pooled connection without a transaction.
func (db *DB) Read(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := db.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sudb: taking connection: %w", err)
	}
	defer db.pool.Put(conn)
	return fn(conn)
}

// Write runs fn inside an IMMEDIATE transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (db *DB) Write(ctx context.Context, fn func(conn *sqlite.Conn) error) (err error) {
	conn, err := db.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sudb: taking connection: %w", err)
	}
	defer db.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("sudb: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	return fn(conn)
}

