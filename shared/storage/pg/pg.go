// Package pg provides core PostgreSQL database primitives for storage layers.
//
// Core Components:
//   - Querier: Interface for transaction-agnostic database operations
//   - WithTx: Helper for managing database transactions
//   - Connect: Configurable database connection establishment with retry
//   - UniqueViolation, ForeignKeyViolation: lib/pq error inspection for constraint mapping
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/itchan-dev/bbs/shared/config"
	"github.com/itchan-dev/bbs/shared/logger"
	"github.com/jpillora/backoff"
	"github.com/lib/pq"
)

// Querier is satisfied by both *sql.DB (single operations on the pool) and
// *sql.Tx (operations within a transaction), so the same query code serves
// both.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ConnectionConfig holds database connection pool settings.
type ConnectionConfig struct {
	MaxOpenConns    int           // Maximum number of open connections to the database
	MaxIdleConns    int           // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration // Maximum amount of time a connection may be reused
	ConnMaxIdleTime time.Duration // Maximum amount of time a connection may be idle
}

// DefaultConnectionConfig returns pool settings for the API server.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// LightweightConnectionConfig returns conservative settings for CLI tools.
func LightweightConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// Connect opens the configured database and pings it, retrying with
// exponential backoff up to cfg.Private.Pg.ConnectAttempts times.
//
// Example:
//
//	cfg := config.MustLoad("config")
//	db, err := pg.Connect(ctx, cfg, pg.DefaultConnectionConfig())
//	if err != nil {
//	    log.Fatalf("Failed to connect: %v", err)
//	}
//	defer db.Close()
func Connect(ctx context.Context, cfg *config.Config, connCfg ConnectionConfig) (*sql.DB, error) {
	return ConnectDSN(ctx, cfg.Private.Pg.DSN(), cfg.Private.Pg.ConnectAttempts, connCfg)
}

// ConnectDSN is Connect with an explicit connection string.
func ConnectDSN(ctx context.Context, dsn string, attempts int, connCfg ConnectionConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(connCfg.MaxOpenConns)
	db.SetMaxIdleConns(connCfg.MaxIdleConns)
	db.SetConnMaxLifetime(connCfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(connCfg.ConnMaxIdleTime)

	if attempts < 1 {
		attempts = 1
	}
	boff := backoff.Backoff{
		Min: 200 * time.Millisecond,
		Max: 5 * time.Second,
	}
	for {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if int(boff.Attempt())+1 >= attempts {
			break
		}
		dur := boff.Duration()
		logger.Log.Warn("database not ready, retrying", "error", err, "retry_in", dur, "attempt", int(boff.Attempt()))

		timer := time.NewTimer(dur)
		select {
		case <-ctx.Done():
			timer.Stop()
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", ctx.Err())
		case <-timer.C:
		}
	}

	db.Close()
	return nil, fmt.Errorf("failed to ping database: %w", err)
}

// WithTx executes fn within a database transaction. The transaction is rolled
// back if fn returns an error and committed otherwise.
//
// Usage:
//
//	err := pg.WithTx(ctx, db, func(tx *sql.Tx) error {
//	    if err := someOperation(tx, data); err != nil {
//	        return err // Triggers rollback
//	    }
//	    return nil // Triggers commit
//	})
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if transaction is already committed

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UniqueViolation returns the violated constraint name when err is a
// unique_violation (SQLSTATE 23505).
func UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	return "", false
}

// ForeignKeyViolation reports whether err is a foreign_key_violation
// (SQLSTATE 23503).
func ForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
