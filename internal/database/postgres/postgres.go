// Package postgres implements storage on PostgreSQL: the key-value store,
// a pgvector mirror of the face template and persistent web sessions.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/faceauth/internal/config"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

const (
	// connectAttempts covers a database container that starts after faceauth.
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
	pingTimeout     = 10 * time.Second
)

var errNoURL = errors.New("database URL is required")

// Pool is the connection pool shared by the repositories of this package.
type Pool struct {
	db *sql.DB
}

// NewPool opens the database and checks it is reachable. It does not retry.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errNoURL
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	p := &Pool{db: db}
	if err := p.Ping(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// Open connects with retries and applies pending migrations.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err := NewPool(cfg)
		if err == nil {
			if err := pool.Migrate(ctx); err != nil {
				_ = pool.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			return pool, nil
		}
		if errors.Is(err, errNoURL) {
			return nil, err
		}
		lastErr = err

		if attempt == connectAttempts {
			break
		}
		wait := connectBackoff * time.Duration(attempt)
		log.WithError(err).WithFields(log.Fields{
			"attempt": attempt,
			"retry":   wait,
		}).Warn("PostgreSQL not reachable yet")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", connectAttempts, lastErr)
}

// Ping checks the database answers within pingTimeout.
func (p *Pool) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

func (p *Pool) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

func (p *Pool) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return rows, nil
}

func (p *Pool) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing statement: %w", err)
	}
	return result, nil
}

// withTx runs fn in a transaction that is committed when fn returns nil.
func (p *Pool) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
