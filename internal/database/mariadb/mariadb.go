// Package mariadb implements the key-value store on a MariaDB/MySQL table,
// for installations sharing the expense tracker's existing database.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"
)

const (
	dialTimeout = 5 * time.Second
	pingTimeout = 10 * time.Second
)

const createKVTable = `
	CREATE TABLE IF NOT EXISTS faceauth_kv (
		store_key  VARCHAR(255) NOT NULL PRIMARY KEY,
		value      MEDIUMBLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) CHARACTER SET utf8mb4`

// Pool is a MariaDB connection pool holding the faceauth_kv table.
type Pool struct {
	db *sql.DB
}

// driverConfig parses dsn and applies the settings faceauth relies on
// whatever the DSN says: parsed UTC timestamps and bounded dialing.
func driverConfig(dsn string) (*mysql.Config, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.Timeout == 0 {
		cfg.Timeout = dialTimeout
	}
	return cfg, nil
}

// NewPool connects and creates the key-value table when missing.
func NewPool(dsn string) (*Pool, error) {
	cfg, err := driverConfig(dsn)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB at %s: %w", cfg.Addr, err)
	}
	if _, err := db.ExecContext(ctx, createKVTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create faceauth_kv table: %w", err)
	}

	log.WithFields(log.Fields{"addr": cfg.Addr, "database": cfg.DBName}).Debug("Connected to MariaDB")
	return &Pool{db: db}, nil
}

func (p *Pool) Close() error {
	if p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}
