package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// KeyValueRepository provides PostgreSQL-backed key-value storage
type KeyValueRepository struct {
	pool *Pool
}

// NewKeyValueRepository creates a new PostgreSQL key-value repository
func NewKeyValueRepository(pool *Pool) *KeyValueRepository {
	return &KeyValueRepository{pool: pool}
}

// Get returns the value stored under key, or nil
func (r *KeyValueRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.pool.queryRow(ctx, "SELECT value FROM kv_store WHERE store_key = $1", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Set upserts value under key
func (r *KeyValueRepository) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (store_key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (store_key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.pool.exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key
func (r *KeyValueRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.pool.exec(ctx, "DELETE FROM kv_store WHERE store_key = $1", key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
