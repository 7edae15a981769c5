package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/faceauth/internal/web/middleware"
)

// SessionRepository persists face login sessions so they survive a restart.
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const upsertSession = `
	INSERT INTO sessions (id, username, created_at, expires_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET
		username = EXCLUDED.username,
		created_at = EXCLUDED.created_at,
		expires_at = EXCLUDED.expires_at`

func (r *SessionRepository) Save(ctx context.Context, id, username string, createdAt, expiresAt time.Time) error {
	if _, err := r.pool.exec(ctx, upsertSession, id, username, createdAt, expiresAt); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get returns the session, or nil when it is unknown or expired.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*middleware.StoredSession, error) {
	var s middleware.StoredSession
	err := r.pool.queryRow(ctx,
		"SELECT id, username, created_at, expires_at FROM sessions WHERE id = $1 AND expires_at > NOW()",
		sessionID,
	).Scan(&s.ID, &s.Username, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	_, err := r.deleteWhere(ctx, "id = $1", sessionID)
	return err
}

func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	return r.deleteWhere(ctx, "expires_at <= NOW()")
}

// DeleteOtherUsers removes the sessions of everyone but username, used when
// a new face registration replaces the previous one.
func (r *SessionRepository) DeleteOtherUsers(ctx context.Context, username string) (int64, error) {
	return r.deleteWhere(ctx, "username <> $1", username)
}

func (r *SessionRepository) deleteWhere(ctx context.Context, cond string, args ...any) (int64, error) {
	result, err := r.pool.exec(ctx, "DELETE FROM sessions WHERE "+cond, args...)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return count, nil
}
