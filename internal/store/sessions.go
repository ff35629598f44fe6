package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/session"
)

type sessionRow struct {
	ID           string         `db:"id"`
	AccessToken  string         `db:"access_token"`
	RefreshToken string         `db:"refresh_token"`
	UserProfile  sql.NullString `db:"user_profile"`
	ExpiresAt    sql.NullTime   `db:"expires_at"`
}

// SessionBackend persists sessions in Postgres.
type SessionBackend struct {
	store *Store
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionBackend returns a session backend; a zero ttl never expires rows.
func NewSessionBackend(store *Store, ttl time.Duration) *SessionBackend {
	return &SessionBackend{store: store, ttl: ttl, now: time.Now}
}

// Load retrieves a session by browsing-context id
func (b *SessionBackend) Load(ctx context.Context, id string) (*models.Session, error) {
	var row sessionRow
	err := b.store.db.GetContext(ctx, &row,
		"SELECT id, access_token, refresh_token, user_profile, expires_at FROM storefront_sessions WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if row.ExpiresAt.Valid && !row.ExpiresAt.Time.After(b.now()) {
		return nil, session.ErrNotFound
	}

	sess := &models.Session{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
	}
	if row.UserProfile.Valid && row.UserProfile.String != "" {
		var user models.UserProfile
		if err := json.Unmarshal([]byte(row.UserProfile.String), &user); err != nil {
			return nil, fmt.Errorf("failed to decode user profile: %w", err)
		}
		sess.User = &user
	}
	return sess, nil
}

// Save upserts the whole session row
func (b *SessionBackend) Save(ctx context.Context, id string, s *models.Session) error {
	profile, expiresAt, err := b.encode(s)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO storefront_sessions (id, access_token, refresh_token, user_profile, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			user_profile = EXCLUDED.user_profile,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`

	_, err = b.store.db.ExecContext(ctx, query, id, s.AccessToken, s.RefreshToken, profile, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// CompareAndSwap rewrites or deletes the row only while it still holds
// refreshToken and has not expired.
func (b *SessionBackend) CompareAndSwap(ctx context.Context, id, refreshToken string, next *models.Session) error {
	var (
		res sql.Result
		err error
	)
	if next == nil {
		res, err = b.store.db.ExecContext(ctx,
			"DELETE FROM storefront_sessions WHERE id = $1 AND refresh_token = $2", id, refreshToken)
	} else {
		profile, expiresAt, encErr := b.encode(next)
		if encErr != nil {
			return encErr
		}
		query := `
			UPDATE storefront_sessions SET
				access_token = $3,
				refresh_token = $4,
				user_profile = $5,
				expires_at = $6,
				updated_at = NOW()
			WHERE id = $1 AND refresh_token = $2
				AND (expires_at IS NULL OR expires_at > $7)`
		res, err = b.store.db.ExecContext(ctx, query,
			id, refreshToken, next.AccessToken, next.RefreshToken, profile, expiresAt, b.now())
	}
	if err != nil {
		return fmt.Errorf("failed to swap session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to swap session: %w", err)
	}
	if n == 0 {
		return session.ErrSessionChanged
	}
	return nil
}

func (b *SessionBackend) encode(s *models.Session) (sql.NullString, sql.NullTime, error) {
	var profile sql.NullString
	if s.User != nil {
		raw, err := json.Marshal(s.User)
		if err != nil {
			return profile, sql.NullTime{}, fmt.Errorf("failed to encode user profile: %w", err)
		}
		profile = sql.NullString{String: string(raw), Valid: true}
	}

	var expiresAt sql.NullTime
	if b.ttl > 0 {
		expiresAt = sql.NullTime{Time: b.now().Add(b.ttl), Valid: true}
	}
	return profile, expiresAt, nil
}

// Delete removes a session row
func (b *SessionBackend) Delete(ctx context.Context, id string) error {
	_, err := b.store.db.ExecContext(ctx, "DELETE FROM storefront_sessions WHERE id = $1", id)
	return err
}

// PurgeExpired deletes rows whose expiry has passed and returns how many went.
func (b *SessionBackend) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := b.store.db.ExecContext(ctx,
		"DELETE FROM storefront_sessions WHERE expires_at IS NOT NULL AND expires_at <= $1", b.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return res.RowsAffected()
}
