// Package session is the Token Store: the single source of truth for the
// access token, refresh token and cached profile of one browsing context.
//
// Every write replaces the whole session object in the backend. Writes that
// update part of a session (a refreshed token, a re-fetched profile) are
// conditional on the refresh token they were made for, so a sign-in that
// lands in between is never overwritten with the previous account's state.
package session

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
)

var (
	// ErrNotFound is returned by backends when no session is stored under an id.
	ErrNotFound = errors.New("session not found")
	// ErrNoSession is returned when an operation needs an existing session.
	ErrNoSession = errors.New("no active session")
	// ErrSessionChanged is returned by conditional writes when the stored
	// session no longer carries the expected refresh token.
	ErrSessionChanged = errors.New("session replaced by a newer sign-in")
)

// Backend persists sessions by browsing-context id.
type Backend interface {
	Load(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, id string, s *models.Session) error
	Delete(ctx context.Context, id string) error
	// CompareAndSwap atomically replaces the session under id with next, or
	// deletes it when next is nil, provided the stored session still has
	// refreshToken. Otherwise, including when nothing is stored, it returns
	// ErrSessionChanged and leaves the backend untouched.
	CompareAndSwap(ctx context.Context, id, refreshToken string, next *models.Session) error
}

// Store is the Token Store bound to one browsing context.
type Store struct {
	id      string
	backend Backend
}

// NewStore binds a backend to the browsing context id.
func NewStore(backend Backend, id string) *Store {
	return &Store{id: id, backend: backend}
}

// NewLocal returns a store over a private in-memory backend, for single-session
// SDK use where there is exactly one browsing context.
func NewLocal() *Store {
	return NewStore(NewMemory(), "local")
}

// ID returns the browsing-context id.
func (s *Store) ID() string {
	return s.id
}

// SetSession overwrites any prior session with the three pieces of state.
func (s *Store) SetSession(ctx context.Context, accessToken, refreshToken string, user *models.UserProfile) error {
	sess := &models.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if user != nil {
		u := *user
		sess.User = &u
	}
	if err := s.backend.Save(ctx, s.id, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Session returns a copy of the current session, or nil when none exists.
func (s *Store) Session(ctx context.Context) (*models.Session, error) {
	sess, err := s.backend.Load(ctx, s.id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return sess.Clone(), nil
}

// Active reports whether a session with an access token exists.
func (s *Store) Active(ctx context.Context) (bool, error) {
	sess, err := s.Session(ctx)
	if err != nil {
		return false, err
	}
	return sess != nil && sess.AccessToken != "", nil
}

// User returns the cached profile or nil. It never calls the network.
func (s *Store) User(ctx context.Context) (*models.UserProfile, error) {
	sess, err := s.Session(ctx)
	if err != nil || sess == nil {
		return nil, err
	}
	return sess.User, nil
}

// AccessToken returns the current access token, empty when signed out.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	sess, err := s.Session(ctx)
	if err != nil || sess == nil {
		return "", err
	}
	return sess.AccessToken, nil
}

// RefreshToken returns the current refresh token, empty when signed out.
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	sess, err := s.Session(ctx)
	if err != nil || sess == nil {
		return "", err
	}
	return sess.RefreshToken, nil
}

// SetAccessToken stores a refreshed access token for the session that owns
// refreshToken. The refresh token and profile are kept. It returns
// ErrSessionChanged when the context signed in again meanwhile.
func (s *Store) SetAccessToken(ctx context.Context, refreshToken, accessToken string) error {
	return s.update(ctx, refreshToken, func(sess *models.Session) {
		sess.AccessToken = accessToken
	})
}

// SetUser replaces the cached profile of the session that owns refreshToken,
// keeping the tokens.
func (s *Store) SetUser(ctx context.Context, refreshToken string, user *models.UserProfile) error {
	return s.update(ctx, refreshToken, func(sess *models.Session) {
		sess.User = nil
		if user != nil {
			u := *user
			sess.User = &u
		}
	})
}

// EndSession clears the session only while it still belongs to refreshToken.
func (s *Store) EndSession(ctx context.Context, refreshToken string) error {
	if _, err := s.owned(ctx, refreshToken); err != nil {
		return err
	}
	if err := s.backend.CompareAndSwap(ctx, s.id, refreshToken, nil); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, refreshToken string, mutate func(*models.Session)) error {
	sess, err := s.owned(ctx, refreshToken)
	if err != nil {
		return err
	}
	mutate(sess)
	if err := s.backend.CompareAndSwap(ctx, s.id, refreshToken, sess); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (s *Store) owned(ctx context.Context, refreshToken string) (*models.Session, error) {
	sess, err := s.Session(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoSession
	}
	if sess.RefreshToken != refreshToken {
		return nil, ErrSessionChanged
	}
	return sess, nil
}

// Logout clears all session state. It is idempotent.
func (s *Store) Logout(ctx context.Context) error {
	err := s.backend.Delete(ctx, s.id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
