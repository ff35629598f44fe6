package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/session"

	"github.com/go-redis/redis/v8"
)

const (
	sessionKeyPrefix = "session:"
	// optimistic transactions give up after this many WATCH conflicts
	maxSwapAttempts = 3
)

// Client is a Redis-backed session backend. Sessions survive process
// restarts and are shared by every storefront replica.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient creates a new Redis client. A zero ttl stores sessions without expiry.
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks connectivity, used by the readiness check.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Load reads the whole session object stored under id.
func (c *Client) Load(ctx context.Context, id string) (*models.Session, error) {
	raw, err := c.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session failed: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

// Save replaces the session object in one SET, resetting its TTL.
func (c *Client) Save(ctx context.Context, id string, s *models.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := c.rdb.Set(ctx, sessionKey(id), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session failed: %w", err)
	}
	return nil
}

// Delete removes the session. Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, sessionKey(id)).Err()
}

// CompareAndSwap replaces or deletes the session under WATCH, so a write that
// races with a new sign-in on another replica fails instead of merging.
func (c *Client) CompareAndSwap(ctx context.Context, id, refreshToken string, next *models.Session) error {
	key := sessionKey(id)

	var raw []byte
	if next != nil {
		var err error
		if raw, err = json.Marshal(next); err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
	}

	swap := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return session.ErrSessionChanged
		}
		if err != nil {
			return err
		}
		var sess models.Session
		if err := json.Unmarshal(current, &sess); err != nil {
			return fmt.Errorf("failed to decode session: %w", err)
		}
		if sess.RefreshToken != refreshToken {
			return session.ErrSessionChanged
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, raw, c.ttl)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		err := c.rdb.Watch(ctx, swap, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, session.ErrSessionChanged) {
			return fmt.Errorf("redis session swap failed: %w", err)
		}
		return err
	}
	return session.ErrSessionChanged
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
