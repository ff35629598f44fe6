package redisclient

import (
	"context"
	"testing"
	"time"

	"storefront/internal/models"
	"storefront/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, ttl time.Duration) (*Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client, err := NewClient(mr.Addr(), "", 0, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestSaveLoadDelete(t *testing.T) {
	client, mr := newTestClient(t, 0)
	ctx := context.Background()

	_, err := client.Load(ctx, "tab-1")
	assert.ErrorIs(t, err, session.ErrNotFound)

	sess := &models.Session{
		AccessToken:  "a",
		RefreshToken: "r",
		User:         &models.UserProfile{ID: 9, Username: "mai", Role: models.RoleAdmin},
	}
	require.NoError(t, client.Save(ctx, "tab-1", sess))
	assert.True(t, mr.Exists("session:tab-1"))

	loaded, err := client.Load(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, sess, loaded)

	require.NoError(t, client.Delete(ctx, "tab-1"))
	require.NoError(t, client.Delete(ctx, "tab-1"))
	_, err = client.Load(ctx, "tab-1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSaveAppliesTTL(t *testing.T) {
	client, mr := newTestClient(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, client.Save(ctx, "tab-2", &models.Session{AccessToken: "a"}))
	assert.Equal(t, time.Hour, mr.TTL("session:tab-2"))

	mr.FastForward(2 * time.Hour)
	_, err := client.Load(ctx, "tab-2")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestTokenStoreOverRedis(t *testing.T) {
	client, _ := newTestClient(t, 0)
	ctx := context.Background()
	store := session.NewStore(client, "tab-3")

	require.NoError(t, store.SetSession(ctx, "a", "r", &models.UserProfile{ID: 1}))
	require.NoError(t, store.SetAccessToken(ctx, "r", "a2"))

	sess, err := store.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a2", sess.AccessToken)
	assert.Equal(t, "r", sess.RefreshToken)

	require.NoError(t, store.Logout(ctx))
	user, err := store.User(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestCompareAndSwapChecksRefreshToken(t *testing.T) {
	client, mr := newTestClient(t, time.Hour)
	ctx := context.Background()

	err := client.CompareAndSwap(ctx, "tab-4", "r", &models.Session{AccessToken: "a"})
	assert.ErrorIs(t, err, session.ErrSessionChanged)
	assert.False(t, mr.Exists("session:tab-4"))

	require.NoError(t, client.Save(ctx, "tab-4", &models.Session{AccessToken: "b", RefreshToken: "refresh-b"}))

	err = client.CompareAndSwap(ctx, "tab-4", "refresh-a", &models.Session{AccessToken: "a2", RefreshToken: "refresh-a"})
	assert.ErrorIs(t, err, session.ErrSessionChanged)
	loaded, err := client.Load(ctx, "tab-4")
	require.NoError(t, err)
	assert.Equal(t, "b", loaded.AccessToken)

	require.NoError(t, client.CompareAndSwap(ctx, "tab-4", "refresh-b", &models.Session{AccessToken: "b2", RefreshToken: "refresh-b"}))
	loaded, err = client.Load(ctx, "tab-4")
	require.NoError(t, err)
	assert.Equal(t, "b2", loaded.AccessToken)
	assert.Equal(t, time.Hour, mr.TTL("session:tab-4"))

	assert.ErrorIs(t, client.CompareAndSwap(ctx, "tab-4", "refresh-a", nil), session.ErrSessionChanged)
	require.NoError(t, client.CompareAndSwap(ctx, "tab-4", "refresh-b", nil))
	assert.False(t, mr.Exists("session:tab-4"))
}
