package service

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRefreshesCachedUserAndKeepsTokens(t *testing.T) {
	up := newUpstream(t)
	up.handle("/users/profile", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"userId":9,"username":"minh","email":"minh@example.com","role":"CUSTOMER","phoneNumber":"0912345678","address":"Ha Noi","avatar":"https://cdn/a.png"}`))
	})

	tokens := signedInStore(t)
	users := NewUserService(up.client(tokens), tokens)

	profile, err := users.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/a.png", profile.AvatarURL)

	cached, err := tokens.User(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ha Noi", cached.Address)

	access, _ := tokens.AccessToken(context.Background())
	assert.Equal(t, "access-1", access)
}

func TestProfileFetchedBeforeSignInIsNotCached(t *testing.T) {
	up := newUpstream(t)
	tokens := signedInStore(t)
	up.handle("/users/profile", func(w http.ResponseWriter, r *http.Request) {
		// another account signs in on this context while the request is in flight
		require.NoError(t, tokens.SetSession(context.Background(), "access-2", "refresh-2",
			&models.UserProfile{ID: 12, Username: "thu", Role: models.RoleCustomer}))
		_, _ = w.Write([]byte(`{"userId":9,"username":"minh","role":"CUSTOMER","address":"Ha Noi"}`))
	})
	users := NewUserService(up.client(tokens), tokens)

	profile, err := users.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), profile.ID)

	cached, err := tokens.User(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "thu", cached.Username)
}

func TestUpdateProfileNeverSendsRole(t *testing.T) {
	up := newUpstream(t)
	var body map[string]interface{}
	up.handle("/users/profile", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"userId":9,"username":"minh","role":"CUSTOMER","address":"Da Nang"}`))
	})

	tokens := signedInStore(t)
	users := NewUserService(up.client(tokens), tokens)

	profile, err := users.UpdateProfile(context.Background(), &models.UserUpdateRequest{Address: "Da Nang", Role: "ADMIN"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, profile.Role)
	_, hasRole := body["role"]
	assert.False(t, hasRole)
}

func TestContactReturnsServerText(t *testing.T) {
	up := newUpstream(t)
	up.handle("/users/contact", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Đã gửi tin nhắn thành công!"))
	})

	tokens := signedInStore(t)
	users := NewUserService(up.client(tokens), tokens)

	reply, err := users.Contact(context.Background(), &models.ContactRequest{Name: "Minh", Email: "minh@example.com", Message: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "Đã gửi tin nhắn thành công!", reply)
}

func TestAllUsersDefaultsPaging(t *testing.T) {
	up := newUpstream(t)
	up.handle("/users", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("page"))
		assert.Equal(t, "12", r.URL.Query().Get("size"))
		assert.Equal(t, "lan", r.URL.Query().Get("keyword"))
		_, _ = w.Write([]byte(`{"content":[{"userId":1,"username":"lan"}],"totalPages":1,"totalElements":1,"size":12,"number":0}`))
	})

	tokens := signedInStore(t)
	users := NewUserService(up.client(tokens), tokens)

	page, err := users.AllUsers(context.Background(), -1, 0, "lan")
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "lan", page.Content[0].Username)
}
