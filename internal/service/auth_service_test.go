package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"storefront/internal/apiclient"
	"storefront/internal/models"
	"storefront/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginThenUserNeedsNoNetwork(t *testing.T) {
	up := newUpstream(t)
	up.handle("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "an@example.com", body.Email)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"token":"acc","refreshToken":"ref","id":12,"username":"an","email":"an@example.com","role":"ROLE_ADMIN","message":"ok"}`))
	})

	tokens := session.NewLocal()
	auth := NewAuthService(up.client(tokens), tokens)

	profile, err := auth.Login(context.Background(), &LoginRequest{Email: "an@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, profile.Role)

	calls := up.calls()
	user, err := auth.User(context.Background())
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(12), user.ID)
	assert.Equal(t, "an", user.Username)
	assert.True(t, user.IsAdmin())
	assert.Equal(t, calls, up.calls())

	access, _ := tokens.AccessToken(context.Background())
	refresh, _ := tokens.RefreshToken(context.Background())
	assert.Equal(t, "acc", access)
	assert.Equal(t, "ref", refresh)
}

func TestLoginWrongPasswordKeepsSignedOut(t *testing.T) {
	up := newUpstream(t)
	up.handle("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Sai email hoặc mật khẩu"}`))
	})
	up.handle("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		t.Error("login failure must not trigger a refresh")
	})

	tokens := session.NewLocal()
	auth := NewAuthService(up.client(tokens), tokens)

	_, err := auth.Login(context.Background(), &LoginRequest{Email: "an@example.com", Password: "wrong"})
	var apiErr *apiclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Sai email hoặc mật khẩu", apiErr.Message)

	user, err := auth.User(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestRegisterPasswordMismatchMakesNoCall(t *testing.T) {
	up := newUpstream(t)
	tokens := session.NewLocal()
	auth := NewAuthService(up.client(tokens), tokens)

	err := auth.Register(context.Background(), &RegisterRequest{
		Username:   "binh",
		Email:      "binh@example.com",
		Password:   "secret1",
		RePassword: "secret2",
	})

	var verr *apiclient.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "repassword")
	assert.Equal(t, 0, up.calls())
}

func TestVerifyRequiresSixDigitOTP(t *testing.T) {
	up := newUpstream(t)
	tokens := session.NewLocal()
	auth := NewAuthService(up.client(tokens), tokens)

	err := auth.Verify(context.Background(), &VerifyRequest{Email: "binh@example.com", OTP: "12ab"})
	assert.Equal(t, apiclient.KindValidation, apiclient.Classify(err))
	assert.Equal(t, 0, up.calls())
}

func TestResetPassword(t *testing.T) {
	up := newUpstream(t)
	var got map[string]string
	up.handle("/auth/reset-password", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	})
	tokens := session.NewLocal()
	auth := NewAuthService(up.client(tokens), tokens)

	err := auth.ResetPassword(context.Background(), &ResetPasswordRequest{
		Email: "binh@example.com", OTP: "123456", NewPassword: "newpass", ConfirmPassword: "newpass",
	})
	require.NoError(t, err)
	assert.Equal(t, "123456", got["otp"])
	assert.Equal(t, "newpass", got["confirmPassword"])
}

func TestLogoutClearsSession(t *testing.T) {
	up := newUpstream(t)
	tokens := signedInStore(t)
	auth := NewAuthService(up.client(tokens), tokens)

	require.NoError(t, auth.Logout(context.Background()))
	require.NoError(t, auth.Logout(context.Background()))

	sess, err := tokens.Session(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}
