package service

import (
	"context"
	"fmt"
	"net/http"

	"storefront/internal/apiclient"
	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// AuthService signs users in and out of one browsing context
type AuthService struct {
	api    API
	tokens *session.Store
	logger *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(api API, tokens *session.Store) *AuthService {
	return &AuthService{
		api:    api,
		tokens: tokens,
		logger: util.SessionLogger(tokens.ID()),
	}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token        string `json:"token"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ID           int64  `json:"id"`
	UserID       int64  `json:"userId"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	Message      string `json:"message"`
}

type RegisterRequest struct {
	Username   string `json:"username" validate:"required,min=3,max=50"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	RePassword string `json:"repassword" validate:"required,eqfield=Password"`
}

type VerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type ResetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	OTP             string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

// Login exchanges credentials for a session and stores it. The profile is
// cached, so User afterwards needs no network call.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*models.UserProfile, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var resp loginResponse
	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   req,
		Public: true,
	}, &resp)
	if err != nil {
		return nil, err
	}

	token := resp.Token
	if token == "" {
		token = resp.AccessToken
	}
	if token == "" {
		return nil, fmt.Errorf("login response carried no token")
	}

	id := resp.ID
	if id == 0 {
		id = resp.UserID
	}
	profile := &models.UserProfile{
		ID:       id,
		Username: resp.Username,
		Email:    resp.Email,
		Role:     models.ParseRole(resp.Role),
	}

	if err := s.tokens.SetSession(ctx, token, resp.RefreshToken, profile); err != nil {
		return nil, err
	}

	s.logger.Info("User signed in", zap.Int64("user_id", id), zap.String("role", string(profile.Role)))
	return profile, nil
}

// Register creates an inactive account; the user then verifies the emailed OTP.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) error {
	ctx, span := util.StartSpan(ctx, "AuthService.Register")
	defer span.End()

	if err := validateStruct(req); err != nil {
		return err
	}
	return s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body:   req,
		Public: true,
	}, nil)
}

// Verify activates an account with the OTP sent at registration.
func (s *AuthService) Verify(ctx context.Context, req *VerifyRequest) error {
	ctx, span := util.StartSpan(ctx, "AuthService.Verify")
	defer span.End()

	if err := validateStruct(req); err != nil {
		return err
	}
	return s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/verify",
		Body:   req,
		Public: true,
	}, nil)
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	ctx, span := util.StartSpan(ctx, "AuthService.ForgotPassword")
	defer span.End()

	req := struct {
		Email string `json:"email" validate:"required,email"`
	}{Email: email}
	if err := validateStruct(req); err != nil {
		return err
	}
	return s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/forgot-password",
		Body:   req,
		Public: true,
	}, nil)
}

func (s *AuthService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	ctx, span := util.StartSpan(ctx, "AuthService.ResetPassword")
	defer span.End()

	if err := validateStruct(req); err != nil {
		return err
	}
	return s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/reset-password",
		Body:   req,
		Public: true,
	}, nil)
}

// Logout clears the session. Safe to call when already signed out.
func (s *AuthService) Logout(ctx context.Context) error {
	if err := s.tokens.Logout(ctx); err != nil {
		return err
	}
	s.logger.Info("User signed out")
	return nil
}

// User returns the cached profile, nil when signed out.
func (s *AuthService) User(ctx context.Context) (*models.UserProfile, error) {
	return s.tokens.User(ctx)
}
