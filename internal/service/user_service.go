package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"storefront/internal/apiclient"
	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// UserService manages the signed-in user's profile and, for admins, all users
type UserService struct {
	api    API
	tokens *session.Store
	logger *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(api API, tokens *session.Store) *UserService {
	return &UserService{api: api, tokens: tokens, logger: util.SessionLogger(tokens.ID())}
}

// Profile fetches the current profile and caches it in the session.
func (s *UserService) Profile(ctx context.Context) (*models.UserProfile, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Profile")
	defer span.End()

	owner, err := s.tokens.RefreshToken(ctx)
	if err != nil {
		return nil, err
	}
	var resp models.UserResponse
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/users/profile"}, &resp); err != nil {
		return nil, err
	}
	return s.cache(ctx, owner, &resp)
}

func (s *UserService) UpdateProfile(ctx context.Context, req *models.UserUpdateRequest) (*models.UserProfile, error) {
	ctx, span := util.StartSpan(ctx, "UserService.UpdateProfile")
	defer span.End()

	if err := validateStruct(req); err != nil {
		return nil, err
	}
	// role changes go through the admin endpoint only
	body := *req
	body.Role = ""

	owner, err := s.tokens.RefreshToken(ctx)
	if err != nil {
		return nil, err
	}
	var resp models.UserResponse
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodPut, Path: "/users/profile", Body: body}, &resp); err != nil {
		return nil, err
	}
	return s.cache(ctx, owner, &resp)
}

func (s *UserService) UploadAvatar(ctx context.Context, file Upload) (*models.UserProfile, error) {
	ctx, span := util.StartSpan(ctx, "UserService.UploadAvatar")
	defer span.End()

	if err := file.validate(); err != nil {
		return nil, err
	}

	owner, err := s.tokens.RefreshToken(ctx)
	if err != nil {
		return nil, err
	}
	var resp models.UserResponse
	err = s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/users/upload-avatar",
		Upload: &apiclient.Upload{Field: "file", FileName: file.FileName, Content: file.Content},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return s.cache(ctx, owner, &resp)
}

// Contact sends a message to the shop and returns the server's confirmation text.
func (s *UserService) Contact(ctx context.Context, req *models.ContactRequest) (string, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Contact")
	defer span.End()

	if err := validateStruct(req); err != nil {
		return "", err
	}
	var reply string
	err := s.api.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: "/users/contact", Body: req}, &reply)
	return reply, err
}

// AllUsers lists users for the admin area. page is 0-based.
func (s *UserService) AllUsers(ctx context.Context, page, size int, keyword string) (*models.Page[models.UserResponse], error) {
	ctx, span := util.StartSpan(ctx, "UserService.AllUsers")
	defer span.End()

	var out models.Page[models.UserResponse]
	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/users",
		Query:  pageQuery(page, size, 12, keyword),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *UserService) CreateUser(ctx context.Context, req *models.UserCreateRequest) (*models.UserResponse, error) {
	ctx, span := util.StartSpan(ctx, "UserService.CreateUser")
	defer span.End()

	if err := validateStruct(req); err != nil {
		return nil, err
	}
	var out models.UserResponse
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: "/users/create", Body: req}, &out); err != nil {
		return nil, err
	}
	s.logger.Info("User created", zap.Int64("user_id", out.UserID))
	return &out, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (*models.UserResponse, error) {
	ctx, span := util.StartSpan(ctx, "UserService.GetUser")
	defer span.End()

	var out models.UserResponse
	if err := s.api.Do(ctx, userRequest(http.MethodGet, id, nil), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *UserService) UpdateUser(ctx context.Context, id int64, req *models.UserUpdateRequest) (*models.UserResponse, error) {
	ctx, span := util.StartSpan(ctx, "UserService.UpdateUser")
	defer span.End()

	if err := validateStruct(req); err != nil {
		return nil, err
	}
	var out models.UserResponse
	if err := s.api.Do(ctx, userRequest(http.MethodPut, id, req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "UserService.DeleteUser")
	defer span.End()

	if err := s.api.Do(ctx, userRequest(http.MethodDelete, id, nil), nil); err != nil {
		return err
	}
	s.logger.Info("User deleted", zap.Int64("user_id", id))
	return nil
}

func (s *UserService) Stats(ctx context.Context) (models.UserStats, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Stats")
	defer span.End()

	var out models.UserStats
	err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/users/stats"}, &out)
	return out, err
}

// cache stores the profile on the session the request was made under. When
// the context signed in again meanwhile the profile is returned uncached.
func (s *UserService) cache(ctx context.Context, owner string, resp *models.UserResponse) (*models.UserProfile, error) {
	profile := resp.Profile()
	err := s.tokens.SetUser(ctx, owner, profile)
	if errors.Is(err, session.ErrSessionChanged) || errors.Is(err, session.ErrNoSession) {
		s.logger.Debug("Profile not cached, session changed", zap.Int64("user_id", profile.ID))
		return profile, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func userRequest(method string, id int64, body interface{}) apiclient.Request {
	return apiclient.Request{
		Method:   method,
		Path:     "/users/" + strconv.FormatInt(id, 10),
		Endpoint: "/users/{id}",
		Body:     body,
	}
}
