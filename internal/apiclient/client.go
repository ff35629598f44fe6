// Package apiclient is the session-aware HTTP client for the remote REST API.
//
// Every call attaches the bearer token of its browsing context. A 401 or 403
// triggers at most one token refresh followed by one re-issue of the request.
// When the refresh fails, or the re-issued request is rejected again, the
// session is cleared and the caller gets a ReauthError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"storefront/internal/session"
	"storefront/internal/util"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

const maxBodyBytes = 10 << 20

// TokenStore is the part of the session the client reads and writes.
// SetAccessToken and EndSession only touch the session that still owns
// refreshToken and report session.ErrSessionChanged otherwise.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SetAccessToken(ctx context.Context, refreshToken, accessToken string) error
	EndSession(ctx context.Context, refreshToken string) error
	Logout(ctx context.Context) error
}

// Request describes one call to the remote API.
type Request struct {
	Method string
	Path   string
	// RawQuery, when set, is sent byte-for-byte and Query is ignored.
	RawQuery string
	Query    url.Values
	Body     interface{}
	Upload   *Upload
	Header   http.Header
	// Endpoint labels metrics; defaults to Path.
	Endpoint string
	// Public requests carry no bearer token and never trigger a refresh.
	Public bool
}

// Upload is a single-file multipart body.
type Upload struct {
	Field    string
	FileName string
	Content  []byte
	Fields   map[string]string
}

// Client is safe for concurrent use by the requests of one browsing context.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	refresher  Refresher
	loginView  string
	onExpired  func(ctx context.Context)
	logger     *zap.Logger

	refreshMu sync.Mutex
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRefresher replaces the default POST /auth/refresh strategy.
func WithRefresher(r Refresher) Option {
	return func(c *Client) { c.refresher = r }
}

// WithLoginView sets the redirect target reported on forced logout.
func WithLoginView(view string) Option {
	return func(c *Client) { c.loginView = view }
}

// WithExpiredHook registers a callback run after the session was cleared.
func WithExpiredHook(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.onExpired = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for baseURL that authenticates with tokens.
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		tokens:    tokens,
		loginView: "/login",
		logger:    util.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if c.refresher == nil {
		c.refresher = NewTokenRefresher(c.baseURL, c.httpClient)
	}
	return c
}

type viewKey struct{}

// WithView records the view the user is on, so a forced logout on the login
// view itself does not ask for a redirect.
func WithView(ctx context.Context, view string) context.Context {
	return context.WithValue(ctx, viewKey{}, view)
}

func viewFrom(ctx context.Context) string {
	v, _ := ctx.Value(viewKey{}).(string)
	return v
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string, out interface{}) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

// Do sends req and decodes a 2xx JSON response into out (out may be nil).
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	ctx, span := util.StartSpan(ctx, "APIClient.Do")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("storefront.endpoint", req.endpoint()),
	)

	retried := false
	for {
		token := ""
		if !req.Public {
			var err error
			if token, err = c.tokens.AccessToken(ctx); err != nil {
				return fmt.Errorf("failed to read access token: %w", err)
			}
		}

		status, body, err := c.send(ctx, req, token)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "transport")
			return err
		}

		if IsAuthorization(status) && !req.Public {
			apiErr := c.apiError(req, status, body)
			if retried {
				// fresh credentials were rejected too
				span.SetStatus(codes.Error, "reauth")
				return c.expire(ctx, apiErr)
			}
			retried = true
			if err := c.refresh(ctx, token, apiErr); err != nil {
				span.SetStatus(codes.Error, "refresh")
				return err
			}
			continue
		}

		if status < 200 || status >= 300 {
			apiErr := c.apiError(req, status, body)
			span.SetStatus(codes.Error, apiErr.Error())
			return apiErr
		}

		if out == nil || len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if s, ok := out.(*string); ok {
			*s = string(body)
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", req.Method, req.Path, err)
		}
		return nil
	}
}

// refresh runs at most once per failed request. Concurrent requests of the
// same context share one refresh: a request that finds the token already
// replaced since it was sent just retries with the new one. When the context
// signed in again while the refresh was running, its result is discarded and
// the new session is left untouched.
func (c *Client) refresh(ctx context.Context, usedToken string, original *APIError) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	current, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to read access token: %w", err)
	}
	if current != "" && current != usedToken {
		util.TokenRefreshTotal.WithLabelValues("shared").Inc()
		return nil
	}

	refreshToken, err := c.tokens.RefreshToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to read refresh token: %w", err)
	}
	if refreshToken == "" {
		util.TokenRefreshTotal.WithLabelValues("no_refresh_token").Inc()
		if err := c.tokens.Logout(ctx); err != nil {
			c.logger.Error("Failed to clear session", zap.Error(err))
		}
		c.loggedOut(ctx)
		return original
	}

	ctx, span := util.StartSpan(ctx, "APIClient.Refresh")
	defer span.End()

	accessToken, err := c.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		util.TokenRefreshTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		c.logger.Warn("Token refresh failed", zap.Error(err))

		if endErr := c.tokens.EndSession(ctx, refreshToken); superseded(endErr) {
			// a newer sign-in owns the context now; retry under it
			return nil
		} else if endErr != nil {
			c.logger.Error("Failed to clear session", zap.Error(endErr))
		}
		c.loggedOut(ctx)
		return c.reauth(ctx, err)
	}

	if err := c.tokens.SetAccessToken(ctx, refreshToken, accessToken); err != nil {
		if superseded(err) {
			util.TokenRefreshTotal.WithLabelValues("superseded").Inc()
			c.logger.Debug("Refreshed token discarded, session changed")
			return nil
		}
		return fmt.Errorf("failed to store refreshed token: %w", err)
	}
	util.TokenRefreshTotal.WithLabelValues("success").Inc()
	c.logger.Debug("Access token refreshed")
	return nil
}

func superseded(err error) bool {
	return errors.Is(err, session.ErrSessionChanged) || errors.Is(err, session.ErrNoSession)
}

// expire clears the session and reports that the user must sign in again.
func (c *Client) expire(ctx context.Context, cause error) error {
	if err := c.tokens.Logout(ctx); err != nil {
		c.logger.Error("Failed to clear session", zap.Error(err))
	}
	c.loggedOut(ctx)
	return c.reauth(ctx, cause)
}

// loggedOut runs the forced-logout side effects once the session is gone.
func (c *Client) loggedOut(ctx context.Context) {
	util.ForcedLogoutsTotal.Inc()
	if c.onExpired != nil {
		c.onExpired(ctx)
	}
}

func (c *Client) reauth(ctx context.Context, cause error) error {
	redirect := c.loginView
	if viewFrom(ctx) == c.loginView {
		redirect = ""
	}
	return &ReauthError{Redirect: redirect, Cause: cause}
}

func (c *Client) send(ctx context.Context, req Request, token string) (int, []byte, error) {
	httpReq, err := c.build(ctx, req, token)
	if err != nil {
		return 0, nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(req, "error", start)
		return 0, nil, fmt.Errorf("%s %s failed: %w", req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.observe(req, strconv.Itoa(resp.StatusCode), start)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read %s %s response: %w", req.Method, req.Path, err)
	}

	c.logger.Debug("Upstream call",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	return resp.StatusCode, body, nil
}

// build creates a fresh *http.Request per attempt; bodies are rebuilt so a
// re-issued request carries the same payload.
func (c *Client) build(ctx context.Context, req Request, token string) (*http.Request, error) {
	target := c.baseURL + req.Path
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	} else if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.Upload != nil:
		buf, ct, err := encodeUpload(req.Upload)
		if err != nil {
			return nil, err
		}
		// boundary comes from the multipart writer, never a fixed header
		body, contentType = buf, ct
	case req.Body != nil:
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body, contentType = bytes.NewReader(raw), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))
	return httpReq, nil
}

func encodeUpload(u *Upload) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for key, val := range u.Fields {
		if err := w.WriteField(key, val); err != nil {
			return nil, "", fmt.Errorf("failed to write form field: %w", err)
		}
	}
	field := u.Field
	if field == "" {
		field = "file"
	}
	part, err := w.CreateFormFile(field, u.FileName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(u.Content); err != nil {
		return nil, "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

func (c *Client) observe(req Request, status string, start time.Time) {
	endpoint := req.endpoint()
	util.UpstreamRequestDuration.WithLabelValues(req.Method, endpoint, status).Observe(time.Since(start).Seconds())
	util.UpstreamRequestsTotal.WithLabelValues(req.Method, endpoint, status).Inc()
}

func (c *Client) apiError(req Request, status int, body []byte) *APIError {
	return &APIError{
		Method:     req.Method,
		Path:       req.Path,
		StatusCode: status,
		Message:    upstreamMessage(body),
	}
}

func (r Request) endpoint() string {
	if r.Endpoint != "" {
		return r.Endpoint
	}
	return r.Path
}

// upstreamMessage extracts a readable message from an error body, which the
// remote services send either as JSON or as a bare string.
func upstreamMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if trimmed[0] == '{' && json.Unmarshal(trimmed, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	msg := string(trimmed)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}
