package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"storefront/internal/apiclient"
	"storefront/internal/models"
	"storefront/internal/session"

	"github.com/stretchr/testify/require"
)

// upstream is a scriptable fake of the remote REST API.
type upstream struct {
	t      *testing.T
	server *httptest.Server
	mux    *http.ServeMux

	mu       sync.Mutex
	requests []*http.Request
}

func newUpstream(t *testing.T) *upstream {
	u := &upstream{t: t, mux: http.NewServeMux()}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.requests = append(u.requests, r.Clone(context.Background()))
		u.mu.Unlock()
		u.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func (u *upstream) handle(pattern string, h http.HandlerFunc) {
	u.mux.HandleFunc(pattern, h)
}

func (u *upstream) calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.requests)
}

func (u *upstream) paths() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, 0, len(u.requests))
	for _, r := range u.requests {
		out = append(out, r.Method+" "+r.URL.Path)
	}
	return out
}

func (u *upstream) client(tokens *session.Store) *apiclient.Client {
	return apiclient.New(u.server.URL, tokens)
}

func signedInStore(t *testing.T) *session.Store {
	store := session.NewLocal()
	require.NoError(t, store.SetSession(context.Background(), "access-1", "refresh-1",
		&models.UserProfile{ID: 9, Username: "minh", Email: "minh@example.com", Role: models.RoleCustomer}))
	return store
}

type recordingPublisher struct {
	mu        sync.Mutex
	placed    []*models.OrderPlacedEvent
	cancelled []*models.OrderCancelledEvent
	verified  []*models.PaymentVerifiedEvent
	expired   []*models.SessionExpiredEvent
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, e *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, e)
	return nil
}

func (p *recordingPublisher) PublishOrderCancelled(_ context.Context, e *models.OrderCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, e)
	return nil
}

func (p *recordingPublisher) PublishPaymentVerified(_ context.Context, e *models.PaymentVerifiedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verified = append(p.verified, e)
	return nil
}

func (p *recordingPublisher) PublishSessionExpired(_ context.Context, e *models.SessionExpiredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expired = append(p.expired, e)
	return nil
}
