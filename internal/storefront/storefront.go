// Package storefront wires the per-browsing-context components together.
// Each browser tab, identified by its session cookie, gets its own Token
// Store, API client, cart mirror and services.
package storefront

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"storefront/internal/apiclient"
	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Deps are shared by every browsing context.
type Deps struct {
	BaseURL      string
	HTTPClient   *http.Client
	Sessions     session.Backend
	Publisher    service.EventPublisher
	LoginView    string
	PageSize     int
	QuantitySync bool
	// DropSessionOnEvict deletes the persisted session of an evicted
	// context, for backends that would otherwise keep it forever.
	DropSessionOnEvict bool
}

// Storefront is everything one browsing context needs.
type Storefront struct {
	id     string
	logger *zap.Logger

	Tokens   *session.Store
	API      *apiclient.Client
	Cart     *cart.Synchronizer
	Auth     *service.AuthService
	Catalog  *service.CatalogService
	Orders   *service.OrderService
	Checkout *service.CheckoutService
	Payments *service.PaymentService
	Users    *service.UserService

	lastSeen atomic.Int64
}

// New builds the components of browsing context id.
func New(id string, deps Deps) *Storefront {
	sf := &Storefront{
		id:     id,
		logger: util.SessionLogger(id),
		Tokens: session.NewStore(deps.Sessions, id),
	}
	sf.touch(time.Now())

	opts := []apiclient.Option{
		apiclient.WithLogger(sf.logger),
		apiclient.WithExpiredHook(sf.onExpired(deps.Publisher)),
	}
	if deps.HTTPClient != nil {
		opts = append(opts, apiclient.WithHTTPClient(deps.HTTPClient))
	}
	if deps.LoginView != "" {
		opts = append(opts, apiclient.WithLoginView(deps.LoginView))
	}
	sf.API = apiclient.New(deps.BaseURL, sf.Tokens, opts...)

	cartAPI := service.NewCartAPI(sf.API)
	var backend cart.Backend = cartAPI
	if !deps.QuantitySync {
		backend = cartAPI.MirrorOnly()
	}
	sf.Cart = cart.NewSynchronizer(backend, sf.Tokens, sf.logger)

	sf.Auth = service.NewAuthService(sf.API, sf.Tokens)
	sf.Catalog = service.NewCatalogService(sf.API, deps.PageSize)
	sf.Orders = service.NewOrderService(sf.API, sf.Tokens, deps.Publisher)
	sf.Payments = service.NewPaymentService(sf.API, deps.Publisher)
	sf.Checkout = service.NewCheckoutService(sf.Orders, sf.Payments, sf.Cart, sf.Tokens, deps.Publisher)
	sf.Users = service.NewUserService(sf.API, sf.Tokens)
	return sf
}

func (sf *Storefront) ID() string {
	return sf.id
}

// Login signs in and loads the server cart into the mirror.
func (sf *Storefront) Login(ctx context.Context, req *service.LoginRequest) (*models.UserProfile, error) {
	profile, err := sf.Auth.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := sf.Cart.FetchCart(ctx); err != nil {
		sf.logger.Warn("Cart load after login failed", zap.Error(err))
	}
	return profile, nil
}

// Logout clears the session and the cart mirror.
func (sf *Storefront) Logout(ctx context.Context) error {
	if err := sf.Auth.Logout(ctx); err != nil {
		return err
	}
	sf.Cart.ClearCart()
	return nil
}

// onExpired runs after the API client cleared the session because the user
// must sign in again. It may run while a cart operation holds its lock, so it
// only touches the mirror through ClearCart.
func (sf *Storefront) onExpired(publisher service.EventPublisher) func(ctx context.Context) {
	return func(ctx context.Context) {
		sf.Cart.ClearCart()
		sf.logger.Info("Session expired, user must sign in again")

		event := &models.SessionExpiredEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeSessionExpired,
				Timestamp: time.Now().UTC(),
			},
			SessionID: sf.id,
		}
		if err := publisher.PublishSessionExpired(ctx, event); err != nil {
			sf.logger.Error("Failed to publish SessionExpired event", zap.Error(err))
		}
	}
}

func (sf *Storefront) touch(now time.Time) {
	sf.lastSeen.Store(now.UnixNano())
}

// LastSeen is when the context last served a request.
func (sf *Storefront) LastSeen() time.Time {
	return time.Unix(0, sf.lastSeen.Load())
}
