// Package cart keeps a local mirror of the server-owned cart.
//
// Mutations are applied optimistically, sent to the server, and always
// followed by a resynchronizing fetch once the server call settles, whatever
// its outcome. Operations of one synchronizer are serialized, so a fetch is
// never in flight at the same time as a mutation.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrAuthRequired is returned when a cart mutation is attempted without a session.
	ErrAuthRequired = errors.New("sign in to use the cart")
	// ErrOutOfStock is returned when the quantity of a sold-out line is edited.
	ErrOutOfStock = errors.New("product is out of stock")
)

// State of the synchronizer's two-phase operation.
type State int

const (
	StateIdle State = iota
	StateMutating
	StateReconciling
)

func (s State) String() string {
	switch s {
	case StateMutating:
		return "mutating"
	case StateReconciling:
		return "reconciling"
	default:
		return "idle"
	}
}

// Backend is the server-side cart.
type Backend interface {
	GetCart(ctx context.Context) (*models.CartResponse, error)
	AddItem(ctx context.Context, productID int64, quantity int) error
	RemoveItem(ctx context.Context, productID int64) error
}

// QuantityUpdater is implemented by backends that can set a line's quantity.
// Without it, UpdateQuantity only changes the local mirror.
type QuantityUpdater interface {
	UpdateQuantity(ctx context.Context, productID int64, quantity int) error
}

// SessionChecker reports whether the browsing context is signed in.
type SessionChecker interface {
	Active(ctx context.Context) (bool, error)
}

// Synchronizer owns the cart mirror of one browsing context.
type Synchronizer struct {
	backend Backend
	session SessionChecker
	logger  *zap.Logger

	// opMu is held from the local mutation until the resync settles.
	opMu sync.Mutex

	mu    sync.RWMutex
	lines []models.CartLine
	state State
}

// NewSynchronizer creates a synchronizer with an empty mirror
func NewSynchronizer(backend Backend, session SessionChecker, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = util.GetLogger()
	}
	return &Synchronizer{
		backend: backend,
		session: session,
		logger:  logger,
	}
}

// FetchCart replaces the mirror with the server's cart. Without a session the
// mirror is emptied and no request is made. On error the mirror is emptied too.
func (s *Synchronizer) FetchCart(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.setState(StateReconciling)
	defer s.setState(StateIdle)
	return s.reconcile(ctx)
}

// AddToCart adds quantity units of a product on the server and resyncs.
// A quantity below 1 adds a single unit.
func (s *Synchronizer) AddToCart(ctx context.Context, productID int64, quantity int) error {
	ctx, span := util.StartSpan(ctx, "Cart.AddToCart")
	defer span.End()

	if quantity < 1 {
		quantity = 1
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	active, err := s.session.Active(ctx)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if !active {
		return ErrAuthRequired
	}

	s.setState(StateMutating)
	defer s.setState(StateIdle)

	// no local merge: the server may clamp to stock
	mutErr := s.backend.AddItem(ctx, productID, quantity)
	s.recordMutation("add", mutErr)
	if mutErr != nil {
		s.logger.Warn("Add to cart failed",
			zap.Int64("product_id", productID),
			zap.Int("quantity", quantity),
			zap.Error(mutErr))
	}

	return s.settle(ctx, mutErr)
}

// RemoveFromCart drops the line locally right away, removes it on the server,
// and resyncs. A failed removal is undone by the resync.
func (s *Synchronizer) RemoveFromCart(ctx context.Context, productID int64) error {
	ctx, span := util.StartSpan(ctx, "Cart.RemoveFromCart")
	defer span.End()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	active, err := s.session.Active(ctx)
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if !active {
		return ErrAuthRequired
	}

	s.mu.Lock()
	s.state = StateMutating
	s.lines = withoutProduct(s.lines, productID)
	s.mu.Unlock()
	defer s.setState(StateIdle)

	mutErr := s.backend.RemoveItem(ctx, productID)
	s.recordMutation("remove", mutErr)
	if mutErr != nil {
		s.logger.Warn("Remove from cart failed", zap.Int64("product_id", productID), zap.Error(mutErr))
	}

	return s.settle(ctx, mutErr)
}

// UpdateQuantity sets a line's quantity. Values below 1 are ignored and values
// above the available stock are clamped to it. A line whose stock is zero is
// sold out and cannot be edited. When the backend supports it the change is
// sent to the server and resynced, otherwise it stays local.
func (s *Synchronizer) UpdateQuantity(ctx context.Context, productID int64, quantity int) error {
	if quantity < 1 {
		return nil
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	idx := indexOf(s.lines, productID)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	stock := s.lines[idx].AvailableStock
	if stock <= 0 {
		s.mu.Unlock()
		return ErrOutOfStock
	}
	if quantity > stock {
		quantity = stock
	}
	if s.lines[idx].Quantity == quantity {
		s.mu.Unlock()
		return nil
	}
	s.lines[idx].Quantity = quantity
	s.mu.Unlock()

	updater, ok := s.backend.(QuantityUpdater)
	if !ok {
		return nil
	}
	active, err := s.session.Active(ctx)
	if err != nil || !active {
		return err
	}

	ctx, span := util.StartSpan(ctx, "Cart.UpdateQuantity")
	defer span.End()

	s.setState(StateMutating)
	defer s.setState(StateIdle)

	mutErr := updater.UpdateQuantity(ctx, productID, quantity)
	s.recordMutation("update", mutErr)
	return s.settle(ctx, mutErr)
}

// ClearCart empties the mirror without calling the server. Used after checkout,
// where placing the order already emptied the server cart.
func (s *Synchronizer) ClearCart() {
	s.mu.Lock()
	s.lines = nil
	s.mu.Unlock()
}

// Lines returns a copy of the mirror in server order.
func (s *Synchronizer) Lines() []models.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// Line returns the mirrored line for productID.
func (s *Synchronizer) Line(productID int64) (models.CartLine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := indexOf(s.lines, productID); idx >= 0 {
		return s.lines[idx], true
	}
	return models.CartLine{}, false
}

// TotalItems is the sum of quantities, computed on every call.
func (s *Synchronizer) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalItems(s.lines)
}

// TotalPrice is the sum of unit price times quantity, computed on every call.
func (s *Synchronizer) TotalPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return totalPrice(s.lines)
}

func (s *Synchronizer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns the lines and their totals read under one lock.
func (s *Synchronizer) Snapshot() models.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := make([]models.CartLine, len(s.lines))
	copy(lines, s.lines)
	return models.Cart{
		Lines:      lines,
		TotalItems: totalItems(lines),
		TotalPrice: totalPrice(lines),
	}
}

// settle runs the resync after a mutation and reports the mutation error
// first, since that is what the user acted on.
func (s *Synchronizer) settle(ctx context.Context, mutErr error) error {
	s.setState(StateReconciling)
	fetchErr := s.reconcile(ctx)
	if mutErr != nil {
		return mutErr
	}
	return fetchErr
}

// reconcile must be called with opMu held.
func (s *Synchronizer) reconcile(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "Cart.Reconcile")
	defer span.End()

	active, err := s.session.Active(ctx)
	if err != nil {
		s.replace(nil)
		util.CartReconcileTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to check session: %w", err)
	}
	if !active {
		s.replace(nil)
		util.CartReconcileTotal.WithLabelValues("signed_out").Inc()
		return nil
	}

	resp, err := s.backend.GetCart(ctx)
	if err != nil {
		s.replace(nil)
		util.CartReconcileTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Cart fetch failed, mirror reset", zap.Error(err))
		return fmt.Errorf("failed to fetch cart: %w", err)
	}

	s.replace(toLines(resp))
	util.CartReconcileTotal.WithLabelValues("success").Inc()
	return nil
}

func (s *Synchronizer) replace(lines []models.CartLine) {
	s.mu.Lock()
	s.lines = lines
	s.mu.Unlock()
}

func (s *Synchronizer) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Synchronizer) recordMutation(op string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	util.CartMutationsTotal.WithLabelValues(op, result).Inc()
}

func toLines(resp *models.CartResponse) []models.CartLine {
	if resp == nil || len(resp.Items) == 0 {
		return nil
	}
	lines := make([]models.CartLine, 0, len(resp.Items))
	for _, item := range resp.Items {
		lines = append(lines, models.CartLine{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			UnitPrice:      item.ProductPrice,
			ImageURL:       item.ProductImage,
			Quantity:       item.Quantity,
			AvailableStock: item.StockQuantity,
		})
	}
	return lines
}

func indexOf(lines []models.CartLine, productID int64) int {
	for i := range lines {
		if lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func withoutProduct(lines []models.CartLine, productID int64) []models.CartLine {
	out := make([]models.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.ProductID != productID {
			out = append(out, l)
		}
	}
	return out
}

func totalItems(lines []models.CartLine) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity
	}
	return total
}

func totalPrice(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
