package service

import (
	"context"
	"fmt"

	"storefront/internal/apiclient"
	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CartMirror is the part of the cart synchronizer checkout needs.
type CartMirror interface {
	Line(productID int64) (models.CartLine, bool)
	ClearCart()
	FetchCart(ctx context.Context) error
}

// CheckoutResult is a placed order and, for gateway payments, the URL the
// browser must be sent to.
type CheckoutResult struct {
	Order      *models.Order `json:"order"`
	PaymentURL string        `json:"paymentUrl,omitempty"`
}

// CheckoutService turns selected cart lines into an order
type CheckoutService struct {
	orders         *OrderService
	payments       *PaymentService
	cart           CartMirror
	tokens         *session.Store
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	orders *OrderService,
	payments *PaymentService,
	cart CartMirror,
	tokens *session.Store,
	eventPublisher EventPublisher,
) *CheckoutService {
	return &CheckoutService{
		orders:         orders,
		payments:       payments,
		cart:           cart,
		tokens:         tokens,
		eventPublisher: eventPublisher,
		logger:         util.SessionLogger(tokens.ID()),
	}
}

// Checkout places the order, empties the cart mirror and, for gateway
// payments, fetches the payment URL. If only that last step fails the order
// is still returned together with the error.
func (cs *CheckoutService) Checkout(ctx context.Context, req *models.PlaceOrderRequest) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	user, err := cs.tokens.User(ctx)
	if err != nil {
		return nil, err
	}
	active, err := cs.tokens.Active(ctx)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, cart.ErrAuthRequired
	}

	if err := validateStruct(req); err != nil {
		return nil, err
	}
	items := make([]models.OrderItemData, 0, len(req.SelectedProductIDs))
	for _, id := range req.SelectedProductIDs {
		line, ok := cs.cart.Line(id)
		if !ok {
			return nil, apiclient.Invalid("selectedProductIds", fmt.Sprintf("product %d is not in the cart", id))
		}
		items = append(items, models.OrderItemData{
			ProductID: id,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	order, err := cs.orders.PlaceOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	// the server already removed the purchased lines
	cs.cart.ClearCart()
	if err := cs.cart.FetchCart(ctx); err != nil {
		cs.logger.Warn("Cart resync after checkout failed", zap.Error(err))
	}

	event := &models.OrderPlacedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:       order.OrderID,
		PaymentMethod: req.PaymentMethod,
		TotalMoney:    order.TotalMoney,
		Items:         items,
	}
	if user != nil {
		event.UserID = user.ID
	}
	if err := cs.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
		cs.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	result := &CheckoutResult{Order: order}
	if req.PaymentMethod != models.PaymentMethodGateway {
		return result, nil
	}

	paymentURL, err := cs.payments.CreatePaymentURL(ctx, order.OrderID, order.TotalMoney)
	if err != nil {
		return result, err
	}
	result.PaymentURL = paymentURL
	return result, nil
}
