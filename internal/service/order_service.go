package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"storefront/internal/apiclient"
	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService handles customer and admin order calls
type OrderService struct {
	api            API
	tokens         *session.Store
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(api API, tokens *session.Store, eventPublisher EventPublisher) *OrderService {
	return &OrderService{
		api:            api,
		tokens:         tokens,
		eventPublisher: eventPublisher,
		logger:         util.SessionLogger(tokens.ID()),
	}
}

// PlaceOrder submits the order. The idempotency key is fixed before the first
// attempt, so a request re-issued after a token refresh cannot place twice.
func (s *OrderService) PlaceOrder(ctx context.Context, req *models.PlaceOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	if err := validateStruct(req); err != nil {
		return nil, err
	}

	idempotencyKey := uuid.New().String()
	var order models.Order
	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/orders/place",
		Body:   req,
		Header: http.Header{"Idempotency-Key": {idempotencyKey}},
	}, &order)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	util.OrdersPlacedTotal.WithLabelValues(string(req.PaymentMethod)).Inc()
	s.logger.Info("Order placed",
		zap.String("order_id", order.OrderID),
		zap.String("payment_method", string(req.PaymentMethod)),
		zap.String("idempotency_key", idempotencyKey))
	return &order, nil
}

// MyOrders returns the signed-in user's order history.
func (s *OrderService) MyOrders(ctx context.Context) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.MyOrders")
	defer span.End()

	var out []models.Order
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/orders/history"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	if orderID == "" {
		return nil, apiclient.Invalid("orderId", "order id is required")
	}

	var order models.Order
	err := s.api.Do(ctx, apiclient.Request{
		Method:   http.MethodGet,
		Path:     "/orders/" + url.PathEscape(orderID),
		Endpoint: "/orders/{id}",
	}, &order)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder asks the server to cancel a pending order and returns the
// order as the server left it. Orders past PENDING are refused locally.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	current, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.OrderStatusPending {
		return nil, apiclient.Invalid("status", fmt.Sprintf("order %s is %s and can no longer be cancelled", orderID, current.Status))
	}

	var order models.Order
	err = s.api.Do(ctx, apiclient.Request{
		Method:   http.MethodPut,
		Path:     "/orders/" + url.PathEscape(orderID) + "/cancel",
		Endpoint: "/orders/{id}/cancel",
	}, &order)
	if err != nil {
		return nil, err
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled", zap.String("order_id", orderID))

	event := &models.OrderCancelledEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:   orderID,
		UserID:    s.userID(ctx),
	}
	if err := s.eventPublisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}
	return &order, nil
}

// AllOrders lists every order for the admin area. page is 0-based.
func (s *OrderService) AllOrders(ctx context.Context, page, size int, keyword string) (*models.Page[models.Order], error) {
	ctx, span := util.StartSpan(ctx, "OrderService.AllOrders")
	defer span.End()

	var out models.Page[models.Order]
	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/orders/admin",
		Query:  pageQuery(page, size, 10, keyword),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus requests a status transition; the server decides whether it is allowed.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if !status.Valid() {
		return nil, apiclient.Invalid("status", fmt.Sprintf("unknown order status %q", status))
	}

	var order models.Order
	err := s.api.Do(ctx, apiclient.Request{
		Method:   http.MethodPut,
		Path:     "/orders/admin/" + url.PathEscape(orderID) + "/status",
		Endpoint: "/orders/admin/{id}/status",
		Query:    url.Values{"status": {string(status)}},
	}, &order)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Order status updated", zap.String("order_id", orderID), zap.String("status", string(status)))
	return &order, nil
}

func (s *OrderService) Stats(ctx context.Context) (*models.OrderStats, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Stats")
	defer span.End()

	var out models.OrderStats
	if err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/orders/stats"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevenueChart returns one point per month of year.
func (s *OrderService) RevenueChart(ctx context.Context, year int) ([]models.RevenuePoint, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.RevenueChart")
	defer span.End()

	if year < 2000 || year > 9999 {
		return nil, apiclient.Invalid("year", "year is out of range")
	}

	var out []models.RevenuePoint
	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/orders/revenue-chart",
		Query:  url.Values{"year": {strconv.Itoa(year)}},
	}, &out)
	return out, err
}

func (s *OrderService) userID(ctx context.Context) int64 {
	user, err := s.tokens.User(ctx)
	if err != nil || user == nil {
		return 0
	}
	return user.ID
}

func pageQuery(page, size, defaultSize int, keyword string) url.Values {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = defaultSize
	}
	q := url.Values{
		"page": {strconv.Itoa(page)},
		"size": {strconv.Itoa(size)},
	}
	if keyword != "" {
		q.Set("keyword", keyword)
	}
	return q
}
