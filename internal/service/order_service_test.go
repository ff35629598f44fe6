package service

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"storefront/internal/apiclient"
	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/session"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMirror struct {
	mu      sync.Mutex
	lines   map[int64]models.CartLine
	cleared bool
	fetched int
}

func (m *fakeMirror) Line(id int64) (models.CartLine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[id]
	return l, ok
}

func (m *fakeMirror) ClearCart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = nil
	m.cleared = true
}

func (m *fakeMirror) FetchCart(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched++
	return nil
}

func validOrder(method models.PaymentMethod) *models.PlaceOrderRequest {
	return &models.PlaceOrderRequest{
		FullName:           "Nguyen Van Minh",
		PhoneNumber:        "0912345678",
		Address:            "12 Hang Bai, Ha Noi",
		PaymentMethod:      method,
		SelectedProductIDs: []int64{5},
	}
}

func newCheckout(t *testing.T, up *upstream, tokens *session.Store, mirror CartMirror, pub EventPublisher) *CheckoutService {
	client := up.client(tokens)
	return NewCheckoutService(
		NewOrderService(client, tokens, pub),
		NewPaymentService(client, pub),
		mirror,
		tokens,
		pub,
	)
}

func TestCheckoutCODClearsCart(t *testing.T) {
	up := newUpstream(t)
	up.handle("/orders/place", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		_, _ = w.Write([]byte(`{"orderId":"OD1001","status":"PENDING","totalMoney":4600000,"paymentMethod":"COD","paymentStatus":"UNPAID"}`))
	})

	tokens := signedInStore(t)
	mirror := &fakeMirror{lines: map[int64]models.CartLine{
		5: {ProductID: 5, Quantity: 2, UnitPrice: decimal.NewFromInt(2300000), AvailableStock: 10},
	}}
	pub := &recordingPublisher{}

	result, err := newCheckout(t, up, tokens, mirror, pub).Checkout(context.Background(), validOrder(models.PaymentMethodCOD))
	require.NoError(t, err)
	assert.Equal(t, "OD1001", result.Order.OrderID)
	assert.Empty(t, result.PaymentURL)
	assert.True(t, mirror.cleared)
	assert.Equal(t, 1, mirror.fetched)

	require.Len(t, pub.placed, 1)
	assert.Equal(t, int64(9), pub.placed[0].UserID)
	assert.Equal(t, 2, pub.placed[0].Items[0].Quantity)
	assert.Equal(t, []string{"POST /orders/place"}, up.paths())
}

func TestCheckoutGatewayReturnsPaymentURL(t *testing.T) {
	up := newUpstream(t)
	up.handle("/orders/place", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orderId":"OD7","status":"PENDING","totalMoney":1750000,"paymentMethod":"VNPAY"}`))
	})
	up.handle("/payment/create_payment", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1750000", r.URL.Query().Get("amount"))
		assert.Equal(t, "OD7", r.URL.Query().Get("orderId"))
		_, _ = w.Write([]byte(`{"url":"https://sandbox.vnpayment.vn/pay?x=1"}`))
	})

	mirror := &fakeMirror{lines: map[int64]models.CartLine{5: {ProductID: 5, Quantity: 1}}}
	result, err := newCheckout(t, up, signedInStore(t), mirror, &recordingPublisher{}).
		Checkout(context.Background(), validOrder(models.PaymentMethodGateway))
	require.NoError(t, err)
	assert.Equal(t, "https://sandbox.vnpayment.vn/pay?x=1", result.PaymentURL)
}

func TestCheckoutValidation(t *testing.T) {
	up := newUpstream(t)
	mirror := &fakeMirror{lines: map[int64]models.CartLine{5: {ProductID: 5, Quantity: 1}}}
	co := newCheckout(t, up, signedInStore(t), mirror, &recordingPublisher{})

	bad := validOrder(models.PaymentMethodCOD)
	bad.PhoneNumber = "12ab"
	_, err := co.Checkout(context.Background(), bad)
	assert.Equal(t, apiclient.KindValidation, apiclient.Classify(err))

	notInCart := validOrder(models.PaymentMethodCOD)
	notInCart.SelectedProductIDs = []int64{99}
	_, err = co.Checkout(context.Background(), notInCart)
	assert.Equal(t, apiclient.KindValidation, apiclient.Classify(err))

	wrongMethod := validOrder("CARD")
	_, err = co.Checkout(context.Background(), wrongMethod)
	assert.Equal(t, apiclient.KindValidation, apiclient.Classify(err))

	assert.Equal(t, 0, up.calls())
	assert.False(t, mirror.cleared)
}

func TestCheckoutSignedOut(t *testing.T) {
	up := newUpstream(t)
	co := newCheckout(t, up, session.NewLocal(), &fakeMirror{}, &recordingPublisher{})

	_, err := co.Checkout(context.Background(), validOrder(models.PaymentMethodCOD))
	assert.ErrorIs(t, err, cart.ErrAuthRequired)
	assert.Equal(t, 0, up.calls())
}

func TestPlaceOrderKeepsIdempotencyKeyAcrossRefresh(t *testing.T) {
	up := newUpstream(t)
	var keys []string
	up.handle("/orders/place", func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		if r.Header.Get("Authorization") != "Bearer renewed" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"orderId":"OD2","status":"PENDING"}`))
	})
	up.handle("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"accessToken":"renewed","refreshToken":"refresh-1"}`))
	})

	tokens := signedInStore(t)
	orders := NewOrderService(up.client(tokens), tokens, &recordingPublisher{})

	order, err := orders.PlaceOrder(context.Background(), validOrder(models.PaymentMethodCOD))
	require.NoError(t, err)
	assert.Equal(t, "OD2", order.OrderID)
	require.Len(t, keys, 2)
	assert.Equal(t, keys[0], keys[1])
}

func TestCancelOnlyPendingOrders(t *testing.T) {
	up := newUpstream(t)
	up.handle("/orders/OD5", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orderId":"OD5","status":"SHIPPING"}`))
	})
	up.handle("/orders/OD6", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orderId":"OD6","status":"PENDING"}`))
	})
	up.handle("/orders/OD6/cancel", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		_, _ = w.Write([]byte(`{"orderId":"OD6","status":"CANCELLED"}`))
	})

	tokens := signedInStore(t)
	pub := &recordingPublisher{}
	orders := NewOrderService(up.client(tokens), tokens, pub)

	_, err := orders.CancelOrder(context.Background(), "OD5")
	assert.Equal(t, apiclient.KindValidation, apiclient.Classify(err))

	order, err := orders.CancelOrder(context.Background(), "OD6")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	require.Len(t, pub.cancelled, 1)
	assert.Equal(t, "OD6", pub.cancelled[0].OrderID)

	assert.Equal(t, []string{"GET /orders/OD5", "GET /orders/OD6", "PUT /orders/OD6/cancel"}, up.paths())
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	up := newUpstream(t)
	tokens := signedInStore(t)
	orders := NewOrderService(up.client(tokens), tokens, &recordingPublisher{})

	_, err := orders.UpdateStatus(context.Background(), "OD1", "LOST")
	assert.Equal(t, apiclient.KindValidation, apiclient.Classify(err))
	assert.Equal(t, 0, up.calls())
}

func TestRevenueChart(t *testing.T) {
	up := newUpstream(t)
	up.handle("/orders/revenue-chart", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026", r.URL.Query().Get("year"))
		_, _ = w.Write([]byte(`[{"month":"T1","revenue":1000},{"month":"T2","revenue":0}]`))
	})
	tokens := signedInStore(t)
	orders := NewOrderService(up.client(tokens), tokens, &recordingPublisher{})

	points, err := orders.RevenueChart(context.Background(), 2026)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.True(t, decimal.NewFromInt(1000).Equal(points[0].Revenue))
}
