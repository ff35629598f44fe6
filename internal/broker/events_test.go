package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func newCapturePublisher() (*EventPublisher, *captureWriter) {
	w := &captureWriter{}
	return NewEventPublisher(&Producer{writer: w, logger: zap.NewNop()}), w
}

func TestPublishOrderPlacedKeyedByOrder(t *testing.T) {
	pub, w := newCapturePublisher()

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "e-1",
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		},
		OrderID:       "ORD-17",
		UserID:        5,
		PaymentMethod: models.PaymentMethodCOD,
	}
	require.NoError(t, pub.PublishOrderPlaced(context.Background(), event))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-ORD-17", string(w.msgs[0].Key))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "ORDER_PLACED", decoded["event_type"])
	assert.Equal(t, "ORD-17", decoded["order_id"])
	assert.Equal(t, "COD", decoded["payment_method"])
}

func TestPublishSessionExpiredKeyedBySession(t *testing.T) {
	pub, w := newCapturePublisher()

	require.NoError(t, pub.PublishSessionExpired(context.Background(), &models.SessionExpiredEvent{
		BaseEvent: models.BaseEvent{EventID: "e-2", EventType: models.EventTypeSessionExpired},
		SessionID: "abc",
	}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "session-abc", string(w.msgs[0].Key))
}

func TestPaymentVerifiedWithoutOrderUsesEventKey(t *testing.T) {
	pub, w := newCapturePublisher()

	require.NoError(t, pub.PublishPaymentVerified(context.Background(), &models.PaymentVerifiedEvent{
		BaseEvent: models.BaseEvent{EventID: "e-3", EventType: models.EventTypePaymentVerified},
		Status:    "failed",
	}))
	assert.Equal(t, "payment-e-3", string(w.msgs[0].Key))
}

func TestWriteFailureIsReturned(t *testing.T) {
	pub, w := newCapturePublisher()
	w.err = errors.New("leader not available")

	err := pub.PublishOrderCancelled(context.Background(), &models.OrderCancelledEvent{OrderID: "1"})
	assert.ErrorContains(t, err, "leader not available")
}
