package broker

import (
	"context"
	"fmt"

	"storefront/internal/models"
)

// EventPublisher handles publishing storefront events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPlaced publishes OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderCancelled publishes OrderCancelled event
func (ep *EventPublisher) PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishPaymentVerified publishes PaymentVerified event
func (ep *EventPublisher) PublishPaymentVerified(ctx context.Context, event *models.PaymentVerifiedEvent) error {
	key := orderKey(event.OrderID)
	if event.OrderID == "" {
		key = "payment-" + event.EventID
	}
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSessionExpired publishes SessionExpired event
func (ep *EventPublisher) PublishSessionExpired(ctx context.Context, event *models.SessionExpiredEvent) error {
	return ep.producer.PublishEvent(ctx, "session-"+event.SessionID, event)
}

func orderKey(orderID string) string {
	return fmt.Sprintf("order-%s", orderID)
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderPlaced(context.Context, *models.OrderPlacedEvent) error { return nil }

func (NopPublisher) PublishOrderCancelled(context.Context, *models.OrderCancelledEvent) error {
	return nil
}

func (NopPublisher) PublishPaymentVerified(context.Context, *models.PaymentVerifiedEvent) error {
	return nil
}

func (NopPublisher) PublishSessionExpired(context.Context, *models.SessionExpiredEvent) error {
	return nil
}
