package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced     = "ORDER_PLACED"
	EventTypeOrderCancelled  = "ORDER_CANCELLED"
	EventTypePaymentVerified = "PAYMENT_VERIFIED"
	EventTypeSessionExpired  = "SESSION_EXPIRED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published after checkout succeeds
type OrderPlacedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	UserID        int64           `json:"user_id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	TotalMoney    decimal.Decimal `json:"total_money"`
	Items         []OrderItemData `json:"items"`
}

// OrderCancelledEvent published when a customer cancels a pending order
type OrderCancelledEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	UserID  int64  `json:"user_id"`
}

// PaymentVerifiedEvent published after the gateway return was verified server-side
type PaymentVerifiedEvent struct {
	BaseEvent
	OrderID string `json:"order_id,omitempty"`
	Status  string `json:"status"`
}

// SessionExpiredEvent published when a refresh fails and the session is dropped
type SessionExpiredEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	UserID    int64  `json:"user_id,omitempty"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
