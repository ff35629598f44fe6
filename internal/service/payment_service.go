package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"storefront/internal/apiclient"
	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const secureHashParam = "vnp_SecureHash"

// PaymentService talks to the payment gateway endpoints of the order service
type PaymentService struct {
	api            API
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(api API, eventPublisher EventPublisher) *PaymentService {
	return &PaymentService{
		api:            api,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// CreatePaymentURL asks the server for a gateway URL the browser is sent to.
func (ps *PaymentService) CreatePaymentURL(ctx context.Context, orderID string, amount decimal.Decimal) (string, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreatePaymentURL")
	defer span.End()

	if !amount.IsPositive() {
		return "", apiclient.Invalid("amount", "amount must be greater than 0")
	}

	var resp urlResponse
	err := ps.api.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/payment/create_payment",
		Query: url.Values{
			"amount":    {amount.Round(0).String()},
			"orderInfo": {"Thanh toan don hang " + orderID},
			"orderId":   {orderID},
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to create payment: %w", err)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("payment service returned no url for order %s", orderID)
	}

	ps.logger.Info("Payment URL created", zap.String("order_id", orderID))
	return resp.URL, nil
}

// VerifyReturn forwards the gateway's signed return query, unchanged, to the
// server for verification. A query without the gateway signature is refused
// without a network call.
func (ps *PaymentService) VerifyReturn(ctx context.Context, rawQuery string) (*models.PaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.VerifyReturn")
	defer span.End()

	params, err := url.ParseQuery(rawQuery)
	if err != nil || params.Get(secureHashParam) == "" {
		util.PaymentVerificationsTotal.WithLabelValues("rejected").Inc()
		return nil, apiclient.Invalid(secureHashParam, "not a payment gateway return")
	}

	var result models.PaymentResult
	err = ps.api.Do(ctx, apiclient.Request{
		Method:   http.MethodGet,
		Path:     "/payment/vnpay-callback",
		RawQuery: rawQuery,
	}, &result)
	if err != nil {
		util.PaymentVerificationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}

	if result.OrderID == "" {
		result.OrderID = params.Get("vnp_TxnRef")
	}
	if !result.Succeeded() && result.Status == "" {
		result.Status = "failed"
	}

	util.PaymentVerificationsTotal.WithLabelValues(result.Status).Inc()
	ps.logger.Info("Payment return verified",
		zap.String("order_id", result.OrderID),
		zap.String("status", result.Status))

	event := &models.PaymentVerifiedEvent{
		BaseEvent: newBaseEvent(models.EventTypePaymentVerified),
		OrderID:   result.OrderID,
		Status:    result.Status,
	}
	if err := ps.eventPublisher.PublishPaymentVerified(ctx, event); err != nil {
		ps.logger.Error("Failed to publish PaymentVerified event", zap.Error(err))
	}
	return &result, nil
}
