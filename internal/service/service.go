// Package service holds the typed calls to the remote REST API. Every call
// goes through the session-aware API client, so all of them inherit the
// refresh-and-retry behavior. Input is validated before any request is made.
package service

import (
	"context"
	"reflect"
	"strings"
	"time"

	"storefront/internal/apiclient"
	"storefront/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// API is the part of *apiclient.Client the services use.
type API interface {
	Do(ctx context.Context, req apiclient.Request, out interface{}) error
}

// EventPublisher receives storefront events. Publish failures are logged by
// the caller and never fail the user action.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishPaymentVerified(ctx context.Context, event *models.PaymentVerifiedEvent) error
	PublishSessionExpired(ctx context.Context, event *models.SessionExpiredEvent) error
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their JSON names, as the UI knows them
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func validateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return apiclient.FromValidator(err)
	}
	return nil
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// Upload is a file received from the browser, forwarded as multipart.
type Upload struct {
	FileName string
	Content  []byte
}

func (u Upload) validate() error {
	if len(u.Content) == 0 {
		return apiclient.Invalid("file", "file is required")
	}
	return nil
}

type urlResponse struct {
	URL string `json:"url"`
}
