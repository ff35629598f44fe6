package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrReauthRequired signals that the session is gone and the user must sign in again.
var ErrReauthRequired = errors.New("re-authentication required")

// ReauthError carries the login view the caller should redirect to. Redirect
// is empty when the user is already on that view.
type ReauthError struct {
	Redirect string
	Cause    error
}

func (e *ReauthError) Error() string {
	if e.Cause == nil {
		return ErrReauthRequired.Error()
	}
	return fmt.Sprintf("%s: %v", ErrReauthRequired, e.Cause)
}

func (e *ReauthError) Is(target error) bool {
	return target == ErrReauthRequired
}

func (e *ReauthError) Unwrap() error {
	return e.Cause
}

// APIError is a non-2xx response from the remote API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// ValidationError is a user-input problem found before any network call.
type ValidationError struct {
	Fields  map[string]string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Invalid builds a single-message validation error.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}, Message: message}
}

// FromValidator converts go-playground validator output into a ValidationError.
// Errors of any other type are returned unchanged.
func FromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "numeric":
		return "must contain digits only"
	case "oneof":
		return "must be one of " + fe.Param()
	case "eqfield":
		return "must match " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// Kind groups errors by how the UI reacts to them.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Classify maps an error onto the taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return KindValidation
	}
	if errors.Is(err, ErrReauthRequired) {
		return KindAuthorization
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case IsAuthorization(apiErr.StatusCode):
			return KindAuthorization
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return KindResource
		}
	}
	return KindUnknown
}

// IsAuthorization reports whether status is 401 or 403.
func IsAuthorization(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict reports whether err is an upstream 409.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
