package errors

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types for common scenarios
var (
	// 400 Bad Request
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrInvalidSignature = New(http.StatusBadRequest, "INVALID_SIGNATURE", "Webhook signature verification failed")

	// 500 Internal Server Error
	ErrSecretNotConfigured = New(http.StatusInternalServerError, "SECRET_NOT_CONFIGURED", "Webhook secret not configured.")
	ErrStoreUnavailable    = New(http.StatusInternalServerError, "STORE_UNAVAILABLE", "License store unavailable")
)

// Sentinel errors wrapped by the provisioning pipeline and the lookup
// service around store failures, the only retryable category. Callers
// match them with errors.Is.
var (
	ErrStoreWrite = errors.New("license store write failed")
	ErrStoreRead  = errors.New("license store read failed")
)

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(ErrInvalidRequest.StatusCode, ErrInvalidRequest.ErrorCode, ErrInvalidRequest.Message, err.Error())
}

// SignatureErrorWithDetail creates a signature rejection carrying the
// verifier's reason, so the provider's dashboard shows why delivery failed.
func SignatureErrorWithDetail(err error) *APIError {
	return NewWithDetails(ErrInvalidSignature.StatusCode, ErrInvalidSignature.ErrorCode, ErrInvalidSignature.Message, err.Error())
}
