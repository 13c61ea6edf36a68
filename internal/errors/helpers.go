package errors

import (
	"fmt"
	"net/http"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, value, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithContext("value", value).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewDatabaseError creates a local store error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("local store %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Local store operation failed")
}

// NewAPIError creates a backend API error. Server-side and throttling
// failures are retryable; client errors are not.
func NewAPIError(endpoint string, statusCode int, err error) *AppError {
	code := ErrCodeBackendAPI
	switch statusCode {
	case http.StatusUnauthorized:
		code = ErrCodeAuthentication
	case http.StatusForbidden:
		code = ErrCodeAuthorization
	case http.StatusNotFound:
		code = ErrCodeNotFound
	}

	appErr := Wrap(err, code, "backend API call failed").
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode)

	if statusCode >= 500 || statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout {
		appErr.Retryable = true
	}

	return appErr
}

// NewChannelError creates a realtime channel error; channel failures are
// always retryable (the subscriber backs off and resubscribes).
func NewChannelError(channel string, err error) *AppError {
	return WrapRetryable(err, ErrCodeRealtimeChannel, "realtime channel failed").
		WithContext("channel", channel)
}

// NewTransitionError creates an order status transition error
func NewTransitionError(orderID, from, to string) *AppError {
	return New(ErrCodeInvalidTransition, fmt.Sprintf("cannot transition from %s to %s", from, to)).
		WithContext("order_id", orderID).
		WithContext("from", from).
		WithContext("to", to).
		WithUserMessage(fmt.Sprintf("Order cannot move from %s to %s", from, to))
}

// NewNotFoundError creates a not-found error for a row lookup
func NewNotFoundError(entity, id string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", entity)).
		WithContext("entity", entity).
		WithContext("id", id).
		WithUserMessage(fmt.Sprintf("%s not found", entity))
}

// NewTimeoutError creates a timeout error with context
func NewTimeoutError(operation string, duration string) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", operation, duration)).
		WithContext("operation", operation).
		WithContext("timeout", duration).
		WithUserMessage("Operation timed out, please try again")
}

// NewAuthError creates an authentication error; never retryable, the
// session is terminated instead.
func NewAuthError(reason string) *AppError {
	return New(ErrCodeAuthentication, "authentication failed").
		WithContext("reason", reason).
		WithUserMessage("Access denied. This dashboard is for administrators only.")
}
