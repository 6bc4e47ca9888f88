// Package errors defines the typed error taxonomy for the client layer.
//
// Every failure that crosses a package boundary is a *ServiceError carrying a
// stable code, a human-readable message and, where available, the remote
// payload for diagnostics. Plain wrapped errors are reserved for internal
// plumbing.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class independent of the transport status.
type Code string

const (
	// CodeTransport covers network-level failures where no response was
	// received. The numeric status for these is always 0.
	CodeTransport Code = "TRANSPORT_ERROR"
	// CodeTimeout covers calls aborted by an explicit deadline.
	CodeTimeout Code = "TIMEOUT"
	// CodeRemote covers well-formed responses the remote service rejected at
	// the business level.
	CodeRemote Code = "REMOTE_REJECTED"
	// CodeUnauthorized covers 401 responses. Local identity is always cleared
	// when this surfaces, regardless of which call produced it.
	CodeUnauthorized Code = "UNAUTHORIZED"
	// CodeConfig covers local misconfiguration (e.g. a plan without a price
	// identifier). These are recovered locally where possible.
	CodeConfig Code = "CONFIG_ERROR"
	// CodeInvalidResponse covers responses that parsed but are missing fields
	// the operation requires (e.g. a login response without a token).
	CodeInvalidResponse Code = "INVALID_RESPONSE"
)

// ServiceError is the error type surfaced by the API client and the session
// layer.
type ServiceError struct {
	Code    Code
	Message string
	// Status is the numeric code attached to the failure: the envelope code
	// when present, otherwise the HTTP status, otherwise 0.
	Status int
	// Details holds diagnostic context, including the raw response payload
	// under "payload" for remote rejections.
	Details map[string]interface{}
	Err     error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a diagnostic key/value pair and returns the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Transport wraps a network-level failure. Status is 0 because no response
// was received.
func Transport(err error) *ServiceError {
	return &ServiceError{
		Code:    CodeTransport,
		Message: "network request failed",
		Status:  0,
		Err:     err,
	}
}

// Timeout wraps a deadline-triggered abort.
func Timeout(err error) *ServiceError {
	return &ServiceError{
		Code:    CodeTimeout,
		Message: "request timed out",
		Status:  0,
		Err:     err,
	}
}

// Remote builds a business-level rejection from the remote message and code.
func Remote(message string, status int) *ServiceError {
	if message == "" {
		message = "request failed"
	}
	return &ServiceError{
		Code:    CodeRemote,
		Message: message,
		Status:  status,
	}
}

// Unauthorized builds an authorization failure.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "unauthorized"
	}
	return &ServiceError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// Config builds a local configuration failure.
func Config(message string) *ServiceError {
	return &ServiceError{
		Code:    CodeConfig,
		Message: message,
	}
}

// InvalidResponse builds a failure for a response missing required fields.
func InvalidResponse(message string) *ServiceError {
	return &ServiceError{
		Code:    CodeInvalidResponse,
		Message: message,
	}
}

// GetServiceError returns the *ServiceError in err's chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// IsUnauthorized reports whether err is an authorization failure.
func IsUnauthorized(err error) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == CodeUnauthorized
}

// IsTimeout reports whether err is a deadline-triggered abort.
func IsTimeout(err error) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == CodeTimeout
}

// IsTransport reports whether err is a network-level failure.
func IsTransport(err error) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == CodeTransport
}
