package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a recognition failure for the retry policy.
type Kind string

const (
	// KindAuthFailed means the credentials were rejected.
	KindAuthFailed Kind = "auth_failed"
	// KindQuotaExceeded means the provider's rate or usage limit was hit.
	KindQuotaExceeded Kind = "quota_exceeded"
	// KindInvalidConfig means the per-call settings are unusable (missing
	// key, missing region, unknown provider).
	KindInvalidConfig Kind = "invalid_config"
	// KindTransient marks failures that may succeed on retry. This is the
	// only kind the execution layer retries.
	KindTransient Kind = "transient"
	// KindUnsupported means the input cannot be processed by the provider.
	KindUnsupported Kind = "unsupported"
)

// Error is a classified recognition failure.
type Error struct {
	Kind     Kind
	Provider string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if len(parts) == 0 {
		return string(e.Kind)
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds a classified provider error.
func NewError(kind Kind, providerName, message string) *Error {
	return &Error{Kind: kind, Provider: providerName, Message: message}
}

// WrapError classifies an underlying error.
func WrapError(kind Kind, providerName string, cause error) *Error {
	return &Error{Kind: kind, Provider: providerName, Cause: cause}
}

// KindOf extracts the classification from err. Unclassified errors return "".
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsTransient reports whether err may succeed if retried.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// IsAuthFailed reports whether err is a credential rejection.
func IsAuthFailed(err error) bool { return KindOf(err) == KindAuthFailed }

// IsQuotaExceeded reports whether err is a rate or usage limit failure.
func IsQuotaExceeded(err error) bool { return KindOf(err) == KindQuotaExceeded }

// IsInvalidConfig reports whether err is an unusable-configuration failure.
func IsInvalidConfig(err error) bool { return KindOf(err) == KindInvalidConfig }

// IsUnsupported reports whether err is an unprocessable-input failure.
func IsUnsupported(err error) bool { return KindOf(err) == KindUnsupported }

// FromHTTPStatus maps a non-2xx provider response to a classified error.
func FromHTTPStatus(providerName string, status int, body string) *Error {
	msg := strings.TrimSpace(body)
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(KindAuthFailed, providerName, msg)
	case status == http.StatusTooManyRequests:
		return NewError(KindQuotaExceeded, providerName, msg)
	case status == http.StatusBadRequest ||
		status == http.StatusUnsupportedMediaType ||
		status == http.StatusUnprocessableEntity:
		return NewError(KindUnsupported, providerName, msg)
	case status == http.StatusRequestTimeout || status >= 500:
		return NewError(KindTransient, providerName, msg)
	default:
		return NewError(KindTransient, providerName, fmt.Sprintf("unexpected status %d: %s", status, msg))
	}
}

// WrapTransportErr classifies a transport-level failure from an HTTP call.
// Caller cancellation passes through untouched; deadline expiry and network
// failures are transient.
func WrapTransportErr(providerName string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return WrapError(KindTransient, providerName, err)
}
