// Package apphuderr defines the single domain error type surfaced by the
// SDK and the sentinel conditions calling layers dispatch on.
package apphuderr

import (
	"errors"
	"fmt"
)

var (
	// Network conditions. The transport absorbs and retries these
	// internally; they only surface after retries are exhausted.
	ErrNetworkTimeout  = errors.New("network timeout")
	ErrHostUnreachable = errors.New("host unreachable")

	// Response conditions.
	ErrMalformedResponse = errors.New("malformed response")

	// Billing conditions.
	ErrBillingUnavailable = errors.New("billing unavailable")
	ErrUserCancelled      = errors.New("user cancelled purchase")

	// Control flow, not failures.
	ErrRegistrationInProgressSkipped = errors.New("registration already in progress, skipped")
	ErrCacheMigrationRequired        = errors.New("cache migration required")

	ErrSDKNotInitialized = errors.New("SDK not initialized")
)

// Kind classifies an error so calling UI can decide whether to prompt the
// user to check connectivity, sign in again, or just retry silently.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindServer
	KindBilling
)

// Error is the domain error carried across the SDK boundary.
type Error struct {
	Message  string
	HTTPCode int
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	if e.HTTPCode != 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.HTTPCode)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a plain domain error with an unknown kind.
func New(message string) *Error {
	return &Error{Message: message}
}

// NewNetwork wraps a transport-level failure.
func NewNetwork(message string, err error) *Error {
	return &Error{Message: message, Kind: KindNetwork, Err: err}
}

// NewHTTPStatus wraps a terminal HTTP status code.
func NewHTTPStatus(code int, message string) *Error {
	return &Error{Message: message, HTTPCode: code, Kind: KindServer}
}

// NewServer wraps errors reported in a response body's errors list.
func NewServer(messages []string) *Error {
	msg := "server reported error"
	if len(messages) > 0 {
		msg = messages[0]
	}
	return &Error{Message: msg, Kind: KindServer}
}

// NewBilling wraps a billing provider failure with its response code.
func NewBilling(code int, message string) *Error {
	return &Error{Message: message, HTTPCode: code, Kind: KindBilling, Err: ErrBillingUnavailable}
}

// From converts any error into a domain Error, passing through values that
// already are one.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr
	}
	kind := KindUnknown
	switch {
	case errors.Is(err, ErrNetworkTimeout), errors.Is(err, ErrHostUnreachable):
		kind = KindNetwork
	case errors.Is(err, ErrBillingUnavailable), errors.Is(err, ErrUserCancelled):
		kind = KindBilling
	case errors.Is(err, ErrMalformedResponse):
		kind = KindServer
	}
	return &Error{Message: err.Error(), Kind: kind, Err: err}
}
