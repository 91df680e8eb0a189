package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies provider failures
type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindRateLimited       ErrorKind = "rate_limited"
	KindAuthFailure       ErrorKind = "auth_failure"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindUnavailable       ErrorKind = "unavailable"
)

// ProviderError is a recoverable failure of one provider call. It is
// recorded as absent evidence and never aborts a request.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewError builds a ProviderError of the given kind
func NewError(provider string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// Malformed reports an unparseable provider answer
func Malformed(provider string, format string, args ...interface{}) *ProviderError {
	return NewError(provider, KindMalformedResponse, fmt.Errorf(format, args...))
}

// StatusError is a non-2xx HTTP response from a provider endpoint
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// HTTPStatus returns the response status code
func (e *StatusError) HTTPStatus() int { return e.Code }

type statusCoder interface {
	HTTPStatus() int
}

// Classify wraps an arbitrary error as a ProviderError for the provider.
// Existing ProviderErrors pass through unchanged.
func Classify(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewError(provider, KindTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(provider, KindTimeout, err)
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return FromStatus(provider, sc.HTTPStatus(), err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return NewError(provider, KindMalformedResponse, err)
	}

	return NewError(provider, KindUnavailable, err)
}

// FromStatus maps an HTTP status code to a ProviderError kind
func FromStatus(provider string, status int, err error) *ProviderError {
	if err == nil {
		err = fmt.Errorf("HTTP %d", status)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(provider, KindAuthFailure, err)
	case status == http.StatusTooManyRequests:
		return NewError(provider, KindRateLimited, err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewError(provider, KindTimeout, err)
	default:
		return NewError(provider, KindUnavailable, err)
	}
}

// KindOf returns the kind of a provider error, or "" for other errors
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
