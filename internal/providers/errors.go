package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a provider failure. The merge treats every kind the
// same; kinds exist for logs, metrics and retry decisions.
type Kind string

const (
	KindNetwork     Kind = "network"
	KindTimeout     Kind = "timeout"
	KindRateLimited Kind = "rate_limited"
	KindAuth        Kind = "auth"
	KindMalformed   Kind = "malformed"
	KindUpstream    Kind = "upstream"
	KindNotFound    Kind = "not_found"
	KindUnavailable Kind = "unavailable"
	KindConfig      Kind = "config"
	// KindCanceled means the caller gave up; it says nothing about the
	// upstream.
	KindCanceled Kind = "canceled"
)

// ProviderError is the only error type a provider returns.
type ProviderError struct {
	Provider string
	Kind     Kind
	Status   int // HTTP status when one was received
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindRateLimited, KindUpstream:
		return true
	default:
		return false
	}
}

// tripsBreaker reports whether a failure says something about upstream
// health rather than about the request.
func (k Kind) tripsBreaker() bool {
	switch k {
	case KindNetwork, KindTimeout, KindRateLimited, KindUpstream:
		return true
	default:
		return false
	}
}

// NewError builds a *ProviderError for callers outside an adapter, such as
// an aggregator abandoning a provider at its deadline.
func NewError(provider string, kind Kind, err error) *ProviderError {
	return newError(provider, kind, err)
}

func newError(provider string, kind Kind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

func errorf(provider string, kind Kind, format string, args ...any) *ProviderError {
	return newError(provider, kind, fmt.Errorf(format, args...))
}

// KindOf extracts the kind from err. Errors that did not come from a
// provider are classified as canceled, timeout or network.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if isTimeout(err) {
		return KindTimeout
	}
	return KindNetwork
}

// Wrap turns any error into a *ProviderError for provider, keeping an
// existing classification.
func Wrap(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return newError(provider, KindOf(err), err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
