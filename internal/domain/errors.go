package domain

import (
	"context"
	"errors"
	"net"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUpstream        = errors.New("upstream unavailable")
	ErrInvalidOrder    = errors.New("invalid order parameters")
	ErrSigningFailed   = errors.New("signing failed")
	ErrLockHeld        = errors.New("lock already held")
	ErrInvalidParams   = errors.New("invalid parameters")
	ErrMalformedRecord = errors.New("malformed record")
	ErrNoEvidence      = errors.New("no evidence")

	// ErrNotSubmitted marks an order failure that happened before the order
	// reached the exchange. Such failures have no on-chain effect.
	ErrNotSubmitted = errors.New("order not submitted")
)

// IsTransient reports whether err is a transient remote failure worth
// retrying: rate limiting, 5xx responses, timeouts and network errors.
// Malformed data, auth failures and not-found are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrMalformedRecord),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidParams),
		errors.Is(err, ErrNoEvidence),
		errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrUpstream),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsSafeToRetry reports whether a failed order submission can be retried
// without risking a duplicate fill.
func IsSafeToRetry(err error) bool {
	return errors.Is(err, ErrNotSubmitted) || errors.Is(err, ErrRateLimited)
}
