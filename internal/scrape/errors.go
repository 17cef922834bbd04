package scrape

import (
	"context"
	"errors"
	"net"
	"syscall"
)

// Sentinel errors forming the acquisition error taxonomy. Fetchers and the
// orchestrator wrap these with fmt.Errorf("%w: ...") so callers can classify
// with errors.Is.
var (
	// ErrValidation marks malformed targets or options. Reported before any
	// fetch, never retried.
	ErrValidation = errors.New("validation failed")

	// ErrSafetyRejected marks targets failing host/scheme safety checks.
	// Never retried and never escalated to another strategy.
	ErrSafetyRejected = errors.New("target rejected by safety policy")

	// ErrCategorical marks responses where the target actively blocked the
	// fetch. Remaining retries of the current kind are skipped and the next
	// kind is tried immediately.
	ErrCategorical = errors.New("fetch blocked by target")

	// ErrExhausted marks an acquisition where every kind ran out of retries.
	// It always wraps the last underlying cause.
	ErrExhausted = errors.New("all fetch strategies exhausted")
)

// IsTransient reports whether err is eligible for retry within the same
// fetcher kind: timeouts, connection resets and closed fetch sessions.
// Errors that belong to another class are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrSafetyRejected) ||
		errors.Is(err, ErrCategorical) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	// Unknown fetch failures (DNS hiccups, dropped sessions) get the benefit
	// of the doubt and stay retryable within the kind.
	return true
}
