// Package resilience protects the interview flow from the two failure
// sources it cannot avoid: the network (the remote interview service) and
// the user (double clicks, impatient retries). It provides the error
// taxonomy the whole engine speaks, a per-operation single-flight guard,
// bounded retry with exponential backoff, and a circuit breaker for the
// remote service.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"

	"github.com/intervox/intervox/pkg/audio"
)

// The failure taxonomy. Every error that crosses a component boundary is
// wrapped with exactly one of these sentinels so that callers can decide
// behaviour with [errors.Is] instead of string matching.
var (
	// ErrNoUserIdentity means no user identity could be resolved before
	// starting. Terminal: the flow must be restarted.
	ErrNoUserIdentity = errors.New("no user identity")

	// ErrSessionNotFound means the remote service no longer knows the
	// session (or user). Terminal: the flow must be restarted.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTransientNetwork is a transport-level failure. Recoverable and
	// eligible for automatic retry.
	ErrTransientNetwork = errors.New("transient network failure")

	// ErrServerFault is a 5xx response. Recoverable and eligible for
	// automatic retry.
	ErrServerFault = errors.New("server fault")

	// ErrBadInput is a 4xx rejection of the request payload. Recoverable
	// at the input level — the user may correct and resubmit — but never
	// retried automatically.
	ErrBadInput = errors.New("bad input")

	// ErrEmptyServerPayload means the service answered 2xx with a body the
	// caller cannot use. Feedback reads fall back to a local estimate
	// instead of failing.
	ErrEmptyServerPayload = errors.New("empty server payload")
)

// Recoverable reports whether err can be resolved without abandoning the
// session: by automatic retry, an explicit user retry, or corrected input.
func Recoverable(err error) bool {
	return errors.Is(err, ErrTransientNetwork) ||
		errors.Is(err, ErrServerFault) ||
		errors.Is(err, ErrBadInput) ||
		errors.Is(err, ErrCircuitOpen)
}

// Terminal reports whether err ends the current attempt. Terminal errors
// get a directive ("start a new interview", "allow microphone access"),
// never a retry affordance.
func Terminal(err error) bool {
	return errors.Is(err, ErrNoUserIdentity) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, audio.ErrPermissionDenied)
}

// AutoRetryable reports whether err may be retried without user
// involvement. Bad input is recoverable but needs the user to change
// something first, so it is excluded here.
func AutoRetryable(err error) bool {
	return errors.Is(err, ErrTransientNetwork) || errors.Is(err, ErrServerFault)
}
