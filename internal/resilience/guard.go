package resilience

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInFlight is returned by [Guard.Do] when a call of the same kind is
// already running. The second call is refused outright — not queued, not
// retried — so a double click can never produce a duplicate submission.
var ErrInFlight = errors.New("operation already in flight")

// Kind identifies one network-bound operation class. The guard holds at
// most one in-flight call per kind.
type Kind string

const (
	OpStart            Kind = "start"
	OpSubmitAnswer     Kind = "submitAnswer"
	OpNextQuestion     Kind = "nextQuestion"
	OpGenerateFeedback Kind = "generateFeedback"
)

// Guard enforces single-flight semantics per operation [Kind]. It is the
// idempotency layer between user actions and the remote service: whatever
// happens inside fn — error return or panic — the lock is released before
// Do returns.
//
// Guard is safe for concurrent use.
type Guard struct {
	mu       sync.Mutex
	inflight map[Kind]bool
}

// NewGuard creates an empty Guard.
func NewGuard() *Guard {
	return &Guard{inflight: make(map[Kind]bool)}
}

// Do runs fn under the single-flight lock for kind. If a call of the same
// kind is already running it returns an error wrapping [ErrInFlight]
// without invoking fn.
func (g *Guard) Do(kind Kind, fn func() error) error {
	g.mu.Lock()
	if g.inflight[kind] {
		g.mu.Unlock()
		return fmt.Errorf("%s: %w", kind, ErrInFlight)
	}
	g.inflight[kind] = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.inflight, kind)
		g.mu.Unlock()
	}()

	return fn()
}

// InFlight reports whether a call of the given kind is currently running.
func (g *Guard) InFlight(kind Kind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inflight[kind]
}
