package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Execute] while the breaker is
// open. It maps to the recoverable class: the user sees the same retry
// affordance as for the underlying fault.
var ErrCircuitOpen = errors.New("interview service circuit open")

// BreakerState is the operating mode of a [Breaker].
type BreakerState int

const (
	// BreakerClosed forwards all calls.
	BreakerClosed BreakerState = iota

	// BreakerOpen rejects calls with [ErrCircuitOpen] until the cooldown
	// elapses.
	BreakerOpen

	// BreakerHalfOpen lets one probe call through; its outcome decides
	// whether the breaker closes or re-opens.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker].
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is the number of consecutive service faults before the
	// breaker opens. Default: 5.
	MaxFailures int

	// Cooldown is how long the breaker stays open before probing again.
	// Default: 15s.
	Cooldown time.Duration
}

// Breaker is a three-state circuit breaker in front of the remote
// interview service. Only service faults count against it: bad input and
// terminal identity errors pass through without tripping, because a user
// typo says nothing about the service's health.
//
// Breaker is safe for concurrent use.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a [Breaker], replacing zero config fields with
// defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
	}
}

// Execute runs fn unless the breaker is open. While open it returns
// [ErrCircuitOpen] without touching the network; after the cooldown a
// single probe call is let through.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case BreakerOpen:
		if time.Since(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
		b.probing = false
		slog.Info("circuit half-open, probing service", "breaker", b.name)
		fallthrough
	case BreakerHalfOpen:
		if b.probing {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probing = true
	}
	probe := b.state == BreakerHalfOpen
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if probe {
		b.probing = false
	}

	switch {
	case err == nil:
		if b.state != BreakerClosed {
			slog.Info("circuit closed", "breaker", b.name)
		}
		b.state = BreakerClosed
		b.failures = 0

	case !AutoRetryable(err):
		// The service answered; whatever it said is not a health signal.

	case probe:
		b.state = BreakerOpen
		b.openedAt = time.Now()
		slog.Warn("circuit re-opened after failed probe", "breaker", b.name, "error", err)

	default:
		b.failures++
		if b.failures >= b.maxFailures {
			b.state = BreakerOpen
			b.openedAt = time.Now()
			slog.Warn("circuit opened",
				"breaker", b.name,
				"consecutive_failures", b.failures,
			)
		}
	}
	return err
}

// State returns the breaker's current state. An open breaker whose
// cooldown has elapsed reports [BreakerHalfOpen]; the actual transition
// happens on the next Execute.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && time.Since(b.openedAt) >= b.cooldown {
		return BreakerHalfOpen
	}
	return b.state
}
