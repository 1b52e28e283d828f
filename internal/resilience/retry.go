package resilience

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"go.opentelemetry.io/otel/metric"

	"github.com/intervox/intervox/internal/observe"
)

// retryMetrics is resolved per call so tests can swap in an inspectable
// sink.
var retryMetrics = observe.Default

// Default retry parameters. Two retries (three attempts) keeps the worst
// case under a few seconds while still riding out a blip.
const (
	defaultAttempts = 3
	defaultDelay    = 500 * time.Millisecond
	defaultMaxDelay = 4 * time.Second
)

// RetryConfig bounds automatic retries of recoverable failures.
type RetryConfig struct {
	// Attempts is the total number of attempts including the first.
	// Default: 3.
	Attempts uint `yaml:"attempts" env:"INTERVOX_RETRY_ATTEMPTS"`

	// Delay is the initial backoff delay. Doubles each attempt. Default: 500ms.
	Delay time.Duration `yaml:"delay" env:"INTERVOX_RETRY_DELAY"`

	// MaxDelay caps the backoff. Default: 4s.
	MaxDelay time.Duration `yaml:"max_delay" env:"INTERVOX_RETRY_MAX_DELAY"`
}

// withDefaults returns cfg with zero fields replaced by defaults.
func (c RetryConfig) withDefaults() RetryConfig {
	if c.Attempts == 0 {
		c.Attempts = defaultAttempts
	}
	if c.Delay <= 0 {
		c.Delay = defaultDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	return c
}

// Retry runs fn, retrying with exponential backoff as long as the error is
// [AutoRetryable]. Terminal errors, bad input, and context cancellation
// abort immediately. The last error is returned unwrapped from the retry
// machinery so [errors.Is] checks against the taxonomy keep working.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(cfg.Attempts),
		retry.Delay(cfg.Delay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(AutoRetryable),
		retry.OnRetry(func(n uint, err error) {
			retryMetrics().RetryAttempts.Add(ctx, 1,
				metric.WithAttributes(observe.Attr("op", name)))
			slog.Warn("retrying operation",
				"op", name,
				"attempt", n+1,
				"of", cfg.Attempts,
				"error", err,
			)
		}),
	)
}
