// Package cache provides a caching decorator for tts.Provider. Interview
// prompts repeat heavily (warmup questions, closing lines), so caching
// synthesized audio by text and voice saves most synthesis calls in a
// session.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/intervox/intervox/pkg/provider/tts"
)

// Default cache lifetimes. Synthesized audio for a given text never
// changes mid-session, so a long TTL is safe.
const (
	DefaultTTL             = 30 * time.Minute
	DefaultCleanupInterval = 5 * time.Minute
)

// Ensure Provider implements the tts.Provider interface.
var _ tts.Provider = (*Provider)(nil)

// Provider wraps another tts.Provider with an in-memory result cache.
type Provider struct {
	next  tts.Provider
	store *gocache.Cache
}

// config holds optional configuration for the provider.
type config struct {
	ttl     time.Duration
	cleanup time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithTTL sets how long cached audio stays valid.
func WithTTL(d time.Duration) Option {
	return func(c *config) {
		c.ttl = d
	}
}

// WithCleanupInterval sets how often expired entries are evicted.
func WithCleanupInterval(d time.Duration) Option {
	return func(c *config) {
		c.cleanup = d
	}
}

// New wraps next with a result cache.
func New(next tts.Provider, opts ...Option) *Provider {
	cfg := &config{ttl: DefaultTTL, cleanup: DefaultCleanupInterval}
	for _, o := range opts {
		o(cfg)
	}
	return &Provider{
		next:  next,
		store: gocache.New(cfg.ttl, cfg.cleanup),
	}
}

// Synthesize implements tts.Provider. Errors are never cached.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (tts.Result, error) {
	k := key(req)
	if hit, ok := p.store.Get(k); ok {
		return hit.(tts.Result), nil
	}

	res, err := p.next.Synthesize(ctx, req)
	if err != nil {
		return tts.Result{}, err
	}
	p.store.Set(k, res, gocache.DefaultExpiration)
	return res, nil
}

// Len returns the number of cached entries, expired ones included.
func (p *Provider) Len() int {
	return p.store.ItemCount()
}

// key derives the cache key from the request. Voice participates because
// the same text synthesized with two voices yields different audio.
func key(req tts.Request) string {
	h := sha256.Sum256([]byte(string(req.Voice) + "\x00" + req.Text))
	return hex.EncodeToString(h[:])
}
