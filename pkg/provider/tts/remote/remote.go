// Package remote provides a speech synthesis provider backed by the
// interview server's speech endpoint. It keeps API credentials on the
// server side: the client never holds a vendor key.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/intervox/intervox/pkg/provider/tts"
)

// DefaultTimeout bounds a single synthesis request.
const DefaultTimeout = 30 * time.Second

// Ensure Provider implements the tts.Provider interface.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider against a remote speech endpoint.
type Provider struct {
	baseURL string
	client  *http.Client
}

// config holds optional configuration for the provider.
type config struct {
	client  *http.Client
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) {
		cfg.client = c
	}
}

// WithTimeout sets the per-request timeout. Ignored when WithHTTPClient
// is also given.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.timeout = d
	}
}

// New constructs a Provider talking to baseURL, e.g.
// "https://api.example.com/api/v1".
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote tts: baseURL must not be empty")
	}

	cfg := &config{timeout: DefaultTimeout}
	for _, o := range opts {
		o(cfg)
	}
	client := cfg.client
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	}
	return &Provider{baseURL: baseURL, client: client}, nil
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (tts.Result, error) {
	if req.Text == "" {
		return tts.Result{}, fmt.Errorf("remote tts: text must not be empty")
	}

	body, err := json.Marshal(synthesizeRequest{Text: req.Text, Voice: string(req.Voice)})
	if err != nil {
		return tts.Result{}, fmt.Errorf("remote tts: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/speech/synthesize", bytes.NewReader(body))
	if err != nil {
		return tts.Result{}, fmt.Errorf("remote tts: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return tts.Result{}, fmt.Errorf("remote tts: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return tts.Result{}, fmt.Errorf("remote tts: server returned %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Result{}, fmt.Errorf("remote tts: read response: %w", err)
	}
	if len(data) == 0 {
		return tts.Result{}, fmt.Errorf("remote tts: empty response")
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "audio/mpeg"
	}
	return tts.Result{Audio: data, MIMEType: mime}, nil
}
