// Package remote provides a transcription provider backed by the
// interview server's speech endpoint. The clip is uploaded as a
// multipart form; credentials stay on the server.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/intervox/intervox/pkg/audio"
	"github.com/intervox/intervox/pkg/provider/stt"
)

// DefaultTimeout bounds a single transcription request.
const DefaultTimeout = 60 * time.Second

// Ensure Provider implements the stt.Provider interface.
var _ stt.Provider = (*Provider)(nil)

// Provider implements stt.Provider against a remote speech endpoint.
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
		return nil, fmt.Errorf("remote stt: baseURL must not be empty")
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

type transcribeResponse struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip) (stt.Transcript, error) {
	if len(clip.Data) == 0 {
		return stt.Transcript{}, fmt.Errorf("remote stt: clip is empty")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreatePart(filePartHeader(clip.MIMEType))
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("remote stt: build form: %w", err)
	}
	if _, err := part.Write(clip.Data); err != nil {
		return stt.Transcript{}, fmt.Errorf("remote stt: write clip: %w", err)
	}
	if err := mw.Close(); err != nil {
		return stt.Transcript{}, fmt.Errorf("remote stt: finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/speech/transcribe", &body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("remote stt: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("remote stt: transcribe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stt.Transcript{}, fmt.Errorf("remote stt: server returned %s", resp.Status)
	}

	var decoded transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return stt.Transcript{}, fmt.Errorf("remote stt: decode response: %w", err)
	}
	return stt.Transcript{Text: decoded.Text, Language: decoded.Language}, nil
}

// filePartHeader builds the multipart header for the clip upload.
func filePartHeader(mime string) textproto.MIMEHeader {
	if mime == "" {
		mime = "application/octet-stream"
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="answer.webm"`)
	h.Set("Content-Type", mime)
	return h
}
