package interview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/intervox/intervox/internal/observe"
	"github.com/intervox/intervox/internal/resilience"
)

// DefaultTimeout bounds a single interview-service request.
const DefaultTimeout = 30 * time.Second

// Ensure Client implements the Service interface.
var _ Service = (*Client)(nil)

// Client is the HTTP implementation of [Service]. Every error it returns
// is classified into the resilience taxonomy, so callers decide retry
// behavior with errors.Is alone. All calls pass through a circuit
// breaker.
type Client struct {
	baseURL string
	client  *http.Client
	breaker *resilience.Breaker
	metrics *observe.Metrics
}

// ClientOption is a functional option for Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.client = c
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *resilience.Breaker) ClientOption {
	return func(cl *Client) {
		cl.breaker = b
	}
}

// WithMetrics replaces the default metrics sink.
func WithMetrics(m *observe.Metrics) ClientOption {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// NewClient constructs a Client for baseURL, e.g.
// "https://api.example.com/api/v1".
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("interview client: baseURL must not be empty")
	}
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
		breaker: resilience.NewBreaker(resilience.BreakerConfig{Name: "interview-service"}),
		metrics: observe.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

type startRequest struct {
	UserID string `json:"userId"`
}

// StartSession implements [Service].
func (c *Client) StartSession(ctx context.Context, userID string) (StartResponse, error) {
	if userID == "" {
		return StartResponse{}, resilience.ErrNoUserIdentity
	}
	resp, err := doJSON[StartResponse](ctx, c, "start", http.MethodPost, "/interview/start", startRequest{UserID: userID})
	if err != nil {
		return StartResponse{}, err
	}
	if resp.SessionID == "" {
		return StartResponse{}, fmt.Errorf("start session: missing sessionId: %w", resilience.ErrEmptyServerPayload)
	}
	return resp, nil
}

type nextQuestionRequest struct {
	PreviousAnswer string `json:"previousAnswer,omitempty"`
}

// NextQuestion implements [Service].
func (c *Client) NextQuestion(ctx context.Context, sessionID, previousAnswer string) (NextQuestionResponse, error) {
	resp, err := doJSON[NextQuestionResponse](ctx, c, "next_question", http.MethodPost,
		"/interview/"+sessionID+"/question", nextQuestionRequest{PreviousAnswer: previousAnswer})
	if err != nil {
		return NextQuestionResponse{}, err
	}
	if !resp.InterviewCompleted && resp.Question == "" {
		return NextQuestionResponse{}, fmt.Errorf("next question: no question and no completion signal: %w",
			resilience.ErrEmptyServerPayload)
	}
	return resp, nil
}

// SubmitAnswer implements [Service].
func (c *Client) SubmitAnswer(ctx context.Context, sessionID string, req SubmitAnswerRequest) (SubmitAnswerResponse, error) {
	return doJSON[SubmitAnswerResponse](ctx, c, "submit_answer", http.MethodPost, "/interview/"+sessionID+"/answer", req)
}

// EndSession implements [Service].
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	_, err := doJSON[struct{}](ctx, c, "end", http.MethodPost, "/interview/"+sessionID+"/end", struct{}{})
	return err
}

// GetFeedback implements [Service].
func (c *Client) GetFeedback(ctx context.Context, sessionID string) (Feedback, error) {
	fb, err := doJSON[Feedback](ctx, c, "feedback", http.MethodGet, "/interview/"+sessionID+"/feedback", nil)
	if err != nil {
		return Feedback{}, err
	}
	if fb.Summary == "" && fb.OverallScore == 0 {
		return Feedback{}, fmt.Errorf("get feedback: %w", resilience.ErrEmptyServerPayload)
	}
	fb.Source = FeedbackSourceServer
	return fb, nil
}

// doJSON performs one classified request against the interview service.
// Transport failures map to TransientNetwork, 404 to SessionNotFound,
// other 4xx to BadInput, 5xx to ServerFault, and an undecodable success
// body to EmptyServerPayload.
func doJSON[T any](ctx context.Context, c *Client, op, method, path string, body any) (T, error) {
	var out T

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return out, fmt.Errorf("%s %s: encode request: %w", method, path, err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return out, fmt.Errorf("%s %s: build request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	err = c.breaker.Execute(func() error {
		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%s %s: %w", method, path, ctx.Err())
			}
			return fmt.Errorf("%s %s: %v: %w", method, path, err, resilience.ErrTransientNetwork)
		}
		defer resp.Body.Close()

		if err := classifyStatus(resp.StatusCode); err != nil {
			// Read and discard so the connection can be reused.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, err)
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s %s: read response: %v: %w", method, path, err, resilience.ErrTransientNetwork)
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			raw = []byte("{}")
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("%s %s: decode response: %v: %w", method, path, err, resilience.ErrEmptyServerPayload)
		}
		return nil
	})

	attrs := metric.WithAttributes(observe.Attr("op", op))
	c.metrics.ServiceRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		c.metrics.ServiceErrors.Add(ctx, 1, attrs)
		return out, err
	}
	return out, nil
}

// classifyStatus maps an HTTP status to the error taxonomy. nil for 2xx.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return resilience.ErrSessionNotFound
	case status >= 500:
		return resilience.ErrServerFault
	case status >= 400:
		return resilience.ErrBadInput
	default:
		return errors.New("unexpected status class")
	}
}
