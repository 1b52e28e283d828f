package interview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/intervox/intervox/internal/resilience"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestStartSession(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/interview/start" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["userId"] != "user-7" {
			t.Errorf("userId = %q, want %q", body["userId"], "user-7")
		}
		_ = json.NewEncoder(w).Encode(StartResponse{
			SessionID: "sess-1",
			Question:  "Tell me about yourself.",
		})
	}))

	got, err := c.StartSession(context.Background(), "user-7")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if got.SessionID != "sess-1" {
		t.Errorf("SessionID = %q, want %q", got.SessionID, "sess-1")
	}
	if got.Question != "Tell me about yourself." {
		t.Errorf("Question = %q", got.Question)
	}
}

func TestStartSessionRequiresUserID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request issued despite missing user identity")
	}))

	_, err := c.StartSession(context.Background(), "")
	if !errors.Is(err, resilience.ErrNoUserIdentity) {
		t.Fatalf("err = %v, want ErrNoUserIdentity", err)
	}
}

func TestStartSessionMissingSessionID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := c.StartSession(context.Background(), "user-7")
	if !errors.Is(err, resilience.ErrEmptyServerPayload) {
		t.Fatalf("err = %v, want ErrEmptyServerPayload", err)
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found is terminal", http.StatusNotFound, resilience.ErrSessionNotFound},
		{"bad request is bad input", http.StatusBadRequest, resilience.ErrBadInput},
		{"unprocessable is bad input", http.StatusUnprocessableEntity, resilience.ErrBadInput},
		{"internal error is server fault", http.StatusInternalServerError, resilience.ErrServerFault},
		{"bad gateway is server fault", http.StatusBadGateway, resilience.ErrServerFault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			_, err := c.NextQuestion(context.Background(), "sess-1", "")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // dead endpoint

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.StartSession(context.Background(), "user-7")
	if !errors.Is(err, resilience.ErrTransientNetwork) {
		t.Fatalf("err = %v, want ErrTransientNetwork", err)
	}
}

func TestConfiguredHTTPClientTimeoutApplies(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c, err := NewClient(srv.URL, WithHTTPClient(&http.Client{Timeout: 30 * time.Millisecond}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	start := time.Now()
	_, err = c.StartSession(context.Background(), "user-7")
	if !errors.Is(err, resilience.ErrTransientNetwork) {
		t.Fatalf("err = %v, want ErrTransientNetwork", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("request took %v, configured timeout not enforced", elapsed)
	}
}

func TestNextQuestionCompletionSignal(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"interviewCompleted":true}`))
	}))

	got, err := c.NextQuestion(context.Background(), "sess-1", "my final answer")
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if !got.InterviewCompleted {
		t.Error("InterviewCompleted = false, want true")
	}
}

func TestNextQuestionEmptyPayload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := c.NextQuestion(context.Background(), "sess-1", "")
	if !errors.Is(err, resilience.ErrEmptyServerPayload) {
		t.Fatalf("err = %v, want ErrEmptyServerPayload", err)
	}
}

func TestSubmitAnswer(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/interview/sess-1/answer" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req SubmitAnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Answer != "I led a team of five engineers." {
			t.Errorf("answer = %q", req.Answer)
		}
		_ = json.NewEncoder(w).Encode(SubmitAnswerResponse{
			AIResponse: "Interesting, tell me more.",
			Scores:     &Scores{Relevance: 80, TechnicalAccuracy: 70, Communication: 90},
		})
	}))

	got, err := c.SubmitAnswer(context.Background(), "sess-1", SubmitAnswerRequest{
		Question: "Tell me about yourself.",
		Answer:   "I led a team of five engineers.",
	})
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if got.Scores == nil || got.Scores.Communication != 90 {
		t.Errorf("Scores = %+v", got.Scores)
	}
}

func TestEndSessionEmptyBodyOK(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/interview/sess-1/end" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := c.EndSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
}

func TestGetFeedback(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"overallScore":    78.5,
			"componentScores": map[string]float64{"relevance": 80, "technicalAccuracy": 75, "communication": 81},
			"strengths":       []string{"clear structure"},
			"improvements":    []string{"quantify impact"},
			"recommendations": []string{"practice STAR answers"},
			"summary":         "Solid performance overall.",
		})
	}))

	got, err := c.GetFeedback(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("GetFeedback: %v", err)
	}
	if got.OverallScore != 78.5 {
		t.Errorf("OverallScore = %v, want 78.5", got.OverallScore)
	}
	if got.Source != FeedbackSourceServer {
		t.Errorf("Source = %q, want %q", got.Source, FeedbackSourceServer)
	}
	if got.ComponentScores.Relevance != 80 {
		t.Errorf("Relevance = %v, want 80", got.ComponentScores.Relevance)
	}
}

func TestGetFeedbackEmptyPayload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := c.GetFeedback(context.Background(), "sess-1")
	if !errors.Is(err, resilience.ErrEmptyServerPayload) {
		t.Fatalf("err = %v, want ErrEmptyServerPayload", err)
	}
}

func TestBreakerOpensAfterRepeatedFaults(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	breaker := resilience.NewBreaker(resilience.BreakerConfig{Name: "test", MaxFailures: 2})
	c, err := NewClient(srv.URL, WithBreaker(breaker))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := c.StartSession(context.Background(), "u"); !errors.Is(err, resilience.ErrServerFault) {
			t.Fatalf("call %d: err = %v, want ErrServerFault", i, err)
		}
	}
	if _, err := c.StartSession(context.Background(), "u"); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server saw %d calls, want 2 (third must be short-circuited)", got)
	}
}
