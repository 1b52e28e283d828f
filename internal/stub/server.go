// Package stub is an in-memory reference implementation of the remote
// interview service contract. It exists so the client can be exercised
// end to end without the real backend: integration tests run against it,
// and `intervox-stub` serves it for manual sessions.
package stub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/intervox/intervox/internal/config"
	"github.com/intervox/intervox/internal/interview"
)

// silentClipThreshold is the payload size below which an uploaded answer
// clip is treated as silence.
const silentClipThreshold = 1024

// DefaultMaxQuestions matches the client's question ceiling.
const DefaultMaxQuestions = 10

// behavioralQuestions opens with the classic HR warm-ups, then rotates
// through scenario prompts.
var behavioralQuestions = []string{
	"Tell me about yourself.",
	"What are your greatest strengths and weaknesses?",
	"Why should we hire you?",
	"Describe a time you disagreed with a teammate. How did you resolve it?",
	"Tell me about a project you are proud of.",
	"How do you handle tight deadlines?",
	"Describe a situation where you had to learn something quickly.",
	"Tell me about a time you failed. What did you take away from it?",
	"How do you prioritize competing tasks?",
	"Where do you see yourself in five years?",
}

var technicalQuestions = []string{
	"Walk me through a system you designed end to end.",
	"How would you debug a service whose latency doubled overnight?",
	"Explain the trade-offs between consistency and availability.",
	"How do you decide between a queue and a synchronous call?",
	"Describe your approach to schema migrations with zero downtime.",
	"How would you design rate limiting for a public API?",
	"What does idempotency mean and why does it matter?",
	"How do you approach testing a concurrent component?",
	"Explain how you would shard a growing relational database.",
	"How do you keep secrets out of application code?",
}

// Server implements the interview service contract in memory.
type Server struct {
	variant      config.Variant
	maxQuestions int

	mu       sync.Mutex
	sessions map[string]*sessionState
}

type sessionState struct {
	userID    string
	questions []string
	asked     int
	answers   []recordedAnswer
	ended     bool
}

type recordedAnswer struct {
	question     string
	answer       string
	responseTime float64
}

// Option is a functional option for Server.
type Option func(*Server)

// WithVariant selects the question bank. Default: behavioral.
func WithVariant(v config.Variant) Option {
	return func(s *Server) {
		s.variant = v
	}
}

// WithMaxQuestions overrides the question ceiling.
func WithMaxQuestions(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxQuestions = n
		}
	}
}

// New creates a stub Server.
func New(opts ...Option) *Server {
	s := &Server{
		variant:      config.VariantBehavioral,
		maxQuestions: DefaultMaxQuestions,
		sessions:     make(map[string]*sessionState),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the HTTP handler implementing the contract.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/interview", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Post("/{id}/question", s.handleNextQuestion)
		r.Post("/{id}/answer", s.handleSubmitAnswer)
		r.Post("/{id}/end", s.handleEnd)
		r.Get("/{id}/feedback", s.handleFeedback)
	})

	r.Route("/speech", func(r chi.Router) {
		r.Post("/synthesize", s.handleSynthesize)
		r.Post("/transcribe", s.handleTranscribe)
	})

	return r
}

func (s *Server) questionBank() []string {
	if s.variant == config.VariantTechnical {
		return technicalQuestions
	}
	return behavioralQuestions
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId is required"})
		return
	}

	id := uuid.NewString()
	bank := s.questionBank()
	state := &sessionState{
		userID:    req.UserID,
		questions: bank[:min(s.maxQuestions, len(bank))],
		asked:     1,
	}
	s.mu.Lock()
	s.sessions[id] = state
	s.mu.Unlock()

	slog.Info("stub: session started", "session_id", id, "user_id", req.UserID)
	writeJSON(w, http.StatusOK, interview.StartResponse{
		SessionID: id,
		Question:  state.questions[0],
	})
}

func (s *Server) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	state, ok := s.session(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	var req struct {
		PreviousAnswer string `json:"previousAnswer"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.PreviousAnswer != "" {
		state.answers = append(state.answers, recordedAnswer{
			question: state.questions[state.asked-1],
			answer:   req.PreviousAnswer,
		})
	}
	if state.ended || state.asked >= len(state.questions) {
		writeJSON(w, http.StatusOK, interview.NextQuestionResponse{InterviewCompleted: true})
		return
	}
	state.asked++
	writeJSON(w, http.StatusOK, interview.NextQuestionResponse{
		Question:       state.questions[state.asked-1],
		QuestionNumber: state.asked,
	})
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	state, ok := s.session(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	var req interview.SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Answer == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "answer is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	state.answers = append(state.answers, recordedAnswer{
		question:     req.Question,
		answer:       req.Answer,
		responseTime: req.ResponseTime,
	})
	completed := len(state.answers) >= len(state.questions)
	writeJSON(w, http.StatusOK, interview.SubmitAnswerResponse{
		Scores:             scoreAnswer(req.Answer),
		InterviewCompleted: completed,
	})
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	state, ok := s.session(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	s.mu.Lock()
	state.ended = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	state, ok := s.session(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	s.mu.Lock()
	fb := evaluate(state)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, fb)
}

// handleSynthesize returns a deterministic fake audio payload: real
// synthesis lives behind the production service, and the client only
// needs bytes it can route through its playback path.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text  string `json:"text"`
		Voice string `json:"voice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	var buf bytes.Buffer
	buf.WriteString("STUBAUDIO:")
	buf.WriteString(req.Voice)
	buf.WriteString(":")
	buf.WriteString(req.Text)
	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleTranscribe accepts a multipart clip upload. Clips under 1KB are
// treated as silence, matching the production service's behavior.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form expected"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file part is required"})
		return
	}
	defer file.Close()

	if header.Size < silentClipThreshold {
		writeJSON(w, http.StatusOK, map[string]string{"text": "No Answer"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"text": fmt.Sprintf("Transcribed answer of %d bytes.", header.Size),
	})
}

func (s *Server) session(id string) (*sessionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sessions[id]
	return state, ok
}

// scoreAnswer produces interim scores from answer length alone.
func scoreAnswer(answer string) *interview.Scores {
	words := float64(len(strings.Fields(answer)))
	c := 40 + words
	if c > 90 {
		c = 90
	}
	return &interview.Scores{
		Relevance:         70,
		TechnicalAccuracy: 65,
		Communication:     c,
	}
}

// evaluate computes the final feedback from the recorded answers.
func evaluate(state *sessionState) interview.Feedback {
	var answered int
	var totalWords int
	for _, a := range state.answers {
		if strings.HasPrefix(a.answer, "No Answer") {
			continue
		}
		answered++
		totalWords += len(strings.Fields(a.answer))
	}

	if answered == 0 {
		return interview.Feedback{
			OverallScore: 0,
			Summary:      "No answers were given, so there is nothing to evaluate.",
		}
	}

	avgWords := float64(totalWords) / float64(answered)
	comm := 40 + avgWords
	if comm > 90 {
		comm = 90
	}
	overall := 0.4*comm + 0.3*70 + 0.3*65

	return interview.Feedback{
		OverallScore: overall,
		ComponentScores: interview.Scores{
			Relevance:         70,
			TechnicalAccuracy: 65,
			Communication:     comm,
		},
		Strengths:       []string{fmt.Sprintf("Answered %d question(s).", answered)},
		Improvements:    []string{"Add measurable outcomes to your examples."},
		Recommendations: []string{"Practice the STAR structure for behavioral answers."},
		Summary:         fmt.Sprintf("Averaged %.0f words per answer across %d answered question(s).", avgWords, answered),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("stub: encode response", "error", err)
	}
}
