// Package interview provides the typed client for the remote interview
// service. The wire contract is minimal: session lifecycle operations
// addressed by an opaque session identifier the server issues at start.
package interview

import "context"

// Feedback sources. A server evaluation is authoritative; the local
// estimate exists so a dead feedback endpoint never leaves the user with
// a raw error instead of a result.
const (
	FeedbackSourceServer        = "server"
	FeedbackSourceLocalEstimate = "local-estimate"
)

// Service is the remote interview API consumed by the session engine.
type Service interface {
	// StartSession creates a session for userID and returns its identifier,
	// optionally along with the first question.
	StartSession(ctx context.Context, userID string) (StartResponse, error)

	// NextQuestion records previousAnswer (when non-empty) and fetches the
	// next prompt in one round-trip.
	NextQuestion(ctx context.Context, sessionID, previousAnswer string) (NextQuestionResponse, error)

	// SubmitAnswer records one candidate answer.
	SubmitAnswer(ctx context.Context, sessionID string, req SubmitAnswerRequest) (SubmitAnswerResponse, error)

	// EndSession tells the server the interview is over.
	EndSession(ctx context.Context, sessionID string) error

	// GetFeedback fetches the server's evaluation of the session.
	GetFeedback(ctx context.Context, sessionID string) (Feedback, error)
}

// StartResponse is the payload of a successful session start.
type StartResponse struct {
	SessionID string `json:"sessionId"`
	Question  string `json:"question,omitempty"`
	AudioRef  string `json:"audioRef,omitempty"`
}

// NextQuestionResponse carries the next prompt, or the completion signal
// when the server decides the interview is over.
type NextQuestionResponse struct {
	Question           string `json:"question,omitempty"`
	AudioRef           string `json:"audioRef,omitempty"`
	QuestionNumber     int    `json:"questionNumber,omitempty"`
	InterviewCompleted bool   `json:"interviewCompleted,omitempty"`
}

// SubmitAnswerRequest records one answer against the question it responds
// to. ResponseTime is how long the candidate took, in seconds.
type SubmitAnswerRequest struct {
	Question     string  `json:"question"`
	Answer       string  `json:"answer"`
	ResponseTime float64 `json:"responseTime,omitempty"`
}

// SubmitAnswerResponse optionally carries an interviewer reaction and
// interim scores, or the completion signal.
type SubmitAnswerResponse struct {
	AIResponse         string  `json:"aiResponse,omitempty"`
	AudioRef           string  `json:"audioRef,omitempty"`
	Scores             *Scores `json:"scores,omitempty"`
	InterviewCompleted bool    `json:"interviewCompleted,omitempty"`
}

// Scores are the evaluation components, each on a 0-100 scale.
type Scores struct {
	Relevance         float64 `json:"relevance"`
	TechnicalAccuracy float64 `json:"technicalAccuracy"`
	Communication     float64 `json:"communication"`
}

// Feedback is the final session evaluation.
type Feedback struct {
	OverallScore    float64  `json:"overallScore"`
	ComponentScores Scores   `json:"componentScores"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	Recommendations []string `json:"recommendations"`
	Summary         string   `json:"summary"`

	// Source is FeedbackSourceServer or FeedbackSourceLocalEstimate. Not
	// part of the wire format; set by whoever produced the value.
	Source string `json:"-"`
}
