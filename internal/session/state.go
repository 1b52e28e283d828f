// Package session implements the interview session engine: the state
// machine that owns session identity and turn history, and drives the
// remote interview service, the playback queue, the recorder, and the
// answer classifier in response to user actions.
package session

import "errors"

// ErrInvalidState is returned when an operation is called in a status
// that does not permit it, e.g. submitting an answer before a question
// was asked.
var ErrInvalidState = errors.New("operation not valid in current session state")

// Status is the lifecycle state of a session. Terminal states are never
// left; restarting constructs a fresh engine.
type Status int

const (
	// Idle is the initial state: no session exists yet.
	Idle Status = iota

	// Starting means the remote start call is in flight.
	Starting

	// Active means a session exists and the interviewer has the floor.
	Active

	// AwaitingAnswer means a question was asked and the candidate has the
	// floor.
	AwaitingAnswer

	// Evaluating means the exchange is over and feedback is pending.
	Evaluating

	// Completed is terminal: feedback was produced.
	Completed

	// Failed is terminal: an unrecoverable error ended the attempt.
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Active:
		return "active"
	case AwaitingAnswer:
		return "awaiting-answer"
	case Evaluating:
		return "evaluating"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s can never be left.
func (s Status) Terminal() bool {
	return s == Completed || s == Failed
}

// Role identifies who produced a turn.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

// Turn is one contribution in the session's ordered history. The history
// is append-only; turns are never edited or removed.
type Turn struct {
	// Role is who spoke.
	Role Role

	// Content is the displayed text. For a rejected candidate answer this
	// is the no-answer sentinel, never the raw transcript.
	Content string

	// AudioRef optionally references pre-synthesized audio for the turn.
	AudioRef string

	// QuestionNumber is the 1-based question this turn belongs to.
	QuestionNumber int
}
