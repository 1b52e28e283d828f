package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/intervox/intervox/internal/classify"
	"github.com/intervox/intervox/internal/interview"
	"github.com/intervox/intervox/internal/observe"
	"github.com/intervox/intervox/internal/playback"
	"github.com/intervox/intervox/internal/resilience"
	"github.com/intervox/intervox/pkg/audio"
	"github.com/intervox/intervox/pkg/provider/stt"
)

// TimeoutPlaceholder is recorded as the answer when the text-mode answer
// window expires without input.
const TimeoutPlaceholder = classify.Sentinel + " (time expired)"

// Defaults for the session flow.
const (
	defaultMaxQuestions = 10
	defaultAnswerWindow = 60 * time.Second

	// endCallTimeout bounds the best-effort remote end notification. The
	// local transition to Evaluating never waits for it.
	endCallTimeout = 5 * time.Second
)

// Config assembles an [Engine].
type Config struct {
	// Service is the remote interview API. Required.
	Service interview.Service

	// Queue speaks interviewer content. Optional; without it the session
	// runs text-only.
	Queue *playback.Queue

	// Recorder captures the candidate's voice. Optional.
	Recorder audio.Recorder

	// Transcriber turns recorded clips into text. Required when Recorder
	// is set.
	Transcriber stt.Provider

	// Retry bounds automatic retries of recoverable service failures.
	Retry resilience.RetryConfig

	// MaxQuestions is the hard ceiling on interviewer questions. Default: 10.
	MaxQuestions int

	// AnswerWindow is the text-mode answer timeout. Default: 60s.
	AnswerWindow time.Duration

	// Metrics is the metrics sink. Optional; defaults to [observe.Default].
	Metrics *observe.Metrics
}

// Engine is the session state machine. One Engine drives exactly one
// interview attempt: construct a fresh Engine to start over.
//
// All exported methods are safe for concurrent use. The four network
// operations (Start, RequestNextQuestion, SubmitAnswer, Feedback) are
// single-flight per kind: a second call while one is in flight is
// rejected with [resilience.ErrInFlight], never queued.
type Engine struct {
	svc      interview.Service
	queue    *playback.Queue
	recorder audio.Recorder
	stt      stt.Provider
	guard    *resilience.Guard
	retry    resilience.RetryConfig
	metrics  *observe.Metrics

	maxQuestions int
	answerWindow time.Duration

	mu              sync.Mutex
	sessionID       string
	status          Status
	turns           []Turn
	questionNumber  int
	currentQuestion string
	askedAt         time.Time
	feedback        *interview.Feedback
}

// New constructs an Engine in the Idle state.
func New(cfg Config) (*Engine, error) {
	if cfg.Service == nil {
		return nil, errors.New("session: interview service is required")
	}
	if cfg.Recorder != nil && cfg.Transcriber == nil {
		return nil, errors.New("session: a recorder without a transcriber is useless")
	}
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = defaultMaxQuestions
	}
	if cfg.AnswerWindow <= 0 {
		cfg.AnswerWindow = defaultAnswerWindow
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.Default()
	}
	return &Engine{
		svc:          cfg.Service,
		queue:        cfg.Queue,
		recorder:     cfg.Recorder,
		stt:          cfg.Transcriber,
		guard:        resilience.NewGuard(),
		retry:        cfg.Retry,
		metrics:      cfg.Metrics,
		maxQuestions: cfg.MaxQuestions,
		answerWindow: cfg.AnswerWindow,
	}, nil
}

// Start begins the interview for userID: it creates the remote session,
// obtains the first question, and speaks it. On failure the engine
// returns to Idle so the user can try again.
func (e *Engine) Start(ctx context.Context, userID string) error {
	return e.guard.Do(resilience.OpStart, func() error {
		ctx, span := observe.StartSpan(ctx, "session.start")
		defer span.End()

		if strings.TrimSpace(userID) == "" {
			return resilience.ErrNoUserIdentity
		}

		e.mu.Lock()
		if e.status != Idle {
			status := e.status
			e.mu.Unlock()
			return fmt.Errorf("start in state %s: %w", status, ErrInvalidState)
		}
		e.status = Starting
		e.mu.Unlock()

		var resp interview.StartResponse
		err := resilience.Retry(ctx, "start_session", e.retry, func() error {
			var err error
			resp, err = e.svc.StartSession(ctx, userID)
			return err
		})
		if err != nil {
			e.reset()
			return fmt.Errorf("start session: %w", err)
		}

		question, audioRef := resp.Question, resp.AudioRef
		if question == "" {
			// Server issued a session without an opening question.
			var next interview.NextQuestionResponse
			err := resilience.Retry(ctx, "first_question", e.retry, func() error {
				var err error
				next, err = e.svc.NextQuestion(ctx, resp.SessionID, "")
				return err
			})
			if err != nil {
				e.reset()
				return fmt.Errorf("fetch first question: %w", err)
			}
			question, audioRef = next.Question, next.AudioRef
		}

		e.mu.Lock()
		e.sessionID = resp.SessionID
		e.status = AwaitingAnswer
		e.questionNumber = 1
		e.currentQuestion = question
		e.askedAt = time.Now()
		e.turns = append(e.turns, Turn{
			Role:           RoleInterviewer,
			Content:        question,
			AudioRef:       audioRef,
			QuestionNumber: 1,
		})
		e.mu.Unlock()

		e.metrics.SessionsStarted.Add(ctx, 1)
		e.metrics.ActiveSessions.Add(ctx, 1)
		e.metrics.TurnsAppended.Add(ctx, 1, metric.WithAttributes(observe.Attr("role", string(RoleInterviewer))))
		slog.Info("session started", "session_id", resp.SessionID, "question", 1)

		e.speak(question, audioRef, "question-1")
		return nil
	})
}

// RequestNextQuestion records previousAnswer remotely (when non-empty)
// and asks for the next prompt in one round-trip. The server's completion
// signal, or the local question ceiling, moves the session to Evaluating.
func (e *Engine) RequestNextQuestion(ctx context.Context, previousAnswer string) error {
	return e.guard.Do(resilience.OpNextQuestion, func() error {
		ctx, span := observe.StartSpan(ctx, "session.next_question")
		defer span.End()

		e.mu.Lock()
		if e.status != Active && e.status != AwaitingAnswer {
			status := e.status
			e.mu.Unlock()
			return fmt.Errorf("next question in state %s: %w", status, ErrInvalidState)
		}
		id := e.sessionID
		number := e.questionNumber
		e.mu.Unlock()

		if number >= e.maxQuestions {
			e.complete(ctx)
			return nil
		}

		var resp interview.NextQuestionResponse
		err := resilience.Retry(ctx, "next_question", e.retry, func() error {
			var err error
			resp, err = e.svc.NextQuestion(ctx, id, previousAnswer)
			return err
		})
		if err != nil {
			e.failIfTerminal(ctx, err)
			return fmt.Errorf("next question: %w", err)
		}
		if resp.InterviewCompleted {
			e.complete(ctx)
			return nil
		}

		if resp.QuestionNumber > 0 {
			number = resp.QuestionNumber
		} else {
			number++
		}

		e.mu.Lock()
		e.questionNumber = number
		e.currentQuestion = resp.Question
		e.askedAt = time.Now()
		e.status = AwaitingAnswer
		e.turns = append(e.turns, Turn{
			Role:           RoleInterviewer,
			Content:        resp.Question,
			AudioRef:       resp.AudioRef,
			QuestionNumber: number,
		})
		e.mu.Unlock()

		e.metrics.TurnsAppended.Add(ctx, 1, metric.WithAttributes(observe.Attr("role", string(RoleInterviewer))))
		slog.Info("question asked", "session_id", id, "question", number)

		e.speak(resp.Question, resp.AudioRef, fmt.Sprintf("question-%d", number))
		return nil
	})
}

// SubmitAnswer records one candidate answer for the current question.
// transcript must be non-empty; a rejected utterance arrives here already
// replaced by the no-answer sentinel. The question ceiling and the
// server's completion flag both end the exchange, whichever comes first.
func (e *Engine) SubmitAnswer(ctx context.Context, transcript string) error {
	return e.guard.Do(resilience.OpSubmitAnswer, func() error {
		ctx, span := observe.StartSpan(ctx, "session.submit_answer")
		defer span.End()

		if strings.TrimSpace(transcript) == "" {
			return fmt.Errorf("submit answer: empty transcript: %w", resilience.ErrBadInput)
		}

		e.mu.Lock()
		if e.status != AwaitingAnswer {
			status := e.status
			e.mu.Unlock()
			return fmt.Errorf("submit answer in state %s: %w", status, ErrInvalidState)
		}
		id := e.sessionID
		question := e.currentQuestion
		number := e.questionNumber
		responseTime := time.Since(e.askedAt).Seconds()
		e.mu.Unlock()

		var resp interview.SubmitAnswerResponse
		err := resilience.Retry(ctx, "submit_answer", e.retry, func() error {
			var err error
			resp, err = e.svc.SubmitAnswer(ctx, id, interview.SubmitAnswerRequest{
				Question:     question,
				Answer:       transcript,
				ResponseTime: responseTime,
			})
			return err
		})
		if err != nil {
			e.failIfTerminal(ctx, err)
			return fmt.Errorf("submit answer: %w", err)
		}

		e.mu.Lock()
		e.turns = append(e.turns, Turn{
			Role:           RoleCandidate,
			Content:        transcript,
			QuestionNumber: number,
		})
		e.status = Active
		e.mu.Unlock()

		e.metrics.TurnsAppended.Add(ctx, 1, metric.WithAttributes(observe.Attr("role", string(RoleCandidate))))
		slog.Info("answer submitted", "session_id", id, "question", number)

		if resp.InterviewCompleted || number >= e.maxQuestions {
			e.complete(ctx)
			return nil
		}
		if resp.AIResponse != "" {
			e.speak(resp.AIResponse, resp.AudioRef, fmt.Sprintf("reaction-%d", number))
		}
		return nil
	})
}

// BeginAnswer starts recording the candidate's answer. A microphone
// permission failure is terminal for this attempt but leaves the session
// itself intact.
func (e *Engine) BeginAnswer(ctx context.Context) error {
	if e.recorder == nil {
		return errors.New("begin answer: no recorder configured")
	}
	e.mu.Lock()
	if e.status != AwaitingAnswer {
		status := e.status
		e.mu.Unlock()
		return fmt.Errorf("begin answer in state %s: %w", status, ErrInvalidState)
	}
	e.mu.Unlock()

	if err := e.recorder.Start(ctx); err != nil {
		return fmt.Errorf("begin answer: %w", err)
	}
	return nil
}

// CaptureAnswer stops the recording, transcribes it, classifies the
// transcript, and submits the result (the sentinel when rejected). The
// microphone is released on every path. It returns the stored content.
func (e *Engine) CaptureAnswer(ctx context.Context) (string, error) {
	if e.recorder == nil || e.stt == nil {
		return "", errors.New("capture answer: recorder and transcriber are not configured")
	}

	clip, stopErr := e.recorder.Stop()
	if e.queue != nil {
		// The recording gate just opened.
		e.queue.Wake()
	}
	if stopErr != nil {
		return "", fmt.Errorf("stop recording: %w", stopErr)
	}

	start := time.Now()
	var transcript stt.Transcript
	err := resilience.Retry(ctx, "transcribe", e.retry, func() error {
		var err error
		transcript, err = e.stt.Transcribe(ctx, clip)
		if err != nil && !resilience.Recoverable(err) && !resilience.Terminal(err) {
			err = errors.Join(resilience.ErrTransientNetwork, err)
		}
		return err
	})
	e.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("transcribe answer: %w", err)
	}

	content, verdict := classify.Apply(transcript.Text)
	if !verdict.IsAnswer {
		e.metrics.ClassifierRejections.Add(ctx, 1, metric.WithAttributes(observe.Attr("rule", verdict.Rule)))
		slog.Info("transcript rejected as non-answer", "rule", verdict.Rule)
	}

	return content, e.SubmitAnswer(ctx, content)
}

// AwaitTextAnswer waits for a typed answer on in, submitting whatever
// arrives first: the user's text (classified like a transcript) or, when
// the answer window expires, the fixed timeout placeholder.
func (e *Engine) AwaitTextAnswer(ctx context.Context, in <-chan string) (string, error) {
	timer := time.NewTimer(e.answerWindow)
	defer timer.Stop()

	select {
	case text := <-in:
		content, verdict := classify.Apply(text)
		if !verdict.IsAnswer {
			e.metrics.ClassifierRejections.Add(ctx, 1, metric.WithAttributes(observe.Attr("rule", verdict.Rule)))
		}
		return content, e.SubmitAnswer(ctx, content)
	case <-timer.C:
		slog.Info("answer window expired", "window", e.answerWindow)
		return TimeoutPlaceholder, e.SubmitAnswer(ctx, TimeoutPlaceholder)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// End finishes the interview from the user's side. Recording stops and
// pending playback is flushed synchronously; the remote end notification
// is fired in the background and never blocks. The session always reaches
// Evaluating in bounded local time, whatever the network does.
func (e *Engine) End(ctx context.Context) error {
	if e.recorder != nil && e.recorder.Recording() {
		if _, err := e.recorder.Stop(); err != nil {
			slog.Warn("stopping recorder on end", "error", err)
		}
	}
	if e.queue != nil {
		e.queue.Flush()
	}

	e.mu.Lock()
	if e.status.Terminal() || e.status == Evaluating {
		e.mu.Unlock()
		return nil
	}
	if e.status == Idle {
		e.mu.Unlock()
		return fmt.Errorf("end in state %s: %w", Idle, ErrInvalidState)
	}
	id := e.sessionID
	e.status = Evaluating
	e.mu.Unlock()

	e.metrics.ActiveSessions.Add(ctx, -1)
	slog.Info("session ended by user", "session_id", id)

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), endCallTimeout)
		defer cancel()
		if err := e.svc.EndSession(ctx, id); err != nil {
			slog.Warn("remote end notification failed", "session_id", id, "error", err)
		}
	}()
	return nil
}

// Feedback produces the final evaluation. The server's result is
// authoritative; when it fails or comes back empty, a locally computed
// estimate is returned instead, labeled as such. Either way the session
// reaches Completed.
func (e *Engine) Feedback(ctx context.Context) (interview.Feedback, error) {
	var out interview.Feedback
	err := e.guard.Do(resilience.OpGenerateFeedback, func() error {
		ctx, span := observe.StartSpan(ctx, "session.feedback")
		defer span.End()

		e.mu.Lock()
		if e.status == Completed && e.feedback != nil {
			out = *e.feedback
			e.mu.Unlock()
			return nil
		}
		if e.status != Evaluating {
			status := e.status
			e.mu.Unlock()
			return fmt.Errorf("feedback in state %s: %w", status, ErrInvalidState)
		}
		id := e.sessionID
		e.mu.Unlock()

		var fb interview.Feedback
		err := resilience.Retry(ctx, "get_feedback", e.retry, func() error {
			var err error
			fb, err = e.svc.GetFeedback(ctx, id)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("get feedback: %w", ctx.Err())
			}
			slog.Warn("server feedback unavailable, computing local estimate",
				"session_id", id, "error", err)
			fb = localEstimate(e.Turns())
		}

		e.mu.Lock()
		e.status = Completed
		e.feedback = &fb
		e.mu.Unlock()
		out = fb
		return nil
	})
	return out, err
}

// Status returns the current lifecycle state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SessionID returns the server-issued identifier, empty before start.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// QuestionNumber returns the 1-based number of the current question.
func (e *Engine) QuestionNumber() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.questionNumber
}

// CurrentQuestion returns the prompt the candidate is answering.
func (e *Engine) CurrentQuestion() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentQuestion
}

// Turns returns a copy of the append-only history.
func (e *Engine) Turns() []Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Turn, len(e.turns))
	copy(out, e.turns)
	return out
}

// speak enqueues spoken content when a playback queue is configured.
func (e *Engine) speak(text, audioRef, label string) {
	if e.queue == nil {
		return
	}
	item := playback.Item{Text: text, Label: label}
	if audioRef != "" {
		item.Source = audio.Source{URL: audioRef}
	}
	e.queue.Enqueue(item)
}

// reset returns a failed start to Idle, restoring the invariant that no
// session identity exists outside a started session.
func (e *Engine) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = Idle
	e.sessionID = ""
	e.turns = nil
	e.questionNumber = 0
	e.currentQuestion = ""
}

// complete performs the one-way transition to Evaluating. Completing an
// already-evaluating or terminal session is a no-op, so the server flag
// and the local ceiling can never double-complete.
func (e *Engine) complete(ctx context.Context) {
	e.mu.Lock()
	if e.status == Evaluating || e.status.Terminal() {
		e.mu.Unlock()
		return
	}
	id := e.sessionID
	e.status = Evaluating
	e.mu.Unlock()

	e.metrics.ActiveSessions.Add(ctx, -1)
	slog.Info("interview complete, awaiting feedback", "session_id", id)
}

// failIfTerminal moves the session to Failed when err ends the attempt.
func (e *Engine) failIfTerminal(ctx context.Context, err error) {
	if !resilience.Terminal(err) {
		return
	}
	e.mu.Lock()
	if e.status.Terminal() {
		e.mu.Unlock()
		return
	}
	e.status = Failed
	e.mu.Unlock()
	e.metrics.ActiveSessions.Add(ctx, -1)
	slog.Error("session failed", "error", err)
}
