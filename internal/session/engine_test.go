package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/intervox/intervox/internal/classify"
	"github.com/intervox/intervox/internal/interview"
	"github.com/intervox/intervox/internal/resilience"
	"github.com/intervox/intervox/pkg/audio"
	audiomock "github.com/intervox/intervox/pkg/audio/mock"
	sttpkg "github.com/intervox/intervox/pkg/provider/stt"
	sttmock "github.com/intervox/intervox/pkg/provider/stt/mock"
)

// fakeService is a scripted in-memory interview.Service.
type fakeService struct {
	mu sync.Mutex

	startResp interview.StartResponse
	startErr  error

	nextResps []interview.NextQuestionResponse
	nextErr   error

	submitResp  interview.SubmitAnswerResponse
	submitErr   error
	submitDelay time.Duration

	feedbackResp interview.Feedback
	feedbackErr  error

	endErr error

	calls   map[string]int
	answers []interview.SubmitAnswerRequest
}

func newFakeService() *fakeService {
	return &fakeService{
		startResp: interview.StartResponse{
			SessionID: "sess-1",
			Question:  "Tell me about yourself.",
		},
		calls: make(map[string]int),
	}
}

func (f *fakeService) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeService) StartSession(_ context.Context, _ string) (interview.StartResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["start"]++
	return f.startResp, f.startErr
}

func (f *fakeService) NextQuestion(_ context.Context, _, _ string) (interview.NextQuestionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["next"]++
	if f.nextErr != nil {
		return interview.NextQuestionResponse{}, f.nextErr
	}
	if len(f.nextResps) == 0 {
		return interview.NextQuestionResponse{Question: "And why this role?"}, nil
	}
	resp := f.nextResps[0]
	if len(f.nextResps) > 1 {
		f.nextResps = f.nextResps[1:]
	}
	return resp, nil
}

func (f *fakeService) SubmitAnswer(_ context.Context, _ string, req interview.SubmitAnswerRequest) (interview.SubmitAnswerResponse, error) {
	f.mu.Lock()
	f.calls["submit"]++
	f.answers = append(f.answers, req)
	delay := f.submitDelay
	resp, err := f.submitResp, f.submitErr
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return resp, err
}

func (f *fakeService) EndSession(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["end"]++
	return f.endErr
}

func (f *fakeService) GetFeedback(_ context.Context, _ string) (interview.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["feedback"]++
	return f.feedbackResp, f.feedbackErr
}

func newTestEngine(t *testing.T, svc interview.Service, mutate ...func(*Config)) *Engine {
	t.Helper()
	cfg := Config{
		Service: svc,
		Retry:   resilience.RetryConfig{Attempts: 1, Delay: time.Millisecond, MaxDelay: time.Millisecond},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func mustStart(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.Start(context.Background(), "user-7"); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestStartHappyPath(t *testing.T) {
	svc := newFakeService()
	e := newTestEngine(t, svc)

	mustStart(t, e)

	if got := e.Status(); got != AwaitingAnswer {
		t.Errorf("Status = %s, want awaiting-answer", got)
	}
	if got := e.SessionID(); got != "sess-1" {
		t.Errorf("SessionID = %q, want sess-1", got)
	}
	turns := e.Turns()
	if len(turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(turns))
	}
	if turns[0].Role != RoleInterviewer || turns[0].Content != "Tell me about yourself." {
		t.Errorf("first turn = %+v", turns[0])
	}
	if got := e.QuestionNumber(); got != 1 {
		t.Errorf("QuestionNumber = %d, want 1", got)
	}
}

func TestStartRequiresUserIdentity(t *testing.T) {
	svc := newFakeService()
	e := newTestEngine(t, svc)

	err := e.Start(context.Background(), "  ")
	if !errors.Is(err, resilience.ErrNoUserIdentity) {
		t.Fatalf("err = %v, want ErrNoUserIdentity", err)
	}
	if got := e.Status(); got != Idle {
		t.Errorf("Status = %s, want idle", got)
	}
	if svc.count("start") != 0 {
		t.Errorf("start calls = %d, want 0", svc.count("start"))
	}
}

func TestStartFailureReturnsToIdle(t *testing.T) {
	svc := newFakeService()
	svc.startErr = resilience.ErrServerFault
	e := newTestEngine(t, svc)

	err := e.Start(context.Background(), "user-7")
	if !errors.Is(err, resilience.ErrServerFault) {
		t.Fatalf("err = %v, want ErrServerFault", err)
	}
	if got := e.Status(); got != Idle {
		t.Errorf("Status = %s, want idle (restartable)", got)
	}
	if got := e.SessionID(); got != "" {
		t.Errorf("SessionID = %q, want empty after failed start", got)
	}
	if got := len(e.Turns()); got != 0 {
		t.Errorf("turns = %d, want 0", got)
	}

	// The same engine must accept a retried start.
	svc.mu.Lock()
	svc.startErr = nil
	svc.mu.Unlock()
	mustStart(t, e)
}

func TestStartFetchesFirstQuestionWhenAbsent(t *testing.T) {
	svc := newFakeService()
	svc.startResp = interview.StartResponse{SessionID: "sess-2"}
	svc.nextResps = []interview.NextQuestionResponse{{Question: "Walk me through your resume."}}
	e := newTestEngine(t, svc)

	mustStart(t, e)

	if got := svc.count("next"); got != 1 {
		t.Errorf("next calls = %d, want 1", got)
	}
	turns := e.Turns()
	if len(turns) != 1 || turns[0].Content != "Walk me through your resume." {
		t.Errorf("turns = %+v", turns)
	}
}

func TestSubmitAnswerAppendsCandidateTurn(t *testing.T) {
	svc := newFakeService()
	e := newTestEngine(t, svc)
	mustStart(t, e)

	if err := e.SubmitAnswer(context.Background(), "I led a team of five engineers."); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	if got := e.Status(); got != Active {
		t.Errorf("Status = %s, want active", got)
	}
	turns := e.Turns()
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	if turns[1].Role != RoleCandidate || turns[1].QuestionNumber != 1 {
		t.Errorf("candidate turn = %+v", turns[1])
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.answers) != 1 || svc.answers[0].Question != "Tell me about yourself." {
		t.Errorf("recorded answers = %+v", svc.answers)
	}
}

func TestSubmitAnswerRejectsEmpty(t *testing.T) {
	svc := newFakeService()
	e := newTestEngine(t, svc)
	mustStart(t, e)

	err := e.SubmitAnswer(context.Background(), "   ")
	if !errors.Is(err, resilience.ErrBadInput) {
		t.Fatalf("err = %v, want ErrBadInput", err)
	}
	if got := len(e.Turns()); got != 1 {
		t.Errorf("turns = %d, want 1 (nothing appended)", got)
	}
}

func TestSubmitAnswerAcceptsSentinel(t *testing.T) {
	svc := newFakeService()
	e := newTestEngine(t, svc)
	mustStart(t, e)

	if err := e.SubmitAnswer(context.Background(), classify.Sentinel); err != nil {
		t.Fatalf("SubmitAnswer(sentinel): %v", err)
	}
	turns := e.Turns()
	if turns[1].Content != classify.Sentinel {
		t.Errorf("stored content = %q, want the sentinel", turns[1].Content)
	}
}

func TestCaptureAnswerStoresSentinelForNoise(t *testing.T) {
	svc := newFakeService()
	rec := &audiomock.Recorder{StopClip: audio.Clip{Data: []byte("pcm"), MIMEType: "audio/wav"}}
	stt := &sttmock.Provider{Transcripts: []sttpkg.Transcript{{Text: "Um"}}}
	e := newTestEngine(t, svc, func(c *Config) {
		c.Recorder = rec
		c.Transcriber = stt
	})
	mustStart(t, e)

	if err := e.BeginAnswer(context.Background()); err != nil {
		t.Fatalf("BeginAnswer: %v", err)
	}
	got, err := e.CaptureAnswer(context.Background())
	if err != nil {
		t.Fatalf("CaptureAnswer: %v", err)
	}

	if got != classify.Sentinel {
		t.Errorf("captured content = %q, want %q", got, classify.Sentinel)
	}
	turns := e.Turns()
	if turns[1].Content != classify.Sentinel {
		t.Errorf("stored turn content = %q, want the sentinel, never the raw transcript", turns[1].Content)
	}
	if rec.CallCountStop != 1 {
		t.Errorf("recorder stops = %d, want 1", rec.CallCountStop)
	}
	if svc.count("submit") != 1 {
		t.Errorf("submit calls = %d, want 1", svc.count("submit"))
	}
}

func TestCaptureAnswerReleasesMicOnTranscriptionFailure(t *testing.T) {
	svc := newFakeService()
	rec := &audiomock.Recorder{StopClip: audio.Clip{Data: []byte("pcm")}}
	stt := &sttmock.Provider{Err: errors.New("stt down")}
	e := newTestEngine(t, svc, func(c *Config) {
		c.Recorder = rec
		c.Transcriber = stt
	})
	mustStart(t, e)

	if err := e.BeginAnswer(context.Background()); err != nil {
		t.Fatalf("BeginAnswer: %v", err)
	}
	if _, err := e.CaptureAnswer(context.Background()); err == nil {
		t.Fatal("expected transcription error")
	}
	if rec.Recording() {
		t.Error("microphone still recording after failed capture")
	}
	if svc.count("submit") != 0 {
		t.Errorf("submit calls = %d, want 0", svc.count("submit"))
	}
}

func TestQuestionCeilingAutoCompletes(t *testing.T) {
	svc := newFakeService()
	e := newTestEngine(t, svc, func(c *Config) { c.MaxQuestions = 2 })
	mustStart(t, e)

	ctx := context.Background()
	if err := e.SubmitAnswer(ctx, "First answer with enough words."); err != nil {
		t.Fatalf("SubmitAnswer 1: %v", err)
	}
	if err := e.RequestNextQuestion(ctx, ""); err != nil {
		t.Fatalf("RequestNextQuestion: %v", err)
	}
	if got := e.QuestionNumber(); got != 2 {
		t.Fatalf("QuestionNumber = %d, want 2", got)
	}
	if err := e.SubmitAnswer(ctx, "Second answer with enough words."); err != nil {
		t.Fatalf("SubmitAnswer 2: %v", err)
	}

	if got := e.Status(); got != Evaluating {
		t.Errorf("Status = %s, want evaluating (ceiling reached, no server flag)", got)
	}
	// A further question request must not resurrect the exchange.
	if err := e.RequestNextQuestion(ctx, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("RequestNextQuestion after completion: err = %v, want ErrInvalidState", err)
	}
}

func TestServerCompletionFlag(t *testing.T) {
	svc := newFakeService()
	svc.nextResps = []interview.NextQuestionResponse{{InterviewCompleted: true}}
	e := newTestEngine(t, svc)
	mustStart(t, e)

	ctx := context.Background()
	if err := e.SubmitAnswer(ctx, "An answer with enough words here."); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if err := e.RequestNextQuestion(ctx, ""); err != nil {
		t.Fatalf("RequestNextQuestion: %v", err)
	}
	if got := e.Status(); got != Evaluating {
		t.Errorf("Status = %s, want evaluating", got)
	}
}

func TestRapidSubmitsIssueOneCall(t *testing.T) {
	svc := newFakeService()
	svc.submitDelay = 100 * time.Millisecond
	e := newTestEngine(t, svc)
	mustStart(t, e)

	ctx := context.Background()
	errc := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errc <- e.SubmitAnswer(ctx, "A perfectly valid answer to the question.")
		}()
	}

	var inFlight, ok int
	for i := 0; i < 2; i++ {
		switch err := <-errc; {
		case err == nil:
			ok++
		case errors.Is(err, resilience.ErrInFlight):
			inFlight++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || inFlight != 1 {
		t.Errorf("ok = %d, in-flight rejections = %d; want 1 and 1", ok, inFlight)
	}
	if got := svc.count("submit"); got != 1 {
		t.Errorf("submit calls = %d, want exactly 1", got)
	}
}

func TestTerminalErrorFailsSession(t *testing.T) {
	svc := newFakeService()
	svc.submitErr = resilience.ErrSessionNotFound
	e := newTestEngine(t, svc)
	mustStart(t, e)

	err := e.SubmitAnswer(context.Background(), "Anything substantive at all here.")
	if !errors.Is(err, resilience.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	if got := e.Status(); got != Failed {
		t.Errorf("Status = %s, want failed", got)
	}
}

func TestRecoverableErrorKeepsStateForRetry(t *testing.T) {
	svc := newFakeService()
	svc.submitErr = resilience.ErrTransientNetwork
	e := newTestEngine(t, svc)
	mustStart(t, e)

	if err := e.SubmitAnswer(context.Background(), "My answer."); err == nil {
		t.Fatal("expected transient failure")
	}
	if got := e.Status(); got != AwaitingAnswer {
		t.Fatalf("Status = %s, want awaiting-answer (retryable)", got)
	}

	svc.mu.Lock()
	svc.submitErr = nil
	svc.mu.Unlock()
	if err := e.SubmitAnswer(context.Background(), "My answer."); err != nil {
		t.Fatalf("retried SubmitAnswer: %v", err)
	}
}

func TestEndIsBoundedWhenRemoteHangs(t *testing.T) {
	svc := newFakeService()
	block := make(chan struct{})
	slow := &blockingEndService{fakeService: svc, block: block}
	e := newTestEngine(t, slow)
	mustStart(t, e)

	done := make(chan error, 1)
	go func() { done <- e.End(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("End: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("End blocked on the remote call")
	}
	if got := e.Status(); got != Evaluating {
		t.Errorf("Status = %s, want evaluating", got)
	}
	close(block)
}

// blockingEndService delays EndSession until released.
type blockingEndService struct {
	*fakeService
	block chan struct{}
}

func (s *blockingEndService) EndSession(ctx context.Context, id string) error {
	select {
	case <-s.block:
	case <-ctx.Done():
	}
	return s.fakeService.EndSession(ctx, id)
}

func TestEndBeforeStart(t *testing.T) {
	e := newTestEngine(t, newFakeService())
	if err := e.End(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestFeedbackFromServer(t *testing.T) {
	svc := newFakeService()
	svc.feedbackResp = interview.Feedback{
		OverallScore: 82,
		Summary:      "Strong answers.",
		Source:       interview.FeedbackSourceServer,
	}
	e := newTestEngine(t, svc)
	mustStart(t, e)
	if err := e.End(context.Background()); err != nil {
		t.Fatalf("End: %v", err)
	}

	fb, err := e.Feedback(context.Background())
	if err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	if fb.Source != interview.FeedbackSourceServer || fb.OverallScore != 82 {
		t.Errorf("feedback = %+v", fb)
	}
	if got := e.Status(); got != Completed {
		t.Errorf("Status = %s, want completed", got)
	}

	// A second call returns the cached result without another round-trip.
	if _, err := e.Feedback(context.Background()); err != nil {
		t.Fatalf("cached Feedback: %v", err)
	}
	if got := svc.count("feedback"); got != 1 {
		t.Errorf("feedback calls = %d, want 1", got)
	}
}

func TestFeedbackFallsBackLocally(t *testing.T) {
	svc := newFakeService()
	svc.feedbackErr = resilience.ErrServerFault
	e := newTestEngine(t, svc)
	mustStart(t, e)
	ctx := context.Background()
	if err := e.SubmitAnswer(ctx, "I migrated our monolith to services over two years."); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if err := e.End(ctx); err != nil {
		t.Fatalf("End: %v", err)
	}

	fb, err := e.Feedback(ctx)
	if err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	if fb.Source != interview.FeedbackSourceLocalEstimate {
		t.Errorf("Source = %q, want local estimate", fb.Source)
	}
	if fb.OverallScore <= 0 {
		t.Errorf("OverallScore = %v, want > 0 for an answered session", fb.OverallScore)
	}
	if got := e.Status(); got != Completed {
		t.Errorf("Status = %s, want completed", got)
	}
}

func TestAwaitTextAnswerTimeout(t *testing.T) {
	svc := newFakeService()
	e := newTestEngine(t, svc, func(c *Config) { c.AnswerWindow = 20 * time.Millisecond })
	mustStart(t, e)

	in := make(chan string) // never written
	got, err := e.AwaitTextAnswer(context.Background(), in)
	if err != nil {
		t.Fatalf("AwaitTextAnswer: %v", err)
	}
	if got != TimeoutPlaceholder {
		t.Errorf("content = %q, want %q", got, TimeoutPlaceholder)
	}
	turns := e.Turns()
	if turns[len(turns)-1].Content != TimeoutPlaceholder {
		t.Errorf("stored turn = %q, want the timeout placeholder", turns[len(turns)-1].Content)
	}
}

func TestAwaitTextAnswerClassifiesInput(t *testing.T) {
	svc := newFakeService()
	e := newTestEngine(t, svc)
	mustStart(t, e)

	in := make(chan string, 1)
	in <- "Thanks for watching!"
	got, err := e.AwaitTextAnswer(context.Background(), in)
	if err != nil {
		t.Fatalf("AwaitTextAnswer: %v", err)
	}
	if got != classify.Sentinel {
		t.Errorf("content = %q, want the sentinel", got)
	}
}

func TestTurnCountMonotonic(t *testing.T) {
	svc := newFakeService()
	e := newTestEngine(t, svc)
	mustStart(t, e)

	ctx := context.Background()
	prev := len(e.Turns())
	steps := []func() error{
		func() error { return e.SubmitAnswer(ctx, "Answer one, with plenty of words.") },
		func() error { return e.RequestNextQuestion(ctx, "") },
		func() error { return e.SubmitAnswer(ctx, "Answer two, with plenty of words.") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		now := len(e.Turns())
		if now != prev+1 {
			t.Fatalf("step %d: turns went %d -> %d, want exactly +1", i, prev, now)
		}
		prev = now
	}
}

func TestTurnsReturnsCopy(t *testing.T) {
	svc := newFakeService()
	e := newTestEngine(t, svc)
	mustStart(t, e)

	turns := e.Turns()
	turns[0].Content = strings.Repeat("x", 5)
	if e.Turns()[0].Content != "Tell me about yourself." {
		t.Error("mutating the returned slice changed engine state")
	}
}
