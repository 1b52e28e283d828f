// Package playback implements the spoken-content sequencer for an
// interview session. Questions and feedback are enqueued as items; the
// queue guarantees that at most one item plays at a time, in exact
// enqueue order, even when some items need on-demand synthesis and others
// arrive pre-synthesized.
//
// Completion is event-driven: the playback [audio.Driver] reports ended or
// failed, and that signal — not caller polling — advances the queue.
// Autoplay-policy rejections are special: they halt the queue in place
// until an explicit user gesture, because skipping a spoken question
// silently would be worse than pausing.
package playback

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/intervox/intervox/internal/observe"
	"github.com/intervox/intervox/internal/resilience"
	"github.com/intervox/intervox/pkg/audio"
	"github.com/intervox/intervox/pkg/provider/tts"
)

// synthRetryAttempts bounds synthesis retries per item: two retries after
// the initial attempt, with exponential backoff.
const synthRetryAttempts = 3

// Item is one unit of spoken content. Either Source is set (ready to
// play) or Text is set (requires synthesis); when both are set the source
// wins and the text is kept for logging only.
type Item struct {
	// Text is the utterance to synthesize when no source is available.
	Text string

	// Source is a ready-to-play audio reference or payload.
	Source audio.Source

	// Label identifies the item in logs and listener callbacks
	// (e.g., "question-3").
	Label string
}

// Listener receives queue lifecycle notifications. Implementations must
// not block: callbacks run on the queue's dispatch goroutine.
type Listener interface {
	// ItemStarted fires when an item begins playing.
	ItemStarted(item Item)

	// ItemFinished fires when an item stops playing. err is nil for a
	// natural end and non-nil when playback aborted; either way the queue
	// has already advanced.
	ItemFinished(item Item, err error)

	// ManualPlayNeeded fires when an item could not be resolved or started
	// after bounded retries. The queue has advanced past it; the surface
	// should offer a manual play affordance for the item.
	ManualPlayNeeded(item Item, err error)

	// Halted fires when autoplay policy blocked playback. The queue keeps
	// the item and waits for [Queue.Resume].
	Halted(err error)
}

// NopListener is a Listener that ignores every notification.
type NopListener struct{}

func (NopListener) ItemStarted(Item)             {}
func (NopListener) ItemFinished(Item, error)     {}
func (NopListener) ManualPlayNeeded(Item, error) {}
func (NopListener) Halted(error)                 {}

// Gate reports whether the user is currently being recorded. The queue
// never starts an item while the gate is closed — the interviewer must
// not talk over the candidate. Whoever stops the recording must call
// [Queue.Wake] so a waiting queue notices.
type Gate interface {
	Recording() bool
}

// Config assembles a [Queue].
type Config struct {
	// Driver plays resolved audio. Required.
	Driver audio.Driver

	// Synth resolves text items to audio. Optional; text items fail with
	// a ManualPlayNeeded notification when nil.
	Synth tts.Provider

	// Voice is passed to Synth for every text item.
	Voice tts.Voice

	// Gate suppresses playback while recording. Optional.
	Gate Gate

	// Listener receives lifecycle notifications. Optional.
	Listener Listener

	// Retry bounds synthesis retries. Zero values use the package
	// defaults (2 retries, exponential backoff).
	Retry resilience.RetryConfig

	// Metrics records queue depth and synthesis latency. Optional;
	// defaults to [observe.Default].
	Metrics *observe.Metrics
}

// Queue is the strict-FIFO spoken-content sequencer.
// All exported methods are safe for concurrent use.
type Queue struct {
	driver   audio.Driver
	synth    tts.Provider
	voice    tts.Voice
	gate     Gate
	listener Listener
	retry    resilience.RetryConfig
	metrics  *observe.Metrics

	mu     sync.Mutex
	items  []Item
	halted bool
	closed bool
	gen    uint64 // bumped by Flush/Close; invalidates an in-flight head

	notify chan struct{} // signalled on enqueue, wake, resume
	done   chan struct{} // closed by Close
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Queue and starts its dispatch goroutine. Call
// [Queue.Close] to stop it.
func New(cfg Config) (*Queue, error) {
	if cfg.Driver == nil {
		return nil, errors.New("playback: driver is required")
	}
	if cfg.Listener == nil {
		cfg.Listener = NopListener{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.Default()
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = synthRetryAttempts
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		driver:   cfg.Driver,
		synth:    cfg.Synth,
		voice:    cfg.Voice,
		gate:     cfg.Gate,
		listener: cfg.Listener,
		retry:    cfg.Retry,
		metrics:  cfg.Metrics,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	go q.dispatch()
	return q, nil
}

// Enqueue appends item. If nothing is playing and the queue is neither
// halted nor gated, playback starts immediately.
func (q *Queue) Enqueue(item Item) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	q.metrics.PlaybackQueueDepth.Add(q.ctx, 1)
	q.wake()
}

// Resume clears an autoplay halt. Call it from the handler of an explicit
// user gesture; the halted item is then started normally.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.halted = false
	q.mu.Unlock()
	q.wake()
}

// Wake nudges the dispatch loop to re-check the recording gate. Call it
// after stopping a recording.
func (q *Queue) Wake() {
	q.wake()
}

// Halted reports whether the queue is waiting for a user gesture.
func (q *Queue) Halted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.halted
}

// Len returns the number of items waiting (including one being played or
// held by a halt).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Flush drops all pending items and stops the active playback, if any.
// The interview is ending; nothing queued is worth saying anymore.
func (q *Queue) Flush() {
	q.mu.Lock()
	dropped := len(q.items)
	q.items = nil
	q.gen++
	q.mu.Unlock()

	if dropped > 0 {
		q.metrics.PlaybackQueueDepth.Add(q.ctx, -int64(dropped))
	}
	q.driver.Stop()
}

// Close flushes the queue and stops the dispatch goroutine. Idempotent.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	dropped := len(q.items)
	q.items = nil
	q.gen++
	q.mu.Unlock()

	if dropped > 0 {
		q.metrics.PlaybackQueueDepth.Add(q.ctx, -int64(dropped))
	}
	q.cancel()
	close(q.done)
	q.driver.Stop()
	return nil
}

// wake signals the dispatch goroutine without blocking.
func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// dispatch is the background goroutine that drains the queue in order.
func (q *Queue) dispatch() {
	for {
		select {
		case <-q.done:
			return
		case <-q.notify:
		}

		for q.playNext() {
		}
	}
}

// playNext processes the head item. It returns false when the loop should
// go back to waiting: queue empty, halted, gated, or closed.
func (q *Queue) playNext() bool {
	q.mu.Lock()
	if q.closed || q.halted || len(q.items) == 0 {
		q.mu.Unlock()
		return false
	}
	if q.gate != nil && q.gate.Recording() {
		// The candidate is speaking; stay quiet until Wake.
		q.mu.Unlock()
		return false
	}
	item := q.items[0]
	gen := q.gen
	q.mu.Unlock()

	// Synthesis runs unlocked, so a concurrent Flush/Close may have
	// dropped the item by the time the source is ready. A stale head must
	// not reach the driver, and must not pop whatever replaced it.
	src, err := q.resolve(item)
	if q.stale(gen) {
		return true
	}
	if err != nil {
		slog.Warn("playback: item synthesis failed, surfacing manual play",
			"label", item.Label, "error", err)
		q.pop()
		q.listener.ManualPlayNeeded(item, err)
		return true
	}

	if err := q.driver.Start(q.ctx, src); err != nil {
		if errors.Is(err, audio.ErrGestureRequired) {
			// Autoplay policy: hold position, wait for an explicit gesture.
			q.mu.Lock()
			q.halted = true
			q.mu.Unlock()
			slog.Info("playback: autoplay blocked, waiting for user gesture",
				"label", item.Label)
			q.listener.Halted(err)
			return false
		}
		slog.Warn("playback: driver refused item, advancing",
			"label", item.Label, "error", err)
		q.pop()
		q.listener.ManualPlayNeeded(item, err)
		return true
	}

	q.listener.ItemStarted(item)

	select {
	case <-q.done:
		return false
	case ev := <-q.driver.Events():
		// Flush already dropped the item; popping here would remove
		// whatever was enqueued after the flush.
		if !q.stale(gen) {
			q.pop()
		}
		if ev.Kind == audio.Failed {
			slog.Warn("playback: item aborted", "label", item.Label, "error", ev.Err)
			q.listener.ItemFinished(item, ev.Err)
		} else {
			q.listener.ItemFinished(item, nil)
		}
		return true
	}
}

// resolve turns the head item into a playable source, synthesizing with
// bounded retry when necessary.
func (q *Queue) resolve(item Item) (audio.Source, error) {
	if !item.Source.Empty() {
		return item.Source, nil
	}
	if q.synth == nil {
		return audio.Source{}, errors.New("playback: no synthesizer configured")
	}

	var res tts.Result
	start := time.Now()
	err := resilience.Retry(q.ctx, "synthesize", q.retry, func() error {
		var synthErr error
		res, synthErr = q.synth.Synthesize(q.ctx, tts.Request{Text: item.Text, Voice: q.voice})
		if synthErr != nil && !resilience.Recoverable(synthErr) && !resilience.Terminal(synthErr) {
			// Unclassified synthesis failures are presumed transient.
			synthErr = errors.Join(resilience.ErrTransientNetwork, synthErr)
		}
		return synthErr
	})
	if err != nil {
		return audio.Source{}, err
	}
	q.metrics.TTSDuration.Record(q.ctx, time.Since(start).Seconds())
	return audio.Source{Data: res.Audio, MIMEType: res.MIMEType}, nil
}

// stale reports whether Flush or Close ran since gen was captured.
func (q *Queue) stale(gen uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed || q.gen != gen
}

// pop removes the head item. Items are only removed here and in
// Flush/Close, so FIFO order is structural.
func (q *Queue) pop() {
	q.mu.Lock()
	if len(q.items) > 0 {
		q.items = q.items[1:]
		q.mu.Unlock()
		q.metrics.PlaybackQueueDepth.Add(q.ctx, -1)
		return
	}
	q.mu.Unlock()
}
