// Package mock provides in-memory mock implementations of the
// [audio.Recorder] and [audio.Driver] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	rec := &mock.Recorder{StopClip: audio.Clip{Data: []byte("pcm")}}
//	drv := mock.NewDriver()
//	_ = drv.Start(ctx, audio.Source{Data: []byte("pcm")})
//	drv.Finish(audio.Event{Kind: audio.Ended})
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/intervox/intervox/pkg/audio"
)

// ─── Recorder ─────────────────────────────────────────────────────────────────

// Recorder is a mock implementation of [audio.Recorder].
// Set the exported fields before use; inspect the Call* fields after.
type Recorder struct {
	mu sync.Mutex

	// StartError is returned by [Recorder.Start].
	StartError error

	// StopClip is returned by [Recorder.Stop].
	StopClip audio.Clip

	// StopError is returned by [Recorder.Stop] alongside StopClip.
	StopError error

	// CallCountStart records how many times Start was called.
	CallCountStart int

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	recording bool
}

// Start implements [audio.Recorder]. Returns StartError.
func (r *Recorder) Start(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CallCountStart++
	if r.StartError != nil {
		return r.StartError
	}
	r.recording = true
	return nil
}

// Stop implements [audio.Recorder]. Returns StopClip and StopError.
// Calling Stop with no active recording returns an error unless StopError
// is already set.
func (r *Recorder) Stop() (audio.Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CallCountStop++
	wasRecording := r.recording
	r.recording = false
	if r.StopError != nil {
		return audio.Clip{}, r.StopError
	}
	if !wasRecording {
		return audio.Clip{}, errors.New("mock recorder: not recording")
	}
	return r.StopClip, nil
}

// Recording implements [audio.Recorder].
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// ─── Driver ───────────────────────────────────────────────────────────────────

// Driver is a mock implementation of [audio.Driver]. Completion events are
// under the test's control: call [Driver.Finish] to emit one.
type Driver struct {
	mu sync.Mutex

	// StartError is returned by [Driver.Start]. When non-nil, the source is
	// not recorded as playing and no event is owed.
	StartError error

	// StartErrorOnce, when true, clears StartError after the first failed
	// Start so a later retry succeeds.
	StartErrorOnce bool

	// Started holds every source successfully passed to Start, in order.
	Started []audio.Source

	// CallCountStop records how many times Stop was called.
	CallCountStop int

	playing bool
	events  chan audio.Event
}

// NewDriver creates a Driver with a buffered event channel.
func NewDriver() *Driver {
	return &Driver{events: make(chan audio.Event, 16)}
}

// Start implements [audio.Driver]. It fails the test's invariant check via
// an error if a source is already playing and no Finish call happened.
func (d *Driver) Start(_ context.Context, src audio.Source) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.StartError != nil {
		err := d.StartError
		if d.StartErrorOnce {
			d.StartError = nil
		}
		return err
	}
	if d.playing {
		return errors.New("mock driver: started while another source is playing")
	}
	d.playing = true
	d.Started = append(d.Started, src)
	return nil
}

// Events implements [audio.Driver].
func (d *Driver) Events() <-chan audio.Event {
	return d.events
}

// Stop implements [audio.Driver]. An active source produces a Failed event.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountStop++
	if d.playing {
		d.playing = false
		d.events <- audio.Event{Kind: audio.Failed, Err: errors.New("stopped")}
	}
}

// Finish emits ev for the currently playing source and clears the playing
// state. It panics if nothing is playing — that indicates a broken test.
func (d *Driver) Finish(ev audio.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.playing {
		panic("mock driver: Finish with nothing playing")
	}
	d.playing = false
	d.events <- ev
}

// Playing reports whether a source is currently playing.
func (d *Driver) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}
