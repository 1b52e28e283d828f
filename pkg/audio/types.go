// Package audio defines the capture and playback contracts the interview
// engine is built against. Concrete implementations live with the hosting
// surface (a browser bridge, a desktop shell, or the file sink used by the
// CLI); the engine only ever sees these interfaces.
package audio

import (
	"context"
	"errors"
	"time"
)

// ErrPermissionDenied is returned by a [Recorder] when the host refuses
// access to the microphone. It is terminal for the current attempt; the
// user has to resolve it outside the application.
var ErrPermissionDenied = errors.New("microphone permission denied")

// ErrGestureRequired is returned by a [Driver] when playback cannot begin
// without an explicit user interaction (browser autoplay policy). Unlike
// ordinary playback failures it must not be retried automatically.
var ErrGestureRequired = errors.New("playback requires a user gesture")

// Clip is a finished recording: one user answer captured from the
// microphone.
type Clip struct {
	// Data is the encoded audio payload.
	Data []byte

	// MIMEType describes the encoding (e.g., "audio/webm").
	MIMEType string

	// Duration is the wall-clock length of the recording, if known.
	Duration time.Duration
}

// Source is something a [Driver] can play: either a remote reference or an
// inline payload. Exactly one of URL and Data is set.
type Source struct {
	// URL references remote audio (e.g., a synthesized-speech link returned
	// by the interview service).
	URL string

	// Data is an inline audio payload.
	Data []byte

	// MIMEType describes the payload encoding when Data is set.
	MIMEType string
}

// Empty reports whether the source carries neither a URL nor a payload.
func (s Source) Empty() bool {
	return s.URL == "" && len(s.Data) == 0
}

// Recorder captures microphone audio. The device is held only between
// Start and Stop; Stop must release it on every path, including error
// paths.
//
// Implementations must be safe for concurrent use.
type Recorder interface {
	// Start acquires the microphone and begins capturing. Returns
	// [ErrPermissionDenied] (possibly wrapped) if the host refuses access.
	Start(ctx context.Context) error

	// Stop ends the capture, releases the device, and returns the recorded
	// clip. Calling Stop when no recording is active returns an error; the
	// device is released regardless.
	Stop() (Clip, error)

	// Recording reports whether a capture is currently in progress.
	Recording() bool
}

// EventKind distinguishes playback completion outcomes.
type EventKind int

const (
	// Ended means the source played to its natural end.
	Ended EventKind = iota

	// Failed means playback aborted before the end.
	Failed
)

// Event is the completion signal a [Driver] emits for a started source.
type Event struct {
	Kind EventKind

	// Err carries the failure cause when Kind is [Failed].
	Err error
}

// Driver plays one audio source at a time and reports completion as an
// explicit event rather than a callback at the call site. [Driver.Start]
// returns as soon as playback has begun (or been refused); the outcome
// arrives later on [Driver.Events].
//
// Implementations must be safe for concurrent use.
type Driver interface {
	// Start begins playing src. Returns [ErrGestureRequired] (possibly
	// wrapped) when the host blocks unsolicited playback; any other error
	// means the source could not be started at all. At most one source may
	// be playing; starting a new one while another plays first stops the
	// current one.
	Start(ctx context.Context, src Source) error

	// Events delivers exactly one [Event] for every successful Start.
	Events() <-chan Event

	// Stop aborts the current playback, if any. The aborted source still
	// produces a [Failed] event.
	Stop()
}
