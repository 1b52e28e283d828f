// Package stt defines the Provider interface for Speech-to-Text backends.
//
// A provider transcribes one finished answer recording at a time. The raw
// transcript it returns is untrusted: the answer classifier decides
// whether it is a real answer before anything downstream sees it.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/intervox/intervox/pkg/audio"
)

// Transcript is the result of transcribing one clip.
type Transcript struct {
	// Text is the raw recognized text. May be hallucinated noise; run it
	// through the classifier before storing or submitting.
	Text string

	// Language is the BCP-47 code the backend detected or was configured
	// with.
	Language string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts a recorded answer clip to text. Returns an error
	// wrapping a resilience taxonomy sentinel when the backend fails.
	Transcribe(ctx context.Context, clip audio.Clip) (Transcript, error)
}
