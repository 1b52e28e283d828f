// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service and returns one encoded
// audio payload per utterance. Interview prompts are short, so the
// interface is batch rather than streaming: the playback queue resolves a
// whole item before it starts playing.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Voice names a provider-specific voice (e.g., "alloy" for OpenAI).
type Voice string

// Request is one synthesis job.
type Request struct {
	// Text is the utterance to synthesize. Must be non-empty.
	Text string

	// Voice selects the voice. Empty means the provider default.
	Voice Voice
}

// Result is a synthesized utterance.
type Result struct {
	// Audio is the encoded payload.
	Audio []byte

	// MIMEType describes the encoding (e.g., "audio/mpeg").
	MIMEType string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders req.Text as speech. Returns an error wrapping one
	// of the resilience taxonomy sentinels when the backend fails, so the
	// playback queue's retry policy applies uniformly across backends.
	Synthesize(ctx context.Context, req Request) (Result, error)
}
