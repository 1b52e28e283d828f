// Package mock provides an in-memory [stt.Provider] for unit tests.
package mock

import (
	"context"
	"sync"

	"github.com/intervox/intervox/pkg/audio"
	"github.com/intervox/intervox/pkg/provider/stt"
)

// Provider is a scripted mock implementation of [stt.Provider].
type Provider struct {
	mu sync.Mutex

	// Transcripts is consumed one element per call. Once exhausted, the
	// last element repeats.
	Transcripts []stt.Transcript

	// Err, when non-nil, is returned by every call.
	Err error

	// Clips records every clip passed to Transcribe, in call order.
	Clips []audio.Clip
}

// Transcribe implements [stt.Provider].
func (p *Provider) Transcribe(_ context.Context, clip audio.Clip) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Clips = append(p.Clips, clip)
	if p.Err != nil {
		return stt.Transcript{}, p.Err
	}
	if len(p.Transcripts) == 0 {
		return stt.Transcript{Text: "", Language: "en"}, nil
	}
	tr := p.Transcripts[0]
	if len(p.Transcripts) > 1 {
		p.Transcripts = p.Transcripts[1:]
	}
	return tr, nil
}
