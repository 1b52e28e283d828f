// Package mock provides an in-memory [tts.Provider] for unit tests.
package mock

import (
	"context"
	"sync"

	"github.com/intervox/intervox/pkg/provider/tts"
)

// Provider is a scripted mock implementation of [tts.Provider].
// Set the exported fields before use; inspect Requests after.
type Provider struct {
	mu sync.Mutex

	// Result is returned on success. When Result.Audio is nil, the
	// synthesized payload defaults to the request text bytes so tests can
	// assert ordering by content.
	Result tts.Result

	// Errs is consumed one element per call; a nil element means success.
	// Once exhausted, calls succeed.
	Errs []error

	// Delay, when set, is invoked before each call returns. Lets tests
	// simulate slow synthesis without real sleeps at the call site.
	Delay func(req tts.Request)

	// Requests records every request in call order.
	Requests []tts.Request
}

// Synthesize implements [tts.Provider].
func (p *Provider) Synthesize(_ context.Context, req tts.Request) (tts.Result, error) {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	var err error
	if len(p.Errs) > 0 {
		err = p.Errs[0]
		p.Errs = p.Errs[1:]
	}
	res := p.Result
	delay := p.Delay
	p.mu.Unlock()

	if delay != nil {
		delay(req)
	}
	if err != nil {
		return tts.Result{}, err
	}
	if res.Audio == nil {
		res = tts.Result{Audio: []byte(req.Text), MIMEType: "audio/mpeg"}
	}
	return res, nil
}

// CallCount returns how many synthesis requests were made.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}
