// Package mock provides a test double for the tts.Provider interface.
//
// By default each Synthesize call emits one frame per rune of input text, so
// tests can assert frame counts without constructing audio fixtures. Set
// Frames to override the emitted frames entirely.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/polyglossa/pkg/audio"
	"github.com/MrWong99/polyglossa/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Provider.Synthesize.
type SynthesizeCall struct {
	// Text is the text passed to Synthesize.
	Text string
	// Voice is the voice profile passed to Synthesize.
	Voice tts.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Frames, if non-nil, is emitted on every Synthesize call instead of the
	// default one-frame-per-rune output.
	Frames []audio.AudioFrame

	// SynthesizeErr, if non-nil, is returned by every Synthesize call.
	SynthesizeErr error

	// Errs maps a voice ID to an error, letting a single language branch
	// fail while the others succeed.
	Errs map[string]error

	// Voices is returned by ListVoices.
	Voices []tts.VoiceProfile

	// ListVoicesErr, if non-nil, is returned by ListVoices.
	ListVoicesErr error

	// SynthesizeCalls records every call to Synthesize.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns a closed-when-drained frame channel.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (<-chan audio.AudioFrame, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	err, ok := p.Errs[voice.ID]
	if !ok {
		err = p.SynthesizeErr
	}
	frames := p.Frames
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if frames == nil {
		for i := range []rune(text) {
			frames = append(frames, audio.AudioFrame{
				Data:       make([]byte, 960),
				SampleRate: 24000,
				Channels:   1,
				Timestamp:  time.Duration(i) * 20 * time.Millisecond,
			})
		}
	}

	ch := make(chan audio.AudioFrame, len(frames))
	go func() {
		defer close(ch)
		for _, f := range frames {
			select {
			case ch <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// ListVoices returns the configured voices.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListVoicesErr != nil {
		return nil, p.ListVoicesErr
	}
	return p.Voices, nil
}

// SynthesizeCallCount returns the number of Synthesize calls. Thread-safe.
func (p *Provider) SynthesizeCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
