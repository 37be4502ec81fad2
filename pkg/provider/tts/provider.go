// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Sarvam, ElevenLabs,
// or a local Piper instance) and presents a uniform streaming interface: a
// single utterance of text goes in, a channel of PCM audio frames comes out.
// Streaming the frames lets the caller begin publishing audio before the full
// utterance has been synthesised.
//
// Implementations must be safe for concurrent use: the pipeline synthesises
// one utterance per configured language in parallel.
package tts

import (
	"context"

	"github.com/MrWong99/polyglossa/pkg/audio"
)

// VoiceProfile identifies a synthesis voice on a specific provider.
type VoiceProfile struct {
	// ID is the provider-assigned voice identifier (e.g., "anushka").
	ID string
	// Name is a human-readable label for logs and UIs.
	Name string
	// LanguageCode is the BCP-47 code the voice speaks (e.g., "hi-IN").
	LanguageCode string
	// Provider names the backend the voice belongs to (e.g., "sarvam").
	Provider string
	// Metadata carries provider-specific attributes (gender, style, model).
	Metadata map[string]string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text with the given voice and returns a channel of
	// PCM audio frames. The channel is closed by the implementation when
	// synthesis is complete or ctx is cancelled; the caller must drain it.
	//
	// Returns a non-nil error only if synthesis cannot be started. Errors
	// after that are signalled by closing the frame channel early; callers
	// should check ctx.Err() to distinguish cancellation from provider
	// failure.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (<-chan audio.AudioFrame, error)

	// ListVoices returns the voice profiles currently available from this
	// provider. The list may change between calls if the underlying service
	// adds or removes voices.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
