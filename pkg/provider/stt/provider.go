// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a real-time transcription service (e.g., Deepgram,
// AssemblyAI, or a local recogniser) and exposes a uniform streaming
// interface. The central abstraction is SessionHandle: once opened, a session
// accepts raw PCM audio and emits two streams of Transcript values —
// low-latency interims for diagnostics and authoritative finals that drive
// translation.
//
// Implementations must be safe for concurrent use. Audio input and transcript
// output channels are goroutine-safe by construction.
package stt

import "context"

// StreamConfig describes the audio format and recognition hints for a new STT
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Common value: 16000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono, required by most
	// providers; implementors may downmix stereo internally.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en",
	// "en-US"). An empty string lets the provider auto-detect, if supported.
	Language string

	// InterimResults requests low-latency partial transcripts in addition to
	// finals. Providers without interim support may ignore this.
	InterimResults bool
}

// SessionHandle is an open STT streaming session. It is an interface so test
// code can provide scripted transcripts without a live provider connection.
//
// Callers must call Close when the session is no longer needed; failing to do
// so may leak goroutines and network connections inside the implementation.
// All methods must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes for transcription. The
	// chunk must match the SampleRate and Channels agreed in StreamConfig.
	// Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel emitting interim Transcript values
	// as the provider revises its guess. Interims are observable for
	// diagnostics only and must never advance the pipeline. The channel is
	// closed when the session ends.
	Partials() <-chan Transcript

	// Finals returns a read-only channel emitting terminal Transcript values,
	// at most one per utterance. These are the values that drive translation.
	// The channel is closed when the session ends.
	Finals() <-chan Transcript

	// Err returns the error that terminated the session, or nil if the
	// session is still live or ended cleanly via Close. Callers should check
	// Err after the Finals channel closes to distinguish a severed connection
	// (fatal, retryable at the pipeline level) from a clean shutdown.
	Err() error

	// Close terminates the session, flushes any pending result, and releases
	// all resources. After Close returns, the Partials and Finals channels
	// will be closed. Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use. Multiple sessions may be
// open simultaneously (one per active speaker).
type Provider interface {
	// StartStream opens a new streaming transcription session. The returned
	// SessionHandle is ready to accept audio immediately.
	//
	// Returns an error if the session cannot be established (authentication
	// failure, unsupported configuration, ctx already cancelled). The caller
	// owns the SessionHandle and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
