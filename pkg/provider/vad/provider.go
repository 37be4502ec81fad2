// Package vad defines the Engine interface for Voice Activity Detection
// backends.
//
// A VAD engine wraps a frame-level speech detector (e.g., Silero VAD, WebRTC
// VAD, or the built-in energy detector) and surfaces it as a stateful,
// per-stream session. Each session maintains its own internal state (pre-roll
// buffers, hysteresis counters) so that multiple concurrent speaker streams
// can be processed independently.
//
// VAD is synchronous by design: ProcessFrame returns immediately with a
// detection result, making it suitable as the low-latency gate in front of
// recognition.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle must not be shared across goroutines unless the
// implementation documents otherwise.
package vad

import "time"

// Config holds the tunable parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the
	// PCM frames passed to ProcessFrame.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds. Most
	// detectors operate on fixed frame sizes (10, 20, or 30 ms). ProcessFrame
	// returns an error if a supplied frame does not match.
	FrameSizeMs int

	// ActivationThreshold is the speech probability above which frames count
	// towards a start-of-speech decision. Range [0.0, 1.0]. Typical: 0.6.
	ActivationThreshold float64

	// MinSpeechDuration is how long speech probability must stay above the
	// activation threshold before the session reports start of speech.
	// Typical: 200 ms.
	MinSpeechDuration time.Duration

	// MinSilenceDuration is how long the stream must stay below the activation
	// threshold before the session reports end of speech. Typical: 700 ms.
	MinSilenceDuration time.Duration
}

// SessionHandle is an active VAD session for a single speaker stream. It is an
// interface so test code can supply scripted detectors without a live engine.
type SessionHandle interface {
	// ProcessFrame analyses a single audio frame and returns the detection
	// result. The frame must be raw little-endian mono PCM matching the
	// session's SampleRate and FrameSizeMs. Must not block.
	ProcessFrame(frame []byte) (Event, error)

	// Reset clears all accumulated detection state without closing the
	// session. Use when the audio stream is restarted so stale hysteresis
	// state does not bleed into the next segment.
	Reset()

	// Close releases the session's resources. After Close, ProcessFrame
	// returns errors and Reset is a no-op. Calling Close more than once is
	// safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions, implemented by each detector
// backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may
// call NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a session with the given configuration, immediately
	// ready to accept frames. Returns an error if the configuration is invalid
	// or resources cannot be allocated.
	NewSession(cfg Config) (SessionHandle, error)
}
