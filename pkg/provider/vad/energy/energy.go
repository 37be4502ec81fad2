// Package energy provides a self-contained energy-based VAD engine.
//
// It classifies each frame by normalised RMS energy and applies the session's
// activation-threshold / min-speech / min-silence hysteresis on top. It is not
// a substitute for a trained model on noisy input, but it runs without any
// external process or model download, which makes it the default engine for
// development setups and tests. Production deployments plug a model-backed
// engine in behind the same [vad.Engine] interface.
package energy

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/MrWong99/polyglossa/pkg/provider/vad"
)

// Engine implements vad.Engine using frame RMS energy as the speech
// probability signal.
type Engine struct{}

// New creates an energy VAD engine.
func New() *Engine { return &Engine{} }

// Compile-time assertion that Engine satisfies vad.Engine.
var _ vad.Engine = (*Engine)(nil)

// NewSession creates a new detection session. Returns an error if the config
// is incomplete or the thresholds are out of range.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("energy: sample rate %d is invalid", cfg.SampleRate)
	}
	if cfg.FrameSizeMs <= 0 {
		return nil, fmt.Errorf("energy: frame size %d ms is invalid", cfg.FrameSizeMs)
	}
	if cfg.ActivationThreshold < 0 || cfg.ActivationThreshold > 1 {
		return nil, fmt.Errorf("energy: activation threshold %.2f is out of range [0, 1]", cfg.ActivationThreshold)
	}

	frameBytes := cfg.SampleRate * cfg.FrameSizeMs / 1000 * 2 // mono int16
	frameDur := time.Duration(cfg.FrameSizeMs) * time.Millisecond
	return &session{
		cfg:        cfg,
		frameBytes: frameBytes,
		frameDur:   frameDur,
	}, nil
}

// errClosed is returned by ProcessFrame after Close.
var errClosed = errors.New("energy: session is closed")

// session holds the per-stream hysteresis state.
type session struct {
	mu         sync.Mutex
	cfg        vad.Config
	frameBytes int
	frameDur   time.Duration

	speaking   bool
	aboveFor   time.Duration // consecutive time above threshold while idle
	belowFor   time.Duration // consecutive time below threshold while speaking
	closed     bool
}

var _ vad.SessionHandle = (*session)(nil)

// ProcessFrame classifies one mono PCM frame and advances the hysteresis state
// machine.
func (s *session) ProcessFrame(frame []byte) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return vad.Event{}, errClosed
	}
	if len(frame) != s.frameBytes {
		return vad.Event{}, fmt.Errorf("energy: frame is %d bytes, want %d", len(frame), s.frameBytes)
	}

	prob := speechProbability(frame)
	active := prob >= s.cfg.ActivationThreshold

	if !s.speaking {
		if active {
			s.aboveFor += s.frameDur
			if s.aboveFor >= s.cfg.MinSpeechDuration {
				s.speaking = true
				s.belowFor = 0
				return vad.Event{Type: vad.SpeechStart, Probability: prob}, nil
			}
		} else {
			s.aboveFor = 0
		}
		return vad.Event{Type: vad.Silence, Probability: prob}, nil
	}

	if active {
		s.belowFor = 0
		return vad.Event{Type: vad.SpeechContinue, Probability: prob}, nil
	}
	s.belowFor += s.frameDur
	if s.belowFor >= s.cfg.MinSilenceDuration {
		s.speaking = false
		s.aboveFor = 0
		return vad.Event{Type: vad.SpeechEnd, Probability: prob}, nil
	}
	// Short pause inside an utterance still counts as speech.
	return vad.Event{Type: vad.SpeechContinue, Probability: prob}, nil
}

// Reset clears the hysteresis state without closing the session.
func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.speaking = false
	s.aboveFor = 0
	s.belowFor = 0
}

// Close marks the session closed. Safe to call multiple times.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// speechProbability maps frame RMS energy onto [0, 1]. The mapping is a
// scaled square root so quiet-but-present speech lands well above silence
// while full-scale audio saturates at 1.
func speechProbability(frame []byte) float64 {
	samples := len(frame) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		s := float64(int16(frame[i*2]) | int16(frame[i*2+1])<<8)
		sum += s * s
	}
	rms := math.Sqrt(sum/float64(samples)) / 32768.0
	p := math.Sqrt(rms * 4)
	if p > 1 {
		p = 1
	}
	return p
}
