// Package pipeline contains the per-speaker translation pipeline: utterance
// segmentation, transcription, concurrent per-language translation branches,
// and the orchestrator that ties them together with retry and shutdown
// semantics.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/polyglossa/pkg/audio"
	"github.com/MrWong99/polyglossa/pkg/provider/vad"
)

// SegmenterConfig holds the segmenter tunables.
type SegmenterConfig struct {
	// SampleRate is the PCM sample rate of incoming frames in Hz.
	SampleRate int

	// FrameSizeMs is the expected frame duration in milliseconds.
	FrameSizeMs int

	// ActivationThreshold is the VAD speech probability threshold.
	ActivationThreshold float64

	// MinSpeechDuration is how long speech must persist before an utterance
	// opens.
	MinSpeechDuration time.Duration

	// MinSilenceDuration is how long silence must persist before an utterance
	// closes.
	MinSilenceDuration time.Duration

	// PreRoll is how much audio preceding the detected speech onset is
	// prepended to each segment, so plosive onsets are not clipped.
	PreRoll time.Duration

	// Logger receives diagnostic output. Defaults to slog.Default().
	Logger *slog.Logger
}

// Segmenter cuts a continuous frame stream into utterance segments using a
// VAD session. A Segmenter runs exactly once; the orchestrator creates a
// fresh one on every restart.
type Segmenter struct {
	engine vad.Engine
	cfg    SegmenterConfig
	log    *slog.Logger

	errMu sync.Mutex
	err   error
}

// NewSegmenter creates a segmenter backed by the given VAD engine.
func NewSegmenter(engine vad.Engine, cfg SegmenterConfig) *Segmenter {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Segmenter{engine: engine, cfg: cfg, log: log}
}

// Err returns the error that terminated segmentation, or nil if the input
// stream ended cleanly. Valid after the output channel closes.
func (s *Segmenter) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Segmenter) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

// Run consumes frames and emits utterance segments. The output channel is
// closed when the input closes, ctx is cancelled, or the detector fails; in
// the failure case Err reports the cause. Segments include the pre-roll audio
// captured before speech onset.
func (s *Segmenter) Run(ctx context.Context, frames <-chan audio.AudioFrame) <-chan audio.UtteranceSegment {
	out := make(chan audio.UtteranceSegment)

	sess, err := s.engine.NewSession(vad.Config{
		SampleRate:          s.cfg.SampleRate,
		FrameSizeMs:         s.cfg.FrameSizeMs,
		ActivationThreshold: s.cfg.ActivationThreshold,
		MinSpeechDuration:   s.cfg.MinSpeechDuration,
		MinSilenceDuration:  s.cfg.MinSilenceDuration,
	})
	if err != nil {
		s.setErr(err)
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer sess.Close()

		var (
			preRoll  []audio.AudioFrame
			segment  []audio.AudioFrame
			speaking bool
		)

		pushPreRoll := func(f audio.AudioFrame) {
			preRoll = append(preRoll, f)
			var total time.Duration
			for _, pf := range preRoll {
				total += pf.Duration()
			}
			for len(preRoll) > 0 && total-preRoll[0].Duration() >= s.cfg.PreRoll {
				total -= preRoll[0].Duration()
				preRoll = preRoll[1:]
			}
		}

		for {
			var (
				frame audio.AudioFrame
				ok    bool
			)
			select {
			case frame, ok = <-frames:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}

			ev, err := sess.ProcessFrame(frame.Data)
			if err != nil {
				s.setErr(err)
				s.log.Error("segmenter: detector failed", "error", err)
				return
			}

			switch ev.Type {
			case vad.SpeechStart:
				speaking = true
				segment = append(segment[:0:0], preRoll...)
				segment = append(segment, frame)
				preRoll = nil
			case vad.SpeechContinue:
				if speaking {
					segment = append(segment, frame)
				}
			case vad.SpeechEnd:
				if !speaking {
					break
				}
				speaking = false
				segment = append(segment, frame)
				seg := audio.UtteranceSegment{
					Frames: segment,
					Start:  segment[0].Timestamp,
					End:    frame.Timestamp + frame.Duration(),
				}
				segment = nil
				s.log.Debug("segmenter: utterance closed",
					"frames", len(seg.Frames),
					"duration", seg.Duration(),
				)
				select {
				case out <- seg:
				case <-ctx.Done():
					return
				}
			case vad.Silence:
				pushPreRoll(frame)
			}
		}
	}()

	return out
}
