package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/polyglossa/internal/observe"
	"github.com/MrWong99/polyglossa/pkg/audio"
	"github.com/MrWong99/polyglossa/pkg/provider/stt"
	"github.com/MrWong99/polyglossa/pkg/provider/vad"
)

// State is the observable lifecycle phase of a Pipeline.
type State int32

const (
	// StateStarting means stage instances are being created and wired.
	StateStarting State = iota

	// StateRunning means the pipeline is consuming audio and publishing.
	StateRunning

	// StateRetrying means a fatal stage error occurred and the pipeline is
	// waiting out the backoff before rebuilding its stages.
	StateRetrying

	// StateStopped is terminal: the source ended, retries were exhausted, or
	// Close was called.
	StateStopped
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateRetrying:
		return "RETRYING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Archiver persists transcripts and translation results. Writes are
// best-effort: the pipeline logs failures and moves on, publishing is never
// blocked on the archive.
type Archiver interface {
	SaveTranscript(ctx context.Context, speaker string, tr stt.Transcript) error
	SaveTranslation(ctx context.Context, speaker string, res TranslationResult) error
}

// Config assembles everything a speaker pipeline needs. VAD, STT, and the
// per-language branches reference shared components owned by the caller.
type Config struct {
	// Speaker is the identity this pipeline serves.
	Speaker string

	// VAD is the detector engine for segmentation.
	VAD vad.Engine

	// STT is the recognition provider.
	STT stt.Provider

	// Languages are the translation branches fanned out per utterance. Must
	// not be empty.
	Languages []LanguageBranch

	// Segmenter holds the segmentation tunables.
	Segmenter SegmenterConfig

	// Stream is the STT session configuration.
	Stream stt.StreamConfig

	// Retry bounds pipeline restarts after fatal stage errors. Zero fields
	// take the defaults (3 attempts, 2 s constant backoff).
	Retry RetryPolicy

	// Archive persists transcripts and translations. Nil disables archiving.
	Archive Archiver

	// Logger receives pipeline logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics receives pipeline metrics. Defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics
}

// Pipeline is the per-speaker translation unit. It owns its segmenter and
// transcriber instances (rebuilt on every restart) and borrows the shared
// per-language translators, synthesizers, and sinks.
type Pipeline struct {
	cfg     Config
	source  audio.Source
	log     *slog.Logger
	metrics *observe.Metrics

	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
	closing atomic.Bool
	state   atomic.Int32

	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

// New creates a pipeline for the given speaker source. Call Start to begin
// processing.
func New(cfg Config, source audio.Source) (*Pipeline, error) {
	if source == nil {
		return nil, errors.New("pipeline: source must not be nil")
	}
	if cfg.VAD == nil {
		return nil, errors.New("pipeline: VAD engine must not be nil")
	}
	if cfg.STT == nil {
		return nil, errors.New("pipeline: STT provider must not be nil")
	}
	if len(cfg.Languages) == 0 {
		return nil, errors.New("pipeline: at least one language branch is required")
	}
	for _, b := range cfg.Languages {
		if b.Translator == nil || b.Synth == nil || b.Sink == nil {
			return nil, errors.New("pipeline: language branch " + b.Code + " is missing a component")
		}
	}
	cfg.Retry = cfg.Retry.withDefaults()

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("speaker", cfg.Speaker)

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	return &Pipeline{
		cfg:     cfg,
		source:  source,
		log:     log,
		metrics: metrics,
		done:    make(chan struct{}),
	}, nil
}

// Speaker returns the identity this pipeline serves.
func (p *Pipeline) Speaker() string { return p.cfg.Speaker }

// State returns the current lifecycle phase.
func (p *Pipeline) State() State { return State(p.state.Load()) }

func (p *Pipeline) setState(s State) { p.state.Store(int32(s)) }

// Err returns the fatal error that stopped the pipeline, or nil. Valid once
// State reports StateStopped.
func (p *Pipeline) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

func (p *Pipeline) setErr(err error) {
	p.errMu.Lock()
	p.err = err
	p.errMu.Unlock()
}

// Start launches the pipeline's run loop. Calling Start more than once is a
// no-op.
func (p *Pipeline) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.metrics.ActivePipelines.Add(ctx, 1)
	go func() {
		defer close(p.done)
		defer p.metrics.ActivePipelines.Add(context.WithoutCancel(ctx), -1)
		p.run(runCtx)
	}()
}

// Close stops the pipeline and waits for all of its goroutines to finish.
// In-flight branches run to completion but their publishes become no-ops the
// moment closing begins. Safe to call more than once; never called from the
// pipeline's own goroutines.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.closing.Store(true)
		if p.started.Load() {
			p.cancel()
			<-p.done
		}
		p.setState(StateStopped)
	})
	return nil
}

// run is the orchestrator loop: build stages, consume transcripts, and on
// fatal stage errors tear down and rebuild within the retry budget.
func (p *Pipeline) run(ctx context.Context) {
	attempt := 0
	for {
		p.setState(StateStarting)

		seg := NewSegmenter(p.cfg.VAD, p.segmenterConfig())
		tr := NewTranscriber(p.cfg.STT, TranscriberConfig{
			Stream:  p.cfg.Stream,
			Logger:  p.log,
			Metrics: p.metrics,
		})

		attemptCtx, cancelAttempt := context.WithCancel(ctx)
		converted := p.pumpFrames(attemptCtx)
		transcripts := tr.Run(attemptCtx, seg.Run(attemptCtx, converted))

		p.setState(StateRunning)
		p.log.Info("pipeline: running", "attempt", attempt)

		for transcript := range transcripts {
			// A delivered transcript proves the session is healthy again.
			attempt = 0
			p.handleTranscript(ctx, transcript)
		}
		cancelAttempt()

		if ctx.Err() != nil || p.closing.Load() {
			p.setState(StateStopped)
			return
		}

		cause := tr.Err()
		if cause == nil {
			cause = seg.Err()
		}
		if cause == nil {
			// Source ended cleanly (speaker left).
			p.log.Info("pipeline: source ended")
			p.setState(StateStopped)
			return
		}

		attempt++
		if attempt > p.cfg.Retry.MaxAttempts {
			p.log.Error("pipeline: retries exhausted", "attempts", p.cfg.Retry.MaxAttempts, "error", cause)
			p.setErr(cause)
			p.setState(StateStopped)
			return
		}

		p.setState(StateRetrying)
		p.metrics.RecordPipelineRestart(ctx, p.cfg.Speaker)
		p.log.Warn("pipeline: restarting after stage failure",
			"attempt", attempt,
			"max_attempts", p.cfg.Retry.MaxAttempts,
			"error", cause,
		)
		if err := p.cfg.Retry.Wait(ctx, attempt); err != nil {
			p.setState(StateStopped)
			return
		}
	}
}

// segmenterConfig materialises the segmenter settings with the pipeline's
// logger attached.
func (p *Pipeline) segmenterConfig() SegmenterConfig {
	cfg := p.cfg.Segmenter
	cfg.Logger = p.log
	return cfg
}

// pumpFrames forwards the source's frames through a format converter so the
// detector and recogniser always see the stream format they were configured
// for. The returned channel closes when the source ends or ctx is cancelled.
func (p *Pipeline) pumpFrames(ctx context.Context) <-chan audio.AudioFrame {
	out := make(chan audio.AudioFrame, 64)
	conv := &audio.FormatConverter{Target: audio.Format{
		SampleRate: p.cfg.Segmenter.SampleRate,
		Channels:   1,
	}}

	go func() {
		defer close(out)
		for {
			select {
			case frame, ok := <-p.source.Frames():
				if !ok {
					return
				}
				converted := conv.Convert(frame)
				if len(converted.Data) == 0 {
					continue
				}
				select {
				case out <- converted:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// handleTranscript fans one final transcript out to every language branch
// and waits for all of them. Branch errors are collected and logged; a failed
// branch never cancels its siblings, and the next transcript is not consumed
// until every branch of this one has finished.
func (p *Pipeline) handleTranscript(ctx context.Context, transcript stt.Transcript) {
	utteranceClosed := time.Now()
	p.metrics.RecordUtterance(ctx, p.cfg.Speaker)
	p.log.Info("pipeline: final transcript",
		"text_len", len(transcript.Text),
		"confidence", transcript.Confidence,
	)

	p.archiveTranscript(ctx, transcript)

	var g errgroup.Group
	for _, branch := range p.cfg.Languages {
		g.Go(func() error {
			return p.runBranch(ctx, branch, transcript.Text, utteranceClosed)
		})
	}
	if err := g.Wait(); err != nil {
		p.log.Warn("pipeline: one or more branches failed", "error", err)
	}
}

// archiveTranscript stores a final transcript, best-effort.
func (p *Pipeline) archiveTranscript(ctx context.Context, tr stt.Transcript) {
	if p.cfg.Archive == nil {
		return
	}
	if err := p.cfg.Archive.SaveTranscript(ctx, p.cfg.Speaker, tr); err != nil {
		p.log.Warn("pipeline: transcript archive failed", "error", err)
	}
}

// archiveTranslation stores a translation result, best-effort.
func (p *Pipeline) archiveTranslation(ctx context.Context, res TranslationResult) {
	if p.cfg.Archive == nil {
		return
	}
	if err := p.cfg.Archive.SaveTranslation(ctx, p.cfg.Speaker, res); err != nil {
		p.log.Warn("pipeline: translation archive failed", "error", err, "language", res.Language)
	}
}

// attrLanguage builds the language metric attribute.
func attrLanguage(code string) attribute.KeyValue {
	return attribute.String("language", code)
}
