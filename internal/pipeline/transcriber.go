package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/polyglossa/internal/observe"
	"github.com/MrWong99/polyglossa/pkg/audio"
	"github.com/MrWong99/polyglossa/pkg/provider/stt"
)

// minTranscriptRunes is the shortest trimmed final transcript that is treated
// as real speech. Shorter finals are recognition noise (coughs, lip smacks)
// and are suppressed.
const minTranscriptRunes = 2

// TranscriberConfig holds the transcriber settings.
type TranscriberConfig struct {
	// Stream is the session configuration passed to the STT provider for
	// every segment.
	Stream stt.StreamConfig

	// Logger receives diagnostic output. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics receives the recognition latency histogram. Defaults to
	// observe.DefaultMetrics().
	Metrics *observe.Metrics
}

// Transcriber turns utterance segments into final transcripts by running one
// STT session per segment. Like the segmenter, a Transcriber runs exactly
// once; the orchestrator creates a fresh one on every restart.
type Transcriber struct {
	provider stt.Provider
	cfg      TranscriberConfig
	log      *slog.Logger
	metrics  *observe.Metrics

	errMu sync.Mutex
	err   error
}

// NewTranscriber creates a transcriber backed by the given STT provider.
func NewTranscriber(provider stt.Provider, cfg TranscriberConfig) *Transcriber {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Transcriber{provider: provider, cfg: cfg, log: log, metrics: metrics}
}

// Err returns the error that terminated transcription, or nil if the input
// stream ended cleanly. Valid after the output channel closes. A non-nil
// error means the recognition connection is unusable and the pipeline should
// restart.
func (t *Transcriber) Err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	return t.err
}

func (t *Transcriber) setErr(err error) {
	t.errMu.Lock()
	t.err = err
	t.errMu.Unlock()
}

// Run consumes segments and emits final transcripts. Interim transcripts are
// logged but never forwarded; finals shorter than two runes after trimming
// are suppressed as noise. The output channel closes when the input closes,
// ctx is cancelled, or the recognition connection is severed; in the last
// case Err reports the cause.
func (t *Transcriber) Run(ctx context.Context, segments <-chan audio.UtteranceSegment) <-chan stt.Transcript {
	out := make(chan stt.Transcript)

	go func() {
		defer close(out)

		for {
			var (
				seg audio.UtteranceSegment
				ok  bool
			)
			select {
			case seg, ok = <-segments:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}

			if fatal := t.transcribeSegment(ctx, seg, out); fatal {
				return
			}
		}
	}()

	return out
}

// transcribeSegment runs one recognition session over a segment and forwards
// accepted finals to out. Returns true when the failure is fatal for the
// whole transcriber (severed connection); per-segment trouble is logged and
// swallowed.
func (t *Transcriber) transcribeSegment(ctx context.Context, seg audio.UtteranceSegment, out chan<- stt.Transcript) bool {
	segmentStart := time.Now()
	sess, err := t.provider.StartStream(ctx, t.cfg.Stream)
	if err != nil {
		t.setErr(err)
		t.log.Error("transcriber: start stream failed", "error", err)
		return true
	}

	// Interims are diagnostic only. Drain them concurrently so the provider's
	// read loop never blocks on an unread partial.
	var drainWG sync.WaitGroup
	drainWG.Add(1)
	go func() {
		defer drainWG.Done()
		for p := range sess.Partials() {
			t.log.Debug("transcriber: interim", "text", p.Text, "confidence", p.Confidence)
		}
	}()

	sendFailed := false
	for _, frame := range seg.Frames {
		if err := sess.SendAudio(frame.Data); err != nil {
			t.log.Warn("transcriber: send audio failed", "error", err)
			sendFailed = true
			break
		}
	}

	// Close flushes the pending result; finals arrive before the channel
	// closes.
	_ = sess.Close()

	for tr := range sess.Finals() {
		if !tr.IsFinal {
			continue
		}
		trimmed := strings.TrimSpace(tr.Text)
		if len([]rune(trimmed)) < minTranscriptRunes {
			t.log.Debug("transcriber: suppressing noise final", "text", tr.Text)
			continue
		}
		tr.Text = trimmed
		t.metrics.STTDuration.Record(ctx, time.Since(segmentStart).Seconds())
		select {
		case out <- tr:
		case <-ctx.Done():
			drainWG.Wait()
			return true
		}
	}
	drainWG.Wait()

	if serr := sess.Err(); serr != nil {
		t.setErr(serr)
		t.log.Error("transcriber: recognition connection severed", "error", serr)
		return true
	}
	if sendFailed {
		t.log.Warn("transcriber: segment dropped after send failure",
			"segment_duration", seg.Duration(),
		)
	}
	return false
}
