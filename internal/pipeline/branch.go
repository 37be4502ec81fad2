package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/polyglossa/internal/observe"
	"github.com/MrWong99/polyglossa/pkg/audio"
	"github.com/MrWong99/polyglossa/pkg/provider/translate"
	"github.com/MrWong99/polyglossa/pkg/provider/tts"
	"github.com/MrWong99/polyglossa/pkg/publish"
)

// TranslationResult captures one language's outcome for one utterance.
type TranslationResult struct {
	// Language is the target language code (e.g., "ta").
	Language string
	// SourceText is the original final transcript.
	SourceText string
	// TranslatedText is the translation. Empty means the backend produced
	// nothing usable; the branch ends without publishing.
	TranslatedText string
	// TranslatedAt is when the translation completed.
	TranslatedAt time.Time
}

// LanguageBranch binds one target language to the components that serve it.
// The translator, synthesizer, and sink are shared across speaker pipelines;
// the branch only borrows them.
type LanguageBranch struct {
	// Name is the human-readable language name used in translation
	// instructions and logs (e.g., "Tamil").
	Name string

	// Code is the short language code for topics and metrics (e.g., "ta").
	Code string

	// Voice is the synthesis voice for this language.
	Voice tts.VoiceProfile

	// Instruction is the translation system prompt. DefaultInstruction(Name)
	// when empty.
	Instruction string

	// Translator produces the translated text.
	Translator translate.Translator

	// Synth renders the translated text as speech.
	Synth tts.Provider

	// Sink receives the audio frames and subtitles.
	Sink publish.Sink
}

// DefaultInstruction builds the translation system prompt for a language.
func DefaultInstruction(language string) string {
	return fmt.Sprintf(
		"You are a live interpreter. Translate the user's speech into %s. Respond with only the translation, nothing else.",
		language,
	)
}

// instruction returns the branch's effective translation instruction.
func (b LanguageBranch) instruction() string {
	if b.Instruction != "" {
		return b.Instruction
	}
	return DefaultInstruction(b.Name)
}

// runBranch carries one utterance through one language: translate, publish
// the subtitle, synthesize, and stream the audio frames to the sink. The
// subtitle goes out as soon as the translation lands — it never waits for
// synthesis. Any failure is terminal for this (utterance, language) pair
// only; the returned error is collected for logging, never used to cancel
// sibling branches.
func (p *Pipeline) runBranch(ctx context.Context, branch LanguageBranch, text string, utteranceClosed time.Time) error {
	ctx, span := observe.StartSpan(ctx, "pipeline.branch."+branch.Code)
	defer span.End()

	log := observe.Logger(ctx, p.log).With("language", branch.Code)
	langAttr := metric.WithAttributes(attrLanguage(branch.Code))

	translateStart := time.Now()
	translated, err := branch.Translator.Translate(ctx, branch.instruction(), text)
	p.metrics.TranslateDuration.Record(ctx, time.Since(translateStart).Seconds(), langAttr)
	if err != nil {
		span.RecordError(err)
		p.metrics.RecordBranchError(ctx, branch.Code, "translate")
		log.Warn("branch: translation failed", "error", err)
		return fmt.Errorf("translate %s: %w", branch.Code, err)
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		p.metrics.RecordBranchError(ctx, branch.Code, "translate")
		log.Warn("branch: empty translation", "source_len", len(text))
		return nil
	}

	result := TranslationResult{
		Language:       branch.Code,
		SourceText:     text,
		TranslatedText: translated,
		TranslatedAt:   time.Now(),
	}
	p.archiveTranslation(ctx, result)

	if !p.closing.Load() {
		sub := publish.Subtitle{
			Topic:     publish.SubtitleTopic(branch.Code),
			Language:  branch.Code,
			Text:      translated,
			Speaker:   p.cfg.Speaker,
			Timestamp: result.TranslatedAt,
		}
		if err := branch.Sink.PublishSubtitle(ctx, sub); err != nil {
			p.metrics.RecordBranchError(ctx, branch.Code, "publish")
			log.Warn("branch: subtitle publish failed", "error", err)
		} else {
			p.metrics.RecordPublishedSubtitle(ctx, branch.Code)
		}
	}

	synthStart := time.Now()
	frames, err := branch.Synth.Synthesize(ctx, translated, branch.Voice)
	if err != nil {
		p.metrics.RecordBranchError(ctx, branch.Code, "tts")
		log.Warn("branch: synthesis failed", "error", err)
		return fmt.Errorf("synthesize %s: %w", branch.Code, err)
	}

	first := true
	published := 0
	for frame := range frames {
		if p.closing.Load() {
			// Keep draining so the provider goroutine can finish, but stop
			// publishing once shutdown has begun.
			continue
		}
		if err := branch.Sink.PublishFrame(ctx, frame); err != nil {
			p.metrics.RecordBranchError(ctx, branch.Code, "publish")
			log.Warn("branch: frame publish failed", "error", err, "published", published)
			audio.Drain(frames)
			return fmt.Errorf("publish %s: %w", branch.Code, err)
		}
		if first {
			first = false
			p.metrics.TTSDuration.Record(ctx, time.Since(synthStart).Seconds(), langAttr)
			p.metrics.FirstFrameDuration.Record(ctx, time.Since(utteranceClosed).Seconds(), langAttr)
		}
		published++
		p.metrics.RecordPublishedFrame(ctx, branch.Code)
	}

	log.Debug("branch: utterance published",
		"frames", published,
		"text_len", len(translated),
	)
	return nil
}
