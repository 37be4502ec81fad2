package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/polyglossa/internal/archive"
	"github.com/MrWong99/polyglossa/internal/config"
	"github.com/MrWong99/polyglossa/internal/observe"
	"github.com/MrWong99/polyglossa/internal/pipeline"
	"github.com/MrWong99/polyglossa/pkg/audio"
	"github.com/MrWong99/polyglossa/pkg/provider/stt"
	"github.com/MrWong99/polyglossa/pkg/provider/stt/deepgram"
	"github.com/MrWong99/polyglossa/pkg/provider/translate"
	"github.com/MrWong99/polyglossa/pkg/provider/translate/anyllm"
	translateopenai "github.com/MrWong99/polyglossa/pkg/provider/translate/openai"
	"github.com/MrWong99/polyglossa/pkg/provider/tts"
	"github.com/MrWong99/polyglossa/pkg/provider/tts/sarvam"
	"github.com/MrWong99/polyglossa/pkg/provider/vad"
	"github.com/MrWong99/polyglossa/pkg/provider/vad/energy"
	"github.com/MrWong99/polyglossa/pkg/publish"
	publishws "github.com/MrWong99/polyglossa/pkg/publish/websocket"
)

// sttSampleRate is the PCM rate the detector and recogniser operate at. The
// pipeline's format converter resamples every source to it.
const sttSampleRate = 16000

// Providers holds one interface value per provider slot. Populated from
// config by New unless injected via options.
type Providers struct {
	STT        stt.Provider
	Translator translate.Translator
	TTS        tts.Provider
	VAD        vad.Engine
}

// SinkFactory builds the publish sink for one target language. The default
// factory dials the configured media gateway over WebSocket.
type SinkFactory func(ctx context.Context, lang config.LanguageConfig) (publish.Sink, error)

// App owns the provider stack, the per-language branches, and the speaker
// registry. New wires everything from config; Run drives the control loop;
// Shutdown tears it all down.
type App struct {
	cfg       *config.Config
	conn      audio.Connection
	log       *slog.Logger
	metrics   *observe.Metrics
	providers *Providers
	archiver  pipeline.Archiver
	sinkFn    SinkFactory
	branches  []pipeline.LanguageBranch
	registry  *Registry

	// closers run in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithProviders injects a fully-populated provider set instead of building
// one from config.
func WithProviders(p *Providers) Option {
	return func(a *App) { a.providers = p }
}

// WithArchiver injects an archiver instead of connecting to Postgres.
func WithArchiver(ar pipeline.Archiver) Option {
	return func(a *App) { a.archiver = ar }
}

// WithSinkFactory injects the per-language sink builder instead of dialing
// the media gateway.
func WithSinkFactory(fn SinkFactory) Option {
	return func(a *App) { a.sinkFn = fn }
}

// WithLogger sets the application logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// New creates an App by building providers, the archive, and one publish sink
// plus language branch per configured target language, then assembling the
// speaker registry around them.
func New(ctx context.Context, cfg *config.Config, conn audio.Connection, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		conn:    conn,
		metrics: observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.sinkFn == nil {
		a.sinkFn = a.dialGatewaySink
	}

	if a.providers == nil {
		p, err := buildProviders(cfg)
		if err != nil {
			return nil, fmt.Errorf("app: build providers: %w", err)
		}
		a.providers = p
	}

	if err := a.initArchive(ctx); err != nil {
		return nil, fmt.Errorf("app: init archive: %w", err)
	}

	if err := a.initBranches(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init branches: %w", err)
	}

	a.registry = NewRegistry(a.buildPipeline, a.log)
	return a, nil
}

// Registry exposes the speaker registry, mainly for tests and health checks.
func (a *App) Registry() *Registry { return a.registry }

// Run drives the speaker control loop until the connection's event channel
// closes or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("app: running",
		"languages", len(a.branches),
		"stt", a.cfg.Providers.STT.Name,
		"translate", a.cfg.Providers.Translate.Name,
		"tts", a.cfg.Providers.TTS.Name,
	)
	a.registry.Run(ctx, a.conn.Events())
	return ctx.Err()
}

// Shutdown disconnects the room, closes all pipelines, and releases sinks and
// the archive in reverse-init order. Respects the ctx deadline for pipeline
// draining.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("app: shutting down")

		if err := a.conn.Disconnect(); err != nil {
			a.log.Warn("app: room disconnect error", "error", err)
		}
		if err := a.registry.Shutdown(ctx); err != nil {
			a.log.Warn("app: registry shutdown incomplete", "error", err)
			shutdownErr = err
		}
		a.closeAll()

		a.log.Info("app: shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the registered closers in reverse order.
func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("app: closer error", "index", i, "error", err)
		}
	}
	a.closers = nil
}

// initArchive connects the Postgres transcript archive when a DSN is
// configured and no archiver was injected.
func (a *App) initArchive(ctx context.Context) error {
	if a.archiver != nil {
		return nil
	}
	dsn := a.cfg.Archive.PostgresDSN
	if dsn == "" {
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	store := archive.NewStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return err
	}

	a.archiver = store
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	a.log.Info("app: transcript archive enabled")
	return nil
}

// initBranches builds one sink and one language branch per configured target
// language. All speaker pipelines share these branches.
func (a *App) initBranches(ctx context.Context) error {
	for _, lang := range a.cfg.Languages {
		sink, err := a.sinkFn(ctx, lang)
		if err != nil {
			return fmt.Errorf("sink for %q: %w", lang.Code, err)
		}
		a.closers = append(a.closers, sink.Close)

		voiceLang := lang.VoiceLanguageCode
		if voiceLang == "" {
			voiceLang = lang.Code
		}
		instruction := lang.Instruction
		if instruction == "" {
			instruction = pipeline.DefaultInstruction(lang.Name)
		}

		a.branches = append(a.branches, pipeline.LanguageBranch{
			Name: lang.Name,
			Code: lang.Code,
			Voice: tts.VoiceProfile{
				ID:           lang.Voice,
				Name:         lang.Voice,
				LanguageCode: voiceLang,
				Provider:     a.cfg.Providers.TTS.Name,
			},
			Instruction: instruction,
			Translator:  a.providers.Translator,
			Synth:       a.providers.TTS,
			Sink:        sink,
		})
		a.log.Info("app: language branch ready", "language", lang.Name, "code", lang.Code, "voice", lang.Voice)
	}
	return nil
}

// dialGatewaySink is the default SinkFactory: one WebSocket connection to the
// media gateway per target language.
func (a *App) dialGatewaySink(ctx context.Context, lang config.LanguageConfig) (publish.Sink, error) {
	opts := []publishws.Option{publishws.WithChannels(1)}
	if a.cfg.Publish.SampleRate > 0 {
		opts = append(opts, publishws.WithSampleRate(a.cfg.Publish.SampleRate))
	}
	return publishws.Dial(ctx, a.cfg.Publish.GatewayURL, opts...)
}

// buildPipeline is the registry's factory: it looks up the speaker's audio
// source and assembles a pipeline around the shared providers and branches.
func (a *App) buildPipeline(identity string) (*pipeline.Pipeline, error) {
	src, ok := a.conn.Source(identity)
	if !ok {
		return nil, fmt.Errorf("app: no audio source for speaker %q", identity)
	}

	pc := a.cfg.Pipeline
	sourceLang := pc.SourceLanguage
	if sourceLang == "" {
		sourceLang = "en"
	}

	return pipeline.New(pipeline.Config{
		Speaker: identity,
		VAD:     a.providers.VAD,
		STT:     a.providers.STT,
		Languages: a.branches,
		Segmenter: pipeline.SegmenterConfig{
			SampleRate:          sttSampleRate,
			FrameSizeMs:         20,
			ActivationThreshold: pc.Activation(),
			MinSpeechDuration:   pc.MinSpeech(),
			MinSilenceDuration:  pc.MinSilence(),
			PreRoll:             pc.PreRoll(),
		},
		Stream: stt.StreamConfig{
			SampleRate:     sttSampleRate,
			Channels:       1,
			Language:       sourceLang,
			InterimResults: true,
		},
		Retry: pipeline.RetryPolicy{
			MaxAttempts: pc.Retries(),
			Backoff:     pipeline.ConstantBackoff(pc.RetryBackoff()),
		},
		Archive: a.archiver,
		Logger:  a.log,
		Metrics: a.metrics,
	}, src)
}

// buildProviders constructs the provider stack declared in config.
func buildProviders(cfg *config.Config) (*Providers, error) {
	sttProvider, err := buildSTT(cfg.Providers.STT, cfg.Pipeline.SourceLanguage)
	if err != nil {
		return nil, err
	}
	translator, err := buildTranslator(cfg.Providers.Translate)
	if err != nil {
		return nil, err
	}
	ttsProvider, err := buildTTS(cfg.Providers.TTS, cfg.Publish.SampleRate)
	if err != nil {
		return nil, err
	}
	vadEngine, err := buildVAD(cfg.Providers.VAD)
	if err != nil {
		return nil, err
	}
	return &Providers{
		STT:        sttProvider,
		Translator: translator,
		TTS:        ttsProvider,
		VAD:        vadEngine,
	}, nil
}

// buildSTT constructs the recognition provider.
func buildSTT(entry config.ProviderEntry, sourceLang string) (stt.Provider, error) {
	switch entry.Name {
	case "deepgram":
		opts := []deepgram.Option{deepgram.WithSampleRate(sttSampleRate)}
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if sourceLang != "" {
			opts = append(opts, deepgram.WithLanguage(sourceLang))
		}
		return deepgram.New(entry.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unsupported stt provider %q", entry.Name)
	}
}

// buildTranslator constructs the translation provider. "openai" uses the
// native client; every other name goes through the any-llm-go multi-provider
// backend.
func buildTranslator(entry config.ProviderEntry) (translate.Translator, error) {
	switch entry.Name {
	case "openai":
		var opts []translateopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, translateopenai.WithBaseURL(entry.BaseURL))
		}
		return translateopenai.New(entry.APIKey, entry.Model, opts...)
	case "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile":
		model := entry.Model
		if model == "" {
			return nil, fmt.Errorf("translate provider %q requires a model", entry.Name)
		}
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(entry.Name, model, opts...)
	default:
		return nil, fmt.Errorf("unsupported translate provider %q", entry.Name)
	}
}

// buildTTS constructs the synthesis provider.
func buildTTS(entry config.ProviderEntry, sampleRate int) (tts.Provider, error) {
	switch entry.Name {
	case "sarvam":
		var opts []sarvam.Option
		if entry.Model != "" {
			opts = append(opts, sarvam.WithModel(entry.Model))
		}
		if sampleRate > 0 {
			opts = append(opts, sarvam.WithSampleRate(sampleRate))
		}
		return sarvam.New(entry.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unsupported tts provider %q", entry.Name)
	}
}

// buildVAD constructs the speech detector engine.
func buildVAD(entry config.ProviderEntry) (vad.Engine, error) {
	switch entry.Name {
	case "energy", "":
		return energy.New(), nil
	default:
		return nil, fmt.Errorf("unsupported vad provider %q", entry.Name)
	}
}
