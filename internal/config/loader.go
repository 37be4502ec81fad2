package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":       {"deepgram"},
	"translate": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":       {"sarvam"},
	"vad":       {"energy"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("translate", cfg.Providers.Translate.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("vad", cfg.Providers.VAD.Name)

	if len(cfg.Languages) == 0 {
		errs = append(errs, errors.New("languages must list at least one target language"))
	}

	// Language duplicate code detection
	codesSeen := make(map[string]int, len(cfg.Languages))

	for i, lang := range cfg.Languages {
		prefix := fmt.Sprintf("languages[%d]", i)
		if lang.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if lang.Code == "" {
			errs = append(errs, fmt.Errorf("%s.code is required", prefix))
		} else {
			if prev, ok := codesSeen[lang.Code]; ok {
				errs = append(errs, fmt.Errorf("%s.code %q is a duplicate of languages[%d]", prefix, lang.Code, prev))
			}
			codesSeen[lang.Code] = i
		}
		if lang.Voice == "" {
			errs = append(errs, fmt.Errorf("%s.voice is required", prefix))
		}
		if lang.VoiceLanguageCode == "" {
			slog.Warn("voice_language_code is empty; the TTS provider will receive the short code",
				"language", lang.Name,
				"code", lang.Code,
			)
		}
	}

	// Pipeline tunables
	if cfg.Pipeline.ActivationThreshold < 0 || cfg.Pipeline.ActivationThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.activation_threshold %.2f is out of range [0, 1]", cfg.Pipeline.ActivationThreshold))
	}
	if cfg.Pipeline.MinSpeechMs < 0 {
		errs = append(errs, fmt.Errorf("pipeline.min_speech_ms must not be negative, got %d", cfg.Pipeline.MinSpeechMs))
	}
	if cfg.Pipeline.MinSilenceMs < 0 {
		errs = append(errs, fmt.Errorf("pipeline.min_silence_ms must not be negative, got %d", cfg.Pipeline.MinSilenceMs))
	}
	if cfg.Pipeline.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_retries must not be negative, got %d", cfg.Pipeline.MaxRetries))
	}

	// Room + publish transports
	if cfg.Room.GatewayURL == "" {
		errs = append(errs, errors.New("room.gateway_url is required"))
	}
	if cfg.Publish.GatewayURL == "" {
		errs = append(errs, errors.New("publish.gateway_url is required"))
	}

	// Archive availability
	if cfg.Archive.PostgresDSN == "" {
		slog.Warn("archive.postgres_dsn is empty; transcripts and translations will not be archived")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
