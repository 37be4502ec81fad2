package config

import (
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
room:
  gateway_url: wss://gateway.example.com/sub
providers:
  stt:
    name: deepgram
    api_key: dg-key
    model: nova-2
  translate:
    name: openai
    api_key: oa-key
    model: gpt-4o-mini
  tts:
    name: sarvam
    api_key: sv-key
  vad:
    name: energy
languages:
  - name: Tamil
    code: ta
    voice_language_code: ta-IN
    voice: anushka
  - name: Hindi
    code: hi
    voice_language_code: hi-IN
    voice: anushka
pipeline:
  min_speech_ms: 200
  min_silence_ms: 700
  activation_threshold: 0.6
publish:
  gateway_url: wss://gateway.example.com/pub
archive:
  postgres_dsn: postgres://localhost/polyglossa
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr: want %q, got %q", ":8080", cfg.Server.ListenAddr)
	}
	if cfg.Providers.STT.Name != "deepgram" {
		t.Errorf("stt provider: want deepgram, got %q", cfg.Providers.STT.Name)
	}
	if len(cfg.Languages) != 2 {
		t.Fatalf("languages: want 2, got %d", len(cfg.Languages))
	}
	if cfg.Languages[0].VoiceLanguageCode != "ta-IN" {
		t.Errorf("voice_language_code: want ta-IN, got %q", cfg.Languages[0].VoiceLanguageCode)
	}
	if cfg.Pipeline.MinSilence() != 700*time.Millisecond {
		t.Errorf("min_silence: want 700ms, got %v", cfg.Pipeline.MinSilence())
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	yaml := "server:\n  listen_addr: \":8080\"\n  no_such_field: true\n"
	if _, err := LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("LoadFromReader with unknown field: want error, got nil")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Languages: []LanguageConfig{
				{Name: "Tamil", Code: "ta", VoiceLanguageCode: "ta-IN", Voice: "anushka"},
			},
			Room:    RoomConfig{GatewayURL: "wss://gw/sub"},
			Publish: PublishConfig{GatewayURL: "wss://gw"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "verbose" },
			wantErr: "log_level",
		},
		{
			name:    "no languages",
			mutate:  func(c *Config) { c.Languages = nil },
			wantErr: "at least one target language",
		},
		{
			name: "duplicate language code",
			mutate: func(c *Config) {
				c.Languages = append(c.Languages, c.Languages[0])
			},
			wantErr: "duplicate",
		},
		{
			name:    "missing voice",
			mutate:  func(c *Config) { c.Languages[0].Voice = "" },
			wantErr: "voice is required",
		},
		{
			name:    "activation out of range",
			mutate:  func(c *Config) { c.Pipeline.ActivationThreshold = 1.5 },
			wantErr: "activation_threshold",
		},
		{
			name:   "activation at upper bound",
			mutate: func(c *Config) { c.Pipeline.ActivationThreshold = 1.0 },
		},
		{
			name:    "missing publish gateway",
			mutate:  func(c *Config) { c.Publish.GatewayURL = "" },
			wantErr: "publish.gateway_url",
		},
		{
			name:    "missing room gateway",
			mutate:  func(c *Config) { c.Room.GatewayURL = "" },
			wantErr: "room.gateway_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate: want error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate: want error containing %q, got %q", tt.wantErr, err)
			}
		})
	}
}

func TestPipelineConfig_Defaults(t *testing.T) {
	t.Parallel()

	var p PipelineConfig
	if got := p.MinSpeech(); got != 200*time.Millisecond {
		t.Errorf("MinSpeech default: want 200ms, got %v", got)
	}
	if got := p.MinSilence(); got != 700*time.Millisecond {
		t.Errorf("MinSilence default: want 700ms, got %v", got)
	}
	if got := p.Activation(); got != 0.6 {
		t.Errorf("Activation default: want 0.6, got %v", got)
	}
	if got := p.PreRoll(); got != 300*time.Millisecond {
		t.Errorf("PreRoll default: want 300ms, got %v", got)
	}
	if got := p.Retries(); got != 3 {
		t.Errorf("Retries default: want 3, got %d", got)
	}
	if got := p.RetryBackoff(); got != 2*time.Second {
		t.Errorf("RetryBackoff default: want 2s, got %v", got)
	}
}
