package deepgram

import (
	"strings"
	"testing"

	"github.com/MrWong99/polyglossa/pkg/provider/stt"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\"): want error, got nil")
	}
}

func TestBuildURL_Defaults(t *testing.T) {
	t.Parallel()

	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	u, err := p.buildURL(stt.StreamConfig{})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	for _, want := range []string{
		"model=nova-2",
		"language=en",
		"sample_rate=16000",
		"encoding=linear16",
		"interim_results=false",
	} {
		if !strings.Contains(u, want) {
			t.Errorf("buildURL: %q missing from %q", want, u)
		}
	}
}

func TestBuildURL_ConfigOverrides(t *testing.T) {
	t.Parallel()

	p, err := New("key", WithModel("nova-3"), WithLanguage("de"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	u, err := p.buildURL(stt.StreamConfig{
		SampleRate:     48000,
		Channels:       2,
		Language:       "en-US",
		InterimResults: true,
	})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	for _, want := range []string{
		"model=nova-3",
		"language=en-US", // cfg.Language wins over provider default
		"sample_rate=48000",
		"channels=2",
		"interim_results=true",
	} {
		if !strings.Contains(u, want) {
			t.Errorf("buildURL: %q missing from %q", want, u)
		}
	}
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		payload  string
		wantOK   bool
		wantText string
		wantFin  bool
	}{
		{
			name:     "final result",
			payload:  `{"type":"Results","is_final":true,"start":1.5,"duration":0.8,"channel":{"alternatives":[{"transcript":"hello there","confidence":0.97}]}}`,
			wantOK:   true,
			wantText: "hello there",
			wantFin:  true,
		},
		{
			name:     "interim result",
			payload:  `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"hel","confidence":0.4}]}}`,
			wantOK:   true,
			wantText: "hel",
			wantFin:  false,
		},
		{
			name:    "metadata message ignored",
			payload: `{"type":"Metadata","duration":12.3}`,
			wantOK:  false,
		},
		{
			name:    "no alternatives ignored",
			payload: `{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`,
			wantOK:  false,
		},
		{
			name:    "malformed JSON ignored",
			payload: `{"type":`,
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseResponse([]byte(tt.payload))
			if ok != tt.wantOK {
				t.Fatalf("parseResponse ok: want %v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			if got.Text != tt.wantText {
				t.Errorf("Text: want %q, got %q", tt.wantText, got.Text)
			}
			if got.IsFinal != tt.wantFin {
				t.Errorf("IsFinal: want %v, got %v", tt.wantFin, got.IsFinal)
			}
		})
	}
}
