package sarvam

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrWong99/polyglossa/pkg/provider/tts"
)

// makeWAV builds a minimal 16-bit mono RIFF/WAVE payload around pcm.
func makeWAV(t *testing.T, pcm []byte, sampleRate int) []byte {
	t.Helper()

	var buf []byte
	u32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}
	u16 := func(v uint16) []byte {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b
	}

	buf = append(buf, "RIFF"...)
	buf = append(buf, u32(uint32(36+len(pcm)))...)
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = append(buf, u32(16)...)
	buf = append(buf, u16(1)...) // PCM
	buf = append(buf, u16(1)...) // mono
	buf = append(buf, u32(uint32(sampleRate))...)
	buf = append(buf, u32(uint32(sampleRate*2))...)
	buf = append(buf, u16(2)...)
	buf = append(buf, u16(16)...)
	buf = append(buf, "data"...)
	buf = append(buf, u32(uint32(len(pcm)))...)
	buf = append(buf, pcm...)
	return buf
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\"): want error, got nil")
	}
}

func TestParseWAV(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 480)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	wav := makeWAV(t, pcm, 24000)

	got, rate, err := parseWAV(wav)
	if err != nil {
		t.Fatalf("parseWAV: %v", err)
	}
	if rate != 24000 {
		t.Errorf("sample rate: want 24000, got %d", rate)
	}
	if len(got) != len(pcm) {
		t.Errorf("pcm length: want %d, got %d", len(pcm), len(got))
	}
}

func TestParseWAV_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not RIFF", []byte("OGGS....WAVE")},
		{"no data chunk", makeWAV(t, nil, 24000)[:36]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, _, err := parseWAV(tt.data); err == nil {
				t.Error("parseWAV: want error, got nil")
			}
		})
	}
}

func TestSliceFrames(t *testing.T) {
	t.Parallel()

	// 50ms of 24kHz mono audio = 2400 bytes, 20ms frames = 960 bytes each.
	pcm := make([]byte, 2400)
	frames := sliceFrames(pcm, 24000)

	if len(frames) != 3 {
		t.Fatalf("frame count: want 3, got %d", len(frames))
	}
	if len(frames[0].Data) != 960 {
		t.Errorf("frame 0 size: want 960, got %d", len(frames[0].Data))
	}
	if len(frames[2].Data) != 480 {
		t.Errorf("trailing frame size: want 480, got %d", len(frames[2].Data))
	}
	if frames[1].Timestamp != 20*time.Millisecond {
		t.Errorf("frame 1 timestamp: want 20ms, got %v", frames[1].Timestamp)
	}
	for i, f := range frames {
		if f.SampleRate != 24000 || f.Channels != 1 {
			t.Errorf("frame %d: want 24000Hz mono, got %dHz %dch", i, f.SampleRate, f.Channels)
		}
	}
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 1920) // 40ms at 24kHz
	wav := makeWAV(t, pcm, 24000)

	var gotReq synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-subscription-key") != "key" {
			t.Errorf("missing api-subscription-key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(synthesizeResponse{
			RequestID: "req-1",
			Audios:    []string{base64.StdEncoding.EncodeToString(wav)},
		})
	}))
	defer srv.Close()

	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.endpoint = srv.URL

	voice := tts.VoiceProfile{ID: "anushka", LanguageCode: "hi-IN", Provider: "sarvam"}
	ch, err := p.Synthesize(context.Background(), "namaste", voice)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	var total int
	for f := range ch {
		total += len(f.Data)
	}
	if total != len(pcm) {
		t.Errorf("total PCM: want %d, got %d", len(pcm), total)
	}

	if gotReq.Speaker != "anushka" {
		t.Errorf("speaker: want %q, got %q", "anushka", gotReq.Speaker)
	}
	if gotReq.TargetLanguageCode != "hi-IN" {
		t.Errorf("target_language_code: want %q, got %q", "hi-IN", gotReq.TargetLanguageCode)
	}
	if gotReq.Model != defaultModel {
		t.Errorf("model: want %q, got %q", defaultModel, gotReq.Model)
	}
	if gotReq.SpeechSampleRate != defaultSampleRate {
		t.Errorf("speech_sample_rate: want %d, got %d", defaultSampleRate, gotReq.SpeechSampleRate)
	}
}

func TestSynthesize_RequiresVoice(t *testing.T) {
	t.Parallel()

	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := p.Synthesize(context.Background(), "hi", tts.VoiceProfile{}); err == nil {
		t.Error("Synthesize with empty voice: want error, got nil")
	}
	if _, err := p.Synthesize(context.Background(), "hi", tts.VoiceProfile{ID: "anushka"}); err == nil {
		t.Error("Synthesize with empty language code: want error, got nil")
	}
}
