// Package sarvam provides a Sarvam AI-backed TTS provider using the Sarvam
// REST API. It implements the tts.Provider interface.
//
// Sarvam specialises in Indic languages (Hindi, Tamil, Kannada, Telugu, and
// others) and returns synthesised speech as base64-encoded WAV payloads.
package sarvam

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrWong99/polyglossa/pkg/audio"
	"github.com/MrWong99/polyglossa/pkg/provider/tts"
)

const (
	synthesizeEndpoint = "https://api.sarvam.ai/text-to-speech"
	defaultModel       = "bulbul:v2"
	defaultSampleRate  = 24000

	// frameDuration is the duration of each emitted AudioFrame.
	frameDuration = 20 * time.Millisecond
)

// Option is a functional option for configuring the Sarvam Provider.
type Option func(*Provider)

// WithModel sets the Sarvam model ID (e.g., "bulbul:v2").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithSampleRate sets the requested output sample rate in Hz. Sarvam supports
// 8000, 16000, 22050, and 24000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithHTTPClient replaces the default HTTP client, e.g. to set a timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// Provider implements tts.Provider backed by the Sarvam REST API.
type Provider struct {
	apiKey     string
	model      string
	sampleRate int
	httpClient *http.Client
	endpoint   string
}

// New creates a new Sarvam Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("sarvam: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		sampleRate: defaultSampleRate,
		httpClient: &http.Client{},
		endpoint:   synthesizeEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- request/response types ----

// synthesizeRequest is the JSON payload for POST /text-to-speech.
type synthesizeRequest struct {
	Text               string `json:"text"`
	TargetLanguageCode string `json:"target_language_code"`
	Speaker            string `json:"speaker"`
	Model              string `json:"model"`
	SpeechSampleRate   int    `json:"speech_sample_rate"`
}

// synthesizeResponse is the JSON response: one base64-encoded WAV per input.
type synthesizeResponse struct {
	RequestID string   `json:"request_id"`
	Audios    []string `json:"audios"`
}

// Synthesize renders text as speech and emits it as a stream of PCM frames.
// The Sarvam API is request/response, so the full WAV is fetched first and
// then sliced into frames; the channel contract still lets callers publish
// incrementally.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (<-chan audio.AudioFrame, error) {
	if voice.ID == "" {
		return nil, errors.New("sarvam: voice.ID must not be empty")
	}
	if voice.LanguageCode == "" {
		return nil, errors.New("sarvam: voice.LanguageCode must not be empty")
	}

	body, err := json.Marshal(synthesizeRequest{
		Text:               text,
		TargetLanguageCode: voice.LanguageCode,
		Speaker:            voice.ID,
		Model:              p.model,
		SpeechSampleRate:   p.sampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("sarvam: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sarvam: build request: %w", err)
	}
	req.Header.Set("api-subscription-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sarvam: synthesize HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sarvam: synthesize: status %d: %s", resp.StatusCode, msg)
	}

	var sr synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("sarvam: decode response: %w", err)
	}
	if len(sr.Audios) == 0 {
		return nil, errors.New("sarvam: response contains no audio")
	}

	wav, err := base64.StdEncoding.DecodeString(sr.Audios[0])
	if err != nil {
		return nil, fmt.Errorf("sarvam: decode audio: %w", err)
	}

	pcm, rate, err := parseWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("sarvam: parse WAV: %w", err)
	}

	ch := make(chan audio.AudioFrame, 64)
	go func() {
		defer close(ch)
		for _, frame := range sliceFrames(pcm, rate) {
			select {
			case ch <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// ListVoices returns the bulbul voice catalogue. Sarvam has no voice listing
// endpoint, so this is the documented fixed set.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	speakers := []struct{ id, name string }{
		{"anushka", "Anushka"},
		{"abhilash", "Abhilash"},
		{"manisha", "Manisha"},
		{"vidya", "Vidya"},
		{"arya", "Arya"},
		{"karun", "Karun"},
		{"hitesh", "Hitesh"},
	}
	profiles := make([]tts.VoiceProfile, 0, len(speakers))
	for _, s := range speakers {
		profiles = append(profiles, tts.VoiceProfile{
			ID:       s.id,
			Name:     s.name,
			Provider: "sarvam",
			Metadata: map[string]string{"model": p.model},
		})
	}
	return profiles, nil
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

// ---- WAV handling ----

// parseWAV extracts the PCM payload and sample rate from a RIFF/WAVE byte
// slice. Only 16-bit mono PCM is supported, which is what Sarvam emits.
func parseWAV(data []byte) (pcm []byte, sampleRate int, err error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("not a RIFF/WAVE payload")
	}

	sampleRate = defaultSampleRate
	off := 12
	for off+8 <= len(data) {
		chunkID := string(data[off : off+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+chunkLen > len(data) {
			return nil, 0, fmt.Errorf("truncated %q chunk", chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return nil, 0, errors.New("fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			channels := binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 || channels != 1 || bits != 16 {
				return nil, 0, fmt.Errorf("unsupported WAV format: fmt=%d channels=%d bits=%d", format, channels, bits)
			}
		case "data":
			return data[body : body+chunkLen], sampleRate, nil
		}

		// Chunks are word-aligned.
		off = body + chunkLen + chunkLen%2
	}
	return nil, 0, errors.New("no data chunk found")
}

// sliceFrames cuts a PCM buffer into fixed-duration mono frames with
// monotonically increasing timestamps. A short trailing frame is kept.
func sliceFrames(pcm []byte, sampleRate int) []audio.AudioFrame {
	frameBytes := sampleRate * int(frameDuration.Milliseconds()) / 1000 * 2
	if frameBytes <= 0 {
		return nil
	}

	var frames []audio.AudioFrame
	for off := 0; off < len(pcm); off += frameBytes {
		end := off + frameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		frames = append(frames, audio.AudioFrame{
			Data:       pcm[off:end],
			SampleRate: sampleRate,
			Channels:   1,
			Timestamp:  time.Duration(off/2) * time.Second / time.Duration(sampleRate),
		})
	}
	return frames
}
