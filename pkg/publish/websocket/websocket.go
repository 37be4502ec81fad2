// Package websocket provides a publish.Sink that delivers audio and subtitles
// over a single WebSocket connection.
//
// Audio frames are Opus-encoded and sent as binary messages; subtitles are
// sent as JSON text messages carrying their topic. A media gateway on the
// other end fans the stream out to listeners.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"layeh.com/gopus"

	"github.com/MrWong99/polyglossa/pkg/audio"
	"github.com/MrWong99/polyglossa/pkg/publish"
)

const (
	defaultSampleRate = 24000
	defaultChannels   = 1

	// maxOpusBytes bounds the encoded size of a single Opus packet.
	maxOpusBytes = 4000
)

// Option is a functional option for configuring the Sink.
type Option func(*Sink)

// WithSampleRate sets the PCM sample rate the Opus encoder expects.
func WithSampleRate(rate int) Option {
	return func(s *Sink) {
		s.sampleRate = rate
	}
}

// WithChannels sets the channel count the Opus encoder expects.
func WithChannels(n int) Option {
	return func(s *Sink) {
		s.channels = n
	}
}

// Sink implements publish.Sink over a WebSocket connection.
type Sink struct {
	conn       *websocket.Conn
	sampleRate int
	channels   int

	mu     sync.Mutex
	enc    *gopus.Encoder
	closed bool
}

// Dial connects to the media gateway at wsURL and returns a ready Sink.
func Dial(ctx context.Context, wsURL string, opts ...Option) (*Sink, error) {
	if wsURL == "" {
		return nil, errors.New("publish: wsURL must not be empty")
	}

	s := &Sink{
		sampleRate: defaultSampleRate,
		channels:   defaultChannels,
	}
	for _, o := range opts {
		o(s)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("publish: dial: %w", err)
	}
	s.conn = conn

	enc, err := gopus.NewEncoder(s.sampleRate, s.channels, gopus.Audio)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "encoder init failed")
		return nil, fmt.Errorf("publish: create opus encoder: %w", err)
	}
	s.enc = enc

	return s, nil
}

// Ensure Sink implements publish.Sink at compile time.
var _ publish.Sink = (*Sink)(nil)

// PublishFrame Opus-encodes a PCM frame and sends it as a binary message.
// Frames whose format differs from the sink's configured format are rejected;
// callers should convert with audio.FormatConverter first.
func (s *Sink) PublishFrame(ctx context.Context, frame audio.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("publish: sink is closed")
	}
	if frame.SampleRate != s.sampleRate || frame.Channels != s.channels {
		return fmt.Errorf("publish: frame format %dHz/%dch does not match sink %dHz/%dch",
			frame.SampleRate, frame.Channels, s.sampleRate, s.channels)
	}

	pcm := bytesToInt16s(frame.Data)
	packet, err := s.enc.Encode(pcm, len(pcm)/s.channels, maxOpusBytes)
	if err != nil {
		return fmt.Errorf("publish: opus encode: %w", err)
	}

	if err := s.conn.Write(ctx, websocket.MessageBinary, packet); err != nil {
		return fmt.Errorf("publish: write frame: %w", err)
	}
	return nil
}

// subtitleMessage is the JSON wire format for a published subtitle.
type subtitleMessage struct {
	Topic     string `json:"topic"`
	Language  string `json:"language"`
	Text      string `json:"text"`
	Speaker   string `json:"speaker,omitempty"`
	Timestamp string `json:"ts"`
}

// PublishSubtitle sends a caption as a JSON text message.
func (s *Sink) PublishSubtitle(ctx context.Context, sub publish.Subtitle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("publish: sink is closed")
	}

	payload, err := buildSubtitleMessage(sub)
	if err != nil {
		return fmt.Errorf("publish: marshal subtitle: %w", err)
	}
	if err := s.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("publish: write subtitle: %w", err)
	}
	return nil
}

// Close terminates the connection. Safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close(websocket.StatusNormalClosure, "sink closed")
}

// buildSubtitleMessage serialises a Subtitle into its wire format. The topic
// defaults to the language's subtitle topic when unset.
func buildSubtitleMessage(sub publish.Subtitle) ([]byte, error) {
	topic := sub.Topic
	if topic == "" {
		topic = publish.SubtitleTopic(sub.Language)
	}
	return json.Marshal(subtitleMessage{
		Topic:     topic,
		Language:  sub.Language,
		Text:      sub.Text,
		Speaker:   sub.Speaker,
		Timestamp: sub.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

// bytesToInt16s converts little-endian bytes to int16 PCM samples.
func bytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
