// Package gateway implements audio.Connection over a WebSocket subscription
// to the media gateway.
//
// The gateway wire protocol has two message kinds:
//
//   - Text messages carry speaker lifecycle JSON: {"type":"join","identity":"x"}
//     and {"type":"leave","identity":"x"}.
//   - Binary messages carry one PCM frame: a 1-byte identity length, the
//     identity bytes, then little-endian 16-bit PCM samples.
//
// Frames are timestamped by accumulated audio duration per speaker, so a
// consumer sees a monotonic clock even when wall-time delivery jitters.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/polyglossa/pkg/audio"
)

const (
	defaultSampleRate = 48000
	defaultChannels   = 1

	// sourceBuffer bounds the per-speaker frame queue. A consumer that falls
	// behind loses the newest frames rather than stalling the read loop.
	sourceBuffer = 256

	// eventBuffer bounds the lifecycle event queue.
	eventBuffer = 64
)

// Option is a functional option for Dial.
type Option func(*Connection)

// WithSampleRate sets the PCM sample rate of inbound audio. Default 48000.
func WithSampleRate(rate int) Option {
	return func(c *Connection) {
		if rate > 0 {
			c.sampleRate = rate
		}
	}
}

// WithChannels sets the channel count of inbound audio. Default 1.
func WithChannels(n int) Option {
	return func(c *Connection) {
		if n > 0 {
			c.channels = n
		}
	}
}

// WithLogger sets the logger for protocol diagnostics. Default slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *Connection) {
		if log != nil {
			c.log = log
		}
	}
}

// controlMessage is the JSON body of gateway text messages.
type controlMessage struct {
	Type     string `json:"type"`
	Identity string `json:"identity"`
}

// source is one speaker's inbound frame stream.
type source struct {
	identity string
	frames   chan audio.AudioFrame
	elapsed  time.Duration

	endOnce sync.Once
}

func (s *source) Identity() string { return s.identity }

func (s *source) Frames() <-chan audio.AudioFrame { return s.frames }

func (s *source) end() {
	s.endOnce.Do(func() { close(s.frames) })
}

// Compile-time interface check.
var _ audio.Source = (*source)(nil)

// Connection is an audio.Connection backed by one gateway WebSocket.
type Connection struct {
	conn       *websocket.Conn
	log        *slog.Logger
	sampleRate int
	channels   int

	mu      sync.Mutex
	sources map[string]*source
	closed  bool

	events   chan audio.Event
	readDone chan struct{}

	closeOnce sync.Once
}

// Compile-time interface check.
var _ audio.Connection = (*Connection)(nil)

// Dial subscribes to the room gateway at wsURL and starts routing inbound
// messages. The returned Connection must be released with Disconnect.
func Dial(ctx context.Context, wsURL string, opts ...Option) (*Connection, error) {
	if wsURL == "" {
		return nil, errors.New("gateway: wsURL must not be empty")
	}

	c := &Connection{
		log:        slog.Default(),
		sampleRate: defaultSampleRate,
		channels:   defaultChannels,
		sources:    make(map[string]*source),
		events:     make(chan audio.Event, eventBuffer),
		readDone:   make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: dial %q: %w", wsURL, err)
	}
	// Binary frames arrive continuously; lift the default read cap.
	conn.SetReadLimit(1 << 20)
	c.conn = conn

	go c.readLoop()
	return c, nil
}

// Source returns the live source for identity, if its track is available.
func (c *Connection) Source(identity string) (audio.Source, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	src, ok := c.sources[identity]
	return src, ok
}

// Events returns the speaker lifecycle event channel.
func (c *Connection) Events() <-chan audio.Event { return c.events }

// Disconnect closes the WebSocket and waits for the read loop to finish
// tearing down all source channels and the event channel. Safe to call more
// than once.
func (c *Connection) Disconnect() error {
	c.closeOnce.Do(func() {
		_ = c.conn.Close(websocket.StatusNormalClosure, "disconnect")
		<-c.readDone
	})
	return nil
}

// readLoop routes gateway messages until the socket closes, then ends every
// source and the event channel.
func (c *Connection) readLoop() {
	defer close(c.readDone)
	defer c.teardown()

	for {
		typ, msg, err := c.conn.Read(context.Background())
		if err != nil {
			return
		}
		switch typ {
		case websocket.MessageText:
			c.handleControl(msg)
		case websocket.MessageBinary:
			c.handleAudio(msg)
		}
	}
}

// handleControl applies a join or leave message.
func (c *Connection) handleControl(msg []byte) {
	var ctl controlMessage
	if err := json.Unmarshal(msg, &ctl); err != nil {
		c.log.Warn("gateway: malformed control message", "error", err)
		return
	}
	if ctl.Identity == "" {
		c.log.Warn("gateway: control message without identity", "type", ctl.Type)
		return
	}

	switch ctl.Type {
	case "join":
		c.mu.Lock()
		if _, exists := c.sources[ctl.Identity]; exists {
			c.mu.Unlock()
			return
		}
		c.sources[ctl.Identity] = &source{
			identity: ctl.Identity,
			frames:   make(chan audio.AudioFrame, sourceBuffer),
		}
		c.mu.Unlock()
		c.emit(audio.Event{Type: audio.EventJoin, Identity: ctl.Identity})

	case "leave":
		c.mu.Lock()
		src, ok := c.sources[ctl.Identity]
		if ok {
			delete(c.sources, ctl.Identity)
		}
		c.mu.Unlock()
		if !ok {
			return
		}
		src.end()
		c.emit(audio.Event{Type: audio.EventLeave, Identity: ctl.Identity})

	default:
		c.log.Warn("gateway: unknown control type", "type", ctl.Type)
	}
}

// handleAudio routes one binary frame to its speaker's source. Frames for
// unknown speakers and malformed messages are dropped.
func (c *Connection) handleAudio(msg []byte) {
	if len(msg) < 2 {
		return
	}
	idLen := int(msg[0])
	if len(msg) < 1+idLen {
		c.log.Warn("gateway: truncated audio message", "len", len(msg), "id_len", idLen)
		return
	}
	identity := string(msg[1 : 1+idLen])
	pcm := make([]byte, len(msg)-1-idLen)
	copy(pcm, msg[1+idLen:])

	c.mu.Lock()
	src, ok := c.sources[identity]
	if !ok {
		c.mu.Unlock()
		return
	}
	frame := audio.AudioFrame{
		Data:       pcm,
		SampleRate: c.sampleRate,
		Channels:   c.channels,
		Timestamp:  src.elapsed,
	}
	src.elapsed += frame.Duration()
	c.mu.Unlock()

	select {
	case src.frames <- frame:
	default:
		c.log.Debug("gateway: dropping frame, consumer behind", "speaker", identity)
	}
}

// emit delivers a lifecycle event without ever blocking the read loop.
func (c *Connection) emit(ev audio.Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn("gateway: dropping lifecycle event, consumer behind",
			"type", ev.Type.String(), "speaker", ev.Identity)
	}
}

// teardown ends every source and closes the event channel.
func (c *Connection) teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, src := range c.sources {
		src.end()
	}
	c.sources = make(map[string]*source)
	close(c.events)
}
