// Package mock provides test doubles for the audio transport interfaces.
//
// Use Connection to script speaker join/leave events and feed controlled frame
// sequences into a pipeline under test.
//
// Example:
//
//	conn := mock.NewConnection()
//	src := conn.AddSource("speaker-1")
//	src.Push(audio.AudioFrame{Data: pcm, SampleRate: 16000, Channels: 1})
//	conn.Emit(audio.Event{Type: audio.EventJoin, Identity: "speaker-1"})
package mock

import (
	"sync"

	"github.com/MrWong99/polyglossa/pkg/audio"
)

// Source is a mock implementation of audio.Source backed by a buffered channel.
type Source struct {
	ID string
	Ch chan audio.AudioFrame

	closeOnce sync.Once
}

// NewSource creates a Source for the given identity with a buffer of 256 frames.
func NewSource(identity string) *Source {
	return &Source{ID: identity, Ch: make(chan audio.AudioFrame, 256)}
}

// Identity returns the speaker identity.
func (s *Source) Identity() string { return s.ID }

// Frames returns the frame channel.
func (s *Source) Frames() <-chan audio.AudioFrame { return s.Ch }

// Push sends a frame to the stream. Panics if called after End.
func (s *Source) Push(f audio.AudioFrame) { s.Ch <- f }

// End closes the frame channel, signalling end of track. Safe to call more
// than once.
func (s *Source) End() {
	s.closeOnce.Do(func() { close(s.Ch) })
}

// Ensure Source implements audio.Source at compile time.
var _ audio.Source = (*Source)(nil)

// Connection is a mock implementation of audio.Connection.
type Connection struct {
	mu      sync.Mutex
	sources map[string]*Source
	events  chan audio.Event
	closed  bool

	// DisconnectErr, if non-nil, is returned by Disconnect.
	DisconnectErr error

	// DisconnectCallCount is the number of times Disconnect was called.
	DisconnectCallCount int
}

// NewConnection creates an empty mock Connection with a buffered event channel.
func NewConnection() *Connection {
	return &Connection{
		sources: make(map[string]*Source),
		events:  make(chan audio.Event, 16),
	}
}

// AddSource registers (and returns) a new mock source for identity. It does
// not emit a join event; call Emit separately so tests control ordering.
func (c *Connection) AddSource(identity string) *Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	src := NewSource(identity)
	c.sources[identity] = src
	return src
}

// RemoveSource ends and removes the source for identity, if present.
func (c *Connection) RemoveSource(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if src, ok := c.sources[identity]; ok {
		src.End()
		delete(c.sources, identity)
	}
}

// Emit delivers a lifecycle event to the Events channel.
func (c *Connection) Emit(ev audio.Event) { c.events <- ev }

// Source returns the mock source for identity.
func (c *Connection) Source(identity string) (audio.Source, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	src, ok := c.sources[identity]
	return src, ok
}

// Events returns the scripted event channel.
func (c *Connection) Events() <-chan audio.Event { return c.events }

// Disconnect ends all sources and closes the event channel.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DisconnectCallCount++
	if c.closed {
		return nil
	}
	c.closed = true
	for _, src := range c.sources {
		src.End()
	}
	close(c.events)
	return c.DisconnectErr
}

// Ensure Connection implements audio.Connection at compile time.
var _ audio.Connection = (*Connection)(nil)
