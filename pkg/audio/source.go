// Package audio defines the frame and segment types shared by every pipeline
// stage, and the interfaces for room audio transport.
//
// The two transport abstractions are:
//
//   - [Connection] — an active session on a speaker room, giving callers
//     per-speaker input streams and a lifecycle event channel.
//   - [Source] — one speaker's live, ordered, unbounded frame sequence.
//
// Implementations are provided by transport-specific adapter packages. The
// interfaces are intentionally narrow so the translation pipeline stays
// decoupled from the room provider: connecting, token issuance, and track
// publication are the adapter's concern.
//
// This package lives under pkg/ because external transport adapters are
// expected to implement [Connection] and [Source].
package audio

// EventType classifies speaker lifecycle events emitted by a [Connection].
type EventType int

const (
	// EventJoin is emitted when a speaker's audio track becomes available.
	EventJoin EventType = iota

	// EventLeave is emitted when a speaker disconnects from the room.
	EventLeave
)

// String returns the human-readable name of the event type.
func (e EventType) String() string {
	switch e {
	case EventJoin:
		return "JOIN"
	case EventLeave:
		return "LEAVE"
	default:
		return "UNKNOWN"
	}
}

// Event describes a speaker lifecycle change on a room connection. The registry
// consumes these from [Connection.Events] and translates them into pipeline
// acquire/release calls.
type Event struct {
	// Type indicates whether the speaker's track appeared or went away.
	Type EventType

	// Identity is the transport-specific unique identifier for the speaker.
	Identity string
}

// Source is one speaker's live audio feed.
//
// The frame channel is ordered and unbounded in time; it is closed by the
// implementation when the speaker's track ends. A Source is consumed by exactly
// one pipeline.
type Source interface {
	// Identity returns the speaker identity this source belongs to.
	Identity() string

	// Frames returns the read-only frame channel. The channel is closed when
	// the track ends or the connection is torn down.
	Frames() <-chan AudioFrame
}

// Connection represents an active session on a speaker room.
//
// Implementations must be safe for concurrent use. All channels returned by
// Connection methods are closed automatically when the connection terminates.
type Connection interface {
	// Source returns the live audio source for the given speaker identity, or
	// false if no track is currently available for it. Callers typically call
	// Source after receiving an [EventJoin] event.
	Source(identity string) (Source, bool)

	// Events returns the read-only speaker lifecycle event channel. Exactly one
	// consumer (the registry control loop) should read from it. The channel is
	// closed when the connection terminates.
	Events() <-chan Event

	// Disconnect cleanly tears down the connection and closes all source
	// channels and the event channel. Safe to call more than once; subsequent
	// calls are no-ops and return nil.
	Disconnect() error
}
