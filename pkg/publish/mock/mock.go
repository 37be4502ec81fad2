// Package mock provides a test double for the publish.Sink interface.
//
// The Sink records frames and subtitles in publication order so tests can
// assert both content and sequencing. FrameErr and SubtitleErr make publish
// calls fail; Closed reports whether Close was called.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/polyglossa/pkg/audio"
	"github.com/MrWong99/polyglossa/pkg/publish"
)

// RecordKind discriminates the entries in Sink.Records.
type RecordKind int

const (
	// KindFrame marks an audio frame record.
	KindFrame RecordKind = iota
	// KindSubtitle marks a subtitle record.
	KindSubtitle
)

// Record is a single published item, in order of publication.
type Record struct {
	// Kind says whether Frame or Subtitle is populated.
	Kind RecordKind
	// Frame holds the published frame for KindFrame records.
	Frame audio.AudioFrame
	// Subtitle holds the published caption for KindSubtitle records.
	Subtitle publish.Subtitle
}

// Sink is a mock implementation of publish.Sink.
type Sink struct {
	mu sync.Mutex

	// FrameErr, if non-nil, is returned by every PublishFrame call.
	FrameErr error

	// SubtitleErr, if non-nil, is returned by every PublishSubtitle call.
	SubtitleErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// Records holds everything published, in order.
	Records []Record

	// Closed reports whether Close has been called.
	Closed bool
}

// PublishFrame records the frame and returns FrameErr.
func (s *Sink) PublishFrame(_ context.Context, frame audio.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FrameErr != nil {
		return s.FrameErr
	}
	s.Records = append(s.Records, Record{Kind: KindFrame, Frame: frame})
	return nil
}

// PublishSubtitle records the caption and returns SubtitleErr.
func (s *Sink) PublishSubtitle(_ context.Context, sub publish.Subtitle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SubtitleErr != nil {
		return s.SubtitleErr
	}
	s.Records = append(s.Records, Record{Kind: KindSubtitle, Subtitle: sub})
	return nil
}

// Close marks the sink closed and returns CloseErr.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return s.CloseErr
}

// Frames returns the published frames in order. Thread-safe.
func (s *Sink) Frames() []audio.AudioFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var frames []audio.AudioFrame
	for _, r := range s.Records {
		if r.Kind == KindFrame {
			frames = append(frames, r.Frame)
		}
	}
	return frames
}

// Subtitles returns the published captions in order. Thread-safe.
func (s *Sink) Subtitles() []publish.Subtitle {
	s.mu.Lock()
	defer s.mu.Unlock()
	var subs []publish.Subtitle
	for _, r := range s.Records {
		if r.Kind == KindSubtitle {
			subs = append(subs, r.Subtitle)
		}
	}
	return subs
}

// Ensure Sink implements publish.Sink at compile time.
var _ publish.Sink = (*Sink)(nil)
