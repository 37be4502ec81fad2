// Package mock provides test doubles for the vad package interfaces.
//
// Use Session to script a fixed sequence of detection events; the segmenter
// under test will see exactly that sequence regardless of frame content.
//
// Example:
//
//	sess := &mock.Session{Events: []vad.Event{
//	    {Type: vad.SpeechStart}, {Type: vad.SpeechContinue}, {Type: vad.SpeechEnd},
//	}}
//	eng := &mock.Engine{Session: sess}
package mock

import (
	"sync"

	"github.com/MrWong99/polyglossa/pkg/provider/vad"
)

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by NewSession. If nil, NewSession
	// returns a new empty Session.
	Session vad.SessionHandle

	// Sessions, if non-empty, is consumed one handle per NewSession call;
	// once exhausted the engine falls back to Session / fresh sessions. Use
	// this to hand a restarted segmenter a different scripted session.
	Sessions []vad.SessionHandle

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records the configs passed to NewSession.
	NewSessionCalls []vad.Config
}

// NewSession records the call and returns the next configured session.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, cfg)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if len(e.Sessions) > 0 {
		s := e.Sessions[0]
		e.Sessions = e.Sessions[1:]
		return s, nil
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Ensure Engine implements vad.Engine at compile time.
var _ vad.Engine = (*Engine)(nil)

// Session is a mock implementation of vad.SessionHandle. It replays Events in
// order; once exhausted it keeps returning a Silence event (or ErrAfter, if
// set).
type Session struct {
	mu sync.Mutex

	// Events is the scripted sequence returned by successive ProcessFrame calls.
	Events []vad.Event

	// ErrAfter, if non-nil, is returned by every ProcessFrame call once Events
	// is exhausted. Use it to simulate a failing detector mid-stream.
	ErrAfter error

	// ProcessFrameCount is the number of ProcessFrame calls so far.
	ProcessFrameCount int

	// ResetCallCount is the number of Reset calls.
	ResetCallCount int

	// CloseCallCount is the number of Close calls.
	CloseCallCount int
}

// ProcessFrame returns the next scripted event.
func (s *Session) ProcessFrame(_ []byte) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.ProcessFrameCount
	s.ProcessFrameCount++
	if i < len(s.Events) {
		return s.Events[i], nil
	}
	if s.ErrAfter != nil {
		return vad.Event{}, s.ErrAfter
	}
	return vad.Event{Type: vad.Silence}, nil
}

// Reset records the call.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCallCount++
}

// Close records the call and returns nil.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return nil
}

// Ensure Session implements vad.SessionHandle at compile time.
var _ vad.SessionHandle = (*Session)(nil)
