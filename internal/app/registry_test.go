package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/polyglossa/internal/pipeline"
	"github.com/MrWong99/polyglossa/pkg/audio"
	audiomock "github.com/MrWong99/polyglossa/pkg/audio/mock"
	publishmock "github.com/MrWong99/polyglossa/pkg/publish/mock"
	sttmock "github.com/MrWong99/polyglossa/pkg/provider/stt/mock"
	translatemock "github.com/MrWong99/polyglossa/pkg/provider/translate/mock"
	ttsmock "github.com/MrWong99/polyglossa/pkg/provider/tts/mock"
	vadmock "github.com/MrWong99/polyglossa/pkg/provider/vad/mock"
)

// discardLogger silences registry logging in tests.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newIdlePipeline builds a pipeline over an idle mock source. It starts,
// consumes nothing, and stops cleanly on Close.
func newIdlePipeline(t *testing.T, identity string) *pipeline.Pipeline {
	t.Helper()
	src := audiomock.NewSource(identity)
	t.Cleanup(src.End)

	p, err := pipeline.New(pipeline.Config{
		Speaker: identity,
		VAD:     &vadmock.Engine{},
		STT:     &sttmock.Provider{},
		Languages: []pipeline.LanguageBranch{{
			Name:       "Tamil",
			Code:       "ta",
			Translator: &translatemock.Translator{Result: "ok"},
			Synth:      &ttsmock.Provider{},
			Sink:       &publishmock.Sink{},
		}},
		Logger: discardLogger(),
	}, src)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return p
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestRegistry_AcquireIsIdempotentUnderConcurrency(t *testing.T) {
	t.Parallel()

	var factoryCalls int
	var factoryMu sync.Mutex
	factory := func(identity string) (*pipeline.Pipeline, error) {
		factoryMu.Lock()
		factoryCalls++
		factoryMu.Unlock()
		return newIdlePipeline(t, identity), nil
	}

	r := NewRegistry(factory, discardLogger())
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })

	const goroutines = 16
	results := make([]*pipeline.Pipeline, goroutines)
	createdCount := 0
	var createdMu sync.Mutex

	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, created := r.Acquire(context.Background(), "speaker-1")
			results[i] = p
			if created {
				createdMu.Lock()
				createdCount++
				createdMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if factoryCalls != 1 {
		t.Errorf("factory calls: want 1, got %d", factoryCalls)
	}
	if createdCount != 1 {
		t.Errorf("created=true results: want 1, got %d", createdCount)
	}
	for i, p := range results {
		if p == nil || p != results[0] {
			t.Fatalf("goroutine %d got a different pipeline instance", i)
		}
	}
	if r.Len() != 1 {
		t.Errorf("registry size: want 1, got %d", r.Len())
	}
}

func TestRegistry_AcquireFactoryFailure(t *testing.T) {
	t.Parallel()

	errBuild := errors.New("no source")
	factory := func(string) (*pipeline.Pipeline, error) { return nil, errBuild }

	r := NewRegistry(factory, discardLogger())
	p, created := r.Acquire(context.Background(), "speaker-1")
	if p != nil || created {
		t.Errorf("Acquire: want (nil, false) on factory failure, got (%v, %v)", p, created)
	}
	if r.Len() != 0 {
		t.Errorf("registry size: want 0, got %d", r.Len())
	}
}

func TestRegistry_ReleaseClosesAsynchronously(t *testing.T) {
	t.Parallel()

	r := NewRegistry(func(identity string) (*pipeline.Pipeline, error) {
		return newIdlePipeline(t, identity), nil
	}, discardLogger())

	p, created := r.Acquire(context.Background(), "speaker-1")
	if !created {
		t.Fatal("want created=true on first acquire")
	}

	r.Release("speaker-1")
	if r.Len() != 0 {
		t.Errorf("registry size after release: want 0, got %d", r.Len())
	}
	waitFor(t, func() bool { return p.State() == pipeline.StateStopped },
		"pipeline not stopped after release")

	// Unknown identity is a no-op.
	r.Release("speaker-unknown")
}

func TestRegistry_RunTranslatesJoinAndLeave(t *testing.T) {
	t.Parallel()

	r := NewRegistry(func(identity string) (*pipeline.Pipeline, error) {
		return newIdlePipeline(t, identity), nil
	}, discardLogger())

	events := make(chan audio.Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(context.Background(), events)
	}()

	events <- audio.Event{Type: audio.EventJoin, Identity: "speaker-1"}
	waitFor(t, func() bool { return r.Len() == 1 }, "pipeline not registered after join")

	p, _ := r.Get("speaker-1")
	if p == nil {
		t.Fatal("want pipeline registered for speaker-1")
	}

	events <- audio.Event{Type: audio.EventLeave, Identity: "speaker-1"}
	waitFor(t, func() bool { return r.Len() == 0 }, "pipeline not removed after leave")
	waitFor(t, func() bool { return p.State() == pipeline.StateStopped },
		"pipeline not stopped after leave")

	close(events)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after event channel closed")
	}
}

func TestRegistry_ShutdownClosesAll(t *testing.T) {
	t.Parallel()

	r := NewRegistry(func(identity string) (*pipeline.Pipeline, error) {
		return newIdlePipeline(t, identity), nil
	}, discardLogger())

	p1, _ := r.Acquire(context.Background(), "speaker-1")
	p2, _ := r.Acquire(context.Background(), "speaker-2")

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if p1.State() != pipeline.StateStopped || p2.State() != pipeline.StateStopped {
		t.Errorf("pipeline states after shutdown: got %v/%v, want STOPPED/STOPPED", p1.State(), p2.State())
	}

	// The registry refuses new work after shutdown.
	p, created := r.Acquire(context.Background(), "speaker-3")
	if p != nil || created {
		t.Errorf("Acquire after shutdown: want (nil, false), got (%v, %v)", p, created)
	}
}
