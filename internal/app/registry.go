// Package app wires configuration, providers, and per-speaker pipelines into
// a running service.
//
// The Registry owns the speaker→pipeline map and is the only place pipelines
// are created or closed. The App struct builds the shared provider stack from
// config and hands the Registry a factory that assembles one pipeline per
// speaker on demand.
package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MrWong99/polyglossa/internal/pipeline"
	"github.com/MrWong99/polyglossa/pkg/audio"
)

// PipelineFactory builds a pipeline for a speaker identity. Called at most
// once per identity while that identity is registered.
type PipelineFactory func(identity string) (*pipeline.Pipeline, error)

// Registry maps speaker identities to their running pipelines. All mutation
// goes through Acquire and Release, both safe for concurrent use.
type Registry struct {
	factory PipelineFactory
	log     *slog.Logger

	mu        sync.Mutex
	pipelines map[string]*pipeline.Pipeline
	closed    bool

	// releaseWG tracks asynchronous pipeline closes so Shutdown can await them.
	releaseWG sync.WaitGroup
}

// NewRegistry creates a registry that builds pipelines with the given factory.
// A nil logger defaults to slog.Default().
func NewRegistry(factory PipelineFactory, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		factory:   factory,
		log:       log,
		pipelines: make(map[string]*pipeline.Pipeline),
	}
}

// Acquire returns the pipeline for the given identity, creating and starting
// it on first use. The second return reports whether this call created the
// pipeline. Acquiring an identity that already has a pipeline is a no-op, so
// duplicate join events are harmless. Returns (nil, false) when the factory
// fails or the registry is already shut down.
func (r *Registry) Acquire(ctx context.Context, identity string) (*pipeline.Pipeline, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.log.Warn("registry: acquire after shutdown", "speaker", identity)
		return nil, false
	}
	if p, ok := r.pipelines[identity]; ok {
		return p, false
	}

	p, err := r.factory(identity)
	if err != nil {
		r.log.Error("registry: pipeline factory failed", "speaker", identity, "error", err)
		return nil, false
	}
	r.pipelines[identity] = p
	p.Start(ctx)
	r.log.Info("registry: pipeline started", "speaker", identity, "active", len(r.pipelines))
	return p, true
}

// Release removes the identity's pipeline from the registry and closes it
// asynchronously. The control loop is never blocked on a pipeline draining
// its in-flight branches. Releasing an unknown identity is a no-op.
func (r *Registry) Release(identity string) {
	r.mu.Lock()
	p, ok := r.pipelines[identity]
	if ok {
		delete(r.pipelines, identity)
	}
	active := len(r.pipelines)
	r.mu.Unlock()

	if !ok {
		return
	}

	r.releaseWG.Add(1)
	go func() {
		defer r.releaseWG.Done()
		_ = p.Close()
		r.log.Info("registry: pipeline released", "speaker", identity, "active", active)
	}()
}

// Get returns the pipeline for an identity without creating one.
func (r *Registry) Get(identity string) (*pipeline.Pipeline, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pipelines[identity]
	return p, ok
}

// Len returns the number of registered pipelines.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pipelines)
}

// Run is the control loop: it translates speaker lifecycle events into
// acquire and release calls. It returns when the event channel closes or ctx
// is cancelled. Exactly one goroutine should run it per event channel.
func (r *Registry) Run(ctx context.Context, events <-chan audio.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				r.log.Info("registry: event channel closed")
				return
			}
			switch ev.Type {
			case audio.EventJoin:
				r.Acquire(ctx, ev.Identity)
			case audio.EventLeave:
				r.Release(ev.Identity)
			default:
				r.log.Warn("registry: unknown event type", "type", int(ev.Type), "speaker", ev.Identity)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown closes every remaining pipeline and waits for all closes,
// including earlier asynchronous releases, to finish or ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	remaining := make(map[string]*pipeline.Pipeline, len(r.pipelines))
	for id, p := range r.pipelines {
		remaining[id] = p
	}
	r.pipelines = make(map[string]*pipeline.Pipeline)
	r.mu.Unlock()

	for id, p := range remaining {
		r.releaseWG.Add(1)
		go func() {
			defer r.releaseWG.Done()
			_ = p.Close()
			r.log.Info("registry: pipeline closed on shutdown", "speaker", id)
		}()
	}

	done := make(chan struct{})
	go func() {
		r.releaseWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
