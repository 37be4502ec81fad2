// Package health provides HTTP liveness and readiness handlers for the
// translation server.
//
//   - /healthz — liveness; a process that can serve HTTP is alive.
//   - /readyz  — readiness; 200 only while every registered probe passes.
//
// Responses are JSON with a "status" field, a per-probe "checks" map, and the
// current number of active speaker pipelines when a counter is attached.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 3 * time.Second

// Probe is a named readiness check. Probe functions must respect context
// cancellation; a nil return means the dependency is usable.
type Probe struct {
	// Name appears as the key in the readiness response (e.g. "archive",
	// "gateway").
	Name string

	// Check probes the dependency.
	Check func(ctx context.Context) error
}

// PipelineCounter reports how many speaker pipelines are currently active.
// *app.Registry satisfies this with its Len method.
type PipelineCounter interface {
	Len() int
}

type response struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Pipelines *int              `json:"active_pipelines,omitempty"`
}

// Handler serves the health endpoints. Safe for concurrent use; probes are
// fixed at construction.
type Handler struct {
	probes    []Probe
	pipelines PipelineCounter
}

// New creates a Handler evaluating the given probes, in order, on each
// /readyz request.
func New(probes ...Probe) *Handler {
	p := make([]Probe, len(probes))
	copy(p, probes)
	return &Handler{probes: p}
}

// WithPipelineCounter attaches the active-pipeline readout to the handler's
// responses. Returns the handler for chaining.
func (h *Handler) WithPipelineCounter(c PipelineCounter) *Handler {
	h.pipelines = c
	return h
}

// Healthz always returns 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.respond("ok", nil))
}

// Readyz returns 200 only when every probe passes. Each probe gets a
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.probes))
	allOK := true

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Check(ctx)
		cancel()

		if err != nil {
			checks[p.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[p.Name] = "ok"
		}
	}

	status := http.StatusOK
	verdict := "ok"
	if !allOK {
		status = http.StatusServiceUnavailable
		verdict = "fail"
	}
	writeJSON(w, status, h.respond(verdict, checks))
}

// Register adds the health routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func (h *Handler) respond(status string, checks map[string]string) response {
	res := response{Status: status, Checks: checks}
	if h.pipelines != nil {
		n := h.pipelines.Len()
		res.Pipelines = &n
	}
	return res
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
