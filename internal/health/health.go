// Package health provides HTTP health and readiness check handlers for the
// voxkit daemon.
//
// The package exposes two endpoints:
//
//   - /healthz — liveness probe; always returns 200 OK and reports the
//     current voice pipeline state.
//   - /readyz  — readiness probe; returns 200 only when all registered
//     [Checker] functions pass (notably: the speech model file is present).
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail"),
// an optional "state" field with the pipeline state, and a "checks" map
// containing the result of each named checker.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy and a non-nil error describing the
// failure otherwise.
type Checker struct {
	// Name is a short, human-readable label for this check (e.g. "model",
	// "capture"). It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// ModelFile returns a Checker that passes when the speech model file exists
// at path. Transcription is unavailable until the model is downloaded, so a
// missing file makes the daemon not-ready while capture keeps working.
func ModelFile(path string) Checker {
	return Checker{
		Name: "model",
		Check: func(context.Context) error {
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("model file %s not available: %w", path, err)
			}
			if info.IsDir() {
				return fmt.Errorf("model path %s is a directory", path)
			}
			return nil
		},
	}
}

// Capture returns a Checker that passes while the capture stream is running.
func Capture(running func() bool) Checker {
	return Checker{
		Name: "capture",
		Check: func(context.Context) error {
			if !running() {
				return fmt.Errorf("voice pipeline is not running")
			}
			return nil
		},
	}
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string            `json:"status"`
	State  string            `json:"state,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz endpoints. It is safe for concurrent
// use; the checker list is fixed at construction time.
type Handler struct {
	state    func() string
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request. state reports the current voice pipeline state for /healthz and
// may be nil. The checkers are evaluated sequentially in the order provided.
func New(state func() string, checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{state: state, checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive; the response body additionally
// reports what the voice state machine is doing.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	res := result{Status: "ok"}
	if h.state != nil {
		res.State = h.state()
	}
	writeJSON(w, http.StatusOK, res)
}

// Readyz is a readiness probe that returns 200 only when every registered
// [Checker] passes. Each checker is given a context with a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
