package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxkit/voxkit/internal/health"
	"github.com/voxkit/voxkit/internal/transcript"
	"github.com/voxkit/voxkit/internal/voice"
)

// routes builds the admin server mux: health probes, the Prometheus scrape
// endpoint, and a small control API over the voice pipeline.
func (a *App) routes() *http.ServeMux {
	mux := http.NewServeMux()

	h := health.New(
		func() string { return a.pipeline.State().String() },
		health.ModelFile(a.pipeline.ModelPath()),
		health.Capture(a.pipeline.Running),
	)
	h.Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/state", a.handleGetState)
	mux.HandleFunc("POST /v1/state", a.handleSetState)
	mux.HandleFunc("POST /v1/transcribe", a.handleTranscribe)
	mux.HandleFunc("GET /v1/transcripts", a.handleTranscripts)
	mux.HandleFunc("PUT /v1/vad", a.handleUpdateVAD)
	mux.HandleFunc("POST /v1/reset", a.handleReset)

	return mux
}

// stateResponse is the body of GET /v1/state.
type stateResponse struct {
	State string `json:"state"`
}

// stateRequest is the body of POST /v1/state.
type stateRequest struct {
	State string `json:"state"`
}

// vadRequest is the body of PUT /v1/vad.
type vadRequest struct {
	Sensitivity float64 `json:"sensitivity"`
	TimeoutMs   int     `json:"timeout_ms"`
}

// transcribeResponse is the body of a successful POST /v1/transcribe.
type transcribeResponse struct {
	Text       string           `json:"text"`
	DurationMs int64            `json:"duration_ms"`
	Samples    int              `json:"samples"`
	Speaker    *speakerResponse `json:"speaker,omitempty"`
}

type speakerResponse struct {
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// errorResponse is the body of any non-2xx control API response.
type errorResponse struct {
	Error string `json:"error"`
}

func (a *App) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{State: a.pipeline.State().String()})
}

func (a *App) handleSetState(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	s, err := voice.ParseState(req.State)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := a.pipeline.SetState(s); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTranscribe runs one full capture-and-decode cycle. The request blocks
// until silence detection (or the recording cap) ends the capture, so clients
// should use generous timeouts.
func (a *App) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	res, err := a.pipeline.StartTranscription(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, voice.ErrAlreadyTranscribing):
			status = http.StatusConflict
		case errors.Is(err, voice.ErrNotRunning), errors.Is(err, voice.ErrModelMissing):
			status = http.StatusServiceUnavailable
		case errors.Is(err, voice.ErrNoAudioCaptured):
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	body := transcribeResponse{
		Text:       res.Text,
		DurationMs: res.Duration.Milliseconds(),
		Samples:    res.Samples,
	}
	entry := transcript.Entry{
		Timestamp:  time.Now().UTC(),
		Text:       res.Text,
		DurationMs: body.DurationMs,
		Samples:    res.Samples,
	}
	if res.Speaker != nil {
		body.Speaker = &speakerResponse{
			Name:       res.Speaker.Name,
			Similarity: res.Speaker.Similarity,
		}
		entry.Speaker = res.Speaker.Name
	}
	if err := a.history.Add(entry); err != nil {
		slog.Warn("failed to persist transcript", "err", err)
	}
	if a.notifier != nil {
		a.notifier.Transcribed(res.Text)
	}
	writeJSON(w, http.StatusOK, body)
}

// handleTranscripts returns recent transcriptions, newest first. The optional
// limit query parameter caps the count.
func (a *App) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	entries := a.history.Recent(limit)
	if entries == nil {
		entries = []transcript.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *App) handleUpdateVAD(w http.ResponseWriter, r *http.Request) {
	var req vadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if err := a.pipeline.UpdateVADSettings(req.Sensitivity, req.TimeoutMs); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleReset(w http.ResponseWriter, _ *http.Request) {
	if err := a.pipeline.CancelAndReset(); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}
