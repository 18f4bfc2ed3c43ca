package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/voxkit/voxkit/internal/audio"
	"github.com/voxkit/voxkit/internal/config"
	"github.com/voxkit/voxkit/internal/notify"
	"github.com/voxkit/voxkit/internal/observe"
	"github.com/voxkit/voxkit/internal/transcript"
	"github.com/voxkit/voxkit/internal/voice"
	recmock "github.com/voxkit/voxkit/pkg/recognizer/mock"
)

// fixture bundles an App with its collaborators for handler tests.
type fixture struct {
	app      *App
	pipeline *voice.Pipeline
	replay   *audio.Replay
	reader   *sdkmetric.ManualReader
	notifier *notify.Notifier
}

// shiftClock is a real-time source tests can jump forward to get past the
// wake debounce window without sleeping.
type shiftClock struct {
	offset atomic.Int64
}

func (c *shiftClock) now() time.Time {
	return time.Now().Add(time.Duration(c.offset.Load()))
}

func (c *shiftClock) shift(d time.Duration) {
	c.offset.Add(int64(d))
}

// newFixture builds an App around a replay audio source, a mock recognizer,
// and a manual-reader metrics instance. withModel controls whether the speech
// model file exists on disk. Extra pipeline options are appended after the
// fixture's own.
func newFixture(t *testing.T, withModel bool, pipelineOpts ...voice.Option) *fixture {
	t.Helper()

	dir := t.TempDir()
	if withModel {
		if err := os.WriteFile(filepath.Join(dir, "ggml-base.en.bin"), []byte("ggml"), 0o644); err != nil {
			t.Fatalf("write model: %v", err)
		}
	}

	cfg := config.Defaults()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Models.Dir = dir

	reader := sdkmetric.NewManualReader()
	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	replay := audio.NewReplay()
	pipeline, err := voice.New(voice.Config{
		ModelDir:       cfg.Models.Dir,
		ModelFile:      cfg.Models.STTModel,
		VADSensitivity: cfg.VAD.Sensitivity,
		VADTimeoutMs:   cfg.VAD.TimeoutMs,
	}, &recmock.Recognizer{Text: "ok"},
		append([]voice.Option{
			voice.WithAudioSource(replay),
			voice.WithMetrics(metrics),
		}, pipelineOpts...)...,
	)
	if err != nil {
		t.Fatalf("voice.New: %v", err)
	}

	notifier := notify.New(false) // never raise real desktop notifications in tests
	a, err := New(&cfg, pipeline,
		WithMetrics(metrics),
		WithNotifier(notifier),
	)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	return &fixture{app: a, pipeline: pipeline, replay: replay, reader: reader, notifier: notifier}
}

// do performs an admin API request against the app's full handler chain.
func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.app.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestGetState(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, "GET", "/v1/state", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body stateResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.State != "idle" {
		t.Errorf("state = %q; want idle before Start", body.State)
	}
}

func TestSetState(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, "POST", "/v1/state", stateRequest{State: "speaking"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := f.pipeline.State(); got != voice.StateSpeaking {
		t.Errorf("pipeline state = %v; want speaking", got)
	}

	rec = f.do(t, "POST", "/v1/state", stateRequest{State: "daydreaming"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown state: status = %d; want 400", rec.Code)
	}

	req := httptest.NewRequest("POST", "/v1/state", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	f.app.srv.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON: status = %d; want 400", w.Code)
	}
}

func TestUpdateVAD(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, "PUT", "/v1/vad", vadRequest{Sensitivity: 0.05, TimeoutMs: 2000})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	rec = f.do(t, "PUT", "/v1/vad", vadRequest{Sensitivity: 5, TimeoutMs: 2000})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range sensitivity: status = %d; want 400", rec.Code)
	}
	rec = f.do(t, "PUT", "/v1/vad", vadRequest{Sensitivity: 0.05, TimeoutMs: 1})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range timeout: status = %d; want 400", rec.Code)
	}
}

func TestReset(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, "POST", "/v1/reset", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := f.pipeline.State(); got != voice.StateListeningForWakeWord {
		t.Errorf("state after reset = %v; want listening", got)
	}
}

func TestTranscribe_NotRunning(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, "POST", "/v1/transcribe", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d; want 503 while pipeline is stopped", rec.Code)
	}
}

func TestTranscribe_ModelMissing(t *testing.T) {
	f := newFixture(t, false)
	if err := f.pipeline.Start(); err != nil {
		t.Fatalf("pipeline.Start: %v", err)
	}
	defer f.pipeline.Stop()

	rec := f.do(t, "POST", "/v1/transcribe", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d; want 503 without a model file", rec.Code)
	}
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == "" {
		t.Error("error body is empty")
	}
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, "GET", "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz = %d; want 200", rec.Code)
	}

	// Capture is stopped, so readiness must fail even with a model on disk.
	rec = f.do(t, "GET", "/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz while stopped = %d; want 503", rec.Code)
	}

	if err := f.pipeline.Start(); err != nil {
		t.Fatalf("pipeline.Start: %v", err)
	}
	defer f.pipeline.Stop()

	rec = f.do(t, "GET", "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz while running = %d; want 200; body %s", rec.Code, rec.Body)
	}
}

func TestTranscripts(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, "GET", "/v1/transcripts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var empty []transcript.Entry
	if err := json.NewDecoder(rec.Body).Decode(&empty); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("fresh history returned %d entries", len(empty))
	}

	for _, text := range []string{"one", "two", "three"} {
		if err := f.app.history.Add(transcript.Entry{Text: text}); err != nil {
			t.Fatalf("history.Add: %v", err)
		}
	}

	rec = f.do(t, "GET", "/v1/transcripts?limit=2", nil)
	var got []transcript.Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].Text != "three" || got[1].Text != "two" {
		t.Errorf("entries = %+v; want newest two first", got)
	}

	rec = f.do(t, "GET", "/v1/transcripts?limit=-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit: status = %d; want 400", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, "GET", "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("metrics = %d; want 200", rec.Code)
	}
}

func TestDispatchEvents_WakeDetection(t *testing.T) {
	clock := &shiftClock{}
	f := newFixture(t, true, voice.WithClock(clock.now))
	if err := f.pipeline.Start(); err != nil {
		t.Fatalf("pipeline.Start: %v", err)
	}
	defer f.pipeline.Stop()
	// Jump past the wake debounce window that opens at stream start.
	clock.shift(5 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.app.dispatchEvents(ctx)
	}()

	// Ten consecutive loud blocks trip the wake detector.
	loud := make([]float32, audio.BlockSize)
	for i := range loud {
		loud[i] = 0.5
	}
	for i := 0; i < 10; i++ {
		f.replay.Feed(loud)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		if n := wakeDetectionCount(t, f.reader); n >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("wake detection never reached the metrics instruments")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on context cancellation")
	}
}

// wakeDetectionCount collects current metrics and sums the wake counter.
func wakeDetectionCount(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "voxkit.wake.detections" {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestApplyConfigChange(t *testing.T) {
	f := newFixture(t, true)

	level := new(slog.LevelVar)
	f.app.logLevel = level

	old := config.Defaults()
	old.Notifications.Enabled = false
	updated := config.Defaults()
	updated.VAD.Sensitivity = 0.1
	updated.Server.LogLevel = config.LogDebug
	updated.Notifications.Enabled = true

	f.app.ApplyConfigChange(&old, &updated)

	if level.Level() != slog.LevelDebug {
		t.Errorf("log level = %v; want debug", level.Level())
	}
	if !f.notifier.Enabled() {
		t.Error("notifier not enabled after toggle")
	}
	f.notifier.SetEnabled(false)

	// An invalid hot-reloaded VAD value is skipped, not applied.
	bad := config.Defaults()
	bad.VAD.Sensitivity = 99
	f.app.ApplyConfigChange(&updated, &bad)
}

func TestNew_Validation(t *testing.T) {
	f := newFixture(t, true)
	if _, err := New(nil, f.pipeline); err == nil {
		t.Error("nil config accepted")
	}
	cfg := config.Defaults()
	if _, err := New(&cfg, nil); err == nil {
		t.Error("nil pipeline accepted")
	}
}

func TestRunAndShutdown(t *testing.T) {
	f := newFixture(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.app.Run(ctx) }()

	// Give the run loop a moment to start the pipeline.
	deadline := time.Now().Add(2 * time.Second)
	for !f.pipeline.Running() {
		if time.Now().After(deadline) {
			t.Fatal("pipeline never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	shCtx, shCancel := context.WithTimeout(context.Background(), time.Second)
	defer shCancel()
	if err := f.app.Shutdown(shCtx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if f.pipeline.Running() {
		t.Error("pipeline still running after Shutdown")
	}
}
