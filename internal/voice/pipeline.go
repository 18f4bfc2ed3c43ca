// Package voice implements the real-time voice-capture core of the voxkit
// assistant: a microphone-driven pipeline that listens for voice activity,
// records utterances with silence-based end-of-speech detection, and hands
// finished recordings to a speech recognizer.
//
// Two concurrent actors share the pipeline. The control thread owns the
// public API and all state transitions. The audio thread — a dedicated OS
// thread driven by the capture backend — invokes processBlock once per 512
// sample block (≈32 ms at 16 kHz) and communicates with the control thread
// exclusively through atomics and one short-held buffer mutex; it never
// blocks and never performs a state transition itself, except setting the
// recording-complete flag that the control thread interprets.
package voice

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/voxkit/voxkit/internal/audio"
	"github.com/voxkit/voxkit/internal/observe"
	"github.com/voxkit/voxkit/pkg/recognizer"
	"github.com/voxkit/voxkit/pkg/speakerid"
)

const (
	// skipFramesAfterWake is the number of blocks (≈0.5 s) discarded after
	// entering Transcribing, so the tail of whatever triggered the
	// transition is not captured.
	skipFramesAfterWake = 15

	// minRecordingFrames is the number of blocks (≈1 s) that must be
	// recorded before silence detection may end the recording.
	minRecordingFrames = 30

	// completionPollInterval is how often the orchestrator checks the
	// recording-complete flag while waiting for the audio thread.
	completionPollInterval = 50 * time.Millisecond

	// minUsefulRecording is the length below which a capture is logged as
	// suspiciously short. Short recordings are flagged, never rejected.
	minUsefulRecording = 500 * time.Millisecond

	// VAD tunable bounds, enforced by New and UpdateVADSettings.
	minSensitivity = 0.001
	maxSensitivity = 1.0
	minTimeoutMs   = 100
	maxTimeoutMs   = 10000

	// serviceName identifies the pipeline in service-status events.
	serviceName = "voice_pipeline"

	// eventBufferSize bounds the fire-and-forget event channel.
	eventBufferSize = 16
)

// Config holds the pipeline's construction-time identity and initial
// tunables. ModelDir and ModelFile are immutable after New; the VAD tunables
// can be changed at runtime via UpdateVADSettings.
type Config struct {
	// ModelDir is the directory holding speech model files.
	ModelDir string

	// ModelFile is the whisper model filename (e.g., "ggml-base.en.bin").
	ModelFile string

	// VADSensitivity is the energy threshold for speech detection, in
	// [0.001, 1.0]. Lower values make the microphone more sensitive.
	VADSensitivity float64

	// VADTimeoutMs is the consecutive-silence duration that ends a
	// recording, in [100, 10000] milliseconds.
	VADTimeoutMs int
}

// TranscriptionResult is the outcome of one completed StartTranscription
// call. Immutable once returned.
type TranscriptionResult struct {
	// Text is the decoded utterance.
	Text string

	// Duration is the length of the captured recording.
	Duration time.Duration

	// Samples is the number of captured samples.
	Samples int

	// Speaker is the optional speaker-identification match, nil when no
	// identifier is configured or nobody was recognised.
	Speaker *speakerid.Match
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*Pipeline)

// WithAudioSource injects a capture source instead of the default PortAudio
// microphone.
func WithAudioSource(src audio.Source) Option {
	return func(p *Pipeline) { p.source = src }
}

// WithSpeakerIdentifier attaches a speaker-identification collaborator whose
// best-effort match is included in transcription results.
func WithSpeakerIdentifier(id speakerid.Identifier) Option {
	return func(p *Pipeline) { p.identifier = id }
}

// WithMetrics injects the metrics instance used for transcription and
// pipeline-lifecycle instruments. When absent no metrics are recorded.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock injects the time source used for wake debouncing and the
// recording deadline. Tests use this to make debounce behaviour
// deterministic.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline is the voice-capture core. All public methods are safe for
// concurrent use from the control side; processBlock is driven by the audio
// thread.
type Pipeline struct {
	modelDir  string
	modelFile string

	rec        recognizer.Recognizer
	source     audio.Source
	identifier speakerid.Identifier
	metrics    *observe.Metrics

	state   atomic.Int32
	running atomic.Bool

	// Tunables, re-read by the audio callback on every block so updates
	// take effect immediately. Sensitivity is stored as float bits.
	sensitivityBits atomic.Uint64
	timeoutMs       atomic.Int64

	wake    wakeDetector
	session *recordingSession

	// maxRecording and pollInterval default to the package constants;
	// tests shorten them to avoid multi-second waits.
	maxRecording time.Duration
	pollInterval time.Duration

	events chan Event
	now    func() time.Time
}

// New creates a Pipeline in the Idle state. rec must be non-nil; the model
// file is not required to exist yet (readiness is probed per call and via
// CheckReadiness).
func New(cfg Config, rec recognizer.Recognizer, opts ...Option) (*Pipeline, error) {
	if rec == nil {
		return nil, fmt.Errorf("voice: recognizer must not be nil")
	}
	if cfg.ModelFile == "" {
		return nil, fmt.Errorf("voice: model file must not be empty")
	}
	if err := validateVADSettings(cfg.VADSensitivity, cfg.VADTimeoutMs); err != nil {
		return nil, err
	}

	p := &Pipeline{
		modelDir:     cfg.ModelDir,
		modelFile:    cfg.ModelFile,
		rec:          rec,
		session:      newRecordingSession(),
		maxRecording: maxRecordingSeconds * time.Second,
		pollInterval: completionPollInterval,
		events:       make(chan Event, eventBufferSize),
		now:          time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	if p.source == nil {
		p.source = audio.NewMicrophone()
	}
	p.wake.now = p.now
	p.sensitivityBits.Store(math.Float64bits(cfg.VADSensitivity))
	p.timeoutMs.Store(int64(cfg.VADTimeoutMs))
	p.state.Store(int32(StateIdle))

	slog.Info("voice pipeline initialised",
		"model", p.ModelPath(),
		"vad_sensitivity", cfg.VADSensitivity,
		"vad_timeout_ms", cfg.VADTimeoutMs,
	)
	return p, nil
}

// ─── Lifecycle ───────────────────────────────────────────────────────────────

// Start opens the capture stream and enters ListeningForWakeWord. A missing
// model file is only a warning here — capture and wake detection work without
// it, and StartTranscription reports the precise error when needed. A missing
// input device is a typed, recoverable error wrapping [audio.ErrNoInputDevice].
func (p *Pipeline) Start() error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if !p.CheckReadiness() {
		slog.Warn("speech model not found, transcription unavailable until it is downloaded",
			"path", p.ModelPath())
	}

	if err := p.source.Start(p.processBlock); err != nil {
		p.running.Store(false)
		return fmt.Errorf("voice: start capture: %w", err)
	}

	p.wake.reset()
	p.wake.prime()
	p.setState(StateListeningForWakeWord)
	p.publish(Event{Kind: EventServiceStatus, Service: serviceName, Up: true, Time: p.now()})
	if p.metrics != nil {
		p.metrics.SetPipelineUp(context.Background(), 1)
	}
	slog.Info("voice pipeline started")
	return nil
}

// Stop tears down the capture stream and enters Idle. Idempotent; always
// succeeds. Shutdown latency is bounded by the capture backend's coarse stop
// check (about one second).
func (p *Pipeline) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	if err := p.source.Stop(); err != nil {
		slog.Warn("capture stop error", "error", err)
	}
	p.setState(StateIdle)
	p.session.reset()
	p.publish(Event{Kind: EventServiceStatus, Service: serviceName, Up: false, Time: p.now()})
	if p.metrics != nil {
		p.metrics.SetPipelineUp(context.Background(), -1)
	}
	slog.Info("voice pipeline stopped")
}

// Running reports whether the capture stream is active.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Events returns the channel on which wake and service-status events are
// delivered. Events are dropped when the channel is full; consumers that
// care should drain promptly.
func (p *Pipeline) Events() <-chan Event {
	return p.events
}

// ─── State machine ───────────────────────────────────────────────────────────

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// SetState forces the state machine to s. The surrounding application uses
// this to enter Speaking while synthesized speech plays back (so the pipeline
// cannot hear itself) and to return to ListeningForWakeWord afterwards.
func (p *Pipeline) SetState(s State) error {
	if !s.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidState, int32(s))
	}
	p.setState(s)
	return nil
}

// setState swaps the state and logs the transition.
func (p *Pipeline) setState(to State) {
	from := State(p.state.Swap(int32(to)))
	slog.Info("voice state transition", "from", from, "to", to)
}

// ─── Tunables ────────────────────────────────────────────────────────────────

// UpdateVADSettings changes the energy threshold and silence timeout at
// runtime. The audio callback reads the new values on its next block.
func (p *Pipeline) UpdateVADSettings(sensitivity float64, timeoutMs int) error {
	if err := validateVADSettings(sensitivity, timeoutMs); err != nil {
		return err
	}
	p.sensitivityBits.Store(math.Float64bits(sensitivity))
	p.timeoutMs.Store(int64(timeoutMs))
	slog.Info("vad settings updated", "sensitivity", sensitivity, "timeout_ms", timeoutMs)
	return nil
}

func validateVADSettings(sensitivity float64, timeoutMs int) error {
	if sensitivity < minSensitivity || sensitivity > maxSensitivity {
		return fmt.Errorf("%w: got %g", ErrSensitivityRange, sensitivity)
	}
	if timeoutMs < minTimeoutMs || timeoutMs > maxTimeoutMs {
		return fmt.Errorf("%w: got %dms", ErrTimeoutRange, timeoutMs)
	}
	return nil
}

// sensitivity returns the current energy threshold.
func (p *Pipeline) sensitivity() float64 {
	return math.Float64frombits(p.sensitivityBits.Load())
}

// silenceFrameLimit converts the current timeout into a block count. Each
// block is ≈32 ms, so 1280 ms maps to 40 blocks.
func (p *Pipeline) silenceFrameLimit() int64 {
	return int64(math.Round(float64(p.timeoutMs.Load()) / float64(audio.BlockMs)))
}

// ─── Readiness ───────────────────────────────────────────────────────────────

// ModelPath returns the full path of the configured speech model file.
func (p *Pipeline) ModelPath() string {
	return filepath.Join(p.modelDir, p.modelFile)
}

// CheckReadiness reports whether the configured model file exists on disk.
// Existence only — content validation is the recognizer's problem.
func (p *Pipeline) CheckReadiness() bool {
	info, err := os.Stat(p.ModelPath())
	return err == nil && !info.IsDir()
}

// ─── Audio callback ──────────────────────────────────────────────────────────

// processBlock is invoked by the audio thread once per block. It branches on
// the current state: wake detection while listening, accumulation while
// transcribing, and nothing at all while idle or speaking.
func (p *Pipeline) processBlock(block []float32) {
	if !p.running.Load() {
		return
	}

	sensitivity := p.sensitivity()
	energy := Energy(block)

	switch State(p.state.Load()) {
	case StateIdle, StateSpeaking:
		// Microphone is effectively muted: no counters move, no wake
		// notification can fire, nothing is buffered.
		return

	case StateListeningForWakeWord:
		if p.wake.observe(energy, sensitivity) {
			slog.Debug("voice activity detected",
				"energy", energy, "threshold", sensitivity*wakeThresholdFactor)
			p.publish(Event{Kind: EventWakeDetected, Time: p.now()})
		}

	case StateTranscribing:
		p.accumulate(block, energy, sensitivity)
	}
}

// accumulate handles one block while Transcribing: skip countdown, buffer
// append, and silence-based end-of-speech detection.
func (p *Pipeline) accumulate(block []float32, energy, sensitivity float64) {
	s := p.session

	if s.skipFrames.Load() > 0 {
		s.skipFrames.Add(-1)
		return
	}

	frames := s.frameCount.Add(1)
	s.append(block)

	if energy > sensitivity {
		if !s.speechSeen.Swap(true) {
			slog.Debug("speech detected", "energy", energy, "threshold", sensitivity)
		}
		s.silenceFrames.Store(0)
		return
	}

	// Silence only ends the recording after speech has been seen and the
	// minimum recording length has passed.
	if !s.speechSeen.Load() || frames < minRecordingFrames {
		return
	}
	if silence := s.silenceFrames.Add(1); silence >= p.silenceFrameLimit() {
		slog.Debug("end of speech detected", "frames", frames, "silence_blocks", silence)
		s.complete.Store(true)
		s.speechSeen.Store(false)
		s.silenceFrames.Store(0)
		s.frameCount.Store(0)
	}
}

// publish delivers an event without blocking; full channel means the event
// is dropped.
func (p *Pipeline) publish(ev Event) {
	select {
	case p.events <- ev:
	default:
	}
}

// ─── Transcription orchestration ─────────────────────────────────────────────

// StartTranscription drives one full capture: it arms the recording session,
// waits for the audio thread to signal end of speech (or for the 30-second
// cap), and hands the captured samples to the recognizer. It blocks for the
// duration and is safe to call repeatedly back-to-back — full session cleanup
// happens on every exit path.
func (p *Pipeline) StartTranscription(ctx context.Context) (*TranscriptionResult, error) {
	ctx, span := observe.StartSpan(ctx, "voice.start_transcription")
	defer span.End()
	log := observe.Logger(ctx)

	if !p.running.Load() {
		return nil, ErrNotRunning
	}
	if !p.CheckReadiness() {
		return nil, fmt.Errorf("%w: %s, download %s to enable transcription",
			ErrModelMissing, p.ModelPath(), p.modelFile)
	}

	// Guard against overlapping calls without touching any session state:
	// a concurrent transcription keeps its buffer and counters intact.
	for {
		cur := State(p.state.Load())
		if cur == StateTranscribing {
			return nil, ErrAlreadyTranscribing
		}
		if p.state.CompareAndSwap(int32(cur), int32(StateTranscribing)) {
			slog.Info("voice state transition", "from", cur, "to", StateTranscribing)
			break
		}
	}

	// Fresh session: clean slate, skip countdown armed.
	p.session.arm(skipFramesAfterWake)
	log.Info("recording started",
		"skip_blocks", skipFramesAfterWake,
		"min_blocks", minRecordingFrames,
		"vad_sensitivity", p.sensitivity(),
		"vad_timeout_ms", p.timeoutMs.Load(),
	)

	p.waitForCompletion(ctx, log)

	// Unconditionally leave Transcribing, whatever happened while waiting.
	p.setState(StateListeningForWakeWord)

	samples := p.session.snapshot()
	duration := time.Duration(len(samples)) * time.Second / audio.SampleRate
	log.Info("recording captured", "samples", len(samples), "duration", duration)

	if len(samples) == 0 {
		p.session.reset()
		if p.metrics != nil {
			p.metrics.RecordTranscription(ctx, "empty", 0)
		}
		return nil, ErrNoAudioCaptured
	}
	if duration < minUsefulRecording {
		log.Warn("recording shorter than expected, proceeding anyway",
			"duration", duration, "min", minUsefulRecording)
	}
	log.Debug("recording energy",
		"avg_energy", Energy(samples), "vad_sensitivity", p.sensitivity())

	decodeStart := p.now()
	text, err := p.rec.Transcribe(ctx, samples)

	// Full cleanup regardless of the decode outcome, and resilient to a
	// concurrent CancelAndReset having already done it.
	p.session.reset()

	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordTranscription(ctx, "error", duration.Seconds())
		}
		return nil, fmt.Errorf("voice: transcription failed: %w", err)
	}

	result := &TranscriptionResult{
		Text:     text,
		Duration: duration,
		Samples:  len(samples),
	}
	if p.identifier != nil {
		match, idErr := p.identifier.Identify(ctx, samples)
		if idErr != nil {
			log.Warn("speaker identification failed", "error", idErr)
		} else {
			result.Speaker = match
		}
	}

	if p.metrics != nil {
		p.metrics.RecordTranscription(ctx, "ok", duration.Seconds())
		p.metrics.RecordDecodeLatency(ctx, p.now().Sub(decodeStart).Seconds())
	}
	log.Info("transcription complete", "chars", len(text), "duration", duration)
	return result, nil
}

// waitForCompletion polls the recording-complete flag until the audio thread
// sets it, the wall-clock cap elapses, or ctx is cancelled. Cancellation is
// treated like a timeout: whatever audio has accumulated is used.
func (p *Pipeline) waitForCompletion(ctx context.Context, log *slog.Logger) {
	deadline := p.now().Add(p.maxRecording)
	for !p.session.complete.Load() {
		if !p.now().Before(deadline) {
			log.Warn("recording cap reached", "cap", p.maxRecording)
			return
		}
		select {
		case <-ctx.Done():
			log.Warn("recording wait cancelled", "error", ctx.Err())
			return
		case <-time.After(p.pollInterval):
		}
	}
	log.Info("recording completed, silence detected")
}

// CancelAndReset forcibly clears all recording state and returns the state
// machine to ListeningForWakeWord, regardless of what any in-flight
// StartTranscription believes. Callable at any time; always leaves the
// pipeline ready for the next operation.
func (p *Pipeline) CancelAndReset() error {
	p.session.reset()
	from := State(p.state.Swap(int32(StateListeningForWakeWord)))
	slog.Info("voice state transition",
		"from", from, "to", StateListeningForWakeWord, "reason", "forced reset")
	return nil
}
