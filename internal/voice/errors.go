package voice

import "errors"

// Sentinel errors returned by the pipeline's public API. Callers are expected
// to surface the messages directly or map them to UI strings; use errors.Is
// to branch on kind.
var (
	// ErrNotRunning is returned when an operation requires an active capture
	// stream and the pipeline has not been started (or was stopped).
	ErrNotRunning = errors.New("voice: pipeline is not running")

	// ErrAlreadyRunning is returned by Start when capture is already active.
	ErrAlreadyRunning = errors.New("voice: pipeline is already running")

	// ErrAlreadyTranscribing is returned by StartTranscription when a
	// recording is already in progress. The in-progress session is left
	// untouched.
	ErrAlreadyTranscribing = errors.New("voice: already transcribing, wait for the current recording to complete")

	// ErrModelMissing is returned when the configured speech model file does
	// not exist on disk.
	ErrModelMissing = errors.New("voice: speech model not found")

	// ErrNoAudioCaptured is returned when a recording session ends with an
	// empty buffer. Distinct from a recognition error: the microphone
	// delivered nothing, so there was nothing to decode.
	ErrNoAudioCaptured = errors.New("voice: no audio captured, check microphone permissions and input device selection")

	// ErrSensitivityRange is returned for a VAD sensitivity outside
	// [0.001, 1.0].
	ErrSensitivityRange = errors.New("voice: sensitivity must be between 0.001 and 1.0")

	// ErrTimeoutRange is returned for a VAD silence timeout outside
	// [100ms, 10000ms].
	ErrTimeoutRange = errors.New("voice: timeout must be between 100ms and 10000ms")

	// ErrInvalidState is returned by SetState for a value that is not one of
	// the four defined states.
	ErrInvalidState = errors.New("voice: invalid state value")
)
