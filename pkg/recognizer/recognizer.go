// Package recognizer defines the Recognizer interface for offline
// speech-to-text backends.
//
// A recognizer performs a single full decode pass over a finished utterance:
// the voice pipeline hands it a flat array of 16 kHz mono float32 samples and
// receives the decoded text. There is no streaming and no partial output —
// segmentation (deciding where an utterance starts and ends) is the pipeline's
// job, not the recognizer's.
//
// Implementations must be safe for concurrent use; the pipeline may invoke
// Transcribe from a worker goroutine while other control-thread calls are in
// flight.
package recognizer

import (
	"context"
	"errors"
)

// SampleRate is the audio sample rate (Hz) every Recognizer implementation
// must accept. Fixed at 16 kHz, the native rate of whisper.cpp models.
const SampleRate = 16000

// ErrNoSpeech is returned when the decode pass completes successfully but
// produces no text. Callers should treat this as "the recording contained no
// intelligible speech", not as an engine failure.
var ErrNoSpeech = errors.New("recognizer: no speech detected in audio")

// Recognizer converts a complete utterance into text.
type Recognizer interface {
	// Transcribe runs a full decode pass over samples (16 kHz mono float32 in
	// the range [-1.0, 1.0]) and returns the decoded text with leading and
	// trailing whitespace trimmed. An empty decode is reported as an error
	// wrapping [ErrNoSpeech] rather than an empty success.
	//
	// Transcribe blocks until decoding finishes or ctx is cancelled.
	Transcribe(ctx context.Context, samples []float32) (string, error)

	// Close releases any resources held by the recognizer (loaded models,
	// native handles). Calling Close more than once is safe and returns nil.
	Close() error
}
