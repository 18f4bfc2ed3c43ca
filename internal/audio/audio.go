// Package audio provides microphone capture for the voice pipeline.
//
// A [Source] delivers fixed-size blocks of 16 kHz mono float32 samples to a
// callback. The callback runs on whatever thread the audio backend drives and
// must return quickly: it may read shared state and update counters, but it
// must never block on I/O or long-held locks, or the backend will drop audio.
//
// The production implementation is [Microphone] (PortAudio). [Replay] feeds
// pre-recorded blocks and exists for tests and offline debugging.
package audio

import "errors"

const (
	// SampleRate is the capture sample rate in Hz, fixed at 16 kHz as
	// required by whisper.cpp models.
	SampleRate = 16000

	// Channels is the number of capture channels (mono).
	Channels = 1

	// BlockSize is the number of samples delivered per callback invocation.
	// 512 samples at 16 kHz is 32 ms per block.
	BlockSize = 512

	// BlockMs is the duration of one block in milliseconds.
	BlockMs = 32
)

// ErrNoInputDevice is returned by Source.Start when no audio input device is
// available. Callers should surface this to the user rather than retry.
var ErrNoInputDevice = errors.New("audio: no input device available")

// BlockFunc receives one block of samples per invocation. The slice is only
// valid for the duration of the call; implementations reuse the backing
// array, so callers must copy any samples they want to keep.
type BlockFunc func(block []float32)

// Source is an exclusive audio capture stream. Start opens the stream and
// begins invoking fn once per block; Stop tears the stream down. A Source is
// single-use per Start/Stop cycle but may be restarted after Stop returns.
type Source interface {
	Start(fn BlockFunc) error
	Stop() error
}
