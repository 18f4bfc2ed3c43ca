// Package mock provides a test double for the recognizer package.
//
// Use Recognizer to inject canned transcription results and inspect the
// sample buffers that were submitted for decoding.
package mock

import (
	"context"
	"sync"

	"github.com/voxkit/voxkit/pkg/recognizer"
)

// TranscribeCall records a single invocation of Recognizer.Transcribe.
type TranscribeCall struct {
	// Samples is a copy of the sample buffer passed to Transcribe.
	Samples []float32
}

// Recognizer is a mock implementation of recognizer.Recognizer.
type Recognizer struct {
	mu sync.Mutex

	// Text is returned by every Transcribe call.
	Text string

	// TranscribeErr, if non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Transcribe records the call and returns Text, TranscribeErr.
func (r *Recognizer) Transcribe(_ context.Context, samples []float32) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	r.TranscribeCalls = append(r.TranscribeCalls, TranscribeCall{Samples: cp})
	if r.TranscribeErr != nil {
		return "", r.TranscribeErr
	}
	return r.Text, nil
}

// Close records the call and returns CloseErr.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CloseCallCount++
	return r.CloseErr
}

// Reset clears all recorded call history. Thread-safe.
func (r *Recognizer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TranscribeCalls = nil
	r.CloseCallCount = 0
}

// Ensure Recognizer implements recognizer.Recognizer at compile time.
var _ recognizer.Recognizer = (*Recognizer)(nil)
