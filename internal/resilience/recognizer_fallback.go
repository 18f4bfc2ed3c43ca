package resilience

import (
	"context"
	"errors"

	"github.com/voxkit/voxkit/pkg/recognizer"
)

// RecognizerFallback implements [recognizer.Recognizer] with automatic
// failover across multiple speech-recognition backends. Each backend has its
// own circuit breaker, so a decoder that keeps failing is skipped until its
// reset timeout elapses.
type RecognizerFallback struct {
	group *FallbackGroup[recognizer.Recognizer]
	all   []recognizer.Recognizer
}

// Compile-time interface assertion.
var _ recognizer.Recognizer = (*RecognizerFallback)(nil)

// NewRecognizerFallback creates a [RecognizerFallback] with primary as the
// preferred backend.
func NewRecognizerFallback(primary recognizer.Recognizer, primaryName string, cfg FallbackConfig) *RecognizerFallback {
	return &RecognizerFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
		all:   []recognizer.Recognizer{primary},
	}
}

// AddFallback registers an additional recognizer as a fallback.
func (f *RecognizerFallback) AddFallback(name string, rec recognizer.Recognizer) {
	f.group.AddFallback(name, rec)
	f.all = append(f.all, rec)
}

// Transcribe decodes samples against the first healthy backend. If the
// primary fails or its breaker is open, subsequent fallbacks are tried.
func (f *RecognizerFallback) Transcribe(ctx context.Context, samples []float32) (string, error) {
	return ExecuteWithResult(f.group, func(r recognizer.Recognizer) (string, error) {
		return r.Transcribe(ctx, samples)
	})
}

// Close releases every registered backend and returns the joined errors.
func (f *RecognizerFallback) Close() error {
	var errs []error
	for _, r := range f.all {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
