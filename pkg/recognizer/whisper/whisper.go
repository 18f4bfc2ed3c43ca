// Package whisper provides a [recognizer.Recognizer] backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a) and
// headers (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// Decoding is deterministic: the bindings default to greedy single-hypothesis
// sampling and no progress/timestamp printing, which is exactly what a voice
// assistant wants — the same recording always yields the same text.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxkit/voxkit/pkg/recognizer"
)

const defaultLanguage = "en"

// Compile-time assertion that Recognizer satisfies recognizer.Recognizer.
var _ recognizer.Recognizer = (*Recognizer)(nil)

// Option is a functional option for configuring a Recognizer.
type Option func(*Recognizer)

// WithLanguage sets the BCP-47 language code for transcription (e.g., "en",
// "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(r *Recognizer) { r.language = lang }
}

// Recognizer implements recognizer.Recognizer using whisper.cpp. The model is
// loaded lazily on the first Transcribe call and cached for subsequent calls;
// each call creates a fresh whisper context, which is cheap compared to the
// model load itself.
type Recognizer struct {
	modelPath string
	language  string

	mu    sync.Mutex
	model whisperlib.Model
}

// New creates a Recognizer for the model file at modelPath. The file is not
// opened here — loading is deferred to the first Transcribe call so that
// construction succeeds even before the model has been downloaded. Use
// [Recognizer.Ready] to probe for the file's presence.
func New(modelPath string, opts ...Option) (*Recognizer, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	r := &Recognizer{
		modelPath: modelPath,
		language:  defaultLanguage,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Ready reports whether the model file exists on disk. It never validates the
// file's contents; a corrupt model surfaces as a load error on the first
// Transcribe call.
func (r *Recognizer) Ready() bool {
	info, err := os.Stat(r.modelPath)
	return err == nil && !info.IsDir()
}

// Transcribe runs a full whisper.cpp decode pass over samples and returns the
// concatenated segment texts joined by single spaces. An empty decode returns
// an error wrapping [recognizer.ErrNoSpeech].
func (r *Recognizer) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	model, err := r.loadModel()
	if err != nil {
		return "", err
	}

	// Each whisper context is single-use and NOT thread-safe, but the loaded
	// model can be shared across goroutines.
	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(r.language); err != nil {
		slog.Warn("whisper: failed to set language, using model default",
			"language", r.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	text := joinSegments(parts)
	if text == "" {
		return "", fmt.Errorf("whisper: %w", recognizer.ErrNoSpeech)
	}
	return text, nil
}

// loadModel returns the cached model, loading it from disk on first use.
func (r *Recognizer) loadModel() (whisperlib.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.model != nil {
		return r.model, nil
	}
	model, err := whisperlib.New(r.modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", r.modelPath, err)
	}
	slog.Info("whisper model loaded", "path", r.modelPath)
	r.model = model
	return model, nil
}

// Close releases the cached whisper model, if one was loaded. Safe to call
// more than once.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.model == nil {
		return nil
	}
	err := r.model.Close()
	r.model = nil
	return err
}

// joinSegments concatenates already-trimmed segment texts with single-space
// separators, skipping empties.
func joinSegments(parts []string) string {
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}
