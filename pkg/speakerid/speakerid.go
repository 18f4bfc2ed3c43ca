// Package speakerid defines the interface boundary to an offline
// speaker-identification collaborator.
//
// The voice pipeline does not own a speaker model; it only hands a finished
// recording to an Identifier and attaches whatever match comes back to the
// transcription result. Identification is strictly best-effort: a nil match
// with a nil error means "nobody recognised", and callers must never fail a
// transcription because identification failed.
package speakerid

import "context"

// Match describes the closest enrolled speaker for a recording.
type Match struct {
	// Name is the enrolled speaker's display name.
	Name string

	// Similarity is the cosine similarity between the recording's embedding
	// and the enrolled profile, in [0.0, 1.0].
	Similarity float64
}

// Identifier compares a recording against enrolled speaker profiles.
type Identifier interface {
	// Identify returns the best Match for the given 16 kHz mono float32
	// samples, or nil if no enrolled speaker clears the backend's similarity
	// threshold. An error indicates the backend itself failed (model missing,
	// embedding extraction error), not an unrecognised speaker.
	Identify(ctx context.Context, samples []float32) (*Match, error)
}
