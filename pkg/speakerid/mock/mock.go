// Package mock provides a test double for the speakerid package.
package mock

import (
	"context"
	"sync"

	"github.com/voxkit/voxkit/pkg/speakerid"
)

// Identifier is a mock implementation of speakerid.Identifier.
type Identifier struct {
	mu sync.Mutex

	// Match is returned by every Identify call. May be nil.
	Match *speakerid.Match

	// IdentifyErr, if non-nil, is returned by every Identify call.
	IdentifyErr error

	// IdentifyCallCount is the number of times Identify was called.
	IdentifyCallCount int
}

// Identify records the call and returns Match, IdentifyErr.
func (i *Identifier) Identify(_ context.Context, _ []float32) (*speakerid.Match, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.IdentifyCallCount++
	if i.IdentifyErr != nil {
		return nil, i.IdentifyErr
	}
	return i.Match, nil
}

// Ensure Identifier implements speakerid.Identifier at compile time.
var _ speakerid.Identifier = (*Identifier)(nil)
