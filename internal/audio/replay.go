package audio

import (
	"errors"
	"sync"
)

// Replay is a Source that delivers caller-supplied blocks instead of live
// microphone audio. Tests drive it synchronously via Feed; there is no
// background goroutine and no timing — each Feed call invokes the registered
// callback exactly once, on the caller's goroutine.
type Replay struct {
	mu      sync.Mutex
	fn      BlockFunc
	started bool
}

// NewReplay creates an idle Replay source.
func NewReplay() *Replay {
	return &Replay{}
}

// Start registers fn as the block callback. Fails if already started.
func (r *Replay) Start(fn BlockFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("audio: replay source already started")
	}
	r.fn = fn
	r.started = true
	return nil
}

// Stop deregisters the callback. Idempotent.
func (r *Replay) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fn = nil
	r.started = false
	return nil
}

// Feed delivers one block to the registered callback. Blocks fed before
// Start or after Stop are silently dropped, mirroring a muted microphone.
func (r *Replay) Feed(block []float32) {
	r.mu.Lock()
	fn := r.fn
	r.mu.Unlock()
	if fn != nil {
		fn(block)
	}
}

// Compile-time assertion that Replay implements Source.
var _ Source = (*Replay)(nil)
