package voice

import (
	"sync"
	"sync/atomic"

	"github.com/voxkit/voxkit/internal/audio"
)

// maxRecordingSeconds caps a single recording session. The orchestrator
// enforces it as a wall-clock timeout independent of per-block silence
// detection, guaranteeing forward progress even if silence is never seen.
const maxRecordingSeconds = 30

// recordingSession holds the cross-thread state of one capture: the sample
// buffer plus the flags and counters shared between the audio callback and
// the control thread.
//
// The buffer is guarded by a mutex held only for append/copy/truncate; all
// scalar state is atomic so the audio callback never blocks on anything the
// control thread could hold for long. The buffer's capacity is preallocated
// for a full-length recording, so steady-state appends do not reallocate.
type recordingSession struct {
	mu  sync.Mutex
	buf []float32

	// skipFrames counts down over the first blocks after entering
	// Transcribing; those blocks are discarded so the tail of whatever
	// triggered the transition is not captured.
	skipFrames atomic.Int64

	// frameCount is the number of blocks appended so far.
	frameCount atomic.Int64

	// silenceFrames counts consecutive below-threshold blocks after speech.
	silenceFrames atomic.Int64

	// speechSeen is set once any block exceeds the sensitivity threshold.
	speechSeen atomic.Bool

	// complete is the single hand-off point between threads: set by the
	// audio callback when end-of-speech is detected, observed and cleared by
	// the control thread.
	complete atomic.Bool
}

func newRecordingSession() *recordingSession {
	return &recordingSession{
		buf: make([]float32, 0, audio.SampleRate*maxRecordingSeconds),
	}
}

// reset returns the session to its pristine state: empty buffer (capacity
// retained), all flags and counters zeroed. Called on every transition out of
// Transcribing regardless of outcome — this idempotency is a hard contract.
func (s *recordingSession) reset() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	s.mu.Unlock()
	s.skipFrames.Store(0)
	s.frameCount.Store(0)
	s.silenceFrames.Store(0)
	s.speechSeen.Store(false)
	s.complete.Store(false)
}

// arm resets the session and preloads the skip countdown for a fresh
// recording.
func (s *recordingSession) arm(skip int) {
	s.reset()
	s.skipFrames.Store(int64(skip))
}

// append copies one block into the buffer.
func (s *recordingSession) append(block []float32) {
	s.mu.Lock()
	s.buf = append(s.buf, block...)
	s.mu.Unlock()
}

// snapshot returns a copy of the accumulated samples.
func (s *recordingSession) snapshot() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float32, len(s.buf))
	copy(out, s.buf)
	return out
}

// bufferLen returns the current number of buffered samples.
func (s *recordingSession) bufferLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}
