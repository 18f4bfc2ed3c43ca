package audio

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default device retry parameters.
const (
	defaultMaxRetries = 10
	defaultBackoff    = 1 * time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Reopener retries opening a capture stream in the background when no input
// device is available.
//
// Callers construct one with [NewReopener], call [Reopener.Monitor] to start
// the background goroutine, and signal a failed or lost device via
// [Reopener.NotifyLost]. The monitor then attempts to reopen with exponential
// backoff and invokes the configured OnReopen callback on success.
//
// All methods are safe for concurrent use.
type Reopener struct {
	open       func() error
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	onReopen   func()

	done     chan struct{}
	stopOnce sync.Once
	lost     chan struct{} // signalled when the device is reported lost
}

// ReopenConfig configures a [Reopener].
type ReopenConfig struct {
	// Open attempts to (re)open the capture stream. Required.
	Open func() error

	// MaxRetries is the maximum number of reopen attempts per lost-device
	// signal before giving up. Defaults to 10 if zero.
	MaxRetries int

	// Backoff is the initial backoff duration between retries. Doubles each
	// attempt up to MaxBackoff. Defaults to 1s if zero.
	Backoff time.Duration

	// MaxBackoff is the upper limit on backoff duration. Defaults to 30s if
	// zero.
	MaxBackoff time.Duration

	// OnReopen is called after the stream is successfully reopened. May be
	// nil.
	OnReopen func()
}

// NewReopener creates a new [Reopener] with the given configuration.
func NewReopener(cfg ReopenConfig) *Reopener {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	return &Reopener{
		open:       cfg.Open,
		maxRetries: maxRetries,
		backoff:    backoff,
		maxBackoff: maxBackoff,
		onReopen:   cfg.OnReopen,
		done:       make(chan struct{}),
		lost:       make(chan struct{}, 1),
	}
}

// Monitor starts monitoring in a background goroutine. When a lost device is
// signalled via [Reopener.NotifyLost], it attempts to reopen the stream with
// exponential backoff.
func (r *Reopener) Monitor(ctx context.Context) {
	go r.monitorLoop(ctx)
}

// NotifyLost signals the monitor that the capture device is unavailable and a
// reopen should be attempted. Safe to call multiple times; only the first
// call per retry cycle has effect.
func (r *Reopener) NotifyLost() {
	select {
	case r.lost <- struct{}{}:
	default:
		// Already signalled; avoid blocking.
	}
}

// Stop halts monitoring. Safe to call multiple times. Stopping does not close
// an already-open stream; that remains the caller's responsibility.
func (r *Reopener) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
}

// monitorLoop waits for lost-device notifications and attempts to reopen.
func (r *Reopener) monitorLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-r.lost:
			r.attemptReopen(ctx)
		}
	}
}

// attemptReopen tries to reopen the stream with exponential backoff.
func (r *Reopener) attemptReopen(ctx context.Context) {
	currentBackoff := r.backoff

	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-time.After(currentBackoff):
		}

		slog.Info("attempting to reopen audio capture",
			"attempt", attempt,
			"max_retries", r.maxRetries,
			"backoff", currentBackoff,
		)

		err := r.open()
		if err == nil {
			slog.Info("audio capture reopened", "attempt", attempt)
			if r.onReopen != nil {
				r.onReopen()
			}
			return
		}

		slog.Warn("audio capture reopen failed",
			"attempt", attempt,
			"error", err,
		)

		// Exponential backoff.
		currentBackoff *= 2
		if currentBackoff > r.maxBackoff {
			currentBackoff = r.maxBackoff
		}
	}

	slog.Error("audio capture reopen failed after max retries",
		"max_retries", r.maxRetries,
	)
}
