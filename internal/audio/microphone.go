package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// shutdownPollInterval is how often the host goroutine checks whether Stop
// was requested before tearing the stream down. This bounds shutdown latency
// at roughly one second, which is acceptable for a user-facing stop action.
const shutdownPollInterval = time.Second

// Microphone captures from the default input device via PortAudio. The
// device is an exclusive resource: exactly one stream is open between Start
// and Stop.
type Microphone struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	stopped chan struct{}
	done    chan struct{}
}

// NewMicrophone creates an unopened Microphone. No PortAudio resources are
// acquired until Start.
func NewMicrophone() *Microphone {
	return &Microphone{}
}

// Start initialises PortAudio, opens a 16 kHz mono callback stream on the
// default input device, and begins delivering blocks to fn. Returns an error
// wrapping [ErrNoInputDevice] when the host has no usable input device.
func (m *Microphone) Start(fn BlockFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return fmt.Errorf("audio: capture already running")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("audio: initialise portaudio: %w", err)
	}

	dev, err := portaudio.DefaultInputDevice()
	if err != nil || dev == nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: %v", ErrNoInputDevice, err)
	}
	slog.Info("audio input device opened",
		"device", dev.Name,
		"sample_rate", SampleRate,
		"block_size", BlockSize,
	)

	stream, err := portaudio.OpenDefaultStream(
		Channels, 0, float64(SampleRate), BlockSize,
		func(in []float32) { fn(in) },
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("audio: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("audio: start input stream: %w", err)
	}

	m.stream = stream
	m.stopped = make(chan struct{})
	m.done = make(chan struct{})

	go m.hostLoop(stream, m.stopped, m.done)
	return nil
}

// hostLoop keeps the stream alive, checking for a stop request on a coarse
// interval before tearing everything down.
func (m *Microphone) hostLoop(stream *portaudio.Stream, stopped, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(shutdownPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopped:
			if err := stream.Stop(); err != nil {
				slog.Warn("audio stream stop error", "error", err)
			}
			if err := stream.Close(); err != nil {
				slog.Warn("audio stream close error", "error", err)
			}
			portaudio.Terminate()
			slog.Info("audio capture stopped")
			return
		case <-ticker.C:
			// Stream stays open; nothing to do until stop is requested.
		}
	}
}

// Stop requests teardown and waits for the host goroutine to release the
// stream. Idempotent; returns nil when no capture is running.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	stream := m.stream
	stopped := m.stopped
	done := m.done
	m.stream = nil
	m.stopped = nil
	m.done = nil
	m.mu.Unlock()

	if stream == nil {
		return nil
	}
	close(stopped)
	<-done
	return nil
}

// Compile-time assertion that Microphone implements Source.
var _ Source = (*Microphone)(nil)
