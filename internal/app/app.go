// Package app wires the voxkit subsystems into a running daemon.
//
// The App struct owns the full lifecycle: New connects the voice pipeline to
// the admin HTTP server and the event dispatcher, Run executes the main loop
// until the context is cancelled, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithNotifier,
// WithMetrics). When an option is not provided, New uses real implementations.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxkit/voxkit/internal/audio"
	"github.com/voxkit/voxkit/internal/config"
	"github.com/voxkit/voxkit/internal/notify"
	"github.com/voxkit/voxkit/internal/observe"
	"github.com/voxkit/voxkit/internal/transcript"
	"github.com/voxkit/voxkit/internal/voice"
)

// shutdownTimeout bounds how long the admin server may take to drain
// in-flight requests once the run context is cancelled.
const shutdownTimeout = 5 * time.Second

// App owns the voxkit daemon lifecycle: the voice pipeline, the admin HTTP
// server, and the event dispatcher that fans pipeline events out to logs,
// metrics, and desktop notifications.
type App struct {
	cfg      *config.Config
	pipeline *voice.Pipeline

	notifier *notify.Notifier
	metrics  *observe.Metrics
	history  *transcript.History
	logLevel *slog.LevelVar

	srv *http.Server

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithNotifier attaches a desktop notifier for wake and status events.
func WithNotifier(n *notify.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// WithMetrics injects a metrics instance instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevelVar attaches the level variable backing the process logger so
// config hot-reloads can change verbosity at runtime.
func WithLogLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithHistory injects a transcript history instead of the default bounded
// in-memory one.
func WithHistory(h *transcript.History) Option {
	return func(a *App) { a.history = h }
}

// New creates an App around an already-constructed voice pipeline. The admin
// server is configured but not yet listening; Run starts everything.
func New(cfg *config.Config, pipeline *voice.Pipeline, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config must not be nil")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("app: pipeline must not be nil")
	}

	a := &App{
		cfg:      cfg,
		pipeline: pipeline,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.history == nil {
		a.history = transcript.NewHistory()
	}

	a.srv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(a.routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a, nil
}

// Run starts the capture pipeline, the admin HTTP server, and the event
// dispatcher, then blocks until ctx is cancelled or a subsystem fails.
//
// A missing input device is not fatal: the daemon keeps serving the admin
// endpoints (with /readyz failing its capture check) so the condition is
// observable and the process can be restarted once a microphone appears.
func (a *App) Run(ctx context.Context) error {
	var reopener *audio.Reopener
	if err := a.pipeline.Start(); err != nil {
		if errors.Is(err, audio.ErrNoInputDevice) {
			slog.Error("no audio input device available, running without capture", "err", err)
			if a.notifier != nil {
				a.notifier.Error("No microphone found; voice capture is disabled until one appears.")
			}
			reopener = audio.NewReopener(audio.ReopenConfig{
				Open: a.pipeline.Start,
				OnReopen: func() {
					slog.Info("audio capture started after device retry")
				},
			})
		} else {
			return fmt.Errorf("app: start voice pipeline: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	if reopener != nil {
		reopener.Monitor(ctx)
		reopener.NotifyLost()
		g.Go(func() error {
			<-ctx.Done()
			reopener.Stop()
			return ctx.Err()
		})
	}

	g.Go(func() error {
		return a.dispatchEvents(ctx)
	})

	g.Go(func() error {
		slog.Info("admin server listening", "addr", a.srv.Addr)
		if err := a.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: admin server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.srv.Shutdown(shCtx)
	})

	slog.Info("voxkit running", "state", a.pipeline.State())
	return g.Wait()
}

// dispatchEvents drains the pipeline's event channel and fans each event out
// to the log, the metrics instruments, and the desktop notifier. Metric
// recording happens here, never inside the audio callback.
func (a *App) dispatchEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-a.pipeline.Events():
			switch ev.Kind {
			case voice.EventWakeDetected:
				slog.Info("wake detected", "at", ev.Time)
				a.metrics.RecordWakeDetection(ctx)
				if a.notifier != nil {
					a.notifier.WakeDetected()
				}
			case voice.EventServiceStatus:
				slog.Info("service status changed", "service", ev.Service, "up", ev.Up)
				if a.notifier != nil {
					if ev.Up {
						a.notifier.ServiceUp(ev.Service)
					} else {
						a.notifier.ServiceDown(ev.Service)
					}
				}
			}
		}
	}
}

// ApplyConfigChange applies the hot-reloadable parts of a config change: VAD
// tunables, log level, and the notification toggle. Wired as the config
// watcher's onChange callback. Invalid VAD values are logged and skipped —
// the previous settings stay active.
func (a *App) ApplyConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Any() {
		return
	}

	if d.VADChanged {
		if err := a.pipeline.UpdateVADSettings(d.NewVAD.Sensitivity, d.NewVAD.TimeoutMs); err != nil {
			slog.Warn("hot-reloaded vad settings rejected", "err", err)
		}
	}
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.NotificationsChanged && a.notifier != nil {
		a.notifier.SetEnabled(d.NewNotifications.Enabled)
		slog.Info("notifications toggled", "enabled", d.NewNotifications.Enabled)
	}
}

// Shutdown stops the capture pipeline and closes the admin server. Safe to
// call after Run returns; idempotent.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")
		err = a.srv.Shutdown(ctx)
		a.pipeline.Stop()
		slog.Info("shutdown complete")
	})
	return err
}

// slogLevel converts a config.LogLevel to the slog equivalent.
func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
