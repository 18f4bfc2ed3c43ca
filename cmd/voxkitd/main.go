// Command voxkitd is the voxkit voice-capture and transcription daemon.
//
// It listens on the default microphone for voice activity, transcribes
// utterances with a local whisper model, and exposes an admin HTTP API for
// health probes, Prometheus scrapes, and pipeline control.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/voxkit/voxkit/internal/app"
	"github.com/voxkit/voxkit/internal/audio"
	"github.com/voxkit/voxkit/internal/config"
	"github.com/voxkit/voxkit/internal/notify"
	"github.com/voxkit/voxkit/internal/observe"
	"github.com/voxkit/voxkit/internal/resilience"
	"github.com/voxkit/voxkit/internal/voice"
	"github.com/voxkit/voxkit/pkg/recognizer/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "voxkit.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch-config", true, "hot-reload VAD tunables, log level, and notifications on config changes")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxkitd: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxkitd: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("voxkitd starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"model", cfg.Models.STTModel,
	)

	// ── Observability ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voxkit",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Recognizer + pipeline ─────────────────────────────────────────────────
	native, err := whisper.New(filepath.Join(cfg.Models.Dir, cfg.Models.STTModel),
		whisper.WithLanguage(cfg.Recognizer.Language),
	)
	if err != nil {
		slog.Error("failed to create recognizer", "err", err)
		return 1
	}
	// A circuit breaker keeps repeated decode failures (corrupt model, OOM)
	// from stalling every transcription request.
	rec := resilience.NewRecognizerFallback(native, "whisper-native", resilience.FallbackConfig{})
	defer func() {
		if err := rec.Close(); err != nil {
			slog.Warn("recognizer close error", "err", err)
		}
	}()

	pipeline, err := voice.New(voice.Config{
		ModelDir:       cfg.Models.Dir,
		ModelFile:      cfg.Models.STTModel,
		VADSensitivity: cfg.VAD.Sensitivity,
		VADTimeoutMs:   cfg.VAD.TimeoutMs,
	}, rec,
		voice.WithAudioSource(audio.NewMicrophone()),
		voice.WithMetrics(observe.DefaultMetrics()),
	)
	if err != nil {
		slog.Error("failed to create voice pipeline", "err", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────────
	notifier := notify.New(cfg.Notifications.Enabled)

	application, err := app.New(cfg, pipeline,
		app.WithNotifier(notifier),
		app.WithLogLevelVar(level),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload (optional) ──────────────────────────────────────────
	if *watch {
		watcher, err := config.NewWatcher(*configPath, application.ApplyConfigChange)
		if err != nil {
			slog.Error("failed to start config watcher", "err", err)
			return 1
		}
		defer watcher.Stop()
	}

	slog.Info("daemon ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
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
