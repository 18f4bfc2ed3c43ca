// Package config provides the configuration schema, loader, and file watcher
// for the voxkit voice daemon.
package config

import (
	"os"
	"path/filepath"
)

// LogLevel controls log verbosity for the voxkit daemon.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for voxkit.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Models        ModelsConfig        `yaml:"models"`
	VAD           VADConfig           `yaml:"vad"`
	Recognizer    RecognizerConfig    `yaml:"recognizer"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// ServerConfig holds the admin endpoint and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the admin HTTP server (health, readiness,
	// metrics) listens on (e.g., ":8090").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ModelsConfig locates the speech model files on disk.
type ModelsConfig struct {
	// Dir is the directory holding model files.
	Dir string `yaml:"dir"`

	// STTModel is the whisper model filename (e.g., "ggml-base.en.bin").
	STTModel string `yaml:"stt_model"`
}

// VADConfig holds the initial voice-activity-detection tunables. Both values
// can also be changed at runtime and hot-reloaded from the config file.
type VADConfig struct {
	// Sensitivity is the energy threshold for speech detection, in
	// [0.001, 1.0]. Lower values make the microphone more sensitive.
	Sensitivity float64 `yaml:"sensitivity"`

	// TimeoutMs is the consecutive-silence duration that ends a recording,
	// in [100, 10000] milliseconds.
	TimeoutMs int `yaml:"timeout_ms"`
}

// RecognizerConfig holds speech-recognition settings.
type RecognizerConfig struct {
	// Language is the transcription language hint passed to the decoder
	// (e.g., "en", "de", or "auto").
	Language string `yaml:"language"`
}

// NotificationsConfig toggles desktop notifications for pipeline events.
type NotificationsConfig struct {
	// Enabled controls whether wake and service-status events raise desktop
	// notifications.
	Enabled bool `yaml:"enabled"`
}

// Defaults returns a Config with every field set to its default value.
// The loader decodes YAML over this struct, so absent fields keep defaults.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr: ":8090",
			LogLevel:   LogInfo,
		},
		Models: ModelsConfig{
			Dir:      DefaultModelDir(),
			STTModel: "ggml-base.en.bin",
		},
		VAD: VADConfig{
			Sensitivity: 0.02,
			TimeoutMs:   1280,
		},
		Recognizer: RecognizerConfig{
			Language: "en",
		},
		Notifications: NotificationsConfig{
			Enabled: true,
		},
	}
}

// DefaultModelDir returns the per-user model directory ($HOME/.voxkit/models).
// Falls back to a relative path when the home directory cannot be resolved.
func DefaultModelDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".voxkit", "models")
	}
	return filepath.Join(home, ".voxkit", "models")
}
