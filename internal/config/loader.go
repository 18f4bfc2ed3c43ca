package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// VAD tunable bounds, matching what the voice pipeline enforces at runtime.
const (
	minSensitivity = 0.001
	maxSensitivity = 1.0
	minTimeoutMs   = 100
	maxTimeoutMs   = 10000
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over [Defaults] and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Models.Dir == "" {
		errs = append(errs, errors.New("models.dir is required"))
	}
	if cfg.Models.STTModel == "" {
		errs = append(errs, errors.New("models.stt_model is required"))
	}

	if cfg.VAD.Sensitivity < minSensitivity || cfg.VAD.Sensitivity > maxSensitivity {
		errs = append(errs, fmt.Errorf("vad.sensitivity %g is out of range [%g, %g]", cfg.VAD.Sensitivity, minSensitivity, maxSensitivity))
	}
	if cfg.VAD.TimeoutMs < minTimeoutMs || cfg.VAD.TimeoutMs > maxTimeoutMs {
		errs = append(errs, fmt.Errorf("vad.timeout_ms %d is out of range [%d, %d]", cfg.VAD.TimeoutMs, minTimeoutMs, maxTimeoutMs))
	}

	if cfg.Recognizer.Language == "" {
		errs = append(errs, errors.New("recognizer.language is required (use \"auto\" for detection)"))
	}

	return errors.Join(errs...)
}
