package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxkit.yaml")
	writeConfig(t, path, "vad:\n  sensitivity: 0.05\n")

	w, err := NewWatcher(path, nil, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().VAD.Sensitivity; got != 0.05 {
		t.Errorf("sensitivity = %g; want 0.05", got)
	}
}

func TestWatcher_InitialLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxkit.yaml")
	writeConfig(t, path, "vad:\n  sensitivity: 99\n")

	if _, err := NewWatcher(path, nil); err == nil {
		t.Fatal("NewWatcher accepted an invalid initial config")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxkit.yaml")
	writeConfig(t, path, "vad:\n  timeout_ms: 1000\n")

	changed := make(chan *Config, 1)
	w, err := NewWatcher(path, func(_, new *Config) {
		select {
		case changed <- new:
		default:
		}
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Backdate the file first so the rewrite's mtime always differs.
	past := time.Now().Add(-time.Minute)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	writeConfig(t, path, "vad:\n  timeout_ms: 2000\n")

	select {
	case cfg := <-changed:
		if cfg.VAD.TimeoutMs != 2000 {
			t.Errorf("reloaded timeout_ms = %d; want 2000", cfg.VAD.TimeoutMs)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("change never detected")
	}
	if got := w.Current().VAD.TimeoutMs; got != 2000 {
		t.Errorf("Current().VAD.TimeoutMs = %d; want 2000", got)
	}
}

func TestWatcher_InvalidUpdateKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxkit.yaml")
	writeConfig(t, path, "vad:\n  timeout_ms: 1000\n")

	w, err := NewWatcher(path, func(_, _ *Config) {
		t.Error("onChange fired for an invalid config")
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	past := time.Now().Add(-time.Minute)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	writeConfig(t, path, "vad:\n  timeout_ms: 5\n") // out of range

	time.Sleep(100 * time.Millisecond)
	if got := w.Current().VAD.TimeoutMs; got != 1000 {
		t.Errorf("Current().VAD.TimeoutMs = %d; want previous 1000", got)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxkit.yaml")
	writeConfig(t, path, "")

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
	w.Stop()
}
