package whisper

import (
	"os"
	"testing"
)

func TestNew_EmptyPath(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty model path")
	}
}

func TestNew_Defaults(t *testing.T) {
	r, err := New("/models/ggml-base.en.bin")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.language != "en" {
		t.Errorf("language = %q; want %q", r.language, "en")
	}
}

func TestNew_WithLanguage(t *testing.T) {
	r, err := New("/models/ggml-base.bin", WithLanguage("de"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.language != "de" {
		t.Errorf("language = %q; want %q", r.language, "de")
	}
}

func TestReady_MissingFile(t *testing.T) {
	r, err := New("/nonexistent/dir/model.bin")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Ready() {
		t.Error("Ready() = true for missing model file")
	}
}

func TestReady_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/model.bin"
	if err := os.WriteFile(path, []byte("ggml"), 0o644); err != nil {
		t.Fatalf("write temp model: %v", err)
	}
	r, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !r.Ready() {
		t.Error("Ready() = false for existing model file")
	}
}

func TestJoinSegments(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"empty", nil, ""},
		{"single", []string{"hello"}, "hello"},
		{"multiple", []string{"hello", "world"}, "hello world"},
		{"skips empties", []string{"hello", "", "world"}, "hello world"},
		{"all empty", []string{"", ""}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinSegments(tt.parts); got != tt.want {
				t.Errorf("joinSegments(%v) = %q; want %q", tt.parts, got, tt.want)
			}
		})
	}
}

func TestClose_NoModelLoaded(t *testing.T) {
	r, err := New("/models/ggml-tiny.bin")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close on unloaded model: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
