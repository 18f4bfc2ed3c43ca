// Package notify raises desktop notifications for voice pipeline events.
package notify

import (
	"sync/atomic"
	"unicode/utf8"

	"github.com/gen2brain/beeep"
)

const appName = "Voxkit"

// maxBodyLen caps notification body text; desktop environments truncate
// anyway, and transcripts can be long.
const maxBodyLen = 100

// Notifier sends desktop notifications. Delivery is best-effort: failures
// are ignored because a missing notification daemon must never affect the
// voice pipeline.
type Notifier struct {
	enabled atomic.Bool
}

// New creates a Notifier.
func New(enabled bool) *Notifier {
	n := &Notifier{}
	n.enabled.Store(enabled)
	return n
}

// SetEnabled toggles notifications at runtime. Safe for concurrent use; the
// config watcher calls this on hot reload.
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled.Store(enabled)
}

// Enabled reports whether notifications are currently enabled.
func (n *Notifier) Enabled() bool {
	return n.enabled.Load()
}

// WakeDetected announces that sustained voice activity was heard.
func (n *Notifier) WakeDetected() {
	n.notify("Listening", "Voice activity detected")
}

// Transcribed shows the decoded utterance.
func (n *Notifier) Transcribed(text string) {
	n.notify("Transcribed", truncateBody(text))
}

// truncateBody caps body text at maxBodyLen bytes, backing off to the nearest
// rune boundary so a multi-byte character is never split.
func truncateBody(text string) string {
	if len(text) <= maxBodyLen {
		return text
	}
	cut := maxBodyLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

// ServiceUp announces that a service became available.
func (n *Notifier) ServiceUp(service string) {
	n.notify("Service up", service)
}

// ServiceDown announces that a service became unavailable.
func (n *Notifier) ServiceDown(service string) {
	n.notify("Service down", service)
}

// Error shows an error notification.
func (n *Notifier) Error(msg string) {
	n.notify("Error", msg)
}

func (n *Notifier) notify(title, message string) {
	if !n.enabled.Load() {
		return
	}
	// Notification errors are not critical.
	_ = beeep.Notify(appName+": "+title, message, "")
}
