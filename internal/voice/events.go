package voice

import "time"

// EventKind enumerates the signals the pipeline emits to the surrounding
// application.
type EventKind int

const (
	// EventWakeDetected fires when sustained voice activity clears the wake
	// threshold. Debounced to at most one per three seconds.
	EventWakeDetected EventKind = iota

	// EventServiceStatus reports the pipeline going up or down on Start/Stop.
	EventServiceStatus
)

// String returns the kind's name for logs.
func (k EventKind) String() string {
	switch k {
	case EventWakeDetected:
		return "wake_detected"
	case EventServiceStatus:
		return "service_status"
	default:
		return "unknown"
	}
}

// Event is a fire-and-forget signal. Delivery is at-most-best-effort: when
// the event channel is full, new events are dropped rather than blocking the
// audio callback.
type Event struct {
	Kind EventKind

	// Service and Up are set for EventServiceStatus.
	Service string
	Up      bool

	Time time.Time
}
