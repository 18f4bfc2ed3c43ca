package voice

import "fmt"

// State is the single operating mode of the voice pipeline. Exactly one value
// holds at any instant; it is the sole authority for how the audio callback
// interprets incoming sample blocks.
//
// Only the control thread mutates the state (via Start, Stop, SetState,
// StartTranscription, CancelAndReset); the audio callback only reads it.
type State int32

const (
	// StateIdle means the pipeline is inactive; incoming audio is ignored.
	StateIdle State = iota

	// StateListeningForWakeWord means the callback runs energy-based wake
	// detection on every block.
	StateListeningForWakeWord

	// StateTranscribing means the callback accumulates blocks into the
	// recording buffer and runs silence-based end-of-speech detection.
	StateTranscribing

	// StateSpeaking means synthesized speech is playing back; audio input is
	// ignored entirely so the pipeline cannot hear itself.
	StateSpeaking
)

// String returns the state's name for logs and errors.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListeningForWakeWord:
		return "listening_for_wake_word"
	case StateTranscribing:
		return "transcribing"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// ParseState converts a state name (as produced by [State.String]) back into
// a State. Used by the admin API to accept state changes over the wire.
func ParseState(name string) (State, error) {
	switch name {
	case "idle":
		return StateIdle, nil
	case "listening_for_wake_word":
		return StateListeningForWakeWord, nil
	case "transcribing":
		return StateTranscribing, nil
	case "speaking":
		return StateSpeaking, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidState, name)
	}
}

// valid reports whether s is one of the four defined states.
func (s State) valid() bool {
	return s >= StateIdle && s <= StateSpeaking
}
