package voice

import "time"

const (
	// wakeThresholdFactor multiplies the VAD sensitivity to form the wake
	// threshold. The higher bar reduces false triggers from ambient noise.
	wakeThresholdFactor = 2.5

	// wakeFramesRequired is the number of consecutive loud blocks needed
	// before a wake notification fires.
	wakeFramesRequired = 10

	// wakeDebounce is the minimum interval between wake notifications.
	wakeDebounce = 3 * time.Second
)

// wakeDetector implements energy-threshold wake detection. This is a
// deliberately simple stand-in for keyword spotting: "someone is probably
// talking" is decided purely from sustained RMS energy.
//
// All fields are touched only from the audio callback, so no synchronisation
// is needed.
type wakeDetector struct {
	frames     int
	lastNotify time.Time
	now        func() time.Time
}

// observe processes one block's energy and reports whether a wake
// notification should fire for it.
//
// Energy above sensitivity×wakeThresholdFactor counts toward the required
// consecutive-frame total. Energy below the plain sensitivity decays the
// counter by one rather than zeroing it, so a brief dropout during continuous
// speech does not cancel an otherwise-valid detection. Energy between the two
// thresholds leaves the counter untouched.
func (w *wakeDetector) observe(energy, sensitivity float64) bool {
	switch {
	case energy > sensitivity*wakeThresholdFactor:
		w.frames++
		if w.frames >= wakeFramesRequired {
			now := w.now()
			if now.Sub(w.lastNotify) >= wakeDebounce {
				w.lastNotify = now
				w.frames = 0
				return true
			}
		}
	case energy < sensitivity:
		if w.frames > 0 {
			w.frames--
		}
	}
	return false
}

// reset clears the consecutive-frame counter. The debounce timestamp is
// intentionally preserved across resets.
func (w *wakeDetector) reset() {
	w.frames = 0
}

// prime starts the debounce window at the current time, so no wake
// notification can fire within the first wakeDebounce after capture starts.
// Startup transients (device pops, the user's last keypress) otherwise read
// as sustained speech.
func (w *wakeDetector) prime() {
	w.lastNotify = w.now()
}
