package voice

import "math"

// Energy returns the root-mean-square energy of a block of float32 samples.
// Returns 0 for an empty block. For samples in [-1.0, 1.0] the result is in
// [0.0, 1.0], which is the scale the VAD sensitivity threshold is tuned to.
func Energy(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
