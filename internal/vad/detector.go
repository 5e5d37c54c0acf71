package vad

import "fmt"

// DefaultWindowSize is the analysis window length in samples (64ms at 16kHz)
const DefaultWindowSize = 1024

// DefaultSilenceThreshold is the peak amplitude below which a buffer is
// considered entirely quiet by IsSilence
const DefaultSilenceThreshold = 0.005

// Region is a half-open [Start, End) sample-index range identifying detected
// speech within the evaluated buffer prefix
type Region struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the region length in samples
func (r Region) Len() int {
	return r.End - r.Start
}

// Detector locates the speech-bearing range of a sample array using windowed
// energy analysis. The detector is stateless and never mutates its input;
// window scores are recomputed on every call.
type Detector struct {
	windowSize int
}

// NewDetector creates a detector with the given analysis window size in
// samples
func NewDetector(windowSize int) (*Detector, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}
	return &Detector{windowSize: windowSize}, nil
}

// WindowSize returns the analysis window size in samples
func (d *Detector) WindowSize() int {
	return d.windowSize
}

// WindowEnergies computes the mean absolute amplitude of each complete
// non-overlapping window. A trailing remainder shorter than the window size
// is ignored.
func (d *Detector) WindowEnergies(samples []float32) []float32 {
	numWindows := len(samples) / d.windowSize
	if numWindows == 0 {
		return nil
	}

	energies := make([]float32, numWindows)
	for w := 0; w < numWindows; w++ {
		var sum float32
		for _, s := range samples[w*d.windowSize : (w+1)*d.windowSize] {
			if s < 0 {
				s = -s
			}
			sum += s
		}
		energies[w] = sum / float32(d.windowSize)
	}
	return energies
}

// DetectRegion returns the half-open sample range most likely to contain
// speech. Windows are classified against a threshold of half the mean window
// energy; the region spans from the start of the first speech window to the
// end of the last one, including any silence windows in between.
//
// When no window clears the threshold the detector fails open and reports
// the entire input as the region. Downstream duration and dedup checks are
// relied on to discard what this lets through.
func (d *Detector) DetectRegion(samples []float32) Region {
	energies := d.WindowEnergies(samples)
	if len(energies) == 0 {
		return Region{Start: 0, End: len(samples)}
	}

	var mean float32
	for _, e := range energies {
		mean += e
	}
	mean /= float32(len(energies))
	threshold := mean * 0.5

	first, last := -1, -1
	for w, e := range energies {
		if e > threshold {
			if first < 0 {
				first = w
			}
			last = w
		}
	}

	if first < 0 {
		return Region{Start: 0, End: len(samples)}
	}

	end := (last + 1) * d.windowSize
	if end > len(samples) {
		end = len(samples)
	}
	return Region{Start: first * d.windowSize, End: end}
}

// IsSilence reports whether the peak absolute amplitude of the samples stays
// below the given threshold. Used for diagnostics only; it does not gate the
// detection path.
func IsSilence(samples []float32, threshold float32) bool {
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s >= threshold {
			return false
		}
	}
	return true
}
