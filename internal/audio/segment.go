package audio

import "fmt"

// SegmentExtractor turns a detected speech region of the buffer prefix into
// a finalized segment ready for inference: minimum-duration check, peak
// normalization, and one second of trailing zero padding to help the
// inference engine find the final sentence boundary.
type SegmentExtractor struct {
	sampleRate int
}

// NewSegmentExtractor creates a segment extractor for the given sample rate
func NewSegmentExtractor(sampleRate int) (*SegmentExtractor, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	return &SegmentExtractor{sampleRate: sampleRate}, nil
}

// PadLen returns the number of zero samples appended to every emitted
// segment (one second at the configured sample rate)
func (e *SegmentExtractor) PadLen() int {
	return e.sampleRate
}

// Extract slices the [start, end) region out of samples and produces a
// normalized, padded segment. It returns (nil, false) when the region does
// not exceed one second of audio or is out of bounds. The input slice is
// never mutated; the returned segment is a fresh allocation.
func (e *SegmentExtractor) Extract(samples []float32, start, end int) ([]float32, bool) {
	if start < 0 || end > len(samples) || start > end {
		return nil, false
	}
	if end-start <= e.sampleRate {
		// A viable segment must exceed one second of audio.
		return nil, false
	}

	segment := make([]float32, end-start, end-start+e.sampleRate)
	copy(segment, samples[start:end])

	// Peak-normalize only when the slice carries signal; an all-zero slice
	// must not trigger a division by zero.
	var peak float32
	for _, s := range segment {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak > 0 {
		for i := range segment {
			segment[i] /= peak
		}
	}

	// Right-pad with exactly one second of silence.
	segment = append(segment, make([]float32, e.sampleRate)...)

	return segment, true
}
