package audio

// SampleBuffer accumulates normalized float32 samples across processing
// cycles. It is owned exclusively by the pipeline driver: appends, reads and
// trims all happen on the driver goroutine, so the buffer carries no locking
// of its own. The only permitted shrink operation is RetainTail, called by
// the driver after a cycle has evaluated the buffer prefix.
type SampleBuffer struct {
	samples []float32
}

// NewSampleBuffer creates a sample buffer pre-allocated for roughly the
// given number of samples
func NewSampleBuffer(capacityHint int) *SampleBuffer {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &SampleBuffer{
		samples: make([]float32, 0, capacityHint),
	}
}

// Append concatenates new samples to the end of the buffer, preserving order
func (b *SampleBuffer) Append(samples []float32) {
	b.samples = append(b.samples, samples...)
}

// Len returns the current number of buffered samples
func (b *SampleBuffer) Len() int {
	return len(b.samples)
}

// Prefix returns a read-only view of the first n samples without mutating
// the buffer. It returns nil if fewer than n samples are buffered; callers
// must check Len first. The view is invalidated by the next Append or
// RetainTail.
func (b *SampleBuffer) Prefix(n int) []float32 {
	if n < 0 || n > len(b.samples) {
		return nil
	}
	return b.samples[:n]
}

// RetainTail discards all but the last k samples, preserving short-term
// context across cycles. k <= 0 empties the buffer; k >= Len is a no-op.
func (b *SampleBuffer) RetainTail(k int) {
	if k >= len(b.samples) {
		return
	}
	if k <= 0 {
		b.samples = b.samples[:0]
		return
	}

	// Shift in place so the backing array keeps being reused.
	copy(b.samples, b.samples[len(b.samples)-k:])
	b.samples = b.samples[:k]
}
