package audio

import "sync"

// FrameQueue is the hand-off point between the capture callback and the
// pipeline driver. The capture context pushes raw frames concurrently with
// the driver draining them; this is the only shared boundary in the pipeline.
type FrameQueue struct {
	mu     sync.Mutex
	frames [][]float32

	totalFrames  uint64
	totalSamples uint64
}

// QueueStats represents frame queue statistics for monitoring
type QueueStats struct {
	PendingFrames int    `json:"pending_frames"`
	TotalFrames   uint64 `json:"total_frames"`
	TotalSamples  uint64 `json:"total_samples"`
}

// NewFrameQueue creates a new empty frame queue
func NewFrameQueue() *FrameQueue {
	return &FrameQueue{
		frames: make([][]float32, 0, 16),
	}
}

// Push enqueues a raw capture frame. It never blocks on the consumer and is
// safe to call from the capture callback concurrently with DrainAll. The
// frame is stored as-is; ownership transfers to the queue.
func (q *FrameQueue) Push(frame []float32) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.frames = append(q.frames, frame)
	q.totalFrames++
	q.totalSamples += uint64(len(frame))
}

// DrainAll returns all currently queued frames in arrival order and empties
// the queue. It never blocks; an empty queue yields an empty result.
func (q *FrameQueue) DrainAll() [][]float32 {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil
	}

	drained := q.frames
	q.frames = make([][]float32, 0, 16)
	return drained
}

// Clear discards all queued frames without returning them. Used during
// session teardown.
func (q *FrameQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.frames = q.frames[:0]
}

// Len returns the number of frames currently queued
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// GetStats returns current queue statistics
func (q *FrameQueue) GetStats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueueStats{
		PendingFrames: len(q.frames),
		TotalFrames:   q.totalFrames,
		TotalSamples:  q.totalSamples,
	}
}
