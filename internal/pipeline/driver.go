package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/skypro1111/live-transcription-service/internal/audio"
	"github.com/skypro1111/live-transcription-service/internal/capture"
	"github.com/skypro1111/live-transcription-service/internal/config"
	"github.com/skypro1111/live-transcription-service/internal/dedup"
	"github.com/skypro1111/live-transcription-service/internal/metrics"
	"github.com/skypro1111/live-transcription-service/internal/transcription"
	"github.com/skypro1111/live-transcription-service/internal/vad"
)

// Driver lifecycle errors
var (
	ErrAlreadyRunning = errors.New("pipeline is already running")
	ErrNotRunning     = errors.New("pipeline is not running")
)

// State describes the driver lifecycle
type State int

const (
	// StateIdle means no capture is active and Start may be called
	StateIdle State = iota
	// StateRunning means the processing loop is active
	StateRunning
	// StateStopping means a stop was requested and the loop is winding down
	StateStopping
)

// String returns the state name for logs and status responses
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Config contains pipeline driver parameters
type Config struct {
	SampleRate       int
	BufferSeconds    int
	SilenceThreshold float64
	CycleInterval    time.Duration
	WindowSize       int
	MinPhraseLength  int
	Language         string
	InferenceTimeout time.Duration
}

// Stats is a snapshot of driver counters for the status API
type Stats struct {
	State                 string `json:"state"`
	DeviceIndex           int    `json:"device_index"`
	BufferSeconds         int    `json:"buffer_seconds"`
	BufferedSamples       int    `json:"buffered_samples"`
	CyclesProcessed       uint64 `json:"cycles_processed"`
	SegmentsExtracted     uint64 `json:"segments_extracted"`
	TranscriptsEmitted    uint64 `json:"transcripts_emitted"`
	TranscriptsSuppressed uint64 `json:"transcripts_suppressed"`
	LastTranscript        string `json:"last_transcript"`
}

// Driver runs the capture-to-transcript loop. Frames arrive on the capture
// callback and are queued; the loop drains the queue, accumulates samples,
// and once enough audio is buffered runs detection, extraction, inference
// and deduplication inline. Inference is therefore never concurrent with
// itself.
type Driver struct {
	cfg         Config
	logger      *slog.Logger
	metrics     *metrics.Metrics
	source      capture.Source
	transcriber transcription.Transcriber

	detector  *vad.Detector
	extractor *audio.SegmentExtractor
	filter    *dedup.Filter
	queue     *audio.FrameQueue
	buffer    *audio.SampleBuffer

	transcripts chan string
	errs        chan error

	mu            sync.RWMutex
	state         State
	deviceIndex   int
	bufferSeconds int
	stopCh        chan struct{}
	captureErr    chan error
	wg            sync.WaitGroup

	// Counters, guarded by mu
	bufferedSamples       int
	cyclesProcessed       uint64
	segmentsExtracted     uint64
	transcriptsEmitted    uint64
	transcriptsSuppressed uint64
}

// NewDriver creates an idle pipeline driver
func NewDriver(cfg Config, source capture.Source, transcriber transcription.Transcriber, m *metrics.Metrics, logger *slog.Logger) (*Driver, error) {
	if source == nil {
		return nil, fmt.Errorf("capture source cannot be nil")
	}
	if transcriber == nil {
		return nil, fmt.Errorf("transcriber cannot be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.SilenceThreshold <= 0 {
		cfg.SilenceThreshold = vad.DefaultSilenceThreshold
	}
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = 100 * time.Millisecond
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = vad.DefaultWindowSize
	}
	if cfg.MinPhraseLength <= 0 {
		cfg.MinPhraseLength = dedup.DefaultMinPhraseLength
	}
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = 30 * time.Second
	}

	detector, err := vad.NewDetector(cfg.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create voice detector: %w", err)
	}

	extractor, err := audio.NewSegmentExtractor(cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to create segment extractor: %w", err)
	}

	return &Driver{
		cfg:           cfg,
		logger:        logger,
		metrics:       m,
		source:        source,
		transcriber:   transcriber,
		detector:      detector,
		extractor:     extractor,
		filter:        dedup.NewFilter(cfg.MinPhraseLength),
		queue:         audio.NewFrameQueue(),
		buffer:        audio.NewSampleBuffer(cfg.SampleRate * config.MaxBufferSeconds),
		transcripts:   make(chan string, 32),
		errs:          make(chan error, 4),
		bufferSeconds: config.ClampBufferSeconds(cfg.BufferSeconds),
	}, nil
}

// Transcripts returns the channel on which accepted transcripts are emitted
func (d *Driver) Transcripts() <-chan string {
	return d.transcripts
}

// Errors returns the channel on which fatal pipeline errors are reported.
// An error on this channel means the loop has stopped itself.
func (d *Driver) Errors() <-chan error {
	return d.errs
}

// State returns the current lifecycle state
func (d *Driver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// SetBufferSeconds updates the buffered audio duration, clamping the value
// to the supported range. Takes effect on the next processing cycle.
func (d *Driver) SetBufferSeconds(seconds int) int {
	clamped := config.ClampBufferSeconds(seconds)

	d.mu.Lock()
	d.bufferSeconds = clamped
	d.mu.Unlock()

	d.logger.Info("Buffer duration updated", "requested", seconds, "applied", clamped)
	return clamped
}

// GetBufferSeconds returns the current buffered audio duration
func (d *Driver) GetBufferSeconds() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bufferSeconds
}

// Start begins capturing from the device at deviceIndex and launches the
// processing loop. It fails if the driver is not idle or the device cannot
// be opened.
func (d *Driver) Start(deviceIndex int) error {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}

	// Fresh session: no history from the previous run may leak in.
	d.filter.Reset()
	d.queue.Clear()
	d.buffer = audio.NewSampleBuffer(d.cfg.SampleRate * config.MaxBufferSeconds)
	d.bufferedSamples = 0

	stopCh := make(chan struct{})
	captureErr := make(chan error, 1)
	d.stopCh = stopCh
	d.captureErr = captureErr
	d.deviceIndex = deviceIndex
	d.mu.Unlock()

	onFrame := func(frame []float32) {
		d.queue.Push(frame)
		d.metrics.RecordFrameCaptured()
		d.metrics.SetQueueSize(d.queue.Len())
	}
	onError := func(err error) {
		select {
		case captureErr <- err:
		default:
		}
	}

	if err := d.source.Start(deviceIndex, onFrame, onError); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	d.mu.Lock()
	d.state = StateRunning
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(stopCh, captureErr)

	d.logger.Info("Pipeline started", "device_index", deviceIndex)
	return nil
}

// Stop requests a cooperative shutdown and waits for the loop to finish.
// An in-flight inference completes before the loop exits. Stopping an idle
// driver returns ErrNotRunning.
func (d *Driver) Stop() error {
	d.mu.Lock()
	if d.state != StateRunning {
		d.mu.Unlock()
		return ErrNotRunning
	}
	d.state = StateStopping
	close(d.stopCh)
	d.mu.Unlock()

	d.wg.Wait()

	d.logger.Info("Pipeline stopped")
	return nil
}

// Stats returns a snapshot of driver state and counters
func (d *Driver) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return Stats{
		State:                 d.state.String(),
		DeviceIndex:           d.deviceIndex,
		BufferSeconds:         d.bufferSeconds,
		BufferedSamples:       d.bufferedSamples,
		CyclesProcessed:       d.cyclesProcessed,
		SegmentsExtracted:     d.segmentsExtracted,
		TranscriptsEmitted:    d.transcriptsEmitted,
		TranscriptsSuppressed: d.transcriptsSuppressed,
		LastTranscript:        d.filter.Last(),
	}
}

// run is the processing loop. It exits on stop request, capture failure, or
// transcription failure; in the failure cases the error is reported on the
// Errors channel first.
func (d *Driver) run(stopCh chan struct{}, captureErr chan error) {
	defer d.wg.Done()
	defer d.cleanup()

	for {
		select {
		case <-stopCh:
			return
		case err := <-captureErr:
			d.reportError(fmt.Errorf("capture failed: %w", err))
			return
		default:
		}

		if err := d.cycle(); err != nil {
			d.reportError(err)
			return
		}

		select {
		case <-stopCh:
			return
		case err := <-captureErr:
			d.reportError(fmt.Errorf("capture failed: %w", err))
			return
		case <-time.After(d.cfg.CycleInterval):
		}
	}
}

// cycle drains captured frames into the buffer and, once enough audio has
// accumulated, runs one detection and transcription pass over the prefix
func (d *Driver) cycle() error {
	for _, frame := range d.queue.DrainAll() {
		d.buffer.Append(frame)
	}
	d.metrics.SetQueueSize(d.queue.Len())
	d.metrics.SetBufferedSamples(d.buffer.Len())
	d.mu.Lock()
	d.bufferedSamples = d.buffer.Len()
	d.mu.Unlock()

	minSamples := d.GetBufferSeconds() * d.cfg.SampleRate
	if d.buffer.Len() < minSamples {
		return nil
	}

	window := d.buffer.Prefix(minSamples)

	silent := vad.IsSilence(window, float32(d.cfg.SilenceThreshold))
	d.metrics.RecordCycle(silent)
	d.mu.Lock()
	d.cyclesProcessed++
	d.mu.Unlock()
	if silent {
		d.logger.Debug("Buffered audio below silence threshold",
			"samples", len(window),
			"threshold", d.cfg.SilenceThreshold)
	}

	region := d.detector.DetectRegion(window)
	if segment, ok := d.extractor.Extract(window, region.Start, region.End); ok {
		d.mu.Lock()
		d.segmentsExtracted++
		d.mu.Unlock()
		d.metrics.RecordSegment(float64(len(segment)) / float64(d.cfg.SampleRate))

		if err := d.transcribeSegment(segment); err != nil {
			return err
		}
	}

	// Slide the window: keep the last second of the processed prefix plus
	// everything that arrived after it, so speech spanning a window edge
	// is not cut in half.
	d.buffer.RetainTail(d.buffer.Len() - (minSamples - d.cfg.SampleRate))
	d.metrics.SetBufferedSamples(d.buffer.Len())
	d.mu.Lock()
	d.bufferedSamples = d.buffer.Len()
	d.mu.Unlock()

	return nil
}

// transcribeSegment runs inference on one segment and emits the result if
// the dedup filter accepts it
func (d *Driver) transcribeSegment(segment []float32) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.InferenceTimeout)
	defer cancel()

	startTime := time.Now()
	text, err := d.transcriber.Transcribe(ctx, segment, d.cfg.Language)
	d.metrics.RecordTranscription(err == nil, time.Since(startTime).Seconds())
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// The filter is shared with Stats, so mutate it under the lock.
	d.mu.Lock()
	accepted := d.filter.Accept(text)
	if accepted {
		d.transcriptsEmitted++
	} else {
		d.transcriptsSuppressed++
	}
	d.mu.Unlock()

	if !accepted {
		d.metrics.RecordTranscriptSuppressed()
		d.logger.Debug("Transcript suppressed", "text", text)
		return nil
	}
	d.metrics.RecordTranscriptEmitted()

	select {
	case d.transcripts <- text:
	default:
		d.metrics.RecordTranscriptDropped()
		d.logger.Warn("Transcript channel full, dropping", "text", text)
	}

	return nil
}

// reportError publishes a fatal loop error without blocking
func (d *Driver) reportError(err error) {
	d.logger.Error("Pipeline error", "error", err)
	select {
	case d.errs <- err:
	default:
	}
}

// cleanup stops capture and returns the driver to idle
func (d *Driver) cleanup() {
	if err := d.source.Stop(); err != nil {
		d.logger.Error("Failed to stop capture source", "error", err)
	}
	d.queue.Clear()
	d.metrics.SetQueueSize(0)

	d.mu.Lock()
	d.state = StateIdle
	d.mu.Unlock()
}
