package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/skypro1111/live-transcription-service/internal/capture"
	"github.com/skypro1111/live-transcription-service/internal/metrics"
)

// fakeSource lets tests inject frames as if they came from a device
type fakeSource struct {
	mu        sync.Mutex
	startErr  error
	onFrame   func([]float32)
	onError   func(error)
	started   bool
	stopCalls int
}

func (s *fakeSource) ListDevices() ([]capture.Device, error) {
	return []capture.Device{{Index: 0, Name: "fake", Label: "fake (Microphone)"}}, nil
}

func (s *fakeSource) Start(deviceIndex int, onFrame func([]float32), onError func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.onFrame = onFrame
	s.onError = onError
	s.started = true
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.stopCalls++
	return nil
}

func (s *fakeSource) push(frame []float32) {
	s.mu.Lock()
	onFrame := s.onFrame
	s.mu.Unlock()
	if onFrame != nil {
		onFrame(frame)
	}
}

func (s *fakeSource) fail(err error) {
	s.mu.Lock()
	onError := s.onError
	s.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}

// fakeTranscriber returns queued results and records the segments it saw
type fakeTranscriber struct {
	mu       sync.Mutex
	results  []string
	err      error
	segments [][]float32
	block    chan struct{}
}

func (t *fakeTranscriber) Transcribe(ctx context.Context, samples []float32, language string) (string, error) {
	t.mu.Lock()
	t.segments = append(t.segments, samples)
	var result string
	if len(t.results) > 0 {
		result = t.results[0]
		if len(t.results) > 1 {
			t.results = t.results[1:]
		}
	}
	err := t.err
	block := t.block
	t.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return "", err
	}
	return result, nil
}

func (t *fakeTranscriber) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.segments)
}

func (t *fakeTranscriber) segmentLen(i int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.segments[i])
}

const testSampleRate = 100

func testConfig() Config {
	return Config{
		SampleRate:       testSampleRate,
		BufferSeconds:    5,
		SilenceThreshold: 0.005,
		CycleInterval:    2 * time.Millisecond,
		WindowSize:       20,
		MinPhraseLength:  10,
		InferenceTimeout: time.Second,
	}
}

func newTestDriver(t *testing.T, source capture.Source, transcriber *fakeTranscriber) *Driver {
	t.Helper()
	driver, err := NewDriver(testConfig(), source, transcriber, metrics.NewMetrics(prometheus.NewRegistry()), nil)
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	return driver
}

// speechFrame returns a frame of loud samples
func speechFrame(n int) []float32 {
	frame := make([]float32, n)
	for i := range frame {
		frame[i] = 0.5
	}
	return frame
}

func waitForTranscript(t *testing.T, driver *Driver) string {
	t.Helper()
	select {
	case text := <-driver.Transcripts():
		return text
	case err := <-driver.Errors():
		t.Fatalf("Expected transcript, got pipeline error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for transcript")
	}
	return ""
}

func TestDriverStartFailsWhenDeviceUnavailable(t *testing.T) {
	source := &fakeSource{startErr: errors.New("no such device")}
	driver := newTestDriver(t, source, &fakeTranscriber{})

	if err := driver.Start(0); err == nil {
		t.Fatal("Expected error when capture cannot start")
	}
	if driver.State() != StateIdle {
		t.Errorf("Expected idle state after failed start, got %v", driver.State())
	}
}

func TestDriverStartTwice(t *testing.T) {
	source := &fakeSource{}
	driver := newTestDriver(t, source, &fakeTranscriber{})

	if err := driver.Start(0); err != nil {
		t.Fatalf("Failed to start driver: %v", err)
	}
	defer driver.Stop()

	if err := driver.Start(0); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}
}

func TestDriverStopWhenIdle(t *testing.T) {
	driver := newTestDriver(t, &fakeSource{}, &fakeTranscriber{})

	if err := driver.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Expected ErrNotRunning, got %v", err)
	}
}

func TestDriverEmitsPaddedSegment(t *testing.T) {
	source := &fakeSource{}
	transcriber := &fakeTranscriber{results: []string{"this is a long enough transcript"}}
	driver := newTestDriver(t, source, transcriber)

	if err := driver.Start(0); err != nil {
		t.Fatalf("Failed to start driver: %v", err)
	}
	defer driver.Stop()

	// Fill one complete analysis window.
	source.push(speechFrame(5 * testSampleRate))

	text := waitForTranscript(t, driver)
	if text != "this is a long enough transcript" {
		t.Errorf("Expected transcript text, got %q", text)
	}

	// Loud audio means every window passes detection, so the whole
	// window is extracted and padded with one second of silence.
	expectedLen := 5*testSampleRate + testSampleRate
	if got := transcriber.segmentLen(0); got != expectedLen {
		t.Errorf("Expected segment of %d samples, got %d", expectedLen, got)
	}
}

func TestDriverNoInferenceBelowBufferFill(t *testing.T) {
	source := &fakeSource{}
	transcriber := &fakeTranscriber{results: []string{"should never be recognized"}}

	cfg := testConfig()
	cfg.BufferSeconds = 10
	driver, err := NewDriver(cfg, source, transcriber, metrics.NewMetrics(prometheus.NewRegistry()), nil)
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	if err := driver.Start(0); err != nil {
		t.Fatalf("Failed to start driver: %v", err)
	}
	defer driver.Stop()

	// Eight seconds of silence against a ten-second analysis window: the
	// buffer never fills, so no detection or inference may run.
	source.push(make([]float32, 8*testSampleRate))

	// Let a number of cycles pass.
	time.Sleep(50 * time.Millisecond)

	if got := transcriber.callCount(); got != 0 {
		t.Errorf("Expected no inference below the buffer threshold, got %d calls", got)
	}

	select {
	case text := <-driver.Transcripts():
		t.Fatalf("Expected no transcript, got %q", text)
	default:
	}

	stats := driver.Stats()
	if stats.SegmentsExtracted != 0 {
		t.Errorf("Expected no extracted segments, got %d", stats.SegmentsExtracted)
	}
	if stats.BufferedSamples != 8*testSampleRate {
		t.Errorf("Expected %d buffered samples awaiting more audio, got %d", 8*testSampleRate, stats.BufferedSamples)
	}
}

func TestDriverCountsDroppedTranscriptsWhenChannelFull(t *testing.T) {
	// One more distinct phrase than the transcript channel can hold.
	results := make([]string, 0, 33)
	for i := 0; i < 33; i++ {
		results = append(results, fmt.Sprintf("distinct spoken phrase number %02d", i))
	}
	source := &fakeSource{}
	transcriber := &fakeTranscriber{results: results}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	driver, err := NewDriver(testConfig(), source, transcriber, m, nil)
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	if err := driver.Start(0); err != nil {
		t.Fatalf("Failed to start driver: %v", err)
	}
	defer driver.Stop()

	// Nobody reads Transcripts, so the last accepted transcript overflows
	// the channel and must be counted as dropped rather than lost silently.
	for i := 0; i < 33; i++ {
		source.push(speechFrame(5 * testSampleRate))
		deadline := time.Now().Add(2 * time.Second)
		for transcriber.callCount() <= i {
			if time.Now().After(deadline) {
				t.Fatalf("Timed out waiting for inference %d", i+1)
			}
			time.Sleep(time.Millisecond)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for driver.Stats().TranscriptsEmitted < 33 {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for emissions, got %d", driver.Stats().TranscriptsEmitted)
		}
		time.Sleep(time.Millisecond)
	}

	if got := testutil.ToFloat64(m.TranscriptsDropped); got != 1 {
		t.Errorf("Expected 1 dropped transcript, got %v", got)
	}
}

func TestDriverSuppressesRepeatedTranscript(t *testing.T) {
	source := &fakeSource{}
	transcriber := &fakeTranscriber{results: []string{"the same sentence again and again"}}
	driver := newTestDriver(t, source, transcriber)

	if err := driver.Start(0); err != nil {
		t.Fatalf("Failed to start driver: %v", err)
	}
	defer driver.Stop()

	source.push(speechFrame(6 * testSampleRate))
	waitForTranscript(t, driver)

	// Feed a second window that recognizes to the identical text.
	source.push(speechFrame(6 * testSampleRate))

	deadline := time.After(time.Second)
	for {
		stats := driver.Stats()
		if stats.TranscriptsSuppressed >= 1 {
			break
		}
		select {
		case text := <-driver.Transcripts():
			t.Fatalf("Expected repeat to be suppressed, got %q", text)
		case <-deadline:
			t.Fatal("Timed out waiting for suppression")
		case <-time.After(5 * time.Millisecond):
		}
	}

	stats := driver.Stats()
	if stats.TranscriptsEmitted != 1 {
		t.Errorf("Expected exactly 1 emitted transcript, got %d", stats.TranscriptsEmitted)
	}
}

func TestDriverIgnoresEmptyTranscript(t *testing.T) {
	source := &fakeSource{}
	transcriber := &fakeTranscriber{results: []string{"   "}}
	driver := newTestDriver(t, source, transcriber)

	if err := driver.Start(0); err != nil {
		t.Fatalf("Failed to start driver: %v", err)
	}
	defer driver.Stop()

	source.push(speechFrame(5 * testSampleRate))

	deadline := time.After(time.Second)
	for transcriber.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for inference")
		case <-time.After(5 * time.Millisecond):
		}
	}

	select {
	case text := <-driver.Transcripts():
		t.Fatalf("Expected no transcript for whitespace result, got %q", text)
	case <-time.After(50 * time.Millisecond):
	}

	stats := driver.Stats()
	if stats.TranscriptsEmitted != 0 || stats.TranscriptsSuppressed != 0 {
		t.Errorf("Expected whitespace result to be dropped silently, got %+v", stats)
	}
}

func TestDriverStopsOnTranscriptionError(t *testing.T) {
	source := &fakeSource{}
	transcriber := &fakeTranscriber{err: errors.New("backend exploded")}
	driver := newTestDriver(t, source, transcriber)

	if err := driver.Start(0); err != nil {
		t.Fatalf("Failed to start driver: %v", err)
	}

	source.push(speechFrame(5 * testSampleRate))

	select {
	case err := <-driver.Errors():
		if err == nil {
			t.Fatal("Expected non-nil pipeline error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for pipeline error")
	}

	deadline := time.After(time.Second)
	for driver.State() != StateIdle {
		select {
		case <-deadline:
			t.Fatalf("Expected idle state after error, got %v", driver.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDriverStopsOnCaptureError(t *testing.T) {
	source := &fakeSource{}
	driver := newTestDriver(t, source, &fakeTranscriber{})

	if err := driver.Start(0); err != nil {
		t.Fatalf("Failed to start driver: %v", err)
	}

	source.fail(errors.New("device unplugged"))

	select {
	case err := <-driver.Errors():
		if err == nil {
			t.Fatal("Expected non-nil capture error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for capture error")
	}
}

func TestDriverStopWaitsForInference(t *testing.T) {
	source := &fakeSource{}
	transcriber := &fakeTranscriber{
		results: []string{"slow but steady recognition"},
		block:   make(chan struct{}),
	}
	driver := newTestDriver(t, source, transcriber)

	if err := driver.Start(0); err != nil {
		t.Fatalf("Failed to start driver: %v", err)
	}

	source.push(speechFrame(5 * testSampleRate))

	deadline := time.After(time.Second)
	for transcriber.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("Timed out waiting for inference to start")
		case <-time.After(5 * time.Millisecond):
		}
	}

	stopDone := make(chan error, 1)
	go func() { stopDone <- driver.Stop() }()

	// Stop must not complete while inference is in flight.
	select {
	case <-stopDone:
		t.Fatal("Expected Stop to wait for in-flight inference")
	case <-time.After(50 * time.Millisecond):
	}

	close(transcriber.block)

	select {
	case err := <-stopDone:
		if err != nil {
			t.Fatalf("Stop failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for Stop")
	}

	if driver.State() != StateIdle {
		t.Errorf("Expected idle state after stop, got %v", driver.State())
	}
}

func TestDriverRestartResetsDedupHistory(t *testing.T) {
	source := &fakeSource{}
	transcriber := &fakeTranscriber{results: []string{"a phrase that repeats across sessions"}}
	driver := newTestDriver(t, source, transcriber)

	if err := driver.Start(0); err != nil {
		t.Fatalf("Failed to start driver: %v", err)
	}
	source.push(speechFrame(5 * testSampleRate))
	waitForTranscript(t, driver)

	if err := driver.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// Same recognition in a fresh session must be emitted again.
	if err := driver.Start(0); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	defer driver.Stop()

	source.push(speechFrame(5 * testSampleRate))
	text := waitForTranscript(t, driver)
	if text != "a phrase that repeats across sessions" {
		t.Errorf("Expected transcript after restart, got %q", text)
	}
}

func TestDriverSetBufferSecondsClamps(t *testing.T) {
	driver := newTestDriver(t, &fakeSource{}, &fakeTranscriber{})

	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"below minimum", 1, 5},
		{"in range", 12, 12},
		{"above maximum", 90, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := driver.SetBufferSeconds(tt.input); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
			if got := driver.GetBufferSeconds(); got != tt.expected {
				t.Errorf("Expected stored value %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestDriverStatsSnapshot(t *testing.T) {
	source := &fakeSource{}
	transcriber := &fakeTranscriber{results: []string{"counting segments and transcripts"}}
	driver := newTestDriver(t, source, transcriber)

	if err := driver.Start(3); err != nil {
		t.Fatalf("Failed to start driver: %v", err)
	}
	defer driver.Stop()

	source.push(speechFrame(5 * testSampleRate))
	waitForTranscript(t, driver)

	stats := driver.Stats()
	if stats.State != "running" {
		t.Errorf("Expected running state, got %q", stats.State)
	}
	if stats.DeviceIndex != 3 {
		t.Errorf("Expected device index 3, got %d", stats.DeviceIndex)
	}
	if stats.SegmentsExtracted == 0 {
		t.Error("Expected at least one extracted segment")
	}
	if stats.TranscriptsEmitted != 1 {
		t.Errorf("Expected 1 emitted transcript, got %d", stats.TranscriptsEmitted)
	}
	if stats.LastTranscript != "counting segments and transcripts" {
		t.Errorf("Expected last transcript recorded, got %q", stats.LastTranscript)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "idle"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("Expected %q for state %d, got %q", tt.expected, int(tt.state), got)
		}
	}
}

func TestDriverRejectsNilDependencies(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())

	if _, err := NewDriver(testConfig(), nil, &fakeTranscriber{}, m, nil); err == nil {
		t.Error("Expected error for nil source")
	}
	if _, err := NewDriver(testConfig(), &fakeSource{}, nil, m, nil); err == nil {
		t.Error("Expected error for nil transcriber")
	}
	if _, err := NewDriver(testConfig(), &fakeSource{}, &fakeTranscriber{}, nil, nil); err == nil {
		t.Error("Expected error for nil metrics")
	}

	badCfg := testConfig()
	badCfg.SampleRate = 0
	if _, err := NewDriver(badCfg, &fakeSource{}, &fakeTranscriber{}, m, nil); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}
