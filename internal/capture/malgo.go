package capture

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoSource captures mono float32 audio through the miniaudio library.
// Frames of exactly chunkSize samples are assembled from whatever period
// sizes the backend delivers.
type MalgoSource struct {
	sampleRate int
	chunkSize  int
	logger     *slog.Logger

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	running bool
}

// NewMalgoSource creates a capture source for the given sample rate and
// frame size in samples.
func NewMalgoSource(sampleRate, chunkSize int, logger *slog.Logger) (*MalgoSource, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size: %d", chunkSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MalgoSource{
		sampleRate: sampleRate,
		chunkSize:  chunkSize,
		logger:     logger,
	}, nil
}

// ListDevices enumerates capture devices in backend order.
func (s *MalgoSource) ListDevices() ([]Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for i, info := range infos {
		name := info.Name()
		devices = append(devices, Device{
			Index: i,
			Name:  name,
			Label: displayName(name),
		})
	}
	return devices, nil
}

// Start opens the capture device at deviceIndex and begins pushing frames of
// chunkSize samples to onFrame. The callback runs on the backend goroutine.
func (s *MalgoSource) Start(deviceIndex int, onFrame func([]float32), onError func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("capture already running")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		s.logger.Debug("Audio backend message", "message", message)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	if deviceIndex < 0 || deviceIndex >= len(infos) {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("device index %d out of range (%d devices)", deviceIndex, len(infos))
	}
	info := infos[deviceIndex]

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.Capture.DeviceID = info.ID.Pointer()
	deviceConfig.SampleRate = uint32(s.sampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(s.chunkSize)

	// Periods from the backend do not always match the requested size, so
	// samples accumulate here until a full frame is ready.
	pending := make([]float32, 0, s.chunkSize)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			n := int(frameCount)
			for i := 0; i < n; i++ {
				bits := binary.LittleEndian.Uint32(input[i*4 : i*4+4])
				pending = append(pending, math.Float32frombits(bits))
			}
			for len(pending) >= s.chunkSize {
				frame := make([]float32, s.chunkSize)
				copy(frame, pending[:s.chunkSize])
				pending = pending[s.chunkSize:]
				onFrame(frame)
			}
		},
		Stop: func() {
			s.mu.Lock()
			stopped := !s.running
			s.mu.Unlock()
			if !stopped && onError != nil {
				onError(fmt.Errorf("capture device stopped unexpectedly"))
			}
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to open capture device %q: %w", info.Name(), err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to start capture device %q: %w", info.Name(), err)
	}

	s.ctx = ctx
	s.device = device
	s.running = true

	s.logger.Info("Audio capture started",
		"device", info.Name(),
		"sample_rate", s.sampleRate,
		"chunk_size", s.chunkSize)
	return nil
}

// Stop halts capture and releases the device and backend context.
func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	device := s.device
	ctx := s.ctx
	s.device = nil
	s.ctx = nil
	s.mu.Unlock()

	device.Uninit()
	if err := ctx.Uninit(); err != nil {
		ctx.Free()
		return fmt.Errorf("failed to release audio context: %w", err)
	}
	ctx.Free()

	s.logger.Info("Audio capture stopped")
	return nil
}
