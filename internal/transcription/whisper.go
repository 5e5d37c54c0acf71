package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperConfig contains native whisper.cpp backend configuration
type WhisperConfig struct {
	ModelPath string
}

// WhisperClient runs speech recognition in-process through the whisper.cpp
// CGO bindings. The whisper.cpp static library and headers must be available
// at link time. No network access is needed.
type WhisperClient struct {
	model whisperlib.Model

	mu     sync.Mutex
	closed bool
}

// NewWhisperClient loads the whisper.cpp model from disk
func NewWhisperClient(config WhisperConfig) (*WhisperClient, error) {
	if config.ModelPath == "" {
		return nil, fmt.Errorf("model path cannot be empty")
	}

	model, err := whisperlib.New(config.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model %q: %w", config.ModelPath, err)
	}

	return &WhisperClient{model: model}, nil
}

// Transcribe runs inference over the segment and returns the concatenated
// segment text. A fresh whisper context is created per call; contexts are
// not thread-safe but the model can be shared.
func (c *WhisperClient) Transcribe(ctx context.Context, samples []float32, language string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", fmt.Errorf("whisper client is closed")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	wctx, err := c.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("failed to create whisper context: %w", err)
	}

	if language != "" {
		if err := wctx.SetLanguage(language); err != nil {
			return "", fmt.Errorf("failed to set language %q: %w", language, err)
		}
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper inference failed: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read whisper segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// Close releases the loaded model
func (c *WhisperClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.model.Close()
}
