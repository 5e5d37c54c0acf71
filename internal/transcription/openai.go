package transcription

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/skypro1111/live-transcription-service/internal/audio"
)

// OpenAIConfig contains OpenAI transcription backend configuration
type OpenAIConfig struct {
	APIKey     string
	Model      string
	SampleRate int
}

// OpenAIClient transcribes segments through the OpenAI audio API
type OpenAIClient struct {
	client     *openai.Client
	model      string
	sampleRate int
}

// NewOpenAIClient creates a new OpenAI transcription client
func NewOpenAIClient(config OpenAIConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive")
	}
	if config.Model == "" {
		config.Model = openai.Whisper1
	}

	return &OpenAIClient{
		client:     openai.NewClient(config.APIKey),
		model:      config.Model,
		sampleRate: config.SampleRate,
	}, nil
}

// Transcribe encodes the segment as WAV and submits it to the OpenAI API.
// FilePath carries no real file; the API uses its extension to pick a decoder
// while the audio itself streams from the reader.
func (c *OpenAIClient) Transcribe(ctx context.Context, samples []float32, language string) (string, error) {
	wav, err := audio.EncodeWAVFloat32(samples, c.sampleRate)
	if err != nil {
		return "", fmt.Errorf("failed to encode segment: %w", err)
	}

	req := openai.AudioRequest{
		Model:    c.model,
		Reader:   bytes.NewReader(wav),
		FilePath: "segment.wav",
	}
	if language != "" {
		req.Language = language
	}

	resp, err := c.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("OpenAI transcription failed: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}
