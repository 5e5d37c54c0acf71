package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to validate, got %v", err)
	}

	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Expected default sample rate 16000, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.ChunkSize != 32768 {
		t.Errorf("Expected default chunk size 32768, got %d", cfg.Audio.ChunkSize)
	}
	if cfg.Audio.BufferSeconds != DefaultBufferSeconds {
		t.Errorf("Expected default buffer seconds %d, got %d", DefaultBufferSeconds, cfg.Audio.BufferSeconds)
	}
	if cfg.Dedup.MinPhraseLength != 10 {
		t.Errorf("Expected default min phrase length 10, got %d", cfg.Dedup.MinPhraseLength)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected defaults for empty path, got error %v", err)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("Expected default sample rate, got %d", cfg.Audio.SampleRate)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	content := `
audio:
  buffer_seconds: 20
transcription:
  backend: openai
  api_key: sk-test
logging:
  level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Audio.BufferSeconds != 20 {
		t.Errorf("Expected buffer seconds 20, got %d", cfg.Audio.BufferSeconds)
	}
	if cfg.Transcription.Backend != "openai" {
		t.Errorf("Expected backend openai, got %q", cfg.Transcription.Backend)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %q", cfg.Logging.Level)
	}
	// Untouched values keep their defaults.
	if cfg.Audio.SilenceThreshold != 0.005 {
		t.Errorf("Expected default silence threshold, got %f", cfg.Audio.SilenceThreshold)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"low sample rate", func(c *Config) { c.Audio.SampleRate = 4000 }},
		{"stereo capture", func(c *Config) { c.Audio.Channels = 2 }},
		{"tiny chunk", func(c *Config) { c.Audio.ChunkSize = 16 }},
		{"zero silence threshold", func(c *Config) { c.Audio.SilenceThreshold = 0 }},
		{"unknown backend", func(c *Config) { c.Transcription.Backend = "grpc" }},
		{"http backend without endpoint", func(c *Config) { c.Transcription.Endpoint = "" }},
		{"openai backend without key", func(c *Config) {
			c.Transcription.Backend = "openai"
			c.Transcription.APIKey = ""
		}},
		{"whisper backend without model", func(c *Config) {
			c.Transcription.Backend = "whisper"
			c.Transcription.ModelPath = ""
		}},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad http port", func(c *Config) { c.HTTP.Port = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestClampBufferSeconds(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"below minimum", 2, MinBufferSeconds},
		{"at minimum", 5, 5},
		{"in range", 15, 15},
		{"at maximum", 30, 30},
		{"above maximum", 120, MaxBufferSeconds},
		{"negative", -1, MinBufferSeconds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampBufferSeconds(tt.input); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestValidateClampsBufferSeconds(t *testing.T) {
	cfg := Default()
	cfg.Audio.BufferSeconds = 100
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected clamping instead of error, got %v", err)
	}
	if cfg.Audio.BufferSeconds != MaxBufferSeconds {
		t.Errorf("Expected buffer seconds clamped to %d, got %d", MaxBufferSeconds, cfg.Audio.BufferSeconds)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	if got := cfg.Audio.GetCycleInterval(); got != 100*time.Millisecond {
		t.Errorf("Expected 100ms cycle interval, got %v", got)
	}
	if got := cfg.Transcription.GetTimeoutDuration(); got != 30*time.Second {
		t.Errorf("Expected 30s timeout, got %v", got)
	}
}
