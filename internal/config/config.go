package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Buffer duration limits in seconds. Values outside the range are clamped
// rather than rejected so a running service can accept any requested value.
const (
	MinBufferSeconds     = 5
	MaxBufferSeconds     = 30
	DefaultBufferSeconds = 10
)

// Config represents the complete service configuration
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	Dedup         DedupConfig         `yaml:"dedup"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// AudioConfig contains capture and buffering parameters
type AudioConfig struct {
	SampleRate       int     `yaml:"sample_rate"`
	Channels         int     `yaml:"channels"`
	ChunkSize        int     `yaml:"chunk_size"`        // samples per capture frame
	BufferSeconds    int     `yaml:"buffer_seconds"`    // clamped to [5, 30]
	SilenceThreshold float64 `yaml:"silence_threshold"` // mean absolute amplitude
	CycleIntervalMs  int     `yaml:"cycle_interval_ms"`
}

// VADConfig contains voice activity detection configuration
type VADConfig struct {
	WindowSize int `yaml:"window_size"` // samples
}

// DedupConfig contains transcript deduplication configuration
type DedupConfig struct {
	MinPhraseLength int `yaml:"min_phrase_length"` // characters
}

// TranscriptionConfig contains transcription backend configuration
type TranscriptionConfig struct {
	Backend    string `yaml:"backend"` // "http", "openai" or "whisper"
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	Language   string `yaml:"language"`
	Timeout    int    `yaml:"timeout"` // seconds
	MaxRetries int    `yaml:"max_retries"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:       16000,
			Channels:         1,
			ChunkSize:        32 * 1024,
			BufferSeconds:    DefaultBufferSeconds,
			SilenceThreshold: 0.005,
			CycleIntervalMs:  100,
		},
		VAD: VADConfig{
			WindowSize: 1024,
		},
		Dedup: DedupConfig{
			MinPhraseLength: 10,
		},
		Transcription: TranscriptionConfig{
			Backend:    "http",
			Endpoint:   "http://localhost:9090/transcribe",
			Language:   "en",
			Timeout:    30,
			MaxRetries: 3,
		},
		HTTP: HTTPConfig{
			Port:    8080,
			Address: "0.0.0.0",
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load reads the configuration file over the defaults and validates the
// result. An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Dedup.Validate(); err != nil {
		return fmt.Errorf("dedup config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration and clamps the buffer duration
func (a *AudioConfig) Validate() error {
	if a.SampleRate < 8000 {
		return fmt.Errorf("sample_rate must be at least 8000 Hz, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	if a.ChunkSize < 256 {
		return fmt.Errorf("chunk_size must be at least 256 samples, got %d", a.ChunkSize)
	}

	if a.SilenceThreshold <= 0 || a.SilenceThreshold >= 1 {
		return fmt.Errorf("silence_threshold must be between 0 and 1 (exclusive), got %f", a.SilenceThreshold)
	}

	if a.CycleIntervalMs < 1 {
		return fmt.Errorf("cycle_interval_ms must be at least 1, got %d", a.CycleIntervalMs)
	}

	a.BufferSeconds = ClampBufferSeconds(a.BufferSeconds)

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.WindowSize < 256 || v.WindowSize > 8192 {
		return fmt.Errorf("window_size must be between 256 and 8192 samples, got %d", v.WindowSize)
	}

	return nil
}

// Validate validates dedup configuration
func (d *DedupConfig) Validate() error {
	if d.MinPhraseLength < 1 {
		return fmt.Errorf("min_phrase_length must be at least 1, got %d", d.MinPhraseLength)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	validBackends := map[string]bool{"http": true, "openai": true, "whisper": true}
	if !validBackends[t.Backend] {
		return fmt.Errorf("backend must be one of [http, openai, whisper], got '%s'", t.Backend)
	}

	switch t.Backend {
	case "http":
		if t.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty for http backend")
		}
	case "openai":
		if t.APIKey == "" {
			return fmt.Errorf("api_key cannot be empty for openai backend")
		}
	case "whisper":
		if t.ModelPath == "" {
			return fmt.Errorf("model_path cannot be empty for whisper backend")
		}
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// ClampBufferSeconds forces a requested buffer duration into the supported
// range. Out-of-range values clamp instead of failing so runtime updates
// always succeed.
func ClampBufferSeconds(seconds int) int {
	if seconds < MinBufferSeconds {
		return MinBufferSeconds
	}
	if seconds > MaxBufferSeconds {
		return MaxBufferSeconds
	}
	return seconds
}

// GetCycleInterval returns the pipeline cycle interval as a time.Duration
func (a *AudioConfig) GetCycleInterval() time.Duration {
	return time.Duration(a.CycleIntervalMs) * time.Millisecond
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
