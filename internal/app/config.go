package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	GraphPath string // .hcl file or directory

	LogFormat string
	LogLevel  string

	Workers      int
	Timeout      time.Duration
	Retries      int // extra attempts after an upstream failure
	RetryBackoff time.Duration
	Seed         uint64

	// Exactly one of InputText and InputAudioPath is set.
	InputText       string
	InputAudioPath  string
	AudioSampleRate int

	VarsFile string // YAML map of variable overrides
	Vars     map[string]string

	SocketIOURL     string
	HealthcheckPort int
}

// NewConfig validates cfg and fills defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.GraphPath == "" {
		return nil, errors.New("GraphPath is a required configuration field and cannot be empty")
	}
	switch {
	case cfg.InputText != "" && cfg.InputAudioPath != "":
		return nil, errors.New("input text and input audio are mutually exclusive")
	case cfg.InputText == "" && cfg.InputAudioPath == "":
		return nil, errors.New("one of input text or input audio is required")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative, got %v", cfg.Timeout)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must not be negative, got %d", cfg.Retries)
	}
	if cfg.AudioSampleRate <= 0 {
		cfg.AudioSampleRate = 16000
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	return &cfg, nil
}

// audioFormat derives the audio format from the file extension. Unknown
// extensions are treated as raw 16-bit PCM.
func audioFormat(path string) string {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "wav", "mp3", "ogg", "flac", "webm", "m4a":
		return ext
	case "txt":
		return "text"
	default:
		return "pcm_s16le"
	}
}
