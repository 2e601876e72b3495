// Package voice turns raw call audio into finished utterances and doctor
// replies back into speech.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Transcriber converts one WAV utterance to text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Synthesizer converts reply text to playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Config selects the speech provider.
type Config struct {
	Mode        string
	APIKey      string
	BaseURL     string
	Model       string
	SpeechModel string
	Voice       string
}

// NewTranscriber builds a transcriber for the configured mode. "auto"
// prefers the real provider when an API key is present.
func NewTranscriber(cfg Config) (Transcriber, error) {
	switch resolveMode(cfg) {
	case "real":
		if cfg.APIKey == "" {
			return nil, errors.New("speech API key is required for real mode")
		}
		return NewWhisperTranscriber(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "mock":
		return NewMockTranscriber(), nil
	default:
		return nil, fmt.Errorf("unsupported speech adapter mode %q", cfg.Mode)
	}
}

// NewSynthesizer builds a synthesizer for the configured mode.
func NewSynthesizer(cfg Config) (Synthesizer, error) {
	switch resolveMode(cfg) {
	case "real":
		if cfg.APIKey == "" {
			return nil, errors.New("speech API key is required for real mode")
		}
		return NewSpeechSynthesizer(cfg.APIKey, cfg.BaseURL, cfg.SpeechModel, cfg.Voice), nil
	case "mock":
		return NewMockSynthesizer(), nil
	default:
		return nil, fmt.Errorf("unsupported speech adapter mode %q", cfg.Mode)
	}
}

func resolveMode(cfg Config) string {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	switch mode {
	case "", "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return "real"
		}
		return "mock"
	case "real", "mock":
		return mode
	default:
		return mode
	}
}
