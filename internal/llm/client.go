// Package llm bridges the agent with a Groq/OpenAI-compatible chat model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Request is a normalized single-shot chat completion request.
type Request struct {
	Model       string
	System      []string
	User        string
	Temperature float32
	MaxTokens   int
}

// Client produces one completion per request.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (string, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Config controls client construction.
type Config struct {
	Mode    string
	APIKey  string
	BaseURL string
}

// NewClient builds a client for the configured mode. "auto" prefers the real
// provider when an API key is present and falls back to the mock otherwise so
// local development never requires credentials.
func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewGroqClient(cfg.APIKey, cfg.BaseURL), nil
		}
		return NewMockClient(), nil
	case "groq":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("llm API key is required for groq mode")
		}
		return NewGroqClient(cfg.APIKey, cfg.BaseURL), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported llm adapter mode %q", cfg.Mode)
	}
}
