package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/careconnect-health/careconnect/internal/reliability"
)

const (
	groqRetryMax  = 1
	groqRetryBase = 200 * time.Millisecond
	groqRetryCap  = 2 * time.Second
)

// GroqClient talks to any OpenAI-compatible chat completion endpoint; Groq is
// the default deployment target.
type GroqClient struct {
	api *openai.Client
}

func NewGroqClient(apiKey, baseURL string) *GroqClient {
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimSpace(baseURL)
	}
	return &GroqClient{api: openai.NewClientWithConfig(cfg)}
}

func (c *GroqClient) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.System)+1)
	for _, sys := range req.System {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: sys,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.User,
	})

	ccReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	var lastErr error
	for attempt := 0; attempt <= groqRetryMax; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt, groqRetryBase, groqRetryCap)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		resp, err := c.api.CreateChatCompletion(ctx, ccReq)
		if err != nil {
			lastErr = err
			if retryableAPIError(err) {
				continue
			}
			return "", fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	}
	return "", fmt.Errorf("chat completion: %w", lastErr)
}

func retryableAPIError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return reliability.IsRetryableHTTPStatus(apiErr.HTTPStatusCode)
	}
	return false
}
