package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockClient provides deterministic local replies when no provider key is
// configured. Extraction-style prompts get an empty JSON object so the
// parsers degrade the same way a timed-out provider would.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	for _, sys := range req.System {
		if strings.Contains(sys, "JSON") {
			return "{}", nil
		}
	}
	if strings.Contains(req.User, "JSON") {
		return "{}", nil
	}

	user := strings.TrimSpace(req.User)
	if user == "" {
		return "I'm listening.", nil
	}
	return fmt.Sprintf("I hear you. Could you tell me more about %q?", clip(user, 60)), nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
