package llm

import (
	"context"
	"strings"
	"testing"
)

func TestNewClientModes(t *testing.T) {
	if _, err := NewClient(Config{Mode: "groq"}); err == nil {
		t.Fatalf("NewClient(groq, no key) error = nil, want error")
	}
	c, err := NewClient(Config{Mode: "groq", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient(groq) error = %v", err)
	}
	if _, ok := c.(*GroqClient); !ok {
		t.Fatalf("NewClient(groq) = %T, want *GroqClient", c)
	}

	c, err = NewClient(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("NewClient(auto) error = %v", err)
	}
	if _, ok := c.(*MockClient); !ok {
		t.Fatalf("NewClient(auto, no key) = %T, want *MockClient", c)
	}

	if _, err := NewClient(Config{Mode: "bogus"}); err == nil {
		t.Fatalf("NewClient(bogus) error = nil, want error")
	}
}

func TestMockClientJSONPrompts(t *testing.T) {
	c := NewMockClient()
	out, err := c.Complete(context.Background(), Request{
		System: []string{"Return ONLY a valid JSON object."},
		User:   "I have a fever",
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if out != "{}" {
		t.Fatalf("Complete() = %q, want %q", out, "{}")
	}
}

func TestMockClientConversational(t *testing.T) {
	c := NewMockClient()
	out, err := c.Complete(context.Background(), Request{User: "my knee hurts"})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !strings.Contains(out, "my knee hurts") {
		t.Fatalf("Complete() = %q, want echo of input", out)
	}
}

func TestMockClientHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockClient().Complete(ctx, Request{User: "hi"}); err == nil {
		t.Fatalf("Complete() error = nil, want context error")
	}
}
