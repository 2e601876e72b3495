// Package transcript records the per-call message log keyed by the raw
// session identity, alongside the structured fields extracted so far.
package transcript

import (
	"context"
	"time"
)

const (
	SpeakerUser   = "user"
	SpeakerDoctor = "doctor"
)

// Message is one logged utterance within a call.
type Message struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is the complete call record for one session key.
type Transcript struct {
	Key       string         `json:"key"`
	Messages  []Message      `json:"messages"`
	Extracted map[string]any `json:"extracted"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RecentMessages returns up to n most recent messages in insertion order.
func (t *Transcript) RecentMessages(n int) []Message {
	if t == nil || n <= 0 || len(t.Messages) == 0 {
		return nil
	}
	if n > len(t.Messages) {
		n = len(t.Messages)
	}
	return t.Messages[len(t.Messages)-n:]
}

// Store persists call transcripts. MergeExtracted is a shallow merge where
// the incoming fields win; nested objects are replaced, not combined.
type Store interface {
	Load(ctx context.Context, key string) (*Transcript, error)
	AppendMessage(ctx context.Context, key, speaker, text string) error
	MergeExtracted(ctx context.Context, key string, fields map[string]any) error
	Close() error
}
