package transcript

import (
	"context"
	"strings"
	"sync"
	"time"
)

// EphemeralStore holds transcripts in-process for the lifetime of a call.
type EphemeralStore struct {
	mu      sync.RWMutex
	records map[string]*Transcript
}

func NewEphemeralStore() *EphemeralStore {
	return &EphemeralStore{records: make(map[string]*Transcript)}
}

func (s *EphemeralStore) Load(_ context.Context, key string) (*Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTranscript(s.getOrCreateLocked(key)), nil
}

func (s *EphemeralStore) AppendMessage(_ context.Context, key, speaker, text string) error {
	text = strings.TrimSpace(text)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.getOrCreateLocked(key)
	t.Messages = append(t.Messages, Message{Speaker: speaker, Text: text, Timestamp: now})
	t.UpdatedAt = now
	return nil
}

func (s *EphemeralStore) MergeExtracted(_ context.Context, key string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.getOrCreateLocked(key)
	for k, v := range fields {
		t.Extracted[k] = v
	}
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *EphemeralStore) Close() error { return nil }

func (s *EphemeralStore) getOrCreateLocked(key string) *Transcript {
	if key == "" {
		key = "unknown"
	}
	t, ok := s.records[key]
	if !ok {
		t = &Transcript{Key: key, Extracted: make(map[string]any)}
		s.records[key] = t
	}
	return t
}

func cloneTranscript(t *Transcript) *Transcript {
	out := &Transcript{
		Key:       t.Key,
		UpdatedAt: t.UpdatedAt,
		Messages:  make([]Message, len(t.Messages)),
		Extracted: make(map[string]any, len(t.Extracted)),
	}
	copy(out.Messages, t.Messages)
	for k, v := range t.Extracted {
		out.Extracted[k] = v
	}
	return out
}
