package memory

import (
	"context"
	"strings"
	"sync"
	"time"
)

// EphemeralStore holds patient memory in-process. It backs identities that
// have no durable patient record yet, and the whole service when no database
// is configured. Nothing here survives a restart.
type EphemeralStore struct {
	mu      sync.RWMutex
	records map[string]*PatientMemory
}

func NewEphemeralStore() *EphemeralStore {
	return &EphemeralStore{records: make(map[string]*PatientMemory)}
}

func (s *EphemeralStore) Load(_ context.Context, identity string) (*PatientMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMemory(s.getOrCreateLocked(identity)), nil
}

func (s *EphemeralStore) AppendTurn(_ context.Context, identity, speaker, text string) error {
	text = strings.TrimSpace(text)
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.getOrCreateLocked(identity)
	m.ConversationHistory = append(m.ConversationHistory, Turn{
		Speaker:   speaker,
		Text:      text,
		Timestamp: now,
	})
	m.LastConversationAt = now
	return nil
}

func (s *EphemeralStore) AddSymptoms(_ context.Context, identity string, symptoms []string, severity int) error {
	if len(symptoms) == 0 {
		return nil
	}
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.getOrCreateLocked(identity)
	for _, name := range symptoms {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		m.SymptomsTimeline = append(m.SymptomsTimeline, Symptom{
			Symptom:  name,
			Severity: severity,
			Date:     now,
		})
	}
	return nil
}

func (s *EphemeralStore) SetSummary(_ context.Context, identity, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(identity).LongTermSummary = summary
	return nil
}

func (s *EphemeralStore) SetLastRecommendation(_ context.Context, identity, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(identity).LastRecommendation = text
	return nil
}

func (s *EphemeralStore) Close() error { return nil }

func (s *EphemeralStore) getOrCreateLocked(identity string) *PatientMemory {
	if identity == "" {
		identity = "unknown"
	}
	m, ok := s.records[identity]
	if !ok {
		m = &PatientMemory{Identity: identity}
		s.records[identity] = m
	}
	return m
}

func cloneMemory(m *PatientMemory) *PatientMemory {
	out := &PatientMemory{
		Identity:            m.Identity,
		LongTermSummary:     m.LongTermSummary,
		LastRecommendation:  m.LastRecommendation,
		LastConversationAt:  m.LastConversationAt,
		ConversationHistory: make([]Turn, len(m.ConversationHistory)),
		SymptomsTimeline:    make([]Symptom, len(m.SymptomsTimeline)),
	}
	copy(out.ConversationHistory, m.ConversationHistory)
	copy(out.SymptomsTimeline, m.SymptomsTimeline)
	return out
}
