// Package memory persists per-patient conversational state: history,
// symptom timeline, and the rolling long-term summary.
package memory

import (
	"context"
	"time"
)

const (
	SpeakerUser   = "user"
	SpeakerDoctor = "doctor"
)

// Turn is one utterance in a patient's conversation history.
type Turn struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Symptom is one entry in a patient's symptom timeline. Severity is 0-10,
// zero when the extractor could not grade it.
type Symptom struct {
	Symptom  string    `json:"symptom"`
	Severity int       `json:"severity"`
	Date     time.Time `json:"date"`
}

// PatientMemory is the reasoning substrate for one patient identity.
// History and timeline are append-only in insertion order.
type PatientMemory struct {
	Identity            string    `json:"identity"`
	ConversationHistory []Turn    `json:"conversation_history"`
	SymptomsTimeline    []Symptom `json:"symptoms_timeline"`
	LongTermSummary     string    `json:"long_term_summary"`
	LastRecommendation  string    `json:"last_recommendation"`
	LastConversationAt  time.Time `json:"last_conversation_at"`
}

// RecentTurns returns up to n most recent history entries in insertion order.
func (m *PatientMemory) RecentTurns(n int) []Turn {
	if m == nil || n <= 0 || len(m.ConversationHistory) == 0 {
		return nil
	}
	if n > len(m.ConversationHistory) {
		n = len(m.ConversationHistory)
	}
	return m.ConversationHistory[len(m.ConversationHistory)-n:]
}

// RecentSymptoms returns up to n most recent timeline entries in insertion order.
func (m *PatientMemory) RecentSymptoms(n int) []Symptom {
	if m == nil || n <= 0 || len(m.SymptomsTimeline) == 0 {
		return nil
	}
	if n > len(m.SymptomsTimeline) {
		n = len(m.SymptomsTimeline)
	}
	return m.SymptomsTimeline[len(m.SymptomsTimeline)-n:]
}

// Store persists and retrieves patient memory. Load creates the record when
// it does not exist yet; writes use upsert semantics throughout.
type Store interface {
	Load(ctx context.Context, identity string) (*PatientMemory, error)
	AppendTurn(ctx context.Context, identity, speaker, text string) error
	AddSymptoms(ctx context.Context, identity string, symptoms []string, severity int) error
	SetSummary(ctx context.Context, identity, summary string) error
	SetLastRecommendation(ctx context.Context, identity, text string) error
	Close() error
}
