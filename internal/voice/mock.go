package voice

import "context"

// MockTranscriber is the local fallback used when no speech provider is
// configured. Non-empty audio becomes a fixed phrase so the loop stays
// exercisable without credentials.
type MockTranscriber struct{}

func NewMockTranscriber() *MockTranscriber { return &MockTranscriber{} }

func (t *MockTranscriber) Transcribe(_ context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", nil
	}
	return "simulated voice input", nil
}

// MockSynthesizer returns a tiny fixed payload instead of real audio.
type MockSynthesizer struct{}

func NewMockSynthesizer() *MockSynthesizer { return &MockSynthesizer{} }

func (s *MockSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, nil
	}
	return []byte("mock-audio"), nil
}
