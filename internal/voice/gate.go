package voice

import "sync/atomic"

// SpeakingGate tracks whether the agent is currently speaking so the
// segmenter can drop audio the agent would otherwise hear of itself.
// Single process only.
type SpeakingGate struct {
	speaking atomic.Bool
}

func NewSpeakingGate() *SpeakingGate { return &SpeakingGate{} }

func (g *SpeakingGate) Set(speaking bool) { g.speaking.Store(speaking) }

func (g *SpeakingGate) Speaking() bool { return g.speaking.Load() }
