package voice

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/careconnect-health/careconnect/internal/audio"
)

// UtteranceHandler receives each transcribed utterance.
type UtteranceHandler func(ctx context.Context, identity, text string)

// FinalizeHandler runs once when a participant leaves the call.
type FinalizeHandler func(ctx context.Context, identity string)

// Segmenter buffers audio frames per participant and cuts an utterance when
// the participant goes silent for the configured window. The buffer snapshot
// and clear happen synchronously on the timer; transcription and handling run
// in the background so one slow participant never stalls another.
type Segmenter struct {
	silenceWindow time.Duration
	sampleRate    int
	agentIdentity string

	gate        *SpeakingGate
	transcriber Transcriber
	onUtterance UtteranceHandler
	onFinalize  FinalizeHandler
	log         zerolog.Logger

	mu     sync.Mutex
	states map[string]*participantState
}

type participantState struct {
	frames [][]byte
	timer  *time.Timer
}

func NewSegmenter(
	silenceWindow time.Duration,
	sampleRate int,
	agentIdentity string,
	gate *SpeakingGate,
	transcriber Transcriber,
	onUtterance UtteranceHandler,
	onFinalize FinalizeHandler,
	log zerolog.Logger,
) *Segmenter {
	return &Segmenter{
		silenceWindow: silenceWindow,
		sampleRate:    sampleRate,
		agentIdentity: agentIdentity,
		gate:          gate,
		transcriber:   transcriber,
		onUtterance:   onUtterance,
		onFinalize:    onFinalize,
		log:           log,
		states:        make(map[string]*participantState),
	}
}

// PushFrame appends one float32 PCM frame to the participant's buffer and
// re-arms the silence timer. Frames are dropped while the agent is speaking
// and audio from the agent's own identity is never buffered.
func (s *Segmenter) PushFrame(identity string, frame []byte) {
	if s.gate.Speaking() {
		return
	}
	if identity == s.agentIdentity {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[identity]
	if !ok {
		state = &participantState{}
		s.states[identity] = state
	}
	state.frames = append(state.frames, frame)

	if state.timer != nil {
		state.timer.Stop()
	}
	state.timer = time.AfterFunc(s.silenceWindow, func() {
		s.flush(identity)
	})
}

// flush cuts the buffered frames into one utterance.
func (s *Segmenter) flush(identity string) {
	s.mu.Lock()
	state, ok := s.states[identity]
	if !ok || len(state.frames) == 0 {
		s.mu.Unlock()
		return
	}
	frames := state.frames
	state.frames = nil
	s.mu.Unlock()

	go func() {
		wav := audio.FramesToWAV(frames, s.sampleRate)

		text, err := s.transcriber.Transcribe(context.Background(), wav)
		if err != nil {
			s.log.Warn().Err(err).Str("identity", identity).Msg("transcription failed")
			return
		}
		if text == "" {
			s.log.Debug().Str("identity", identity).Msg("empty transcription")
			return
		}

		s.onUtterance(context.Background(), identity, text)
	}()
}

// Disconnect drops the participant's buffer and finalizes their call. Safe
// to call repeatedly; the finalize handler is expected to be idempotent.
func (s *Segmenter) Disconnect(identity string) {
	s.mu.Lock()
	if state, ok := s.states[identity]; ok {
		if state.timer != nil {
			state.timer.Stop()
		}
		delete(s.states, identity)
	}
	s.mu.Unlock()

	if s.onFinalize != nil {
		s.onFinalize(context.Background(), identity)
	}
}
