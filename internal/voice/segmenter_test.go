package voice

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordingTranscriber struct {
	mu    sync.Mutex
	calls int
	text  string
}

func (t *recordingTranscriber) Transcribe(_ context.Context, wav []byte) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if len(wav) == 0 {
		return "", nil
	}
	return t.text, nil
}

func (t *recordingTranscriber) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func float32Frame(samples ...float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

type utteranceSink struct {
	mu   sync.Mutex
	got  []string
	done chan struct{}
}

func newUtteranceSink() *utteranceSink {
	return &utteranceSink{done: make(chan struct{}, 8)}
}

func (u *utteranceSink) handle(_ context.Context, _ string, text string) {
	u.mu.Lock()
	u.got = append(u.got, text)
	u.mu.Unlock()
	u.done <- struct{}{}
}

func (u *utteranceSink) texts() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, len(u.got))
	copy(out, u.got)
	return out
}

func TestSegmenterCutsUtteranceAfterSilence(t *testing.T) {
	tr := &recordingTranscriber{text: "my head hurts"}
	sink := newUtteranceSink()

	s := NewSegmenter(20*time.Millisecond, 48000, "doctor-agent",
		NewSpeakingGate(), tr, sink.handle, nil, zerolog.Nop())

	s.PushFrame("user-1", float32Frame(0.1, 0.2))
	s.PushFrame("user-1", float32Frame(0.3))

	select {
	case <-sink.done:
	case <-time.After(time.Second):
		t.Fatal("utterance was never cut")
	}

	if got := sink.texts(); len(got) != 1 || got[0] != "my head hurts" {
		t.Fatalf("utterances = %v, want one transcription", got)
	}
	if tr.callCount() != 1 {
		t.Fatalf("transcriber calls = %d, want 1", tr.callCount())
	}
}

func TestSegmenterFramesWhileSpeakingAreDropped(t *testing.T) {
	tr := &recordingTranscriber{text: "should not appear"}
	sink := newUtteranceSink()
	gate := NewSpeakingGate()

	s := NewSegmenter(20*time.Millisecond, 48000, "doctor-agent",
		gate, tr, sink.handle, nil, zerolog.Nop())

	gate.Set(true)
	s.PushFrame("user-1", float32Frame(0.1))
	gate.Set(false)

	time.Sleep(80 * time.Millisecond)
	if tr.callCount() != 0 {
		t.Fatalf("transcriber calls = %d, want 0 while agent speaking", tr.callCount())
	}
}

func TestSegmenterIgnoresAgentIdentity(t *testing.T) {
	tr := &recordingTranscriber{text: "self echo"}
	sink := newUtteranceSink()

	s := NewSegmenter(20*time.Millisecond, 48000, "doctor-agent",
		NewSpeakingGate(), tr, sink.handle, nil, zerolog.Nop())

	s.PushFrame("doctor-agent", float32Frame(0.5))

	time.Sleep(80 * time.Millisecond)
	if tr.callCount() != 0 {
		t.Fatalf("transcriber calls = %d, want 0 for agent audio", tr.callCount())
	}
}

func TestSegmenterEmptyTranscriptionIsDropped(t *testing.T) {
	tr := &recordingTranscriber{text: ""}
	sink := newUtteranceSink()

	s := NewSegmenter(20*time.Millisecond, 48000, "doctor-agent",
		NewSpeakingGate(), tr, sink.handle, nil, zerolog.Nop())

	s.PushFrame("user-1", float32Frame(0.1))

	time.Sleep(100 * time.Millisecond)
	if got := sink.texts(); len(got) != 0 {
		t.Fatalf("utterances = %v, want none for empty transcription", got)
	}
}

func TestSegmenterNewAudioResetsSilenceTimer(t *testing.T) {
	tr := &recordingTranscriber{text: "one utterance"}
	sink := newUtteranceSink()

	s := NewSegmenter(50*time.Millisecond, 48000, "doctor-agent",
		NewSpeakingGate(), tr, sink.handle, nil, zerolog.Nop())

	for i := 0; i < 4; i++ {
		s.PushFrame("user-1", float32Frame(0.1))
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case <-sink.done:
	case <-time.After(time.Second):
		t.Fatal("utterance was never cut")
	}

	if tr.callCount() != 1 {
		t.Fatalf("transcriber calls = %d, want a single utterance", tr.callCount())
	}
}

func TestSegmenterDisconnectFinalizes(t *testing.T) {
	finalized := make(chan string, 2)

	s := NewSegmenter(time.Minute, 48000, "doctor-agent",
		NewSpeakingGate(), &recordingTranscriber{}, func(context.Context, string, string) {},
		func(_ context.Context, identity string) { finalized <- identity },
		zerolog.Nop())

	s.PushFrame("user-1", float32Frame(0.1))
	s.Disconnect("user-1")

	select {
	case identity := <-finalized:
		if identity != "user-1" {
			t.Fatalf("finalized identity = %q, want user-1", identity)
		}
	case <-time.After(time.Second):
		t.Fatal("finalize never fired")
	}
}

func TestSpeakingGate(t *testing.T) {
	g := NewSpeakingGate()
	if g.Speaking() {
		t.Fatal("gate should start closed")
	}
	g.Set(true)
	if !g.Speaking() {
		t.Fatal("gate should report speaking after Set(true)")
	}
	g.Set(false)
	if g.Speaking() {
		t.Fatal("gate should clear after Set(false)")
	}
}
