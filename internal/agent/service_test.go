package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/careconnect-health/careconnect/internal/extract"
	"github.com/careconnect-health/careconnect/internal/llm"
	"github.com/careconnect-health/careconnect/internal/memory"
	"github.com/careconnect-health/careconnect/internal/observability"
	"github.com/careconnect-health/careconnect/internal/patient"
	"github.com/careconnect-health/careconnect/internal/policy"
	"github.com/careconnect-health/careconnect/internal/transcript"
)

type fixture struct {
	svc         *Service
	durableMem  *memory.EphemeralStore
	ephemeral   *memory.EphemeralStore
	transcripts *transcript.EphemeralStore
}

func newFixture(t *testing.T, client llm.Client, profiles ...*patient.Profile) *fixture {
	t.Helper()
	log := zerolog.Nop()

	durableMem := memory.NewEphemeralStore()
	ephemeralMem := memory.NewEphemeralStore()
	transcripts := transcript.NewEphemeralStore()

	resolver := patient.NewResolver(patient.NewStaticDirectory(profiles...), log)
	symptoms := extract.NewSymptomExtractor(client, "extract-model", time.Second, log)
	medical := extract.NewMedicalExtractor(client, "extract-model", time.Second, log)
	replies := NewReplyGenerator(client, "reply-model", time.Second, log)
	summarizer := NewSummarizer(client, "summary-model", time.Second, 10*time.Minute, log)

	svc := NewService(resolver, durableMem, ephemeralMem, transcripts,
		symptoms, medical, replies, summarizer, nil, log)
	return &fixture{svc: svc, durableMem: durableMem, ephemeral: ephemeralMem, transcripts: transcripts}
}

// scriptedClient answers JSON prompts with empty objects and everything else
// with a fixed reply.
func scriptedClient(reply string) llm.Client {
	return llm.ClientFunc(func(_ context.Context, req llm.Request) (string, error) {
		for _, s := range req.System {
			if strings.Contains(s, "JSON") {
				return "{}", nil
			}
		}
		if strings.Contains(req.User, "JSON") {
			return "{}", nil
		}
		return reply, nil
	})
}

func TestRedFlagAlwaysGetsEmergencyDirective(t *testing.T) {
	f := newFixture(t, scriptedClient("Asha, that sounds mild. How long has it lasted?"))

	res := f.svc.HandleUserMessage(context.Background(), "user-1", "I have severe chest pain and I feel like I am dying")
	if res.Reply != policy.EmergencyDirective {
		t.Fatalf("Reply = %q, want emergency directive", res.Reply)
	}
	if strings.Contains(res.Reply, "?") {
		t.Fatal("emergency directive must not ask a follow-up question")
	}
}

func TestShortUtteranceGetsCannedReply(t *testing.T) {
	f := newFixture(t, scriptedClient("should not be used"))

	res := f.svc.HandleUserMessage(context.Background(), "user-1", "h")
	if res.Reply != ReplyDidNotCatch {
		t.Fatalf("Reply = %q, want %q", res.Reply, ReplyDidNotCatch)
	}
	if len(res.Extracted) != 0 {
		t.Fatalf("Extracted = %v, want empty", res.Extracted)
	}

	// the short utterance is still logged
	mem, _ := f.ephemeral.Load(context.Background(), "user-1")
	if len(mem.ConversationHistory) != 1 || mem.ConversationHistory[0].Text != "h" {
		t.Fatalf("history = %+v, want the short utterance logged", mem.ConversationHistory)
	}
}

func TestBareGreetingShortCircuits(t *testing.T) {
	f := newFixture(t, scriptedClient("Asha, noted. Any fever today?"))

	res := f.svc.HandleUserMessage(context.Background(), "user-1", "hi")
	if res.Reply != ReplyDidNotCatch {
		t.Fatalf("Reply = %q, want %q", res.Reply, ReplyDidNotCatch)
	}
	if len(res.Extracted) != 0 {
		t.Fatalf("Extracted = %v, want empty", res.Extracted)
	}
}

func TestHardModelErrorGetsApology(t *testing.T) {
	client := llm.ClientFunc(func(_ context.Context, req llm.Request) (string, error) {
		for _, s := range req.System {
			if strings.Contains(s, "JSON") {
				return "{}", nil
			}
		}
		if strings.Contains(req.User, "JSON") {
			return "{}", nil
		}
		return "", errors.New("provider exploded")
	})
	f := newFixture(t, client)

	res := f.svc.HandleUserMessage(context.Background(), "user-1", "my stomach has been upset")
	if res.Reply != ReplyError {
		t.Fatalf("Reply = %q, want %q", res.Reply, ReplyError)
	}
}

func TestInternalEchoGetsRephrasePrompt(t *testing.T) {
	f := newFixture(t, scriptedClient("should not be used"))

	for _, text := range []string{`{"type":"frame"}`, "user-42 joined", "CC-PT-000123"} {
		res := f.svc.HandleUserMessage(context.Background(), "user-1", text)
		if res.Reply != ReplyRephrase {
			t.Fatalf("Reply for %q = %q, want %q", text, res.Reply, ReplyRephrase)
		}
	}
}

func TestUnregisteredCodeRunsEphemeral(t *testing.T) {
	f := newFixture(t, scriptedClient("Noted. Does the pain spread anywhere?"))

	res := f.svc.HandleUserMessage(context.Background(), "CC-PT-000999", "my knee hurts when I walk")
	if res.Reply == "" {
		t.Fatal("expected a reply")
	}

	mem, _ := f.ephemeral.Load(context.Background(), "CC-PT-000999")
	if len(mem.ConversationHistory) < 2 {
		t.Fatalf("ephemeral history = %d entries, want user and doctor turns", len(mem.ConversationHistory))
	}
	durable, _ := f.durableMem.Load(context.Background(), "CC-PT-000999")
	if len(durable.ConversationHistory) != 0 {
		t.Fatal("durable store must stay untouched for unregistered identities")
	}
}

func TestRegisteredPatientUsesDurableStore(t *testing.T) {
	profile := &patient.Profile{ID: "patient-77", Code: "CC-PT-000077", Name: "Asha Rao"}
	f := newFixture(t, scriptedClient("Asha, noted. Any fever today?"), profile)

	f.svc.HandleUserMessage(context.Background(), "CC-PT-000077", "I slipped and hurt my wrist")

	mem, _ := f.durableMem.Load(context.Background(), "patient-77")
	if len(mem.ConversationHistory) < 2 {
		t.Fatalf("durable history = %d entries, want user and doctor turns", len(mem.ConversationHistory))
	}
	if mem.LastRecommendation == "" {
		t.Fatal("doctor reply should be stored as last recommendation")
	}
}

func TestTurnRoundTripOrdering(t *testing.T) {
	f := newFixture(t, scriptedClient("Understood. When did it start?"))
	ctx := context.Background()

	f.svc.HandleUserMessage(ctx, "user-1", "I have had a mild cough")

	mem, _ := f.ephemeral.Load(ctx, "user-1")
	n := len(mem.ConversationHistory)
	if n < 2 {
		t.Fatalf("history = %d entries, want at least 2", n)
	}
	if mem.ConversationHistory[n-2].Speaker != memory.SpeakerUser {
		t.Fatalf("second to last speaker = %q, want user", mem.ConversationHistory[n-2].Speaker)
	}
	if mem.ConversationHistory[n-1].Speaker != memory.SpeakerDoctor {
		t.Fatalf("last speaker = %q, want doctor", mem.ConversationHistory[n-1].Speaker)
	}
}

func TestEmptyModelReplyFallsBack(t *testing.T) {
	client := llm.ClientFunc(func(_ context.Context, req llm.Request) (string, error) {
		if strings.Contains(req.User, "JSON") {
			return "{}", nil
		}
		return "   ", nil
	})
	f := newFixture(t, client)

	res := f.svc.HandleUserMessage(context.Background(), "user-1", "my stomach has been upset")
	if res.Reply != ReplySayDifferent {
		t.Fatalf("Reply = %q, want %q", res.Reply, ReplySayDifferent)
	}
}

func TestFinalizeCallAppendsSummaryOnce(t *testing.T) {
	f := newFixture(t, scriptedClient("Noted. Anything else?"))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		f.svc.HandleUserMessage(ctx, "user-1", "my head still hurts a little today")
	}

	first := f.svc.FinalizeCall(ctx, "user-1")
	second := f.svc.FinalizeCall(ctx, "user-1")
	if first != second {
		t.Fatalf("repeated finalize = %q then %q, want identical", first, second)
	}

	tr, _ := f.transcripts.Load(ctx, "user-1")
	count := 0
	for _, m := range tr.Messages {
		if strings.HasPrefix(m.Text, "Call summary:") {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("summary messages = %d, want exactly 1", count)
	}
}

func TestFinalizeCallWithNoHistory(t *testing.T) {
	f := newFixture(t, scriptedClient("unused"))
	ctx := context.Background()

	summary := f.svc.FinalizeCall(ctx, "user-quiet")
	if summary != "" {
		t.Fatalf("summary = %q, want empty for quiet call", summary)
	}

	tr, _ := f.transcripts.Load(ctx, "user-quiet")
	last := tr.Messages[len(tr.Messages)-1]
	if last.Text != "Call summary: No significant summary generated." {
		t.Fatalf("last transcript message = %q", last.Text)
	}
}

func TestConcurrentFinalizeAppendsSummaryOnce(t *testing.T) {
	profile := &patient.Profile{ID: "patient-77", Code: "CC-PT-000077", Name: "Asha Rao"}
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (string, error) {
		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return "patient reports recurring headaches, severity stable", nil
	})
	f := newFixture(t, client, profile)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_ = f.durableMem.AppendTurn(ctx, "patient-77", memory.SpeakerUser, "my head still hurts a little today")
	}

	var wg sync.WaitGroup
	results := make([]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.svc.FinalizeCall(ctx, "CC-PT-000077")
		}(i)
	}
	wg.Wait()

	if results[0] != results[1] {
		t.Fatalf("concurrent finalize = %q and %q, want identical", results[0], results[1])
	}

	tr, _ := f.transcripts.Load(ctx, "CC-PT-000077")
	count := 0
	for _, m := range tr.Messages {
		if strings.HasPrefix(m.Text, "Call summary:") {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("summary messages = %d, want exactly 1", count)
	}
}

func TestShortUtteranceReArmsFinalize(t *testing.T) {
	f := newFixture(t, scriptedClient("Noted. Anything else?"))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		f.svc.HandleUserMessage(ctx, "user-1", "my head still hurts a little today")
	}
	f.svc.FinalizeCall(ctx, "user-1")
	f.svc.HandleUserMessage(ctx, "user-1", "h")
	f.svc.FinalizeCall(ctx, "user-1")

	tr, _ := f.transcripts.Load(ctx, "user-1")
	count := 0
	for _, m := range tr.Messages {
		if strings.HasPrefix(m.Text, "Call summary:") {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("summary messages = %d, want 2 after short-utterance activity", count)
	}
}

func TestNewActivityReArmsFinalize(t *testing.T) {
	f := newFixture(t, scriptedClient("Noted. Anything else?"))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		f.svc.HandleUserMessage(ctx, "user-1", "my head still hurts a little today")
	}
	f.svc.FinalizeCall(ctx, "user-1")
	f.svc.HandleUserMessage(ctx, "user-1", "actually one more thing, it throbs at night")
	f.svc.FinalizeCall(ctx, "user-1")

	tr, _ := f.transcripts.Load(ctx, "user-1")
	count := 0
	for _, m := range tr.Messages {
		if strings.HasPrefix(m.Text, "Call summary:") {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("summary messages = %d, want 2 after new activity", count)
	}
}

func TestTurnRecordsStageLatencies(t *testing.T) {
	log := zerolog.Nop()
	client := scriptedClient("Noted. When did it start?")
	metrics := &observability.Metrics{Stages: observability.NewStageWindow(32)}

	resolver := patient.NewResolver(patient.NewStaticDirectory(), log)
	svc := NewService(resolver,
		memory.NewEphemeralStore(), memory.NewEphemeralStore(), transcript.NewEphemeralStore(),
		extract.NewSymptomExtractor(client, "extract-model", time.Second, log),
		extract.NewMedicalExtractor(client, "extract-model", time.Second, log),
		NewReplyGenerator(client, "reply-model", time.Second, log),
		NewSummarizer(client, "summary-model", time.Second, 10*time.Minute, log),
		metrics, log)

	svc.HandleUserMessage(context.Background(), "user-1", "I have had chest tightness and fever since yesterday")
	svc.FinalizeCall(context.Background(), "user-1")

	seen := map[string]bool{}
	for _, st := range metrics.Stages.Snapshot().Stages {
		seen[st.Stage] = true
	}
	for _, want := range []string{"symptoms", "medical", "reply", "summary"} {
		if !seen[want] {
			t.Fatalf("stage %q missing from latency window, have %v", want, seen)
		}
	}
}

func TestBuildContextMarksBlobNonQuotable(t *testing.T) {
	res := patient.Resolution{Key: "user-1"}
	mem := &memory.PatientMemory{
		Identity:        "user-1",
		LongTermSummary: "mild recurring headaches",
		ConversationHistory: []memory.Turn{
			{Speaker: memory.SpeakerUser, Text: "my head hurts"},
		},
		SymptomsTimeline: []memory.Symptom{
			{Symptom: "headache", Severity: 4, Date: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
		},
	}

	blob, name := BuildContext(res, mem, map[string]any{"duration": "2 days"})
	if !strings.Contains(blob, "FOR REASONING ONLY") {
		t.Fatal("context blob must carry the non-quotable marker")
	}
	if !strings.Contains(blob, "headache (4) - 2026-08-20") {
		t.Fatalf("context blob missing symptom line:\n%s", blob)
	}
	if !strings.Contains(blob, `"duration":"2 days"`) {
		t.Fatalf("context blob missing extracted fields:\n%s", blob)
	}
	if name != "user-1" {
		t.Fatalf("patientName = %q, want identity fallback", name)
	}
}

func TestBuildContextWindowsHistory(t *testing.T) {
	mem := &memory.PatientMemory{Identity: "user-1"}
	for i := 0; i < 12; i++ {
		mem.ConversationHistory = append(mem.ConversationHistory, memory.Turn{
			Speaker: memory.SpeakerUser,
			Text:    strings.Repeat("x", i+1),
		})
	}

	blob, _ := BuildContext(patient.Resolution{Key: "user-1"}, mem, nil)
	if strings.Contains(blob, "USER: xxx ") && !strings.Contains(blob, strings.Repeat("x", 5)) {
		t.Fatal("unexpected context content")
	}
	// oldest turns must be dropped past the window
	if strings.Contains(blob, "USER: x |") || strings.Contains(blob, "USER: x\n") {
		t.Fatalf("context includes turns past the window:\n%s", blob)
	}
}

func TestSummarizerDebounceRunsAtMostOncePerWindow(t *testing.T) {
	calls := 0
	client := llm.ClientFunc(func(_ context.Context, _ llm.Request) (string, error) {
		calls++
		return "patient reports recurring headaches, severity stable", nil
	})

	store := memory.NewEphemeralStore()
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		_ = store.AppendTurn(ctx, "patient-1", memory.SpeakerUser, "my head hurts again today")
	}

	s := NewSummarizer(client, "summary-model", time.Second, 10*time.Minute, zerolog.Nop())
	for i := 0; i < 5; i++ {
		s.Schedule(store, "patient-1", true)
	}
	time.Sleep(100 * time.Millisecond)

	if calls > 1 {
		t.Fatalf("summary model called %d times within one cooldown, want at most 1", calls)
	}
}

func TestSummarizeDurableRequiresCleanHistory(t *testing.T) {
	client := llm.ClientFunc(func(_ context.Context, _ llm.Request) (string, error) {
		t.Fatal("model must not run below the message threshold")
		return "", nil
	})

	store := memory.NewEphemeralStore()
	ctx := context.Background()
	_ = store.AppendTurn(ctx, "patient-1", memory.SpeakerUser, "my head hurts")
	_ = store.AppendTurn(ctx, "patient-1", memory.SpeakerUser, "ok")

	s := NewSummarizer(client, "summary-model", time.Second, time.Minute, zerolog.Nop())
	summary, err := s.Summarize(ctx, store, "patient-1", true)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if summary != "" {
		t.Fatalf("summary = %q, want existing (empty) summary", summary)
	}
}

func TestSummarizeEphemeralClipsSnippet(t *testing.T) {
	store := memory.NewEphemeralStore()
	ctx := context.Background()
	long := strings.Repeat("my shoulder aches after lifting ", 10)
	for i := 0; i < 8; i++ {
		_ = store.AppendTurn(ctx, "user-1", memory.SpeakerUser, long)
	}

	s := NewSummarizer(llm.ClientFunc(func(_ context.Context, _ llm.Request) (string, error) {
		t.Fatal("ephemeral summary must not call the model")
		return "", nil
	}), "summary-model", time.Second, time.Minute, zerolog.Nop())

	summary, err := s.Summarize(ctx, store, "user-1", false)
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if !strings.HasPrefix(summary, "Recent conversation (ephemeral): ") {
		t.Fatalf("summary = %q", summary)
	}
	if len(summary) > len("Recent conversation (ephemeral): ")+400 {
		t.Fatalf("summary length = %d, snippet should be clipped to 400", len(summary))
	}

	mem, _ := store.Load(ctx, "user-1")
	if mem.LongTermSummary != summary {
		t.Fatal("ephemeral summary must be persisted back to the store")
	}
}
