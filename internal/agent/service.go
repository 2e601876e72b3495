package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/careconnect-health/careconnect/internal/extract"
	"github.com/careconnect-health/careconnect/internal/language"
	"github.com/careconnect-health/careconnect/internal/memory"
	"github.com/careconnect-health/careconnect/internal/observability"
	"github.com/careconnect-health/careconnect/internal/patient"
	"github.com/careconnect-health/careconnect/internal/policy"
	"github.com/careconnect-health/careconnect/internal/transcript"
)

// Utterances shorter than this are treated as noise; "hi" and bare
// fillers get a clarification instead of a model turn.
const minUtteranceLen = 3

// Result is what a completed patient turn produces.
type Result struct {
	Reply     string         `json:"reply"`
	Extracted map[string]any `json:"extracted"`
}

// Service runs the conversational loop. Every stage degrades independently:
// a failed store write, extractor, or summary never blocks the reply.
type Service struct {
	resolver     *patient.Resolver
	durableMem   memory.Store
	ephemeralMem memory.Store
	transcripts  transcript.Store
	symptoms     *extract.SymptomExtractor
	medical      *extract.MedicalExtractor
	replies      *ReplyGenerator
	summarizer   *Summarizer
	metrics      *observability.Metrics
	log          zerolog.Logger

	mu         sync.Mutex
	finalized  map[string]string
	finalizing map[string]*sync.Mutex
}

func NewService(
	resolver *patient.Resolver,
	durableMem, ephemeralMem memory.Store,
	transcripts transcript.Store,
	symptoms *extract.SymptomExtractor,
	medical *extract.MedicalExtractor,
	replies *ReplyGenerator,
	summarizer *Summarizer,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Service {
	return &Service{
		resolver:     resolver,
		durableMem:   durableMem,
		ephemeralMem: ephemeralMem,
		transcripts:  transcripts,
		symptoms:     symptoms,
		medical:      medical,
		replies:      replies,
		summarizer:   summarizer,
		metrics:      metrics,
		log:          log,
		finalized:    make(map[string]string),
		finalizing:   make(map[string]*sync.Mutex),
	}
}

func (s *Service) storeFor(res patient.Resolution) memory.Store {
	if res.Durable {
		return s.durableMem
	}
	return s.ephemeralMem
}

// HandleUserMessage processes one finished utterance and returns the
// doctor's reply. It always returns a non-empty reply.
func (s *Service) HandleUserMessage(ctx context.Context, identity, text string) Result {
	start := time.Now()
	trimmed := strings.TrimSpace(text)

	// Any activity re-arms finalization, including turns that short-circuit.
	s.mu.Lock()
	delete(s.finalized, identity)
	s.mu.Unlock()

	if err := s.transcripts.AppendMessage(ctx, identity, transcript.SpeakerUser, trimmed); err != nil {
		s.log.Warn().Err(err).Str("identity", identity).Msg("transcript append failed")
		s.metrics.StageError("transcript")
	}

	if len(trimmed) < minUtteranceLen {
		res := s.resolver.Resolve(ctx, identity)
		if err := s.storeFor(res).AppendTurn(ctx, res.Key, memory.SpeakerUser, trimmed); err != nil {
			s.log.Warn().Err(err).Msg("memory append failed")
		}
		s.metrics.ObserveTurn("short", time.Since(start))
		return Result{Reply: ReplyDidNotCatch, Extracted: map[string]any{}}
	}

	if policy.LooksLikeInternalEcho(trimmed) {
		s.metrics.ObserveTurn("echo", time.Since(start))
		return Result{Reply: ReplyRephrase, Extracted: map[string]any{}}
	}

	lang := language.Detect(trimmed)
	res := s.resolver.Resolve(ctx, identity)
	store := s.storeFor(res)

	if err := store.AppendTurn(ctx, res.Key, memory.SpeakerUser, trimmed); err != nil {
		s.log.Warn().Err(err).Str("key", res.Key).Msg("memory append failed")
		s.metrics.StageError("memory")
	}

	stageStart := time.Now()
	report := s.symptoms.Extract(ctx, trimmed)
	s.metrics.ObserveStage("symptoms", time.Since(stageStart))
	if len(report.Symptoms) > 0 {
		if err := store.AddSymptoms(ctx, res.Key, report.Symptoms, report.Severity); err != nil {
			s.log.Warn().Err(err).Str("key", res.Key).Msg("symptom persist failed")
			s.metrics.StageError("symptoms")
		}
	}

	extracted := map[string]any{}
	if extract.ShouldRunMedical(trimmed) {
		stageStart = time.Now()
		extracted = s.medical.Extract(ctx, trimmed)
		s.metrics.ObserveStage("medical", time.Since(stageStart))
	}

	mem, err := store.Load(ctx, res.Key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", res.Key).Msg("memory load failed")
		s.metrics.StageError("memory")
		mem = &memory.PatientMemory{Identity: res.Key}
	}

	blob, patientName := BuildContext(res, mem, extracted)
	stageStart = time.Now()
	reply := s.replies.Generate(ctx, trimmed, blob, patientName, lang)
	s.metrics.ObserveStage("reply", time.Since(stageStart))

	if err := s.transcripts.AppendMessage(ctx, identity, transcript.SpeakerDoctor, reply); err != nil {
		s.log.Warn().Err(err).Str("identity", identity).Msg("transcript append failed")
		s.metrics.StageError("transcript")
	}
	if err := store.AppendTurn(ctx, res.Key, memory.SpeakerDoctor, reply); err != nil {
		s.log.Warn().Err(err).Str("key", res.Key).Msg("memory append failed")
	}
	if err := store.SetLastRecommendation(ctx, res.Key, reply); err != nil {
		s.log.Warn().Err(err).Str("key", res.Key).Msg("recommendation persist failed")
	}

	if len(extracted) > 0 {
		if err := s.transcripts.MergeExtracted(ctx, identity, extracted); err != nil {
			s.log.Warn().Err(err).Str("identity", identity).Msg("extracted merge failed")
			s.metrics.StageError("transcript")
		}
	}

	s.summarizer.Schedule(store, res.Key, res.Durable)

	outcome := "reply"
	if reply == policy.EmergencyDirective {
		outcome = "emergency"
	} else if reply == ReplySayDifferent || reply == ReplyError {
		outcome = "degraded"
	}
	s.metrics.ObserveTurn(outcome, time.Since(start))

	return Result{Reply: reply, Extracted: extracted}
}

// finalizeLock serializes finalization per identity. The registry janitor
// and an explicit disconnect can both finalize the same call.
func (s *Service) finalizeLock(identity string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.finalizing[identity]
	if !ok {
		l = &sync.Mutex{}
		s.finalizing[identity] = l
	}
	return l
}

// FinalizeCall forces a summary at the end of a call and appends it to the
// transcript. Calling it again without new activity returns the same summary
// without appending a second transcript entry.
func (s *Service) FinalizeCall(ctx context.Context, identity string) string {
	lock := s.finalizeLock(identity)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	if summary, done := s.finalized[identity]; done {
		s.mu.Unlock()
		return summary
	}
	s.mu.Unlock()

	res := s.resolver.Resolve(ctx, identity)
	store := s.storeFor(res)

	stageStart := time.Now()
	summary, err := s.summarizer.Summarize(ctx, store, res.Key, res.Durable)
	s.metrics.ObserveStage("summary", time.Since(stageStart))
	if err != nil {
		s.log.Warn().Err(err).Str("identity", identity).Msg("finalize summary failed")
		s.metrics.StageError("summary")
		summary = ""
	}

	if summary != "" {
		if err := s.transcripts.MergeExtracted(ctx, identity, map[string]any{"notes": summary}); err != nil {
			s.log.Warn().Err(err).Str("identity", identity).Msg("summary merge failed")
		}
	}

	msg := "Call summary: No significant summary generated."
	if summary != "" {
		msg = "Call summary: " + summary
	}
	if err := s.transcripts.AppendMessage(ctx, identity, transcript.SpeakerDoctor, msg); err != nil {
		s.log.Warn().Err(err).Str("identity", identity).Msg("summary append failed")
	}

	s.mu.Lock()
	s.finalized[identity] = summary
	s.mu.Unlock()

	s.metrics.SummaryRun(err == nil)
	return summary
}
