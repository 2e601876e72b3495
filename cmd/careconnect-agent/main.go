package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/careconnect-health/careconnect/internal/agent"
	"github.com/careconnect-health/careconnect/internal/call"
	"github.com/careconnect-health/careconnect/internal/config"
	"github.com/careconnect-health/careconnect/internal/extract"
	"github.com/careconnect-health/careconnect/internal/httpapi"
	"github.com/careconnect-health/careconnect/internal/llm"
	"github.com/careconnect-health/careconnect/internal/memory"
	"github.com/careconnect-health/careconnect/internal/observability"
	"github.com/careconnect-health/careconnect/internal/patient"
	"github.com/careconnect-health/careconnect/internal/transcript"
	"github.com/careconnect-health/careconnect/internal/voice"
)

func main() {
	_ = godotenv.Load()

	log := observability.NewLogger("careconnect-agent")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()

	durableMem, err := memory.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("memory store init failed")
	}
	defer durableMem.Close()
	ephemeralMem := memory.NewEphemeralStore()

	transcripts, err := transcript.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("transcript store init failed")
	}
	defer transcripts.Close()

	directory, err := patient.NewDirectory(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("patient directory init failed")
	}
	defer directory.Close()

	llmClient, err := llm.NewClient(llm.Config{
		Mode:    cfg.LLMAdapterMode,
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("llm client init failed")
	}

	speechCfg := voice.Config{
		APIKey:      cfg.SpeechAPIKey,
		BaseURL:     cfg.SpeechBaseURL,
		Model:       cfg.WhisperModel,
		SpeechModel: cfg.TTSModel,
		Voice:       cfg.TTSVoice,
	}
	transcriber, err := voice.NewTranscriber(speechCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("transcriber init failed")
	}
	var synthesizer voice.Synthesizer
	if !cfg.TTSDisabled {
		synthesizer, err = voice.NewSynthesizer(speechCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("synthesizer init failed")
		}
	}
	gate := voice.NewSpeakingGate()

	resolver := patient.NewResolver(directory, log)

	svc := agent.NewService(
		resolver,
		durableMem, ephemeralMem,
		transcripts,
		extract.NewSymptomExtractor(llmClient, cfg.ExtractModel, cfg.SymptomExtractTimeout, log),
		extract.NewMedicalExtractor(llmClient, cfg.ExtractModel, cfg.MedicalExtractTimeout, log),
		agent.NewReplyGenerator(llmClient, cfg.ReplyModel, cfg.ReplyTimeout, log),
		agent.NewSummarizer(llmClient, cfg.SummaryModel, cfg.SummaryTimeout, cfg.SummaryCooldown, log),
		metrics,
		log,
	)

	registry := call.NewRegistry(cfg.ParticipantIdle)
	registry.SetLeaveHook(func(p *call.Participant) {
		metrics.SetActiveParticipants(registry.ActiveCount())
		finalizeCtx, cancel := context.WithTimeout(context.Background(), cfg.SummaryTimeout)
		defer cancel()
		svc.FinalizeCall(finalizeCtx, p.Identity)
	})

	api := httpapi.New(cfg, registry, svc, transcriber, synthesizer, gate, metrics, log)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	registry.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}

	log.Info().Msg("shutdown complete")
}
