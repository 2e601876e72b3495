package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the virtual-doctor agent service.
type Config struct {
	BindAddr        string
	ShutdownTimeout time.Duration

	MetricsNamespace string
	AllowAnyOrigin   bool

	// Identity the agent publishes under inside a call; audio from this
	// identity is never transcribed.
	AgentIdentity string

	// Utterance segmentation.
	SilenceWindow   time.Duration
	SampleRate      int
	ParticipantIdle time.Duration

	// Stage timeouts.
	SymptomExtractTimeout time.Duration
	MedicalExtractTimeout time.Duration
	ReplyTimeout          time.Duration
	SummaryTimeout        time.Duration

	// Long-term summary debounce.
	SummaryCooldown time.Duration

	// Model provider (Groq or any OpenAI-compatible endpoint).
	LLMAdapterMode string
	LLMAPIKey      string
	LLMBaseURL     string
	ReplyModel     string
	ExtractModel   string
	SummaryModel   string

	// Speech provider.
	SpeechAPIKey  string
	SpeechBaseURL string
	WhisperModel  string
	TTSModel      string
	TTSVoice      string
	TTSDisabled   bool

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "careconnect"),
		AgentIdentity:    envOrDefault("AGENT_IDENTITY", "doctor-agent"),
		LLMAdapterMode:   envOrDefault("LLM_ADAPTER_MODE", "auto"),
		LLMBaseURL:       envOrDefault("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		ReplyModel:       envOrDefault("LLM_REPLY_MODEL", "llama-3.1-8b-instant"),
		ExtractModel:     envOrDefault("LLM_EXTRACT_MODEL", "llama-3.1-8b-instant"),
		SummaryModel:     envOrDefault("LLM_SUMMARY_MODEL", "llama-3.3-70b-versatile"),
		SpeechBaseURL:    envOrDefault("SPEECH_BASE_URL", ""),
		WhisperModel:     envOrDefault("SPEECH_STT_MODEL", "whisper-1"),
		TTSModel:         envOrDefault("SPEECH_TTS_MODEL", "tts-1"),
		TTSVoice:         envOrDefault("SPEECH_TTS_VOICE", "alloy"),
		LLMAPIKey:        trimmedEnv("LLM_API_KEY"),
		SpeechAPIKey:     trimmedEnv("SPEECH_API_KEY"),
		DatabaseURL:      trimmedEnv("DATABASE_URL"),

		ShutdownTimeout:       15 * time.Second,
		SilenceWindow:         700 * time.Millisecond,
		SampleRate:            48000,
		ParticipantIdle:       2 * time.Minute,
		SymptomExtractTimeout: 1200 * time.Millisecond,
		MedicalExtractTimeout: 2 * time.Second,
		ReplyTimeout:          7 * time.Second,
		SummaryTimeout:        20 * time.Second,
		SummaryCooldown:       10 * time.Minute,
	}

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SilenceWindow, err = durationFromEnv("AGENT_SILENCE_WINDOW", cfg.SilenceWindow); err != nil {
		return Config{}, err
	}
	if cfg.ParticipantIdle, err = durationFromEnv("AGENT_PARTICIPANT_IDLE", cfg.ParticipantIdle); err != nil {
		return Config{}, err
	}
	if cfg.SymptomExtractTimeout, err = durationFromEnv("AGENT_SYMPTOM_TIMEOUT", cfg.SymptomExtractTimeout); err != nil {
		return Config{}, err
	}
	if cfg.MedicalExtractTimeout, err = durationFromEnv("AGENT_MEDICAL_TIMEOUT", cfg.MedicalExtractTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ReplyTimeout, err = durationFromEnv("AGENT_REPLY_TIMEOUT", cfg.ReplyTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SummaryTimeout, err = durationFromEnv("AGENT_SUMMARY_TIMEOUT", cfg.SummaryTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SummaryCooldown, err = durationFromEnv("AGENT_SUMMARY_COOLDOWN", cfg.SummaryCooldown); err != nil {
		return Config{}, err
	}
	if cfg.SampleRate, err = intFromEnv("AGENT_SAMPLE_RATE", cfg.SampleRate); err != nil {
		return Config{}, err
	}
	if cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin); err != nil {
		return Config{}, err
	}
	if cfg.TTSDisabled, err = boolFromEnv("SPEECH_TTS_DISABLED", cfg.TTSDisabled); err != nil {
		return Config{}, err
	}

	if cfg.SilenceWindow < 100*time.Millisecond {
		return Config{}, fmt.Errorf("AGENT_SILENCE_WINDOW must be at least 100ms")
	}
	if cfg.SampleRate <= 0 {
		return Config{}, fmt.Errorf("AGENT_SAMPLE_RATE must be positive")
	}
	if cfg.ParticipantIdle < 5*time.Second {
		return Config{}, fmt.Errorf("AGENT_PARTICIPANT_IDLE must be at least 5s")
	}
	if cfg.SummaryCooldown <= 0 {
		return Config{}, fmt.Errorf("AGENT_SUMMARY_COOLDOWN must be positive")
	}
	if strings.TrimSpace(cfg.AgentIdentity) == "" {
		return Config{}, fmt.Errorf("AGENT_IDENTITY must not be empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
