package voice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultWhisperModel = openai.Whisper1
	defaultSpeechModel  = "gpt-4o-mini-tts"
	defaultSpeechVoice  = "alloy"
)

// WhisperTranscriber transcribes one utterance per request.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
}

func NewWhisperTranscriber(apiKey, baseURL, model string) *WhisperTranscriber {
	if model == "" {
		model = defaultWhisperModel
	}
	return &WhisperTranscriber{client: newClient(apiKey, baseURL), model: model}
}

func newClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", nil
	}

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(wav),
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// SpeechSynthesizer renders reply text with the provider's TTS voice.
type SpeechSynthesizer struct {
	client *openai.Client
	model  string
	voice  string
}

func NewSpeechSynthesizer(apiKey, baseURL, model, voice string) *SpeechSynthesizer {
	if model == "" {
		model = defaultSpeechModel
	}
	if voice == "" {
		voice = defaultSpeechVoice
	}
	return &SpeechSynthesizer{client: newClient(apiKey, baseURL), model: model, voice: voice}
}

func (s *SpeechSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(s.model),
		Voice: openai.SpeechVoice(s.voice),
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech audio: %w", err)
	}
	return audio, nil
}
