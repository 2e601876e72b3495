package extract

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/careconnect-health/careconnect/internal/llm"
	"github.com/careconnect-health/careconnect/internal/reliability"
)

const medicalWordThreshold = 10

var medicalKeywordRe = regexp.MustCompile(`(?i)\b(fever|pain|chest|breath|bleeding|suicid|dizzy|vomit|cough|infect|feverish|shortness|breathlessness|bp|blood pressure)\b`)

const medicalSystemPrompt = `Return ONLY a valid JSON object with EXACTLY this structure:

{
  "symptoms": [],
  "duration": "",
  "severity": "",
  "medications": [
      { "name": "", "dose": "", "frequency": "" }
  ],
  "allergies": [],
  "conditions": [],
  "notes": ""
}

NO explanations. NO markdown. NO commentary.`

// ShouldRunMedical gates the heavier structured extractor: long messages or
// anything mentioning a medical keyword.
func ShouldRunMedical(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if len(strings.Fields(text)) >= medicalWordThreshold {
		return true
	}
	return medicalKeywordRe.MatchString(text)
}

// MedicalExtractor pulls a structured medical record fragment from an
// utterance. Model output is salvage-parsed, then regex heuristics fill
// whatever the model left blank. Failures degrade to heuristics alone.
type MedicalExtractor struct {
	client  llm.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

func NewMedicalExtractor(client llm.Client, model string, timeout time.Duration, log zerolog.Logger) *MedicalExtractor {
	return &MedicalExtractor{client: client, model: model, timeout: timeout, log: log}
}

func (e *MedicalExtractor) Extract(ctx context.Context, text string) map[string]any {
	parsed := reliability.WithDeadline(ctx, e.timeout, map[string]any(nil), func(ctx context.Context) (map[string]any, error) {
		raw, err := e.client.Complete(ctx, llm.Request{
			Model:       e.model,
			System:      []string{medicalSystemPrompt},
			User:        text,
			Temperature: 0,
			MaxTokens:   300,
		})
		if err != nil {
			e.log.Warn().Err(err).Msg("medical extraction failed")
			return nil, nil
		}
		out, _ := ParseJSONObject(raw)
		return out, nil
	})

	return RunHeuristics(text, parsed)
}
