package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/careconnect-health/careconnect/internal/llm"
	"github.com/careconnect-health/careconnect/internal/reliability"
)

// SymptomReport is the fast extractor's output for one utterance.
type SymptomReport struct {
	Symptoms []string
	Severity int
}

const symptomPrompt = `Extract symptoms from this message.

Respond ONLY with valid JSON:
{"symptoms": ["..."], "severity": number (1-10)}

Message:
%s
`

// SymptomExtractor runs a small model over every utterance to catch symptom
// mentions. It degrades to an empty report on timeout or model failure.
type SymptomExtractor struct {
	client  llm.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

func NewSymptomExtractor(client llm.Client, model string, timeout time.Duration, log zerolog.Logger) *SymptomExtractor {
	return &SymptomExtractor{client: client, model: model, timeout: timeout, log: log}
}

func (e *SymptomExtractor) Extract(ctx context.Context, text string) SymptomReport {
	return reliability.WithDeadline(ctx, e.timeout, SymptomReport{}, func(ctx context.Context) (SymptomReport, error) {
		raw, err := e.client.Complete(ctx, llm.Request{
			Model:       e.model,
			User:        fmt.Sprintf(symptomPrompt, text),
			Temperature: 0,
		})
		if err != nil {
			e.log.Warn().Err(err).Msg("symptom extraction failed")
			return SymptomReport{}, nil
		}

		parsed, ok := ParseJSONObject(raw)
		if !ok {
			return SymptomReport{}, nil
		}

		var report SymptomReport
		if list, ok := parsed["symptoms"].([]any); ok {
			for _, item := range list {
				if s, ok := item.(string); ok && s != "" {
					report.Symptoms = append(report.Symptoms, s)
				}
			}
		}
		if sev, ok := parsed["severity"].(float64); ok {
			report.Severity = int(sev)
		}
		return report, nil
	})
}
