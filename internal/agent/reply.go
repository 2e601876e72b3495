package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/careconnect-health/careconnect/internal/language"
	"github.com/careconnect-health/careconnect/internal/llm"
	"github.com/careconnect-health/careconnect/internal/policy"
	"github.com/careconnect-health/careconnect/internal/reliability"
)

// Canned replies used when a turn cannot produce a model reply.
const (
	ReplyDidNotCatch  = "I didn't catch that — could you say that again?"
	ReplyRephrase     = "Could you rephrase that for me?"
	ReplySayDifferent = "I'm sorry — could you say that again in a different way?"
	ReplyError        = "Apologies — I encountered an error while replying."
)

const triagePromptFormat = `You are Dr. Anurag, a real clinical triage physician.

NEVER ASK:
- "what is your name?"
- "what is your medical history?"
- "what medications are you taking?"

YOU ALREADY KNOW:
- name: %s
- history, vitals, meds, last check-in

################################
# NORMAL TRIAGE BEHAVIOR
################################
- 2 sentences ONLY
- Use patient's NAME once
- Ask ONE clinical follow-up question
- Reference context (vitals/meds/last check-in)
- Answer straightforwardly, do not sugarcoat
- Be concise, clear, professional
- Use layman's terms
- Prioritize patient safety

- Never mention patientId
- Never invent info
- If data missing, say "not recorded"

LANGUAGE MODE: %s`

// ReplyGenerator produces the doctor's turn. Red-flag utterances bypass the
// model entirely and always get the emergency directive.
type ReplyGenerator struct {
	client  llm.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

func NewReplyGenerator(client llm.Client, model string, timeout time.Duration, log zerolog.Logger) *ReplyGenerator {
	return &ReplyGenerator{client: client, model: model, timeout: timeout, log: log}
}

// Generate never returns an empty string. Timeouts and empty completions
// fall back to a retry prompt; a hard provider error gets the apology.
func (g *ReplyGenerator) Generate(ctx context.Context, userText, patientContext, patientName string, lang language.Mode) string {
	if policy.ContainsRedFlag(userText) {
		return policy.EmergencyDirective
	}

	system := []string{
		fmt.Sprintf(triagePromptFormat, patientName, lang.Instruction()),
		"PATIENT RECORD:\n" + patientContext,
	}

	reply, err := reliability.WithDeadlineErr(ctx, g.timeout, "", func(ctx context.Context) (string, error) {
		return g.client.Complete(ctx, llm.Request{
			Model:       g.model,
			System:      system,
			User:        userText,
			Temperature: 0.25,
			MaxTokens:   250,
		})
	})
	if err != nil {
		g.log.Warn().Err(err).Msg("reply generation failed")
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return ReplySayDifferent
		}
		return ReplyError
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return ReplySayDifferent
	}
	return reply
}
