package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/careconnect-health/careconnect/internal/llm"
	"github.com/careconnect-health/careconnect/internal/memory"
)

const (
	summaryMinDurableMessages   = 5
	summaryDurableWindow        = 50
	summaryMinEphemeralMessages = 6
	summaryEphemeralWindow      = 20
	summaryEphemeralClip        = 400
	summaryMinMessageLen        = 2
)

const summaryPromptFormat = `Create a concise **clinical** patient summary (NOT a diagnosis).
Focus only on:
- Symptoms & severity
- Timeline
- Important medical patterns
- Recurring complaints
- Notable improvements

Return **1 short paragraph**.

Conversation:
%s
`

// Summarizer maintains the rolling long-term summary. Updates after a turn
// are debounced per key; a failed background run halves the remaining
// cooldown so the next turn retries sooner.
type Summarizer struct {
	client   llm.Client
	model    string
	timeout  time.Duration
	cooldown time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	lastRun map[string]time.Time
}

func NewSummarizer(client llm.Client, model string, timeout, cooldown time.Duration, log zerolog.Logger) *Summarizer {
	return &Summarizer{
		client:   client,
		model:    model,
		timeout:  timeout,
		cooldown: cooldown,
		log:      log,
		lastRun:  make(map[string]time.Time),
	}
}

// Schedule runs a summary update in the background when the key's cooldown
// has elapsed, otherwise it is a no-op. At most one update per key is in
// flight per cooldown window.
func (s *Summarizer) Schedule(store memory.Store, key string, durable bool) {
	debounceKey := "ep:" + key
	if durable {
		debounceKey = "id:" + key
	}

	now := time.Now()
	s.mu.Lock()
	if now.Sub(s.lastRun[debounceKey]) <= s.cooldown {
		s.mu.Unlock()
		return
	}
	s.lastRun[debounceKey] = now
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if _, err := s.Summarize(ctx, store, key, durable); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("background summary failed")
			s.mu.Lock()
			s.lastRun[debounceKey] = time.Now().Add(-s.cooldown / 2)
			s.mu.Unlock()
		}
	}()
}

// Summarize updates the long-term summary immediately, bypassing the
// cooldown. Durable keys get a model-written clinical paragraph; ephemeral
// keys get a clipped snippet of the recent conversation.
func (s *Summarizer) Summarize(ctx context.Context, store memory.Store, key string, durable bool) (string, error) {
	if durable {
		return s.summarizeDurable(ctx, store, key)
	}
	return s.summarizeEphemeral(ctx, store, key)
}

func (s *Summarizer) summarizeDurable(ctx context.Context, store memory.Store, key string) (string, error) {
	mem, err := store.Load(ctx, key)
	if err != nil {
		return "", fmt.Errorf("load memory: %w", err)
	}

	var clean []memory.Turn
	for _, t := range mem.ConversationHistory {
		if len(t.Text) > summaryMinMessageLen {
			clean = append(clean, t)
		}
	}
	if len(clean) < summaryMinDurableMessages {
		return mem.LongTermSummary, nil
	}

	if len(clean) > summaryDurableWindow {
		clean = clean[len(clean)-summaryDurableWindow:]
	}
	lines := make([]string, 0, len(clean))
	for _, t := range clean {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(t.Speaker), t.Text))
	}

	out, err := s.client.Complete(ctx, llm.Request{
		Model:       s.model,
		User:        fmt.Sprintf(summaryPromptFormat, strings.Join(lines, "\n")),
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("summary completion: %w", err)
	}

	summary := strings.TrimSpace(out)
	if summary == "" {
		return mem.LongTermSummary, nil
	}

	if err := store.SetSummary(ctx, key, summary); err != nil {
		return "", fmt.Errorf("persist summary: %w", err)
	}
	return summary, nil
}

func (s *Summarizer) summarizeEphemeral(ctx context.Context, store memory.Store, key string) (string, error) {
	mem, err := store.Load(ctx, key)
	if err != nil {
		return "", fmt.Errorf("load memory: %w", err)
	}
	if len(mem.ConversationHistory) < summaryMinEphemeralMessages {
		return mem.LongTermSummary, nil
	}

	recent := mem.RecentTurns(summaryEphemeralWindow)
	lines := make([]string, 0, len(recent))
	for _, t := range recent {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(t.Speaker), t.Text))
	}

	snippet := strings.Join(lines, "\n")
	if len(snippet) > summaryEphemeralClip {
		snippet = snippet[:summaryEphemeralClip]
	}
	summary := "Recent conversation (ephemeral): " + snippet

	if err := store.SetSummary(ctx, key, summary); err != nil {
		return "", fmt.Errorf("persist summary: %w", err)
	}
	return summary, nil
}
