package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists patient memory in PostgreSQL, one row per identity
// with history and timeline as JSONB arrays.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS patient_memories (
			identity TEXT PRIMARY KEY,
			conversation_history JSONB NOT NULL DEFAULT '[]'::jsonb,
			symptoms_timeline JSONB NOT NULL DEFAULT '[]'::jsonb,
			long_term_summary TEXT NOT NULL DEFAULT '',
			last_recommendation TEXT NOT NULL DEFAULT '',
			last_conversation_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_patient_memories_last_conversation
			ON patient_memories (last_conversation_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, identity string) (*PatientMemory, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO patient_memories (identity) VALUES ($1)
		 ON CONFLICT (identity) DO NOTHING`,
		identity,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure memory row: %w", err)
	}

	var (
		m           PatientMemory
		historyRaw  []byte
		timelineRaw []byte
		lastConvAt  *time.Time
	)
	err = s.pool.QueryRow(ctx,
		`SELECT identity, conversation_history, symptoms_timeline,
		        long_term_summary, last_recommendation, last_conversation_at
		 FROM patient_memories WHERE identity=$1`,
		identity,
	).Scan(&m.Identity, &historyRaw, &timelineRaw, &m.LongTermSummary, &m.LastRecommendation, &lastConvAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return &PatientMemory{Identity: identity}, nil
		}
		return nil, fmt.Errorf("load memory: %w", err)
	}

	if err := json.Unmarshal(historyRaw, &m.ConversationHistory); err != nil {
		return nil, fmt.Errorf("decode conversation history: %w", err)
	}
	if err := json.Unmarshal(timelineRaw, &m.SymptomsTimeline); err != nil {
		return nil, fmt.Errorf("decode symptoms timeline: %w", err)
	}
	if lastConvAt != nil {
		m.LastConversationAt = *lastConvAt
	}
	return &m, nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, identity, speaker, text string) error {
	entry, err := json.Marshal([]Turn{{
		Speaker:   speaker,
		Text:      strings.TrimSpace(text),
		Timestamp: time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO patient_memories (identity, conversation_history, last_conversation_at)
		 VALUES ($1, $2::jsonb, now())
		 ON CONFLICT (identity) DO UPDATE SET
			conversation_history = patient_memories.conversation_history || EXCLUDED.conversation_history,
			last_conversation_at = now(),
			updated_at = now()`,
		identity, entry,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddSymptoms(ctx context.Context, identity string, symptoms []string, severity int) error {
	if len(symptoms) == 0 {
		return nil
	}

	now := time.Now().UTC()
	entries := make([]Symptom, 0, len(symptoms))
	for _, name := range symptoms {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		entries = append(entries, Symptom{Symptom: name, Severity: severity, Date: now})
	}
	if len(entries) == 0 {
		return nil
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode symptoms: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO patient_memories (identity, symptoms_timeline)
		 VALUES ($1, $2::jsonb)
		 ON CONFLICT (identity) DO UPDATE SET
			symptoms_timeline = patient_memories.symptoms_timeline || EXCLUDED.symptoms_timeline,
			updated_at = now()`,
		identity, raw,
	)
	if err != nil {
		return fmt.Errorf("add symptoms: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetSummary(ctx context.Context, identity, summary string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE patient_memories SET long_term_summary=$2, updated_at=now() WHERE identity=$1`,
		identity, summary,
	)
	if err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetLastRecommendation(ctx context.Context, identity, text string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE patient_memories SET last_recommendation=$2, updated_at=now() WHERE identity=$1`,
		identity, text,
	)
	if err != nil {
		return fmt.Errorf("set last recommendation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
