package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists call transcripts, one row per session key with
// messages as a JSONB array and extracted fields as a JSONB object.
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
	stmt := `CREATE TABLE IF NOT EXISTS call_transcripts (
		key TEXT PRIMARY KEY,
		messages JSONB NOT NULL DEFAULT '[]'::jsonb,
		extracted JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("init transcript schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, key string) (*Transcript, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO call_transcripts (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure transcript row: %w", err)
	}

	var (
		t            Transcript
		messagesRaw  []byte
		extractedRaw []byte
	)
	err = s.pool.QueryRow(ctx,
		`SELECT key, messages, extracted, updated_at FROM call_transcripts WHERE key=$1`,
		key,
	).Scan(&t.Key, &messagesRaw, &extractedRaw, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	if err := json.Unmarshal(messagesRaw, &t.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	if err := json.Unmarshal(extractedRaw, &t.Extracted); err != nil {
		return nil, fmt.Errorf("decode extracted: %w", err)
	}
	if t.Extracted == nil {
		t.Extracted = make(map[string]any)
	}
	return &t, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, key, speaker, text string) error {
	entry, err := json.Marshal([]Message{{
		Speaker:   speaker,
		Text:      strings.TrimSpace(text),
		Timestamp: time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO call_transcripts (key, messages) VALUES ($1, $2::jsonb)
		 ON CONFLICT (key) DO UPDATE SET
			messages = call_transcripts.messages || EXCLUDED.messages,
			updated_at = now()`,
		key, entry,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *PostgresStore) MergeExtracted(ctx context.Context, key string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode extracted fields: %w", err)
	}

	// jsonb || on objects is a shallow merge where the right side wins.
	_, err = s.pool.Exec(ctx,
		`INSERT INTO call_transcripts (key, extracted) VALUES ($1, $2::jsonb)
		 ON CONFLICT (key) DO UPDATE SET
			extracted = call_transcripts.extracted || EXCLUDED.extracted,
			updated_at = now()`,
		key, raw,
	)
	if err != nil {
		return fmt.Errorf("merge extracted: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
