package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no patient record matches the lookup.
var ErrNotFound = errors.New("patient not found")

// PostgresDirectory reads registered patients from PostgreSQL.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(ctx context.Context, databaseURL string) (*PostgresDirectory, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresDirectory{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			id TEXT PRIMARY KEY,
			code TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			age INT NOT NULL DEFAULT 0,
			gender TEXT NOT NULL DEFAULT '',
			diagnosis TEXT NOT NULL DEFAULT '',
			medications JSONB NOT NULL DEFAULT '[]'::jsonb,
			follow_up_plan TEXT NOT NULL DEFAULT '',
			emergency_contacts JSONB NOT NULL DEFAULT '[]'::jsonb,
			vitals JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_patients_code
			ON patients (code) WHERE code <> '';`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init patient schema: %w", err)
		}
	}
	return nil
}

func (d *PostgresDirectory) FindByID(ctx context.Context, id string) (*Profile, error) {
	return d.findWhere(ctx, "id=$1", id)
}

func (d *PostgresDirectory) FindByCode(ctx context.Context, code string) (*Profile, error) {
	return d.findWhere(ctx, "code=$1", code)
}

func (d *PostgresDirectory) findWhere(ctx context.Context, cond, arg string) (*Profile, error) {
	var (
		p           Profile
		medsRaw     []byte
		contactsRaw []byte
		vitalsRaw   []byte
	)
	err := d.pool.QueryRow(ctx,
		`SELECT id, code, name, age, gender, diagnosis, medications,
		        follow_up_plan, emergency_contacts, vitals, updated_at
		 FROM patients WHERE `+cond,
		arg,
	).Scan(&p.ID, &p.Code, &p.Name, &p.Age, &p.Gender, &p.Diagnosis,
		&medsRaw, &p.FollowUpPlan, &contactsRaw, &vitalsRaw, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup patient: %w", err)
	}

	if err := json.Unmarshal(medsRaw, &p.Medications); err != nil {
		return nil, fmt.Errorf("decode medications: %w", err)
	}
	if err := json.Unmarshal(contactsRaw, &p.EmergencyContacts); err != nil {
		return nil, fmt.Errorf("decode emergency contacts: %w", err)
	}
	if err := json.Unmarshal(vitalsRaw, &p.Vitals); err != nil {
		return nil, fmt.Errorf("decode vitals: %w", err)
	}
	return &p, nil
}

func (d *PostgresDirectory) Close() error {
	d.pool.Close()
	return nil
}
