package casestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cases (
	case_id    TEXT PRIMARY KEY,
	results    JSONB NOT NULL DEFAULT '{}'::jsonb,
	history    JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore persists case records in a Postgres cases table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and ensures the cases table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure cases table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Upsert writes the record, replacing results and history for an existing
// case ID.
func (s *PostgresStore) Upsert(ctx context.Context, record *CaseRecord) error {
	results, err := json.Marshal(record.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results for case %s: %w", record.CaseID, err)
	}
	history, err := json.Marshal(record.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history for case %s: %w", record.CaseID, err)
	}

	query := `
		INSERT INTO cases (case_id, results, history, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (case_id) DO UPDATE SET
			results = EXCLUDED.results,
			history = EXCLUDED.history,
			updated_at = now()
	`

	if _, err := s.pool.Exec(ctx, query, record.CaseID, results, history); err != nil {
		return fmt.Errorf("failed to upsert case %s: %w", record.CaseID, err)
	}
	return nil
}

// Get returns the record for a case ID, or nil if none exists.
func (s *PostgresStore) Get(ctx context.Context, caseID string) (*CaseRecord, error) {
	query := `SELECT case_id, results, history, updated_at FROM cases WHERE case_id = $1`

	var (
		record  CaseRecord
		results []byte
		history []byte
	)
	err := s.pool.QueryRow(ctx, query, caseID).Scan(&record.CaseID, &results, &history, &record.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case %s: %w", caseID, err)
	}

	if err := json.Unmarshal(results, &record.Results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal results for case %s: %w", caseID, err)
	}
	if err := json.Unmarshal(history, &record.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history for case %s: %w", caseID, err)
	}
	return &record, nil
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Verify interface
var _ Store = (*PostgresStore)(nil)
