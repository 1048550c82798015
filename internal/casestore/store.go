// Package casestore persists case processing results keyed by case ID. The
// production backend is Postgres with the results stored as JSONB; a memory
// backend serves tests.
package casestore

import (
	"context"
	"time"
)

// CaseRecord is the stored state of one prior authorization case.
type CaseRecord struct {
	CaseID    string         `json:"case_id"`
	Results   map[string]any `json:"results"`
	History   []any          `json:"conversation_history,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Store persists case records.
type Store interface {
	// Upsert writes the record, replacing any existing record with the same
	// case ID.
	Upsert(ctx context.Context, record *CaseRecord) error

	// Get returns the record for a case ID, or nil if none exists.
	Get(ctx context.Context, caseID string) (*CaseRecord, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close()
}
