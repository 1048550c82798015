package casestore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu    sync.RWMutex
	cases map[string]*CaseRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cases: make(map[string]*CaseRecord)}
}

// Upsert writes the record, replacing any existing record with the same
// case ID.
func (s *MemoryStore) Upsert(ctx context.Context, record *CaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *record
	stored.UpdatedAt = time.Now()
	s.cases[record.CaseID] = &stored
	return nil
}

// Get returns the record for a case ID, or nil if none exists.
func (s *MemoryStore) Get(ctx context.Context, caseID string) (*CaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.cases[caseID]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

// Len returns the number of stored cases.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cases)
}

// Verify interface
var _ Store = (*MemoryStore)(nil)
