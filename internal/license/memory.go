package license

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used for tests and local runs
// without Firestore. The mutex gives it the same per-key atomicity the
// Firestore implementation gets from transactions.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Get implements Store
func (s *MemoryStore) Get(ctx context.Context, identity string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[identity]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Upsert implements Store
func (s *MemoryStore) Upsert(ctx context.Context, rec Record) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[rec.Identity]
	if !ok {
		s.records[rec.Identity] = rec
		stored := rec
		return &stored, true, nil
	}

	// Merge audit fields only; the credential assigned on creation wins.
	if rec.ProductRef != "" && rec.ProductRef != ProductUnknown {
		existing.ProductRef = rec.ProductRef
	}
	if rec.ProviderCustomerRef != "" {
		existing.ProviderCustomerRef = rec.ProviderCustomerRef
	}
	if rec.ProviderTransactionRef != "" {
		existing.ProviderTransactionRef = rec.ProviderTransactionRef
	}
	s.records[rec.Identity] = existing
	stored := existing
	return &stored, false, nil
}

// Len reports the number of stored records. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
