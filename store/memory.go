package store

import (
	"context"
	"strings"
	"sync"
)

// InMemoryStore is a thread-safe store for tests and single-process use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*Record)}
}

// Load returns a cloned record for the order.
func (s *InMemoryStore) Load(_ context.Context, orderID string) (*Record, error) {
	if s == nil {
		return nil, notConfigured("in-memory")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecord(s.records[orderID]), nil
}

// SaveIfVersion performs compare-and-set persistence.
func (s *InMemoryStore) SaveIfVersion(_ context.Context, rec *Record, expectedVersion int) (int, error) {
	if s == nil {
		return 0, notConfigured("in-memory")
	}
	next, err := normalizeRecord(rec)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = make(map[string]*Record)
	}
	version, err := applyVersionedUpdate(next, s.records[next.OrderID], expectedVersion)
	if err != nil {
		return 0, err
	}
	s.records[next.OrderID] = next
	return version, nil
}

// List returns cloned records ordered by id.
func (s *InMemoryStore) List(_ context.Context) ([]*Record, error) {
	if s == nil {
		return nil, notConfigured("in-memory")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	sortRecords(out)
	return out, nil
}
