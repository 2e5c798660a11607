package store

import (
	"sort"
	"sync"

	"contentbrain/pkg/domain"
)

// MemoryStore keeps generation records in-process. It backs tests and lets
// the service run without Postgres.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.GenerationRecord
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]domain.GenerationRecord)}
}

// SaveGeneration stores a record.
func (m *MemoryStore) SaveGeneration(record domain.GenerationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.ID] = record
	return nil
}

// GetGeneration fetches a record by ID.
func (m *MemoryStore) GetGeneration(id string) (domain.GenerationRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	return record, ok, nil
}

// ListGenerationsByOwner returns the owner's records newest-first, capped at limit.
func (m *MemoryStore) ListGenerationsByOwner(ownerID string, limit int) ([]domain.GenerationRecord, error) {
	if limit <= 0 {
		return []domain.GenerationRecord{}, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.GenerationRecord, 0)
	for _, record := range m.records {
		if record.OwnerID == ownerID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteGeneration removes a record by ID.
func (m *MemoryStore) DeleteGeneration(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}
