package store

import "contentbrain/pkg/domain"

// Store defines persistence operations for generation history.
type Store interface {
	SaveGeneration(domain.GenerationRecord) error
	GetGeneration(id string) (domain.GenerationRecord, bool, error)
	// ListGenerationsByOwner returns the owner's records newest-first,
	// capped at limit.
	ListGenerationsByOwner(ownerID string, limit int) ([]domain.GenerationRecord, error)
	DeleteGeneration(id string) error
}
