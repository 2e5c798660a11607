// Package vector provides the per-user namespaced vector store used for
// retrieval-augmented generation. Chunks are embedded on write and queried
// by cosine similarity, always scoped to a single namespace so one user's
// knowledge can never leak into another's retrieval.
package vector

import (
	"context"

	"contentbrain/pkg/domain"
)

// Store is the vector-store contract.
type Store interface {
	// EnsureReady idempotently provisions the index / schema.
	EnsureReady(ctx context.Context) error
	// AddTexts embeds and upserts chunks under the namespace.
	AddTexts(ctx context.Context, texts []string, namespace string) error
	// Retrieve returns up to k nearest chunks for the query within the
	// namespace. An empty namespace yields an empty result, not an error.
	Retrieve(ctx context.Context, query, namespace string, k int) ([]domain.KnowledgeChunk, error)
}
