package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"contentbrain/pkg/ai"
	"contentbrain/pkg/domain"
)

// MemoryStore keeps embedded chunks in-process. It backs tests and lets the
// service run without Postgres.
type MemoryStore struct {
	embedder ai.Embedder

	mu         sync.RWMutex
	namespaces map[string][]memoryChunk
}

type memoryChunk struct {
	chunk     domain.KnowledgeChunk
	embedding []float32
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore(embedder ai.Embedder) *MemoryStore {
	return &MemoryStore{
		embedder:   embedder,
		namespaces: make(map[string][]memoryChunk),
	}
}

// EnsureReady is a no-op for the in-memory store.
func (m *MemoryStore) EnsureReady(_ context.Context) error { return nil }

// AddTexts embeds and stores the chunks under the namespace.
func (m *MemoryStore) AddTexts(ctx context.Context, texts []string, namespace string) error {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return fmt.Errorf("namespace required")
	}
	now := time.Now().UTC()
	added := make([]memoryChunk, 0, len(texts))
	for i, text := range texts {
		values, err := m.embedder.EmbedText(ctx, text, ai.TaskRetrievalDocument)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}
		added = append(added, memoryChunk{
			chunk: domain.KnowledgeChunk{
				ID:        uuid.NewString(),
				Namespace: namespace,
				Content:   text,
				CreatedAt: now,
			},
			embedding: values,
		})
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.namespaces[namespace] = append(m.namespaces[namespace], added...)
	return nil
}

// Retrieve scores every chunk in the namespace by cosine similarity and
// returns the top k.
func (m *MemoryStore) Retrieve(ctx context.Context, query, namespace string, k int) ([]domain.KnowledgeChunk, error) {
	if k <= 0 {
		return []domain.KnowledgeChunk{}, nil
	}
	m.mu.RLock()
	stored := m.namespaces[namespace]
	m.mu.RUnlock()
	if len(stored) == 0 {
		return []domain.KnowledgeChunk{}, nil
	}
	queryVec, err := m.embedder.EmbedText(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	type scored struct {
		chunk      domain.KnowledgeChunk
		similarity float64
	}
	candidates := make([]scored, 0, len(stored))
	for _, entry := range stored {
		similarity, err := cosineSimilarity(queryVec, entry.embedding)
		if err != nil {
			continue
		}
		candidates = append(candidates, scored{chunk: entry.chunk, similarity: similarity})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]domain.KnowledgeChunk, 0, k)
	for _, candidate := range candidates[:k] {
		out = append(out, candidate.chunk)
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("zero vector")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
