package domain

import "time"

// Identity is the authenticated caller resolved from a bearer token.
// Token issuance and user management live in the external identity provider;
// this service only ever consumes verified identities.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// GenerationRecord is one persisted content generation. Records are
// immutable once written and owned by exactly one user.
type GenerationRecord struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"-"`
	Topic       string    `json:"topic"`
	ContentType string    `json:"contentType"`
	Tone        string    `json:"tone,omitempty"`
	Language    string    `json:"language,omitempty"`
	Answer      string    `json:"answer"`
	CreatedAt   time.Time `json:"createdAt"`

	// Analytics is the snapshot computed at generation time, persisted
	// alongside the record for history display.
	Analytics *AnalyticsSnapshot `json:"analytics,omitempty"`
}

// KnowledgeChunk is the retrieval unit: a bounded, overlapping slice of an
// ingested document, scoped to the uploading user's namespace. The embedding
// itself is owned by the vector store and never carried here.
type KnowledgeChunk struct {
	ID        string    `json:"id"`
	Namespace string    `json:"-"`
	Content   string    `json:"content"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AnalyticsSnapshot holds per-generation derived metrics. It is computed
// fresh for every response and stored alongside the record.
type AnalyticsSnapshot struct {
	WordCount        int     `json:"wordCount"`
	ReadingTime      int     `json:"readingTime"`
	ReadabilityScore float64 `json:"readabilityScore"`
	Sentiment        string  `json:"sentiment"`
}
