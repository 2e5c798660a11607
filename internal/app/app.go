// Package app orchestrates the content-generation pipeline: retrieval,
// prompt composition, LLM invocation, analytics, and history persistence.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"contentbrain/internal/util"
	"contentbrain/pkg/ai"
	"contentbrain/pkg/analytics"
	"contentbrain/pkg/domain"
	"contentbrain/pkg/storage"
	"contentbrain/pkg/store"
	"contentbrain/pkg/vector"
)

const (
	// historyPageSize caps history listings.
	historyPageSize = 20
	// defaultTopK chunks are retrieved as generation context.
	defaultTopK = 4
	// imagesPerPage photos are returned per suggestion request.
	imagesPerPage = 4
)

// PhotoSearcher is the stock-photo lookup used by image suggestions.
type PhotoSearcher interface {
	Search(ctx context.Context, query string, page, perPage int) ([]string, error)
}

// Config wires the application's dependencies. Store, Vectors and Generator
// are required; Photos and Objects are optional and their absence degrades
// the related features instead of failing startup.
type Config struct {
	Store     store.Store
	Vectors   vector.Store
	Generator ai.TextGenerator
	Photos    PhotoSearcher
	Objects   storage.ObjectStore

	RetrievalTopK int
	ChunkSize     int
	ChunkOverlap  int
}

// App is the core application service.
type App struct {
	store     store.Store
	vectors   vector.Store
	generator ai.TextGenerator
	photos    PhotoSearcher
	objects   storage.ObjectStore

	topK         int
	chunkSize    int
	chunkOverlap int
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("history store required")
	}
	if cfg.Vectors == nil {
		return nil, fmt.Errorf("vector store required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("text generator required")
	}
	topK := cfg.RetrievalTopK
	if topK <= 0 {
		topK = defaultTopK
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	chunkOverlap := cfg.ChunkOverlap
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = defaultChunkOverlap
	}
	return &App{
		store:        cfg.Store,
		vectors:      cfg.Vectors,
		generator:    cfg.Generator,
		photos:       cfg.Photos,
		objects:      cfg.Objects,
		topK:         topK,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

// GenerateRequest is one content-generation request.
type GenerateRequest struct {
	Topic          string `json:"topic"`
	ContentType    string `json:"contentType"`
	Tone           string `json:"tone"`
	TargetAudience string `json:"targetAudience"`
	Language       string `json:"language"`
}

// GenerateResponse echoes the request essentials with the generated answer
// and its analytics.
type GenerateResponse struct {
	Answer      string                   `json:"answer"`
	Topic       string                   `json:"topic"`
	ContentType string                   `json:"contentType"`
	Analytics   domain.AnalyticsSnapshot `json:"analytics"`
}

// Generate runs the full pipeline: retrieve context from the caller's
// namespace, compose the prompt, invoke the model, compute analytics, and
// persist the record. Retrieval failures degrade to empty context; model
// failures fail the request; persistence failures are logged only.
func (a *App) Generate(ctx context.Context, identity domain.Identity, req GenerateRequest) (GenerateResponse, error) {
	logger := util.LoggerFromContext(ctx)
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return GenerateResponse{}, fmt.Errorf("%w: topic is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.ContentType) == "" {
		req.ContentType = "article"
	}

	contextText := ""
	chunks, err := a.vectors.Retrieve(ctx, req.Topic, identity.UserID, a.topK)
	if err != nil {
		// No context is still a serviceable request.
		logger.Warn("context retrieval failed, generating without context", "err", err)
	} else {
		parts := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			parts = append(parts, chunk.Content)
		}
		contextText = strings.Join(parts, "\n\n")
	}

	systemPrompt, userPrompt := composePrompt(req, contextText)
	answer, err := a.generator.GenerateText(ctx, systemPrompt, userPrompt)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return GenerateResponse{}, fmt.Errorf("%w: model returned no content", ErrGenerationFailed)
	}

	snapshot := analytics.Analyze(answer)

	record := domain.GenerationRecord{
		ID:          uuid.NewString(),
		OwnerID:     identity.UserID,
		Topic:       req.Topic,
		ContentType: req.ContentType,
		Tone:        req.Tone,
		Language:    req.Language,
		Answer:      answer,
		CreatedAt:   time.Now().UTC(),
		Analytics:   &snapshot,
	}
	if err := a.store.SaveGeneration(record); err != nil {
		// The content exists; losing the history row is not worth a 500.
		logger.Error("persist generation failed", "err", err, "record_id", record.ID)
	}

	return GenerateResponse{
		Answer:      answer,
		Topic:       req.Topic,
		ContentType: req.ContentType,
		Analytics:   snapshot,
	}, nil
}

// RegenerateRequest asks for a rewrite of a selected text fragment.
type RegenerateRequest struct {
	SelectedText string `json:"selectedText"`
	Instruction  string `json:"instruction"`
	Context      string `json:"context,omitempty"`
}

// Regenerate rewrites the selection per the instruction. No retrieval, no
// persistence.
func (a *App) Regenerate(ctx context.Context, req RegenerateRequest) (string, error) {
	if strings.TrimSpace(req.SelectedText) == "" {
		return "", fmt.Errorf("%w: selectedText is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return "", fmt.Errorf("%w: instruction is required", ErrInvalidInput)
	}
	systemPrompt, userPrompt := composeEditorPrompt(req)
	updated, err := a.generator.GenerateText(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return strings.TrimSpace(updated), nil
}

// SuggestImages returns stock-photo URLs for the topic. Every failure mode
// degrades to an empty list; this operation never reports an error.
func (a *App) SuggestImages(ctx context.Context, topic string, page int) []string {
	logger := util.LoggerFromContext(ctx)
	topic = strings.TrimSpace(topic)
	if topic == "" || a.photos == nil {
		return []string{}
	}
	query := a.refineImageQuery(ctx, topic)
	urls, err := a.photos.Search(ctx, query, page, imagesPerPage)
	if err != nil {
		logger.Warn("image search failed", "err", err, "query", query)
		return []string{}
	}
	if urls == nil {
		urls = []string{}
	}
	return urls
}

// refineImageQuery distills the topic into a short visual phrase via the
// model, falling back to the raw topic on any failure.
func (a *App) refineImageQuery(ctx context.Context, topic string) string {
	systemPrompt, userPrompt := composeImageQueryPrompt(topic)
	refined, err := a.generator.GenerateText(ctx, systemPrompt, userPrompt)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("image query refinement failed, using raw topic", "err", err)
		return topic
	}
	refined = strings.Trim(strings.TrimSpace(refined), `"'`)
	if refined == "" {
		return topic
	}
	return refined
}
