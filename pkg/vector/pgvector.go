package vector

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"contentbrain/pkg/ai"
	"contentbrain/pkg/domain"
)

const migrateLockID int64 = 52415241

const (
	defaultEmbeddingDim     = 768
	defaultEmbedConcurrency = 4
)

// ChunkRow is the persistence model for one embedded knowledge chunk.
type ChunkRow struct {
	ID        string           `gorm:"primaryKey"`
	Namespace string           `gorm:"not null;index"`
	Content   string           `gorm:"type:text;not null"`
	Metadata  datatypes.JSON   `gorm:"type:jsonb"`
	Embedding *pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt time.Time        `gorm:"not null;index"`
}

// TableName fixes the table name independent of struct naming.
func (ChunkRow) TableName() string { return "knowledge_chunks" }

// PgvectorStore implements Store on Postgres with the pgvector extension.
type PgvectorStore struct {
	db               *gorm.DB
	embedder         ai.Embedder
	embeddingDim     int
	embedConcurrency int
}

// PgvectorOptions tune the store.
type PgvectorOptions struct {
	EmbeddingDim     int
	EmbedConcurrency int
}

// NewPgvectorStore opens the database. Call EnsureReady before first use.
func NewPgvectorStore(dsn string, embedder ai.Embedder, opts PgvectorOptions) (*PgvectorStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database DSN required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	dim := opts.EmbeddingDim
	if dim <= 0 {
		dim = defaultEmbeddingDim
	}
	concurrency := opts.EmbedConcurrency
	if concurrency <= 0 {
		concurrency = defaultEmbedConcurrency
	}
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return &PgvectorStore{
		db:               db,
		embedder:         embedder,
		embeddingDim:     dim,
		embedConcurrency: concurrency,
	}, nil
}

// EnsureReady provisions the pgvector extension, the chunk table with the
// configured dimensionality, and a cosine ANN index. Safe to call on every
// startup; concurrent starters serialize on an advisory lock.
func (s *PgvectorStore) EnsureReady(ctx context.Context) error {
	return s.withMigrationLock(func(tx *gorm.DB) error {
		if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("create pgvector extension: %w", err)
		}
		if err := tx.AutoMigrate(&ChunkRow{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(fmt.Sprintf(`
			DO $$
			BEGIN
			IF EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'knowledge_chunks' AND column_name = 'embedding'
			) THEN
				ALTER TABLE knowledge_chunks ALTER COLUMN embedding TYPE vector(%d);
			END IF;
			END $$;
		`, s.embeddingDim)).Error; err != nil {
			return fmt.Errorf("alter embedding type: %w", err)
		}
		if err := tx.Exec(`
			CREATE INDEX IF NOT EXISTS knowledge_chunks_embedding_idx
			ON knowledge_chunks USING ivfflat (embedding vector_cosine_ops)
		`).Error; err != nil {
			return fmt.Errorf("create cosine index: %w", err)
		}
		return nil
	})
}

// AddTexts embeds the chunks with bounded concurrency and inserts them under
// the namespace. Embedding failures abort the whole batch.
func (s *PgvectorStore) AddTexts(ctx context.Context, texts []string, namespace string) error {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return fmt.Errorf("namespace required")
	}
	if len(texts) == 0 {
		return nil
	}
	embeddings := make([]*pgvector.Vector, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.embedConcurrency)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			values, err := s.embedder.EmbedText(gctx, text, ai.TaskRetrievalDocument)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			if len(values) != s.embeddingDim {
				return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(values), s.embeddingDim)
			}
			vec := pgvector.NewVector(values)
			embeddings[i] = &vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	now := time.Now().UTC()
	rows := make([]ChunkRow, 0, len(texts))
	for i, text := range texts {
		rows = append(rows, ChunkRow{
			ID:        uuid.NewString(),
			Namespace: namespace,
			Content:   text,
			Embedding: embeddings[i],
			CreatedAt: now,
		})
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	return nil
}

// Retrieve finds the k nearest chunks by cosine distance within the namespace.
func (s *PgvectorStore) Retrieve(ctx context.Context, query, namespace string, k int) ([]domain.KnowledgeChunk, error) {
	if k <= 0 {
		return []domain.KnowledgeChunk{}, nil
	}
	values, err := s.embedder.EmbedText(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vec := pgvector.NewVector(values)
	var rows []ChunkRow
	if err := s.db.WithContext(ctx).Model(&ChunkRow{}).
		Where("namespace = ? AND embedding IS NOT NULL", namespace).
		Order(clause.Expr{SQL: "embedding <=> ?", Vars: []any{vec}}).
		Limit(k).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	chunks := make([]domain.KnowledgeChunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, domain.KnowledgeChunk{
			ID:        row.ID,
			Namespace: row.Namespace,
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		})
	}
	return chunks, nil
}

func (s *PgvectorStore) withMigrationLock(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrateLockID).Error; err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		return fn(tx)
	})
}
