package app

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"contentbrain/internal/util"
	"contentbrain/pkg/domain"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// UploadResult reports a completed knowledge ingestion.
type UploadResult struct {
	Filename    string `json:"filename"`
	ChunksAdded int    `json:"chunksAdded"`
}

// UploadKnowledge extracts text from the uploaded document, chunks it, and
// indexes the chunks under the caller's namespace. The raw file is retained
// in object storage when one is configured (best-effort).
func (a *App) UploadKnowledge(ctx context.Context, identity domain.Identity, filename, contentType string, data []byte) (UploadResult, error) {
	logger := util.LoggerFromContext(ctx)
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	var text string
	switch mediaType {
	case "application/pdf":
		extracted, err := extractPDFText(data)
		if err != nil {
			return UploadResult{}, fmt.Errorf("%w: %v", ErrUnsupportedFileType, err)
		}
		text = extracted
	case "text/plain", "text/markdown":
		text = string(data)
	default:
		return UploadResult{}, fmt.Errorf("%w: %s (use PDF, plain text or markdown)", ErrUnsupportedFileType, contentType)
	}

	text = normalizeText(text)
	if text == "" {
		return UploadResult{}, fmt.Errorf("%w: no text could be extracted from %s", ErrEmptyDocument, filename)
	}

	chunks := chunkText(text, a.chunkSize, a.chunkOverlap)
	if len(chunks) == 0 {
		return UploadResult{}, fmt.Errorf("%w: no text could be extracted from %s", ErrEmptyDocument, filename)
	}

	if a.objects != nil {
		key := fmt.Sprintf("knowledge/%s/%s/%s", identity.UserID, uuid.NewString(), filename)
		if err := a.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
			// Retention is a convenience; ingestion does not depend on it.
			logger.Warn("raw document retention failed", "err", err, "key", key)
		}
	}

	if err := a.vectors.AddTexts(ctx, chunks, identity.UserID); err != nil {
		return UploadResult{}, fmt.Errorf("index knowledge: %w", err)
	}
	logger.Info("knowledge ingested", "filename", filename, "chunks", len(chunks), "namespace", identity.UserID)
	return UploadResult{Filename: filename, ChunksAdded: len(chunks)}, nil
}

// extractPDFText concatenates the plain text of every readable page.
// Unreadable pages are skipped rather than failing the whole document.
func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(text), " ")
}

// chunkText splits text into fixed-size rune chunks with overlap.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		part := strings.TrimSpace(string(runes[start:end]))
		if part != "" {
			chunks = append(chunks, part)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
