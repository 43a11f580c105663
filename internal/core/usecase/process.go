package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/akozyrev/factstack/internal/core/domain"
	"github.com/akozyrev/factstack/internal/core/ports"
)

// ProcessUseCase turns an uploaded document into indexed evidence: extract
// text, derive a title, split into chunks, embed and write to the vector
// store. It runs inside the worker, driven by queue events.
type ProcessUseCase struct {
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	store     ports.VectorStore
	log       *slog.Logger
}

func NewProcessUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	store ports.VectorStore,
	log *slog.Logger,
) *ProcessUseCase {
	return &ProcessUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		log:       log,
	}
}

func (uc *ProcessUseCase) ProcessByID(ctx context.Context, documentID string) error {
	const op = "process document"

	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return domain.WrapError(domain.ErrDocumentNotFound, op, err)
	}

	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusProcessing, ""); err != nil {
		return domain.WrapError(domain.ErrTemporary, op, fmt.Errorf("mark processing: %w", err))
	}

	if err := uc.process(ctx, doc); err != nil {
		uc.log.Error("document_processing_failed", "document_id", doc.ID, "error", err)
		if stErr := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusFailed, err.Error()); stErr != nil {
			uc.log.Error("document_status_update_failed", "document_id", doc.ID, "error", stErr)
		}
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return nil
}

func (uc *ProcessUseCase) process(ctx context.Context, doc *domain.Document) error {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("document %s contains no extractable text", doc.ID)
	}

	title := deriveTitle(text, doc.Filename)

	parts := uc.chunker.Split(text)
	if len(parts) == 0 {
		return fmt.Errorf("document %s produced no chunks", doc.ID)
	}

	chunks := make([]domain.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = domain.Chunk{
			ID:    chunkID(doc.StoragePath, i, p),
			Index: i,
			Text:  p,
		}
	}

	vectors, err := uc.embedder.Embed(ctx, parts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	if err := uc.store.IndexChunks(ctx, doc, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}

	if err := uc.repo.SaveIndexed(ctx, doc.ID, title, len(chunks)); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}

	uc.log.Info("document_processed", "document_id", doc.ID, "chunks", len(chunks), "title", title)
	return nil
}

// deriveTitle prefers the first markdown heading and falls back to the first
// non-empty line, then the filename.
func deriveTitle(text, filename string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "# "))
		}
		return truncateText(line, 120)
	}
	return filename
}

// chunkID is stable across reprocessing runs of the same content: path, chunk
// index and a short content hash.
func chunkID(sourcePath string, index int, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s#%d-%s", sourcePath, index, hex.EncodeToString(sum[:6]))
}
