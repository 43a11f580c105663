package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/akozyrev/factstack/internal/core/domain"
	"github.com/akozyrev/factstack/internal/core/ports"
)

var supportedExtensions = map[string]struct{}{
	".txt":  {},
	".md":   {},
	".pdf":  {},
	".xlsx": {},
}

// IngestUseCase accepts an uploaded document, stores the raw bytes, records
// the document row and hands processing off to the worker via the queue.
type IngestUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	log     *slog.Logger
}

func NewIngestUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	log *slog.Logger,
) *IngestUseCase {
	return &IngestUseCase{repo: repo, storage: storage, queue: queue, log: log}
}

func (uc *IngestUseCase) Upload(ctx context.Context, filename, mimeType string, data io.Reader) (*domain.Document, error) {
	const op = "upload document"

	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("filename is empty"))
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := supportedExtensions[ext]; !ok {
		return nil, domain.WrapError(domain.ErrNotSupported, op, fmt.Errorf("file extension %q", ext))
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:        uuid.NewString(),
		Filename:  filename,
		MimeType:  mimeType,
		Status:    domain.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	doc.StoragePath = doc.ID + ext

	if err := uc.storage.Save(ctx, doc.StoragePath, data); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, op, fmt.Errorf("store file: %w", err))
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, op, fmt.Errorf("create record: %w", err))
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		// The row exists and the file is stored; processing can be replayed
		// manually, so the upload itself still succeeds.
		uc.log.Error("ingest_publish_failed", "document_id", doc.ID, "error", err)
	} else {
		uc.log.Info("document_uploaded", "document_id", doc.ID, "filename", filename)
	}

	return doc, nil
}

func (uc *IngestUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get document", fmt.Errorf("id is empty"))
	}
	return uc.repo.GetByID(ctx, id)
}
