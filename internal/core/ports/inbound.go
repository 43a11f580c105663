package ports

import (
	"context"
	"io"

	"github.com/akozyrev/factstack/internal/core/domain"
)

// QuestionService is the inbound contract for the full ask pipeline.
type QuestionService interface {
	Ask(ctx context.Context, question string, topK int) (*domain.AskResult, error)
}

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// RunAuditLog is the inbound read model over persisted ask runs, newest first.
type RunAuditLog interface {
	RecentRuns(ctx context.Context, limit int) ([]domain.AskRun, error)
}

// DocumentProcessor is the inbound contract for asynchronous document indexing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
