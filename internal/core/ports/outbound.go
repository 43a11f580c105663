package ports

import (
	"context"
	"io"

	"github.com/akozyrev/factstack/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveIndexed(ctx context.Context, id, title string, chunkCount int) error
}

// AskRunStore persists completed ask runs for refusal-decision audit.
type AskRunStore interface {
	SaveRun(ctx context.Context, run *domain.AskRun) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}

// VectorStore indexes chunks and serves both retrieval channels: Search runs
// nearest-neighbor search over dense vectors and reports semantic scores,
// SearchLexical runs keyword relevance search and reports lexical scores.
type VectorStore interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.EvidenceItem, error)
	SearchLexical(ctx context.Context, queryText string, limit int) ([]domain.EvidenceItem, error)
}

// QueryTranslator rewrites a query into retrieval-friendly English.
type QueryTranslator interface {
	TranslateQuery(ctx context.Context, query string, lang domain.QueryLanguage) (string, error)
}

// AnswerModel is the interchangeable answer-generation backend.
type AnswerModel interface {
	GenerateAnswer(ctx context.Context, question string, evidence domain.AssembledContext) (domain.AnswerResponse, error)
	RewriteQuery(ctx context.Context, question string) (string, error)
	RerankEvidence(ctx context.Context, question string, items []domain.EvidenceItem, topK int) ([]domain.EvidenceItem, error)
}

// RunObserver receives pipeline trace steps. Implementations must be safe for
// concurrent use; the core never retains steps itself.
type RunObserver interface {
	ObserveStep(step domain.TraceStep)
}
