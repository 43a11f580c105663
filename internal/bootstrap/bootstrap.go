package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/akozyrev/factstack/internal/config"
	"github.com/akozyrev/factstack/internal/core/ports"
	"github.com/akozyrev/factstack/internal/core/usecase"
	"github.com/akozyrev/factstack/internal/infrastructure/chunking"
	"github.com/akozyrev/factstack/internal/infrastructure/extractor"
	"github.com/akozyrev/factstack/internal/infrastructure/extractor/pdfdoc"
	"github.com/akozyrev/factstack/internal/infrastructure/extractor/plaintext"
	"github.com/akozyrev/factstack/internal/infrastructure/extractor/spreadsheet"
	"github.com/akozyrev/factstack/internal/infrastructure/llm/offline"
	"github.com/akozyrev/factstack/internal/infrastructure/llm/ollama"
	"github.com/akozyrev/factstack/internal/infrastructure/queue/nats"
	"github.com/akozyrev/factstack/internal/infrastructure/repository/postgres"
	"github.com/akozyrev/factstack/internal/infrastructure/resilience"
	"github.com/akozyrev/factstack/internal/infrastructure/storage/localfs"
	"github.com/akozyrev/factstack/internal/infrastructure/translate"
	"github.com/akozyrev/factstack/internal/infrastructure/vector/memstore"
	"github.com/akozyrev/factstack/internal/infrastructure/vector/qdrant"
	"github.com/akozyrev/factstack/internal/observability/logging"
	"github.com/akozyrev/factstack/internal/observability/trace"
)

type App struct {
	Config config.Config
	Log    *slog.Logger

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	Runs      ports.RunAuditLog
	AskUC     ports.QuestionService
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	log := logging.NewJSONLogger(service, cfg.LogLevel)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	askRuns := postgres.NewAskRunRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	var (
		model      ports.AnswerModel
		embedder   ports.Embedder
		translator ports.QueryTranslator
	)
	switch cfg.Backend {
	case "offline":
		model = offline.NewModel()
		embedder = offline.NewEmbedder(cfg.OfflineEmbedDim)
	default:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
		model = ollama.NewModel(client)
		embedder = ollama.NewEmbedder(client)
		translator = ollama.NewTranslator(client)
	}

	dictionary, err := translate.NewDictionary()
	if err != nil {
		return nil, fmt.Errorf("load translation dictionary: %w", err)
	}

	var store ports.VectorStore
	switch cfg.VectorBackend {
	case "memory":
		store = memstore.New()
	default:
		store = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	}
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	textPlain := plaintext.NewExtractor(storage)
	docExtractor := extractor.NewComposite(map[string]ports.TextExtractor{
		".txt":  textPlain,
		".md":   textPlain,
		".pdf":  pdfdoc.NewExtractor(storage),
		".xlsx": spreadsheet.NewExtractor(storage),
	})

	retriever := usecase.NewDualRetriever(embedder, store, translator, dictionary,
		cfg.VectorWeight, cfg.LexicalWeight)
	refusal := usecase.NewRefusalChecker(usecase.RefusalConfig{
		MinScoreThreshold:    cfg.MinScoreThreshold,
		HighQualityThreshold: cfg.HighQualityThreshold,
		TranslationLeniency:  cfg.TranslationLeniency,
	})
	assembler := usecase.NewContextAssembler(cfg.MaxContextTokens, cfg.MaxContextItems)

	var observer ports.RunObserver = trace.NewSlogObserver(log)
	var traceFile *os.File
	if cfg.TraceArtifactPath != "" {
		traceFile, err = os.OpenFile(cfg.TraceArtifactPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace artifact: %w", err)
		}
		observer = trace.Multi{observer, trace.NewJSONLObserver(traceFile)}
	}

	var askUC ports.QuestionService = usecase.NewAskUseCase(
		retriever, refusal, assembler, model, askRuns, observer, log,
		usecase.AskConfig{
			TopK:               cfg.AskTopK,
			RerankTopK:         cfg.AskRerankTopK,
			RewriteEnabled:     cfg.RewriteEnabled,
			TranslationEnabled: cfg.TranslationEnabled,
		})
	if cfg.TraceArtifactPath != "" {
		askUC = trace.NewAnswerArchiver(askUC, storage, log)
	}
	ingestUC := usecase.NewIngestUseCase(repo, storage, queue, log)
	processUC := usecase.NewProcessUseCase(repo, docExtractor, chunker, embedder, store, log)

	return &App{
		Config: cfg,
		Log:    log,
		Queue:  queue,
		Repo:   repo,
		Runs:   askRuns,

		AskUC:     askUC,
		IngestUC:  ingestUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
			if traceFile != nil {
				_ = traceFile.Close()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
