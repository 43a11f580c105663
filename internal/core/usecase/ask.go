package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/akozyrev/factstack/internal/core/domain"
	"github.com/akozyrev/factstack/internal/core/ports"
)

// AskConfig carries the pipeline knobs of one AskUseCase instance.
type AskConfig struct {
	TopK               int
	RerankTopK         int
	RewriteEnabled     bool
	TranslationEnabled bool
}

// AskUseCase runs the full question pipeline: rewrite, dual-channel retrieval,
// pre-answer refusal check, rerank, context assembly, answer generation and
// the post-answer audit. Every run is persisted for later inspection of the
// refusal decision.
type AskUseCase struct {
	retriever *DualRetriever
	refusal   *RefusalChecker
	assembler *ContextAssembler
	model     ports.AnswerModel
	runs      ports.AskRunStore
	observer  ports.RunObserver
	log       *slog.Logger
	cfg       AskConfig
}

func NewAskUseCase(
	retriever *DualRetriever,
	refusal *RefusalChecker,
	assembler *ContextAssembler,
	model ports.AnswerModel,
	runs ports.AskRunStore,
	observer ports.RunObserver,
	log *slog.Logger,
	cfg AskConfig,
) *AskUseCase {
	if cfg.TopK <= 0 {
		cfg.TopK = 8
	}
	if cfg.RerankTopK <= 0 {
		cfg.RerankTopK = 5
	}
	return &AskUseCase{
		retriever: retriever,
		refusal:   refusal,
		assembler: assembler,
		model:     model,
		runs:      runs,
		observer:  observer,
		log:       log,
		cfg:       cfg,
	}
}

func (uc *AskUseCase) Ask(ctx context.Context, question string, topK int) (*domain.AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("question is empty"))
	}
	if topK <= 0 {
		topK = uc.cfg.TopK
	}

	runID := uuid.NewString()
	log := uc.log.With("run_id", runID)
	log.Info("ask_started", "question_len", len(question), "top_k", topK)

	query := question
	if uc.cfg.RewriteEnabled {
		start := time.Now()
		rewritten, err := uc.model.RewriteQuery(ctx, question)
		if err != nil {
			// A failed rewrite is never fatal; retrieval runs on the original.
			log.Warn("query_rewrite_failed", "error", err)
		} else if r := strings.TrimSpace(rewritten); r != "" && r != question {
			query = r
		}
		uc.observe(runID, "rewrite_query", question, query, start)
	}

	start := time.Now()
	retrieval, err := uc.retriever.Retrieve(ctx, query, topK, uc.cfg.TranslationEnabled)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "ask", fmt.Errorf("retrieve evidence: %w", err))
	}
	uc.observe(runID, "retrieve", query,
		fmt.Sprintf("channels=%d candidates=%d", retrieval.Stats.ChannelsUsed, retrieval.Stats.TotalCandidates), start)

	start = time.Now()
	preCheck := uc.refusal.CheckBeforeAnswer(retrieval.Fused.Items, &retrieval.Stats)
	uc.observe(runID, "refusal_pre_check", "", preCheck.Reason, start)

	result := &domain.AskResult{
		RunID:     runID,
		Question:  question,
		Retrieval: retrieval.Stats,
		PreCheck:  preCheck,
	}
	if query != question {
		result.RewrittenQuery = query
	}

	if preCheck.Refuse {
		result.Answer = uc.refusal.BuildRefusalAnswer(preCheck, retrieval.Fused.Items)
		log.Info("ask_refused", "stage", "pre_answer", "reason", preCheck.Reason)
		uc.saveRun(ctx, result, retrieval, "pre_answer")
		return result, nil
	}

	start = time.Now()
	ranked := uc.rerank(ctx, question, retrieval.Fused.Items)
	uc.observe(runID, "rerank", "", fmt.Sprintf("kept=%d", len(ranked)), start)

	start = time.Now()
	assembled := uc.assembler.Assemble(ranked)
	result.Used = assembled.Used
	uc.observe(runID, "assemble_context", "",
		fmt.Sprintf("items=%d tokens=%d", len(assembled.Used), assembled.TokenEstimate), start)

	start = time.Now()
	answer, err := uc.model.GenerateAnswer(ctx, question, assembled)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "ask", fmt.Errorf("generate answer: %w", err))
	}
	uc.observe(runID, "generate_answer", "", fmt.Sprintf("confidence=%.2f", answer.Confidence), start)

	start = time.Now()
	postCheck := uc.refusal.CheckAfterAnswer(answer, assembled.Used)
	if postCheck.ConfidenceAdjustment != 0 {
		answer.Confidence = clamp01(answer.Confidence + postCheck.ConfidenceAdjustment)
		log.Info("answer_confidence_adjusted",
			"adjustment", postCheck.ConfidenceAdjustment, "reason", postCheck.Reason)
	}
	uc.observe(runID, "refusal_post_check", "", postCheck.Reason, start)

	result.Answer = answer
	result.PostCheck = &postCheck

	log.Info("ask_completed",
		"refused", answer.IsRefusal,
		"confidence", answer.Confidence,
		"evidence_used", len(assembled.Used))
	uc.saveRun(ctx, result, retrieval, "")
	return result, nil
}

// rerank prefers the model-backed reranker and falls back to the heuristic
// blend when the backend errors out.
func (uc *AskUseCase) rerank(ctx context.Context, question string, items []domain.EvidenceItem) []domain.EvidenceItem {
	ranked, err := uc.model.RerankEvidence(ctx, question, items, uc.cfg.RerankTopK)
	if err != nil {
		uc.log.Warn("model_rerank_failed", "error", err)
		return HeuristicRerank(question, items, uc.cfg.RerankTopK)
	}
	return ranked
}

func (uc *AskUseCase) observe(runID, name, input, output string, start time.Time) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveStep(domain.TraceStep{
		RunID:   runID,
		Name:    name,
		Input:   input,
		Output:  output,
		Elapsed: time.Since(start),
		At:      time.Now().UTC(),
	})
}

// saveRun persists the audit record. Persistence failure is logged, not
// surfaced: the user already has the answer at this point.
func (uc *AskUseCase) saveRun(ctx context.Context, result *domain.AskResult, retrieval *domain.DualRetrieval, refusalStage string) {
	if uc.runs == nil {
		return
	}

	indicators := result.PreCheck.Indicators
	reason := result.PreCheck.Reason
	if result.PostCheck != nil && result.PostCheck.ConfidenceAdjustment != 0 {
		reason = result.PostCheck.Reason
		if refusalStage == "" && result.Answer.IsRefusal {
			refusalStage = "post_answer"
		}
	}

	run := &domain.AskRun{
		RunID:           result.RunID,
		Question:        result.Question,
		Language:        retrieval.Language,
		TranslationUsed: retrieval.Stats.TranslationUsed,
		Refused:         result.Answer.IsRefusal,
		RefusalStage:    refusalStage,
		Reason:          reason,
		Confidence:      result.Answer.Confidence,
		EvidenceCount:   retrieval.Stats.TotalCandidates,
		Indicators:      indicators,
		CreatedAt:       time.Now().UTC(),
	}
	if err := uc.runs.SaveRun(ctx, run); err != nil {
		uc.log.Error("ask_run_save_failed", "run_id", result.RunID, "error", err)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
