package trace

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/akozyrev/factstack/internal/core/domain"
	"github.com/akozyrev/factstack/internal/core/ports"
)

// RenderMarkdown formats a completed ask run as a human-readable artifact.
func RenderMarkdown(result *domain.AskResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Question\n%s\n\n", result.Question)
	if result.RewrittenQuery != "" {
		fmt.Fprintf(&b, "Rewritten query: %s\n\n", result.RewrittenQuery)
	}
	fmt.Fprintf(&b, "# Answer\n%s\n\n", result.Answer.Text)
	fmt.Fprintf(&b, "## Confidence\n%.2f%%\n\n", result.Answer.Confidence*100)

	b.WriteString("## Citations\n")
	for i, cit := range result.Answer.Citations {
		fmt.Fprintf(&b, "\n### [C%d] %s\n", i+1, cit.Source)
		fmt.Fprintf(&b, "- Chunk ID: %s\n", cit.ChunkID)
		fmt.Fprintf(&b, "- Score: %.3f\n", cit.Score)
		fmt.Fprintf(&b, "- Text: %s\n", excerpt(cit.Text, 200))
	}

	if len(result.Answer.MissingInfo) > 0 {
		b.WriteString("\n## Missing Information\n")
		for _, info := range result.Answer.MissingInfo {
			fmt.Fprintf(&b, "- %s\n", info)
		}
	}

	if result.Answer.IsRefusal {
		fmt.Fprintf(&b, "\n## Refusal Reason\n%s\n", result.Answer.RefusalReason)
	}

	b.WriteString("\n## Metadata\n")
	fmt.Fprintf(&b, "- Run ID: %s\n", result.RunID)
	fmt.Fprintf(&b, "- Language: %s\n", result.Retrieval.Language)
	fmt.Fprintf(&b, "- Channels: %d\n", result.Retrieval.ChannelsUsed)
	fmt.Fprintf(&b, "- Corroborated hits: %d\n", result.Retrieval.MultiChannelHits)

	return b.String()
}

func excerpt(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// AnswerArchiver decorates the ask service, saving each completed run as a
// markdown artifact in object storage under runs/<run_id>.md. Archiving
// failures are logged, never surfaced to the caller.
type AnswerArchiver struct {
	inner   ports.QuestionService
	storage ports.ObjectStorage
	log     *slog.Logger
}

func NewAnswerArchiver(inner ports.QuestionService, storage ports.ObjectStorage, log *slog.Logger) *AnswerArchiver {
	return &AnswerArchiver{inner: inner, storage: storage, log: log}
}

func (a *AnswerArchiver) Ask(ctx context.Context, question string, topK int) (*domain.AskResult, error) {
	result, err := a.inner.Ask(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	key := "runs/" + result.RunID + ".md"
	if err := a.storage.Save(ctx, key, strings.NewReader(RenderMarkdown(result))); err != nil {
		a.log.Warn("answer_artifact_failed", "run_id", result.RunID, "error", err)
	}
	return result, nil
}
