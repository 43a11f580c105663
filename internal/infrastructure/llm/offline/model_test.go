package offline

import (
	"context"
	"strings"
	"testing"

	"github.com/akozyrev/factstack/internal/core/domain"
)

func TestGenerateAnswerCitesEvidence(t *testing.T) {
	model := NewModel()
	evidence := domain.AssembledContext{
		Used: []domain.EvidenceItem{
			{ChunkID: "c1", SourcePath: "docs/retries.md", Text: "Retries use exponential backoff. More detail follows.", FinalScore: 0.8},
			{ChunkID: "c2", SourcePath: "docs/limits.md", Text: "The cap is five seconds.", FinalScore: 0.6},
		},
	}

	answer, err := model.GenerateAnswer(context.Background(), "how do retries back off?", evidence)
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if answer.IsRefusal {
		t.Fatalf("unexpected refusal: %q", answer.RefusalReason)
	}
	if !strings.Contains(answer.Text, "[C1]") || !strings.Contains(answer.Text, "[C2]") {
		t.Fatalf("answer must carry positional citations:\n%s", answer.Text)
	}
	if len(answer.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(answer.Citations))
	}
	if answer.Confidence <= 0 || answer.Confidence > 0.95 {
		t.Fatalf("confidence out of range: %v", answer.Confidence)
	}
}

func TestGenerateAnswerRefusesOnWeakScores(t *testing.T) {
	model := NewModel()
	evidence := domain.AssembledContext{
		Used: []domain.EvidenceItem{
			{ChunkID: "c1", SourcePath: "a.md", Text: "weak match", FinalScore: 0.05},
		},
	}

	answer, err := model.GenerateAnswer(context.Background(), "unrelated question", evidence)
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if !answer.IsRefusal {
		t.Fatalf("expected refusal for weak evidence, got %+v", answer)
	}
}

func TestGenerateAnswerNoEvidence(t *testing.T) {
	model := NewModel()
	answer, err := model.GenerateAnswer(context.Background(), "q", domain.AssembledContext{})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if !answer.IsRefusal || answer.Confidence != 0 {
		t.Fatalf("expected zero-confidence refusal, got %+v", answer)
	}
}

func TestRewriteQueryDropsStopWords(t *testing.T) {
	model := NewModel()
	out, err := model.RewriteQuery(context.Background(), "how does the retry policy work")
	if err != nil {
		t.Fatalf("RewriteQuery() error = %v", err)
	}
	if strings.Contains(out, "how") || strings.Contains(out, "the") {
		t.Fatalf("stop words not removed: %q", out)
	}
	if !strings.Contains(out, "retry") {
		t.Fatalf("content words must survive: %q", out)
	}
}

func TestRewriteQueryKeepsShortQuestions(t *testing.T) {
	model := NewModel()
	out, err := model.RewriteQuery(context.Background(), "why?")
	if err != nil {
		t.Fatalf("RewriteQuery() error = %v", err)
	}
	if out != "why?" {
		t.Fatalf("short questions must pass through, got %q", out)
	}
}

func TestRerankEvidenceExactMatchBonus(t *testing.T) {
	model := NewModel()
	items := []domain.EvidenceItem{
		{ChunkID: "c1", Text: "completely different content", FinalScore: 0.5},
		{ChunkID: "c2", Text: "the retry policy is described here", FinalScore: 0.4},
	}

	out, err := model.RerankEvidence(context.Background(), "retry policy", items, 2)
	if err != nil {
		t.Fatalf("RerankEvidence() error = %v", err)
	}
	if out[0].ChunkID != "c2" {
		t.Fatalf("expected exact-match chunk first, got %s", out[0].ChunkID)
	}
}

func TestEmbedderDeterministicAndNormalized(t *testing.T) {
	e := NewEmbedder(64)
	v1, err := e.EmbedQuery(context.Background(), "retry policy")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	v2, _ := e.EmbedQuery(context.Background(), "retry policy")
	if len(v1) != 64 {
		t.Fatalf("expected dimension 64, got %d", len(v1))
	}
	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("embedding not deterministic at %d", i)
		}
	}

	var norm float64
	for _, v := range v1 {
		norm += float64(v) * float64(v)
	}
	if norm < 0.99 || norm > 1.01 {
		t.Fatalf("expected unit norm, got %v", norm)
	}
}
