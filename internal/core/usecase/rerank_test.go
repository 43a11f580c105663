package usecase

import (
	"testing"

	"github.com/akozyrev/factstack/internal/core/domain"
)

func TestHeuristicRerankPrefersTokenOverlap(t *testing.T) {
	items := []domain.EvidenceItem{
		{ChunkID: "c1", SourcePath: "docs/misc.md", Text: "unrelated content entirely", FinalScore: 0.50},
		{ChunkID: "c2", SourcePath: "docs/retry.md", Text: "retry policy with exponential backoff", FinalScore: 0.45},
	}

	out := HeuristicRerank("how does the retry policy backoff work", items, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
	if out[0].ChunkID != "c2" {
		t.Fatalf("expected overlap-rich chunk first, got %s", out[0].ChunkID)
	}
	if out[0].RerankScore <= out[1].RerankScore {
		t.Fatalf("rerank scores not descending: %v then %v", out[0].RerankScore, out[1].RerankScore)
	}
}

func TestHeuristicRerankTruncatesToTopK(t *testing.T) {
	items := []domain.EvidenceItem{
		{ChunkID: "c1", Text: "a", FinalScore: 0.9},
		{ChunkID: "c2", Text: "b", FinalScore: 0.8},
		{ChunkID: "c3", Text: "c", FinalScore: 0.7},
	}

	out := HeuristicRerank("question", items, 2)
	if len(out) != 2 {
		t.Fatalf("expected topK=2, got %d", len(out))
	}
}

func TestHeuristicRerankEmptyInput(t *testing.T) {
	if out := HeuristicRerank("question", nil, 5); out != nil {
		t.Fatalf("expected nil for empty input, got %v", out)
	}
}

func TestHeuristicRerankDoesNotMutateInput(t *testing.T) {
	items := []domain.EvidenceItem{
		{ChunkID: "c1", Text: "retry policy", FinalScore: 0.4},
		{ChunkID: "c2", Text: "unrelated", FinalScore: 0.9},
	}

	HeuristicRerank("retry policy", items, 2)
	if items[0].ChunkID != "c1" || items[1].ChunkID != "c2" {
		t.Fatalf("input slice order changed: %s, %s", items[0].ChunkID, items[1].ChunkID)
	}
	if items[0].RerankScore != 0 || items[1].RerankScore != 0 {
		t.Fatalf("input items must keep zero rerank scores")
	}
}
