package usecase

import (
	"sort"
	"strings"

	"github.com/akozyrev/factstack/internal/core/domain"
)

// HeuristicRerank reorders fused evidence without calling a model: a blend of
// the normalized fused score, question-token overlap with the chunk text, and
// a small bonus when a question token appears in the source path. It is the
// fallback applied when the model-backed reranker is unavailable or fails.
func HeuristicRerank(question string, items []domain.EvidenceItem, topK int) []domain.EvidenceItem {
	if len(items) == 0 {
		return nil
	}
	if topK <= 0 || topK > len(items) {
		topK = len(items)
	}

	maxFused := 0.0
	for _, it := range items {
		if it.FinalScore > maxFused {
			maxFused = it.FinalScore
		}
	}

	tokens := questionTokens(question)

	out := make([]domain.EvidenceItem, len(items))
	copy(out, items)
	for i := range out {
		normalized := 0.0
		if maxFused > 0 {
			normalized = out[i].FinalScore / maxFused
		}
		overlap := tokenOverlap(tokens, out[i].Text)
		pathHit := 0.0
		lowerPath := strings.ToLower(out[i].SourcePath)
		for t := range tokens {
			if strings.Contains(lowerPath, t) {
				pathHit = 1.0
				break
			}
		}
		out[i].RerankScore = 0.60*normalized + 0.30*overlap + 0.10*pathHit
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RerankScore > out[j].RerankScore
	})
	return out[:topK]
}

func questionTokens(question string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(question))
	tokens := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if len(f) > 2 {
			tokens[f] = struct{}{}
		}
	}
	return tokens
}

func tokenOverlap(tokens map[string]struct{}, text string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for t := range tokens {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}
