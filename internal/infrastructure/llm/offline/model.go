package offline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/akozyrev/factstack/internal/core/domain"
)

// Model is the deterministic answer backend used when no model server is
// configured: template answers with positional citations, stop-word query
// rewriting and keyword-overlap reranking. It lets the whole pipeline run in
// tests and air-gapped setups.
type Model struct{}

func NewModel() *Model { return &Model{} }

var rewriteStopWords = map[string]struct{}{
	"what": {}, "how": {}, "why": {}, "when": {}, "where": {}, "who": {}, "which": {},
	"is": {}, "are": {}, "do": {}, "does": {}, "can": {}, "could": {}, "would": {},
	"the": {}, "a": {}, "an": {}, "to": {}, "for": {}, "of": {}, "in": {}, "on": {}, "with": {},
}

func (m *Model) GenerateAnswer(_ context.Context, question string, evidence domain.AssembledContext) (domain.AnswerResponse, error) {
	chunks := evidence.Used
	if len(chunks) == 0 {
		return domain.AnswerResponse{
			Text:          "I cannot answer this question as no relevant evidence was found.",
			Confidence:    0,
			MissingInfo:   []string{"No relevant documents found for this query"},
			Reasoning:     "No evidence chunks were supplied for answer generation.",
			IsRefusal:     true,
			RefusalReason: "No evidence available",
		}, nil
	}

	var maxScore, sum float64
	for _, c := range chunks {
		sum += c.FinalScore
		if c.FinalScore > maxScore {
			maxScore = c.FinalScore
		}
	}
	avgScore := sum / float64(len(chunks))

	citations := make([]domain.Citation, 0, len(chunks))
	var parts []string
	for i, c := range chunks {
		snippet := c.Text
		if len(snippet) > 200 {
			snippet = snippet[:200] + "..."
		}
		citations = append(citations, domain.Citation{
			ChunkID: c.ChunkID,
			Source:  c.SourcePath,
			Text:    snippet,
			Score:   c.FinalScore,
		})
		if sentence := firstSentence(c.Text); sentence != "" {
			parts = append(parts, fmt.Sprintf("According to %s, %s [C%d].", c.SourcePath, sentence, i+1))
		}
	}

	if maxScore < 0.2 && avgScore < 0.1 {
		return domain.AnswerResponse{
			Text: fmt.Sprintf(
				"I cannot confidently answer %q based on the available evidence. The retrieved documents have low relevance scores (max: %.2f).",
				question, maxScore),
			Citations:     citations,
			Confidence:    maxScore * 0.5,
			MissingInfo:   []string{"More specific documentation on this topic", "Higher quality matches in the knowledge base"},
			Reasoning:     fmt.Sprintf("The maximum relevance score (%.2f) is below the confidence threshold.", maxScore),
			IsRefusal:     true,
			RefusalReason: "Insufficient evidence confidence",
		}, nil
	}

	body := "See the cited sources for details."
	if len(parts) > 0 {
		body = strings.Join(parts, "\n")
	}
	answer := fmt.Sprintf("Based on the retrieved evidence, here is what I found regarding %q:\n\n%s", question, body)

	var missing []string
	if kws := missingKeywords(question, chunks); len(kws) > 0 {
		missing = append(missing, "More information about: "+strings.Join(kws, ", "))
	}
	if len(chunks) < 3 {
		missing = append(missing, "Additional supporting documents would increase confidence")
	}

	return domain.AnswerResponse{
		Text:        answer,
		Citations:   citations,
		Confidence:  math.Min(0.95, maxScore*0.8+avgScore*0.2),
		MissingInfo: missing,
		Reasoning:   fmt.Sprintf("Answer synthesized from %d relevant chunks with average score %.2f", len(chunks), avgScore),
	}, nil
}

func (m *Model) RewriteQuery(_ context.Context, question string) (string, error) {
	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(question)) {
		if _, stop := rewriteStopWords[w]; stop || len(w) <= 2 {
			continue
		}
		keywords = append(keywords, w)
	}
	rewritten := strings.Join(keywords, " ")
	if len(rewritten) <= 3 {
		return question, nil
	}
	return rewritten, nil
}

func (m *Model) RerankEvidence(_ context.Context, question string, items []domain.EvidenceItem, topK int) ([]domain.EvidenceItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if topK <= 0 || topK > len(items) {
		topK = len(items)
	}

	questionLower := strings.ToLower(question)
	questionWords := fieldSet(questionLower)

	out := make([]domain.EvidenceItem, len(items))
	copy(out, items)
	for i := range out {
		chunkLower := strings.ToLower(out[i].Text)
		chunkWords := fieldSet(chunkLower)

		overlap := 0
		for w := range questionWords {
			if _, ok := chunkWords[w]; ok {
				overlap++
			}
		}
		keywordScore := float64(overlap) / math.Max(float64(len(questionWords)), 1)

		exactBonus := 0.0
		if strings.Contains(chunkLower, questionLower) {
			exactBonus = 0.3
		}

		out[i].RerankScore = out[i].FinalScore*0.4 + keywordScore*0.4 + exactBonus
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RerankScore > out[j].RerankScore
	})
	return out[:topK], nil
}

// Embedder produces deterministic hash-based pseudo-vectors. They carry no
// semantics; lexical retrieval does the heavy lifting in offline mode.
type Embedder struct {
	dimension int
}

func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.pseudoVector(text)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.pseudoVector(text), nil
}

func (e *Embedder) pseudoVector(text string) []float32 {
	vec := make([]float32, 0, e.dimension)
	for block := 0; len(vec) < e.dimension; block++ {
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", text, block)))
		for _, b := range sum {
			if len(vec) == e.dimension {
				break
			}
			vec = append(vec, float32(b)/255.0-0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

func firstSentence(text string) string {
	sentence, _, _ := strings.Cut(text, ".")
	return strings.TrimSpace(sentence)
}

func fieldSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

func missingKeywords(question string, chunks []domain.EvidenceItem) []string {
	var allText strings.Builder
	for _, c := range chunks {
		allText.WriteString(strings.ToLower(c.Text))
		allText.WriteByte(' ')
	}
	haystack := allText.String()

	var missing []string
	for _, w := range strings.Fields(strings.ToLower(question)) {
		if len(w) <= 4 {
			continue
		}
		if !strings.Contains(haystack, w) {
			missing = append(missing, w)
		}
		if len(missing) == 3 {
			break
		}
	}
	return missing
}
