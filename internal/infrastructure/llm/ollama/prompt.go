package ollama

import (
	"fmt"
	"strings"

	"github.com/akozyrev/factstack/internal/core/domain"
)

func buildAnswerPrompt(question string, evidence domain.AssembledContext) string {
	return fmt.Sprintf(`You are a careful assistant answering strictly from the evidence below.
Cite evidence with the bracket markers exactly as given, e.g. [C1].
If the evidence does not contain the answer, set "is_refusal" to true and explain what is missing.

Return a strict JSON object with keys:
text (string, the answer with [Cn] citations),
confidence (number from 0 to 1),
missing_info (array of strings, may be empty),
reasoning (string, one or two sentences),
is_refusal (boolean).
No markdown, no extra keys.

Question:
%s

Evidence:
%s
`, question, evidence.Text)
}

func buildRewritePrompt(question string) string {
	return fmt.Sprintf(`Rewrite the user question into a short keyword-rich search query.
Keep the original language. Return only the query text, nothing else.

Question:
%s
`, question)
}

func buildTranslatePrompt(query string, lang domain.QueryLanguage) string {
	return fmt.Sprintf(`Translate the following %s search query into English.
Keep technical terms, file names and identifiers unchanged.
Return only the translated query, nothing else.

Query:
%s
`, string(lang), query)
}

func buildRerankPrompt(question string, items []domain.EvidenceItem) string {
	var sb strings.Builder
	for i, it := range items {
		text := it.Text
		if len(text) > 500 {
			text = text[:500]
		}
		sb.WriteString(fmt.Sprintf("[%d] source=%s\n%s\n\n", i, it.SourcePath, text))
	}

	return fmt.Sprintf(`Score each passage below for relevance to the question.
Return a strict JSON object: {"scores": [{"index": <int>, "score": <0..1>}, ...]}.
Include every passage exactly once. No markdown, no extra keys.

Question:
%s

Passages:
%s`, question, sb.String())
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
