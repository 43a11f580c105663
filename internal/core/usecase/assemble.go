package usecase

import (
	"fmt"
	"strings"

	"github.com/akozyrev/factstack/internal/core/domain"
)

// charsPerToken is the rough tokenizer-free estimate used to keep the prompt
// within the model window without shipping a tokenizer.
const charsPerToken = 4

// ContextAssembler packs ranked evidence into a citation-addressable prompt
// section bounded by a token budget and an item cap.
type ContextAssembler struct {
	maxTokens int
	maxItems  int
}

func NewContextAssembler(maxTokens, maxItems int) *ContextAssembler {
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	if maxItems <= 0 {
		maxItems = 5
	}
	return &ContextAssembler{maxTokens: maxTokens, maxItems: maxItems}
}

// Assemble walks the ranking in order and emits "[Cn] Source: ..." blocks
// until either budget is hit. The first item is always included in full, even
// when it alone exceeds the budget, so a non-empty ranking never produces an
// empty or partially cut context.
func (a *ContextAssembler) Assemble(items []domain.EvidenceItem) domain.AssembledContext {
	if len(items) == 0 {
		return domain.AssembledContext{}
	}

	budget := a.maxTokens * charsPerToken
	var sb strings.Builder
	used := make([]domain.EvidenceItem, 0, a.maxItems)

	for _, it := range items {
		if len(used) >= a.maxItems {
			break
		}
		block := fmt.Sprintf("[C%d] Source: %s\n%s", len(used)+1, it.SourcePath, it.Text)
		sep := ""
		if sb.Len() > 0 {
			sep = "\n\n---\n\n"
		}

		if sb.Len()+len(sep)+len(block) > budget {
			if len(used) == 0 {
				sb.WriteString(block)
				used = append(used, it)
			}
			break
		}
		sb.WriteString(sep)
		sb.WriteString(block)
		used = append(used, it)
	}

	text := sb.String()
	return domain.AssembledContext{
		Text:          text,
		Used:          used,
		TokenEstimate: len(text) / charsPerToken,
	}
}
