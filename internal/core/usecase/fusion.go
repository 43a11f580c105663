package usecase

import (
	"fmt"
	"math"
	"sort"

	"github.com/akozyrev/factstack/internal/core/domain"
)

// FuseHybrid merges one semantic-ranked and one lexical-ranked list into a
// single ranking keyed by chunk id. An item missing from one list keeps a zero
// score for that type; an item present in both takes each score type from its
// own source list. The final score is the weighted sum of the two score types.
// Ties keep input-encounter order (semantic list first), so identical inputs
// always produce identical output.
//
// Scores must be finite and non-negative; malformed inputs fail fast with
// domain.ErrInvalidInput instead of being clamped.
func FuseHybrid(semantic, lexical []domain.EvidenceItem, vectorWeight, lexicalWeight float64) (domain.FusionOutput, error) {
	if err := validateScores("semantic", semantic, semanticScoreOf); err != nil {
		return domain.FusionOutput{}, err
	}
	if err := validateScores("lexical", lexical, lexicalScoreOf); err != nil {
		return domain.FusionOutput{}, err
	}

	type candidate struct {
		item    domain.EvidenceItem
		sources int
	}

	order := make([]string, 0, len(semantic)+len(lexical))
	acc := make(map[string]*candidate, len(semantic)+len(lexical))

	for _, it := range semantic {
		if _, ok := acc[it.ChunkID]; ok {
			continue
		}
		acc[it.ChunkID] = &candidate{
			item: domain.EvidenceItem{
				ChunkID:       it.ChunkID,
				SourcePath:    it.SourcePath,
				Title:         it.Title,
				Text:          it.Text,
				SemanticScore: it.SemanticScore,
			},
			sources: 1,
		}
		order = append(order, it.ChunkID)
	}

	for _, it := range lexical {
		if c, ok := acc[it.ChunkID]; ok {
			if c.item.LexicalScore == 0 {
				c.item.LexicalScore = it.LexicalScore
				c.sources++
			}
			continue
		}
		acc[it.ChunkID] = &candidate{
			item: domain.EvidenceItem{
				ChunkID:      it.ChunkID,
				SourcePath:   it.SourcePath,
				Title:        it.Title,
				Text:         it.Text,
				LexicalScore: it.LexicalScore,
			},
			sources: 1,
		}
		order = append(order, it.ChunkID)
	}

	items := make([]domain.EvidenceItem, 0, len(order))
	multiSource := 0
	for _, id := range order {
		c := acc[id]
		c.item.FinalScore = c.item.SemanticScore*vectorWeight + c.item.LexicalScore*lexicalWeight
		if c.sources > 1 {
			multiSource++
		}
		items = append(items, c.item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].FinalScore > items[j].FinalScore
	})

	sources := 0
	if len(semantic) > 0 {
		sources++
	}
	if len(lexical) > 0 {
		sources++
	}

	return domain.FusionOutput{
		Items: items,
		Stats: domain.FusionStats{
			TotalCandidates: len(items),
			SourcesUsed:     sources,
			MultiSourceHits: multiSource,
		},
	}, nil
}

// fuseChannels extends FuseHybrid across N retrieval channels. Each distinct
// chunk id takes the maximum semantic and maximum lexical score observed in
// any channel that returned it: a match found strongly by one channel is
// evidence enough, and averaging would penalize items only retrievable via
// translation. The weighted-sum formula then applies to the per-id maxima.
func fuseChannels(channels []domain.ChannelResult, vectorWeight, lexicalWeight float64) (domain.FusionOutput, error) {
	type candidate struct {
		item     domain.EvidenceItem
		channels map[string]struct{}
	}

	order := make([]string, 0, 16)
	acc := make(map[string]*candidate, 16)

	observe := func(channelName string, it domain.EvidenceItem, semantic bool) {
		c, ok := acc[it.ChunkID]
		if !ok {
			c = &candidate{
				item: domain.EvidenceItem{
					ChunkID:    it.ChunkID,
					SourcePath: it.SourcePath,
					Title:      it.Title,
					Text:       it.Text,
				},
				channels: make(map[string]struct{}, 2),
			}
			acc[it.ChunkID] = c
			order = append(order, it.ChunkID)
		}
		if semantic && it.SemanticScore > c.item.SemanticScore {
			c.item.SemanticScore = it.SemanticScore
		}
		if !semantic && it.LexicalScore > c.item.LexicalScore {
			c.item.LexicalScore = it.LexicalScore
		}
		c.channels[channelName] = struct{}{}
	}

	for _, ch := range channels {
		if err := validateScores(fmt.Sprintf("channel %q semantic", ch.Name), ch.Semantic, semanticScoreOf); err != nil {
			return domain.FusionOutput{}, err
		}
		if err := validateScores(fmt.Sprintf("channel %q lexical", ch.Name), ch.Lexical, lexicalScoreOf); err != nil {
			return domain.FusionOutput{}, err
		}
		for _, it := range ch.Semantic {
			observe(ch.Name, it, true)
		}
		for _, it := range ch.Lexical {
			observe(ch.Name, it, false)
		}
	}

	items := make([]domain.EvidenceItem, 0, len(order))
	multiChannel := 0
	for _, id := range order {
		c := acc[id]
		c.item.FinalScore = c.item.SemanticScore*vectorWeight + c.item.LexicalScore*lexicalWeight
		if len(c.channels) > 1 {
			multiChannel++
		}
		items = append(items, c.item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].FinalScore > items[j].FinalScore
	})

	return domain.FusionOutput{
		Items: items,
		Stats: domain.FusionStats{
			TotalCandidates: len(items),
			SourcesUsed:     len(channels),
			MultiSourceHits: multiChannel,
		},
	}, nil
}

func semanticScoreOf(it domain.EvidenceItem) float64 { return it.SemanticScore }
func lexicalScoreOf(it domain.EvidenceItem) float64  { return it.LexicalScore }

func validateScores(label string, items []domain.EvidenceItem, score func(domain.EvidenceItem) float64) error {
	for _, it := range items {
		v := score(it)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return domain.WrapError(
				domain.ErrInvalidInput,
				"fuse results",
				fmt.Errorf("%s score for chunk %q is not a finite non-negative number: %v", label, it.ChunkID, v),
			)
		}
	}
	return nil
}
