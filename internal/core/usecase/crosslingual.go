package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/akozyrev/factstack/internal/core/domain"
	"github.com/akozyrev/factstack/internal/core/ports"
)

const (
	channelOriginal   = "original"
	channelTranslated = "translated"
)

// DualRetriever runs one or two retrieval channels over the hybrid index and
// fuses them into a single ranking. The translated channel is added when the
// query script calls for it, translation is enabled, and the produced
// translation differs from the original query.
type DualRetriever struct {
	embedder   ports.Embedder
	store      ports.VectorStore
	translator ports.QueryTranslator
	fallback   ports.QueryTranslator

	vectorWeight  float64
	lexicalWeight float64
}

func NewDualRetriever(
	embedder ports.Embedder,
	store ports.VectorStore,
	translator ports.QueryTranslator,
	fallback ports.QueryTranslator,
	vectorWeight, lexicalWeight float64,
) *DualRetriever {
	return &DualRetriever{
		embedder:      embedder,
		store:         store,
		translator:    translator,
		fallback:      fallback,
		vectorWeight:  vectorWeight,
		lexicalWeight: lexicalWeight,
	}
}

// Retrieve performs single- or dual-channel retrieval for one query.
// Translation failures degrade to the dictionary fallback and are reported in
// the stats, never as an error; retrieval failures propagate because there is
// no safe substitute for a missing index result.
func (r *DualRetriever) Retrieve(
	ctx context.Context,
	query string,
	topK int,
	translationEnabled bool,
) (*domain.DualRetrieval, error) {
	if topK <= 0 {
		topK = 8
	}

	lang := DetectLanguage(query)

	translatedQuery := ""
	dictionaryFallback := false
	if translationEnabled && NeedsTranslation(query) {
		translatedQuery, dictionaryFallback = r.translate(ctx, query, lang)
	}

	runTranslated := translatedQuery != "" && translatedQuery != query

	channels := make([]domain.ChannelResult, 0, 2)
	if runTranslated {
		// The two channels are independent; run them concurrently and keep
		// the original channel first in the output regardless of completion
		// order.
		results := make([]domain.ChannelResult, 2)
		errs := make([]error, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			results[0], errs[0] = r.retrieveChannel(ctx, channelOriginal, query, topK)
		}()
		go func() {
			defer wg.Done()
			results[1], errs[1] = r.retrieveChannel(ctx, channelTranslated, translatedQuery, topK)
		}()
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return nil, err
			}
		}
		channels = append(channels, results...)
	} else {
		ch, err := r.retrieveChannel(ctx, channelOriginal, query, topK)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}

	fused, err := fuseChannels(channels, r.vectorWeight, r.lexicalWeight)
	if err != nil {
		return nil, err
	}

	out := &domain.DualRetrieval{
		OriginalQuery: query,
		Language:      lang,
		Channels:      channels,
		Fused:         fused,
		Stats: domain.CrossLingualStats{
			Language:           lang,
			TranslationUsed:    runTranslated,
			DictionaryFallback: dictionaryFallback,
			ChannelsUsed:       len(channels),
			TotalCandidates:    fused.Stats.TotalCandidates,
			MultiChannelHits:   fused.Stats.MultiSourceHits,
		},
	}
	if runTranslated {
		out.TranslatedQuery = translatedQuery
	}
	return out, nil
}

// translate tries the model-backed translator first and falls back to the
// dictionary strategy when the model fails or its output still contains CJK
// characters. The fallback is transparent to callers and surfaces only as a
// stat field.
func (r *DualRetriever) translate(ctx context.Context, query string, lang domain.QueryLanguage) (string, bool) {
	if r.translator != nil {
		translated, err := r.translator.TranslateQuery(ctx, query, lang)
		if err == nil && strings.TrimSpace(translated) != "" && countCJKRunes(translated) == 0 {
			return strings.TrimSpace(translated), false
		}
		if err != nil {
			slog.Warn("query_translation_fallback", "language", string(lang), "error", err)
		} else {
			slog.Warn("query_translation_fallback", "language", string(lang), "error", "translation still contains source-script characters")
		}
	}

	if r.fallback == nil {
		return "", false
	}
	translated, err := r.fallback.TranslateQuery(ctx, query, lang)
	if err != nil || strings.TrimSpace(translated) == "" {
		return "", false
	}
	return strings.TrimSpace(translated), r.translator != nil
}

func (r *DualRetriever) retrieveChannel(ctx context.Context, name, query string, topK int) (domain.ChannelResult, error) {
	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return domain.ChannelResult{}, fmt.Errorf("embed query for channel %s: %w", name, err)
	}

	semantic, err := r.store.Search(ctx, queryVector, topK)
	if err != nil {
		return domain.ChannelResult{}, fmt.Errorf("semantic search for channel %s: %w", name, err)
	}

	lexical, err := r.store.SearchLexical(ctx, query, topK)
	if err != nil {
		return domain.ChannelResult{}, fmt.Errorf("lexical search for channel %s: %w", name, err)
	}

	return domain.ChannelResult{
		Name:     name,
		Query:    query,
		Semantic: semantic,
		Lexical:  lexical,
		Stats:    computeChannelStats(semantic, lexical),
	}, nil
}

func computeChannelStats(semantic, lexical []domain.EvidenceItem) domain.ChannelStats {
	stats := domain.ChannelStats{
		SemanticCount: len(semantic),
		LexicalCount:  len(lexical),
	}
	stats.SemanticMax, stats.SemanticMean = maxAndMean(semantic, semanticScoreOf)
	stats.LexicalMax, stats.LexicalMean = maxAndMean(lexical, lexicalScoreOf)
	return stats
}

func maxAndMean(items []domain.EvidenceItem, score func(domain.EvidenceItem) float64) (maxScore, mean float64) {
	if len(items) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, it := range items {
		v := score(it)
		if v > maxScore {
			maxScore = v
		}
		sum += v
	}
	return maxScore, sum / float64(len(items))
}
