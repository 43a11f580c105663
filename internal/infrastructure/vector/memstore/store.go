package memstore

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/akozyrev/factstack/internal/core/domain"
)

type entry struct {
	item   domain.EvidenceItem
	vector []float32
	tokens map[string]struct{}
}

// Store is an in-process vector store for development and integration tests:
// no Qdrant required, same channel semantics. Dense search is cosine
// similarity, lexical search is token-set overlap.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func New() *Store {
	return &Store{entries: make(map[string]entry)}
}

func (s *Store) IndexChunks(_ context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, chunk := range chunks {
		var vec []float32
		if i < len(vectors) {
			vec = vectors[i]
		}
		s.entries[chunk.ID] = entry{
			item: domain.EvidenceItem{
				ChunkID:    chunk.ID,
				SourcePath: doc.StoragePath,
				Title:      doc.Title,
				Text:       chunk.Text,
			},
			vector: vec,
			tokens: tokenSet(chunk.Text),
		}
	}
	return nil
}

func (s *Store) Search(_ context.Context, queryVector []float32, limit int) ([]domain.EvidenceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.EvidenceItem, 0, len(s.entries))
	for _, e := range s.entries {
		score := cosine(queryVector, e.vector)
		if score <= 0 {
			continue
		}
		it := e.item
		it.SemanticScore = score
		out = append(out, it)
	}
	return top(out, limit, func(it domain.EvidenceItem) float64 { return it.SemanticScore }), nil
}

func (s *Store) SearchLexical(_ context.Context, queryText string, limit int) ([]domain.EvidenceItem, error) {
	query := tokenSet(queryText)
	if len(query) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.EvidenceItem, 0, len(s.entries))
	for _, e := range s.entries {
		hits := 0
		for tok := range query {
			if _, ok := e.tokens[tok]; ok {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		it := e.item
		it.LexicalScore = float64(hits) / float64(len(query))
		out = append(out, it)
	}
	return top(out, limit, func(it domain.EvidenceItem) float64 { return it.LexicalScore }), nil
}

func top(items []domain.EvidenceItem, limit int, score func(domain.EvidenceItem) float64) []domain.EvidenceItem {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := score(items[i]), score(items[j])
		if a != b {
			return a > b
		}
		return items[i].ChunkID < items[j].ChunkID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// tokenSet lowercases word tokens and adds single characters plus bigrams for
// ideographic runs, mirroring the sparse encoding of the Qdrant store.
func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{}, 24)
	var word strings.Builder
	var prev rune

	flush := func() {
		if word.Len() > 0 {
			out[word.String()] = struct{}{}
			word.Reset()
		}
	}

	for _, r := range s {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			flush()
			out[string(r)] = struct{}{}
			if prev != 0 {
				out[string([]rune{prev, r})] = struct{}{}
			}
			prev = r
			continue
		}
		prev = 0

		lower := unicode.ToLower(r)
		if (lower >= 'a' && lower <= 'z') || (lower >= '0' && lower <= '9') {
			word.WriteRune(lower)
			continue
		}
		flush()
	}
	flush()
	return out
}
