package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	docSaturationK   = 1.2
	querySaturationK = 1.2
	filenameBoost    = 1.5
	maxSparseTerms   = 256
)

// encodeSparseDocument builds the lexical term vector for one chunk. The
// filename tokens are boosted so queries naming a document rank its chunks
// higher.
func encodeSparseDocument(text string, filename string) sparseVector {
	termFreq := make(map[uint32]float64, 64)
	appendTermFreq(termFreq, tokenize(text), 1.0)
	appendTermFreq(termFreq, tokenize(filename), filenameBoost)
	return termFreqToSparse(termFreq, docSaturationK)
}

func encodeSparseQuery(query string) sparseVector {
	termFreq := make(map[uint32]float64, 32)
	appendTermFreq(termFreq, tokenize(query), 1.0)
	return termFreqToSparse(termFreq, querySaturationK)
}

// sparseSelfSimilarity is the dot product of a sparse vector with itself,
// used to normalize lexical scores into [0,1].
func sparseSelfSimilarity(v sparseVector) float64 {
	sum := 0.0
	for _, val := range v.Values {
		sum += float64(val) * float64(val)
	}
	return sum
}

func appendTermFreq(dst map[uint32]float64, tokens []string, tokenWeight float64) {
	for _, token := range tokens {
		if token == "" {
			continue
		}
		idx := hashToken(token)
		dst[idx] += tokenWeight
	}
}

func termFreqToSparse(tf map[uint32]float64, k float64) sparseVector {
	if len(tf) == 0 {
		return sparseVector{}
	}
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if len(indices) > maxSparseTerms {
		indices = indices[:maxSparseTerms]
	}

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		tfValue := tf[idx]
		weight := (tfValue * (k + 1.0)) / (tfValue + k)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values = append(values, float32(weight))
	}

	return sparseVector{Indices: indices, Values: values}
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum32()
	if sum == 0 {
		return 1
	}
	return sum
}

// tokenize emits lowercase alphanumeric words plus character bigrams for
// ideographic runs, which have no whitespace word boundaries to split on.
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var word strings.Builder
	var prevIdeo rune

	flushWord := func() {
		if word.Len() > 0 {
			out = append(out, word.String())
			word.Reset()
		}
	}

	for _, r := range s {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			flushWord()
			out = append(out, string(r))
			if prevIdeo != 0 {
				out = append(out, string([]rune{prevIdeo, r}))
			}
			prevIdeo = r
			continue
		}
		prevIdeo = 0

		lower := unicode.ToLower(r)
		if (lower >= 'a' && lower <= 'z') || (lower >= '0' && lower <= '9') {
			word.WriteRune(lower)
			continue
		}
		flushWord()
	}
	flushWord()
	return out
}
