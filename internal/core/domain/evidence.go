package domain

// QueryLanguage classifies the dominant script of a query.
type QueryLanguage string

const (
	LanguageCJK   QueryLanguage = "cjk"
	LanguageLatin QueryLanguage = "latin"
	LanguageMixed QueryLanguage = "mixed"
)

// EvidenceItem is one retrievable unit of source text with its relevance
// scores. ChunkID is stable and unique within any single ranked list.
type EvidenceItem struct {
	ChunkID    string `json:"chunk_id"`
	SourcePath string `json:"source_path"`
	Title      string `json:"title,omitempty"`
	Text       string `json:"text"`

	SemanticScore float64 `json:"semantic_score"`
	LexicalScore  float64 `json:"lexical_score"`
	RerankScore   float64 `json:"rerank_score"`
	FinalScore    float64 `json:"final_score"`
}

// ChannelStats describes the raw result lists of one retrieval channel.
type ChannelStats struct {
	SemanticCount int     `json:"semantic_count"`
	SemanticMax   float64 `json:"semantic_max"`
	SemanticMean  float64 `json:"semantic_mean"`
	LexicalCount  int     `json:"lexical_count"`
	LexicalMax    float64 `json:"lexical_max"`
	LexicalMean   float64 `json:"lexical_mean"`
}

// ChannelResult holds the output of one retrieval channel. It is created once
// per channel invocation and never mutated afterwards.
type ChannelResult struct {
	Name     string         `json:"name"`
	Query    string         `json:"query"`
	Semantic []EvidenceItem `json:"semantic"`
	Lexical  []EvidenceItem `json:"lexical"`
	Stats    ChannelStats   `json:"stats"`
}

// FusionStats accompanies a fused ranking.
type FusionStats struct {
	TotalCandidates int `json:"total_candidates"`
	SourcesUsed     int `json:"sources_used"`
	MultiSourceHits int `json:"multi_source_hits"`
}

// FusionOutput is a ranked, deduplicated evidence list, descending by final
// score.
type FusionOutput struct {
	Items []EvidenceItem `json:"items"`
	Stats FusionStats    `json:"stats"`
}

// CrossLingualStats reports how a query was routed through retrieval channels.
type CrossLingualStats struct {
	Language           QueryLanguage `json:"language"`
	TranslationUsed    bool          `json:"translation_used"`
	DictionaryFallback bool          `json:"dictionary_fallback"`
	ChannelsUsed       int           `json:"channels_used"`
	TotalCandidates    int           `json:"total_candidates"`
	MultiChannelHits   int           `json:"multi_channel_hits"`
}

// DualRetrieval is the combined outcome of single- or dual-channel retrieval.
type DualRetrieval struct {
	OriginalQuery   string            `json:"original_query"`
	TranslatedQuery string            `json:"translated_query,omitempty"`
	Language        QueryLanguage     `json:"language"`
	Channels        []ChannelResult   `json:"channels"`
	Fused           FusionOutput      `json:"fused"`
	Stats           CrossLingualStats `json:"stats"`
}

// AssembledContext is the token-budgeted prefix of a ranked evidence list,
// formatted for answer generation. Used is always a prefix of the input
// ranking, never reordered.
type AssembledContext struct {
	Text          string         `json:"text"`
	Used          []EvidenceItem `json:"used"`
	TokenEstimate int            `json:"token_estimate"`
}

// Chunk is one indexable segment of an extracted document.
type Chunk struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
	Text  string `json:"text"`
}
