package domain

// Citation references one evidence chunk supporting an answer.
type Citation struct {
	ChunkID string  `json:"chunk_id"`
	Source  string  `json:"source"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

// AnswerResponse is the structured output of an answer backend. Citation
// markers in Text are positional: [C1] refers to the first supplied evidence
// item, [C2] to the second, and so on.
type AnswerResponse struct {
	Text          string     `json:"text"`
	Citations     []Citation `json:"citations,omitempty"`
	Confidence    float64    `json:"confidence"`
	MissingInfo   []string   `json:"missing_info,omitempty"`
	Reasoning     string     `json:"reasoning,omitempty"`
	IsRefusal     bool       `json:"is_refusal"`
	RefusalReason string     `json:"refusal_reason,omitempty"`
}

// AskResult is the complete outcome of one ask pipeline run.
type AskResult struct {
	RunID          string            `json:"run_id"`
	Question       string            `json:"question"`
	RewrittenQuery string            `json:"rewritten_query,omitempty"`
	Answer         AnswerResponse    `json:"answer"`
	Used           []EvidenceItem    `json:"used"`
	Retrieval      CrossLingualStats `json:"retrieval"`
	PreCheck       RefusalDecision   `json:"pre_check"`
	PostCheck      *RefusalDecision  `json:"post_check,omitempty"`
}
