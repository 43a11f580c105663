package domain

import "time"

// AskRun is the persisted record of one ask pipeline run, kept for audit of
// refusal decisions.
type AskRun struct {
	RunID           string             `json:"run_id"`
	Question        string             `json:"question"`
	Language        QueryLanguage      `json:"language"`
	TranslationUsed bool               `json:"translation_used"`
	Refused         bool               `json:"refused"`
	RefusalStage    string             `json:"refusal_stage,omitempty"`
	Reason          string             `json:"reason"`
	Confidence      float64            `json:"confidence"`
	EvidenceCount   int                `json:"evidence_count"`
	Indicators      map[string]float64 `json:"indicators"`
	CreatedAt       time.Time          `json:"created_at"`
}

// TraceStep is one recorded pipeline stage of an ask run.
type TraceStep struct {
	RunID   string        `json:"run_id"`
	Name    string        `json:"name"`
	Input   string        `json:"input,omitempty"`
	Output  string        `json:"output,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
	At      time.Time     `json:"at"`
}
