package domain

// RefusalDecision is the outcome of a pre- or post-answer evidence quality
// check. Indicators carries every computed indicator value regardless of the
// outcome so downstream consumers can audit the decision.
type RefusalDecision struct {
	Refuse               bool               `json:"refuse"`
	Reason               string             `json:"reason"`
	ConfidenceAdjustment float64            `json:"confidence_adjustment"`
	MissingInfo          []string           `json:"missing_info,omitempty"`
	Indicators           map[string]float64 `json:"indicators"`
}
