// Package eval scores the ask pipeline against a YAML case set: retrieval
// recall, citation precision, answer groundedness and refusal accuracy. A
// case passes when recall reaches 0.5 and the refusal decision matches the
// expectation.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/akozyrev/factstack/internal/core/domain"
	"github.com/akozyrev/factstack/internal/core/ports"
)

// Case is one expected outcome to score the pipeline against. Source matching
// is case-insensitive substring matching, so "retries.md" matches
// "docs/ops/retries.md".
type Case struct {
	Question               string   `yaml:"question"`
	ExpectedSources        []string `yaml:"expected_sources"`
	ExpectedAnswerContains []string `yaml:"expected_answer_contains"`
	Difficulty             string   `yaml:"difficulty"`
	ShouldRefuse           bool     `yaml:"should_refuse"`
	Tags                   []string `yaml:"tags"`
}

// CaseResult holds the metrics of one evaluated case.
type CaseResult struct {
	Question   string `json:"question"`
	Difficulty string `json:"difficulty"`

	RecallAtK              float64  `json:"recall_at_k"`
	ExpectedSourcesFound   []string `json:"expected_sources_found,omitempty"`
	ExpectedSourcesMissing []string `json:"expected_sources_missing,omitempty"`

	CitationPrecision     float64 `json:"citation_precision"`
	CitationsFromExpected int     `json:"citations_from_expected"`
	TotalCitations        int     `json:"total_citations"`

	AnswerGroundedness    float64 `json:"answer_groundedness"`
	CitationCountInAnswer int     `json:"citation_count_in_answer"`

	RefusalCorrect  bool `json:"refusal_correct"`
	ExpectedRefusal bool `json:"expected_refusal"`
	ActualRefusal   bool `json:"actual_refusal"`

	AnswerContainsExpected []string `json:"answer_contains_expected,omitempty"`
	AnswerMissingExpected  []string `json:"answer_missing_expected,omitempty"`

	Confidence float64 `json:"confidence"`
	RunID      string  `json:"run_id"`
	Error      string  `json:"error,omitempty"`
}

// Passed reports whether the case cleared the recall floor with a correct
// refusal decision.
func (r CaseResult) Passed() bool {
	return r.Error == "" && r.RecallAtK >= 0.5 && r.RefusalCorrect
}

// Summary aggregates a full evaluation run.
type Summary struct {
	TotalCases  int `json:"total_cases"`
	PassedCases int `json:"passed_cases"`
	FailedCases int `json:"failed_cases"`

	AvgRecallAtK          float64 `json:"avg_recall_at_k"`
	AvgCitationPrecision  float64 `json:"avg_citation_precision"`
	AvgAnswerGroundedness float64 `json:"avg_answer_groundedness"`
	RefusalAccuracy       float64 `json:"refusal_accuracy"`

	PassRateByDifficulty map[string]float64 `json:"pass_rate_by_difficulty"`

	Results []CaseResult `json:"results"`
}

// LoadCases parses a case set document of the form {cases: [...]}. Cases
// without a difficulty default to "medium".
func LoadCases(data []byte) ([]Case, error) {
	var doc struct {
		Cases []Case `yaml:"cases"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse case set: %w", err)
	}
	for i := range doc.Cases {
		if strings.TrimSpace(doc.Cases[i].Question) == "" {
			return nil, fmt.Errorf("case %d has no question", i)
		}
		if doc.Cases[i].Difficulty == "" {
			doc.Cases[i].Difficulty = "medium"
		}
	}
	return doc.Cases, nil
}

// citationMarkerScan bounds the [Cn] marker search in answer text.
const citationMarkerScan = 20

// EvaluateCase scores one pipeline result against its expected outcome.
func EvaluateCase(c Case, result *domain.AskResult) CaseResult {
	out := CaseResult{
		Question:        c.Question,
		Difficulty:      c.Difficulty,
		ExpectedRefusal: c.ShouldRefuse,
		ActualRefusal:   result.Answer.IsRefusal,
		Confidence:      result.Answer.Confidence,
		RunID:           result.RunID,
	}

	retrieved := make([]string, 0, len(result.Used))
	for _, it := range result.Used {
		retrieved = append(retrieved, strings.ToLower(it.SourcePath))
	}
	for _, expected := range c.ExpectedSources {
		found := false
		for _, src := range retrieved {
			if strings.Contains(src, strings.ToLower(expected)) {
				found = true
				break
			}
		}
		if found {
			out.ExpectedSourcesFound = append(out.ExpectedSourcesFound, expected)
		} else {
			out.ExpectedSourcesMissing = append(out.ExpectedSourcesMissing, expected)
		}
	}
	if len(c.ExpectedSources) > 0 {
		out.RecallAtK = float64(len(out.ExpectedSourcesFound)) / float64(len(c.ExpectedSources))
	} else {
		out.RecallAtK = 1
	}

	out.TotalCitations = len(result.Answer.Citations)
	for _, cit := range result.Answer.Citations {
		src := strings.ToLower(cit.Source)
		for _, expected := range c.ExpectedSources {
			if strings.Contains(src, strings.ToLower(expected)) {
				out.CitationsFromExpected++
				break
			}
		}
	}
	switch {
	case out.TotalCitations > 0:
		out.CitationPrecision = float64(out.CitationsFromExpected) / float64(out.TotalCitations)
	case len(c.ExpectedSources) == 0:
		out.CitationPrecision = 1
	}

	for i := 1; i <= citationMarkerScan; i++ {
		if strings.Contains(result.Answer.Text, fmt.Sprintf("[C%d]", i)) {
			out.CitationCountInAnswer++
		}
	}
	if out.CitationCountInAnswer >= 1 {
		density := float64(out.CitationCountInAnswer) / 3
		if density > 1 {
			density = 1
		}
		out.AnswerGroundedness = density * out.CitationPrecision
	}

	out.RefusalCorrect = c.ShouldRefuse == result.Answer.IsRefusal

	answerLower := strings.ToLower(result.Answer.Text)
	for _, expected := range c.ExpectedAnswerContains {
		if strings.Contains(answerLower, strings.ToLower(expected)) {
			out.AnswerContainsExpected = append(out.AnswerContainsExpected, expected)
		} else {
			out.AnswerMissingExpected = append(out.AnswerMissingExpected, expected)
		}
	}

	return out
}

// Run evaluates every case through the ask service and aggregates the
// results. A failing ask records the error on its case and keeps going.
func Run(ctx context.Context, svc ports.QuestionService, cases []Case, topK int, log *slog.Logger) Summary {
	results := make([]CaseResult, 0, len(cases))
	for i, c := range cases {
		log.Info("eval_case_started", "index", i+1, "total", len(cases), "question", c.Question)

		askResult, err := svc.Ask(ctx, c.Question, topK)
		if err != nil {
			log.Warn("eval_case_errored", "question", c.Question, "error", err)
			results = append(results, CaseResult{
				Question:   c.Question,
				Difficulty: c.Difficulty,
				Error:      err.Error(),
			})
			continue
		}

		r := EvaluateCase(c, askResult)
		log.Info("eval_case_finished",
			"passed", r.Passed(),
			"recall_at_k", r.RecallAtK,
			"refusal_correct", r.RefusalCorrect)
		results = append(results, r)
	}
	return Summarize(results)
}

// Summarize rolls individual case results up into aggregate metrics.
func Summarize(results []CaseResult) Summary {
	summary := Summary{
		TotalCases:           len(results),
		PassRateByDifficulty: map[string]float64{},
		Results:              results,
	}

	var valid int
	var refusalCorrect int
	passedByDifficulty := map[string]int{}
	totalByDifficulty := map[string]int{}

	for _, r := range results {
		if r.Passed() {
			summary.PassedCases++
		} else {
			summary.FailedCases++
		}

		difficulty := strings.ToLower(r.Difficulty)
		totalByDifficulty[difficulty]++
		if r.Passed() {
			passedByDifficulty[difficulty]++
		}

		if r.Error != "" {
			continue
		}
		valid++
		summary.AvgRecallAtK += r.RecallAtK
		summary.AvgCitationPrecision += r.CitationPrecision
		summary.AvgAnswerGroundedness += r.AnswerGroundedness
		if r.RefusalCorrect {
			refusalCorrect++
		}
	}

	if valid > 0 {
		summary.AvgRecallAtK /= float64(valid)
		summary.AvgCitationPrecision /= float64(valid)
		summary.AvgAnswerGroundedness /= float64(valid)
		summary.RefusalAccuracy = float64(refusalCorrect) / float64(valid)
	}
	for difficulty, total := range totalByDifficulty {
		summary.PassRateByDifficulty[difficulty] = float64(passedByDifficulty[difficulty]) / float64(total)
	}

	return summary
}
