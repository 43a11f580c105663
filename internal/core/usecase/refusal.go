package usecase

import (
	"fmt"
	"strings"

	"github.com/akozyrev/factstack/internal/core/domain"
)

// RefusalConfig holds the thresholds of the refusal engine. The defaults are
// heuristic tuning values carried over from operating the pipeline against an
// offline answer backend; every one of them is overridable through
// configuration.
type RefusalConfig struct {
	MinScoreThreshold    float64
	MinChunksRequired    int
	MinHighQualityChunks int

	HighQualityThreshold   float64
	LowAverageThreshold    float64
	LowCoverageThreshold   float64
	LowMaxThreshold        float64
	ConflictThreshold      float64
	TranslationLeniency    float64
	LowConfidenceThreshold float64
	MinAnswerWords         int
}

func DefaultRefusalConfig() RefusalConfig {
	return RefusalConfig{
		MinScoreThreshold:    0.15,
		MinChunksRequired:    1,
		MinHighQualityChunks: 1,

		HighQualityThreshold:   0.25,
		LowAverageThreshold:    0.2,
		LowCoverageThreshold:   0.4,
		LowMaxThreshold:        0.3,
		ConflictThreshold:      0.2,
		TranslationLeniency:    0.8,
		LowConfidenceThreshold: 0.3,
		MinAnswerWords:         10,
	}
}

// RefusalChecker decides whether the pipeline should refuse to answer. Both
// checks are pure functions of their inputs; nothing is shared between calls.
type RefusalChecker struct {
	cfg RefusalConfig
}

func NewRefusalChecker(cfg RefusalConfig) *RefusalChecker {
	def := DefaultRefusalConfig()
	if cfg.MinScoreThreshold <= 0 {
		cfg.MinScoreThreshold = def.MinScoreThreshold
	}
	if cfg.MinChunksRequired <= 0 {
		cfg.MinChunksRequired = def.MinChunksRequired
	}
	if cfg.MinHighQualityChunks <= 0 {
		cfg.MinHighQualityChunks = def.MinHighQualityChunks
	}
	if cfg.HighQualityThreshold <= 0 {
		cfg.HighQualityThreshold = def.HighQualityThreshold
	}
	if cfg.LowAverageThreshold <= 0 {
		cfg.LowAverageThreshold = def.LowAverageThreshold
	}
	if cfg.LowCoverageThreshold <= 0 {
		cfg.LowCoverageThreshold = def.LowCoverageThreshold
	}
	if cfg.LowMaxThreshold <= 0 {
		cfg.LowMaxThreshold = def.LowMaxThreshold
	}
	if cfg.ConflictThreshold <= 0 {
		cfg.ConflictThreshold = def.ConflictThreshold
	}
	if cfg.TranslationLeniency <= 0 || cfg.TranslationLeniency > 1 {
		cfg.TranslationLeniency = def.TranslationLeniency
	}
	if cfg.LowConfidenceThreshold <= 0 {
		cfg.LowConfidenceThreshold = def.LowConfidenceThreshold
	}
	if cfg.MinAnswerWords <= 0 {
		cfg.MinAnswerWords = def.MinAnswerWords
	}
	return &RefusalChecker{cfg: cfg}
}

// topIndicatorWindow bounds the indicator computations to the head of the
// ranking; scores past the window do not influence the decision.
const topIndicatorWindow = 5

// CheckBeforeAnswer computes the evidence quality indicators over the fused
// ranking and decides whether to refuse before any answer is generated. The
// indicator map is attached to the decision regardless of the outcome.
func (c *RefusalChecker) CheckBeforeAnswer(items []domain.EvidenceItem, cl *domain.CrossLingualStats) domain.RefusalDecision {
	indicators := map[string]float64{
		"max_score":          0,
		"top_n_avg":          0,
		"high_quality_count": 0,
		"coverage":           0,
		"score_variance":     0,
	}
	attachCrossLingual(indicators, cl)

	if len(items) == 0 {
		return domain.RefusalDecision{
			Refuse:      true,
			Reason:      "no relevant evidence found in the knowledge base",
			MissingInfo: []string{"any relevant documentation for this query"},
			Indicators:  indicators,
		}
	}

	window := topIndicatorWindow
	if len(items) < window {
		window = len(items)
	}

	maxScore := 0.0
	for _, it := range items {
		if it.FinalScore > maxScore {
			maxScore = it.FinalScore
		}
	}

	topSum := 0.0
	for _, it := range items[:window] {
		topSum += it.FinalScore
	}
	topAvg := topSum / float64(window)

	highQuality := 0
	for _, it := range items {
		if it.FinalScore >= c.cfg.HighQualityThreshold {
			highQuality++
		}
	}
	// Coverage is the full-list high-quality count over the indicator window,
	// so it can exceed 1 when strong hits extend past the window.
	coverage := float64(highQuality) / float64(window)

	variance := populationVariance(items[:window])

	indicators["max_score"] = maxScore
	indicators["top_n_avg"] = topAvg
	indicators["high_quality_count"] = float64(highQuality)
	indicators["coverage"] = coverage
	indicators["score_variance"] = variance

	effectiveThreshold := c.cfg.MinScoreThreshold
	if cl != nil && cl.TranslationUsed {
		// Hits reachable only through the translated channel score lower on
		// average; trust them a bit more leniently.
		effectiveThreshold *= c.cfg.TranslationLeniency
	}
	indicators["effective_threshold"] = effectiveThreshold

	var reasons []string
	var missing []string

	if len(items) < c.cfg.MinChunksRequired {
		reasons = append(reasons, fmt.Sprintf(
			"insufficient evidence: %d chunk(s) found, minimum %d required",
			len(items), c.cfg.MinChunksRequired,
		))
		missing = append(missing, "more relevant documents to support the answer")
	}

	if maxScore < effectiveThreshold {
		reasons = append(reasons, fmt.Sprintf(
			"low relevance: best match score %.2f is below threshold %.2f",
			maxScore, effectiveThreshold,
		))
		missing = append(missing, "higher quality matches for this query")
	}

	if highQuality < c.cfg.MinHighQualityChunks && topAvg < c.cfg.LowAverageThreshold {
		reasons = append(reasons, fmt.Sprintf(
			"only %d chunk(s) above the high-quality bar %.2f with weak top average %.2f",
			highQuality, c.cfg.HighQualityThreshold, topAvg,
		))
		missing = append(missing, "stronger supporting passages")
	}

	if coverage < c.cfg.LowCoverageThreshold && maxScore < c.cfg.LowMaxThreshold {
		reasons = append(reasons, fmt.Sprintf(
			"thin coverage %.2f among top results with best score %.2f",
			coverage, maxScore,
		))
	}

	refuse := len(reasons) >= 2 ||
		(len(reasons) == 1 && maxScore < effectiveThreshold/2)

	if refuse {
		return domain.RefusalDecision{
			Refuse:               true,
			Reason:               strings.Join(reasons, "; "),
			ConfidenceAdjustment: -0.3,
			MissingInfo:          missing,
			Indicators:           indicators,
		}
	}

	if variance > c.cfg.ConflictThreshold {
		// Advisory only: answer anyway, but flag the spread.
		return domain.RefusalDecision{
			Refuse: false,
			Reason: fmt.Sprintf(
				"possible conflicting information: high variance %.2f among top relevance scores",
				variance,
			),
			ConfidenceAdjustment: -0.2,
			MissingInfo:          []string{"clarification on which context is most relevant"},
			Indicators:           indicators,
		}
	}

	return domain.RefusalDecision{
		Refuse:     false,
		Reason:     "sufficient evidence found",
		Indicators: indicators,
	}
}

// CheckAfterAnswer audits a generated answer against the evidence actually
// supplied to the model. It never forces refusal; it only recommends a
// confidence delta, which the caller applies and clamps to [0,1]. Citation
// absence carries the heaviest penalty.
func (c *RefusalChecker) CheckAfterAnswer(answer domain.AnswerResponse, used []domain.EvidenceItem) domain.RefusalDecision {
	indicators := map[string]float64{
		"citations_used": 0,
		"confidence":     answer.Confidence,
		"answer_words":   float64(wordCount(answer.Text)),
	}

	var issues []string
	adjustment := 0.0

	citationsUsed := 0
	for i := range used {
		if strings.Contains(answer.Text, citationMarker(i)) {
			citationsUsed++
		}
	}
	indicators["citations_used"] = float64(citationsUsed)

	if citationsUsed == 0 && len(used) > 0 {
		issues = append(issues, "answer does not cite any evidence")
		adjustment -= 0.3
	}

	if answer.Confidence < c.cfg.LowConfidenceThreshold {
		issues = append(issues, fmt.Sprintf("low confidence score: %.2f", answer.Confidence))
		adjustment -= 0.05
	}

	if wordCount(answer.Text) < c.cfg.MinAnswerWords && !answer.IsRefusal {
		issues = append(issues, "answer is unusually short")
		adjustment -= 0.1
	}

	if len(issues) > 0 {
		return domain.RefusalDecision{
			Refuse:               false,
			Reason:               strings.Join(issues, "; "),
			ConfidenceAdjustment: adjustment,
			MissingInfo:          answer.MissingInfo,
			Indicators:           indicators,
		}
	}

	return domain.RefusalDecision{
		Refuse:     false,
		Reason:     "answer quality check passed",
		Indicators: indicators,
	}
}

// BuildRefusalAnswer turns a refusing decision into a user-facing answer,
// keeping up to three advisory citations from whatever evidence was retrieved.
func (c *RefusalChecker) BuildRefusalAnswer(decision domain.RefusalDecision, items []domain.EvidenceItem) domain.AnswerResponse {
	citations := make([]domain.Citation, 0, 3)
	for i, it := range items {
		if i >= 3 {
			break
		}
		citations = append(citations, domain.Citation{
			ChunkID: it.ChunkID,
			Source:  it.SourcePath,
			Text:    truncateText(it.Text, 150),
			Score:   it.FinalScore,
		})
	}

	confidence := 0.2 + decision.ConfidenceAdjustment
	if confidence < 0 {
		confidence = 0
	}

	return domain.AnswerResponse{
		Text:          "I cannot confidently answer this question. " + decision.Reason,
		Citations:     citations,
		Confidence:    confidence,
		MissingInfo:   decision.MissingInfo,
		Reasoning:     decision.Reason,
		IsRefusal:     true,
		RefusalReason: decision.Reason,
	}
}

func attachCrossLingual(indicators map[string]float64, cl *domain.CrossLingualStats) {
	if cl == nil {
		return
	}
	indicators["channels_used"] = float64(cl.ChannelsUsed)
	indicators["multi_channel_hits"] = float64(cl.MultiChannelHits)
	if cl.TranslationUsed {
		indicators["translation_used"] = 1
	} else {
		indicators["translation_used"] = 0
	}
}

func populationVariance(items []domain.EvidenceItem) float64 {
	if len(items) < 2 {
		return 0
	}
	mean := 0.0
	for _, it := range items {
		mean += it.FinalScore
	}
	mean /= float64(len(items))

	variance := 0.0
	for _, it := range items {
		d := it.FinalScore - mean
		variance += d * d
	}
	return variance / float64(len(items))
}

func citationMarker(index int) string {
	return fmt.Sprintf("[C%d]", index+1)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func truncateText(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
