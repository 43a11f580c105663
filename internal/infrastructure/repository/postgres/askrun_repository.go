package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/akozyrev/factstack/internal/core/domain"
)

// AskRunRepository persists the refusal-audit record of each ask run.
type AskRunRepository struct {
	db *sql.DB
}

func NewAskRunRepository(db *sql.DB) *AskRunRepository {
	return &AskRunRepository{db: db}
}

func (r *AskRunRepository) SaveRun(ctx context.Context, run *domain.AskRun) error {
	indicators := run.Indicators
	if indicators == nil {
		indicators = map[string]float64{}
	}
	indicatorsJSON, err := json.Marshal(indicators)
	if err != nil {
		return fmt.Errorf("marshal indicators: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO ask_runs (
	run_id, question, language, translation_used, refused, refusal_stage, reason, confidence, evidence_count, indicators, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (run_id) DO UPDATE SET
	refused = EXCLUDED.refused,
	refusal_stage = EXCLUDED.refusal_stage,
	reason = EXCLUDED.reason,
	confidence = EXCLUDED.confidence,
	indicators = EXCLUDED.indicators
`,
		run.RunID, run.Question, string(run.Language), run.TranslationUsed, run.Refused,
		run.RefusalStage, run.Reason, run.Confidence, run.EvidenceCount, indicatorsJSON, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ask run: %w", err)
	}
	return nil
}

// RecentRuns returns the newest runs first, capped at limit.
func (r *AskRunRepository) RecentRuns(ctx context.Context, limit int) ([]domain.AskRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT run_id, question, language, translation_used, refused, refusal_stage, reason, confidence, evidence_count, indicators, created_at
FROM ask_runs
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list ask runs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AskRun, 0)
	for rows.Next() {
		var run domain.AskRun
		var language string
		var indicatorsRaw []byte
		if err := rows.Scan(
			&run.RunID, &run.Question, &language, &run.TranslationUsed, &run.Refused,
			&run.RefusalStage, &run.Reason, &run.Confidence, &run.EvidenceCount, &indicatorsRaw, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ask run: %w", err)
		}
		if err := json.Unmarshal(indicatorsRaw, &run.Indicators); err != nil {
			return nil, fmt.Errorf("unmarshal indicators: %w", err)
		}
		run.Language = domain.QueryLanguage(language)
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ask runs: %w", err)
	}
	return out, nil
}
