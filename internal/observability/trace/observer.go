// Package trace records the stages of an ask run for offline inspection of
// retrieval and refusal behavior.
package trace

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/akozyrev/factstack/internal/core/domain"
	"github.com/akozyrev/factstack/internal/core/ports"
)

// SlogObserver logs each pipeline stage at debug level.
type SlogObserver struct {
	log *slog.Logger
}

func NewSlogObserver(log *slog.Logger) *SlogObserver {
	return &SlogObserver{log: log}
}

func (o *SlogObserver) ObserveStep(step domain.TraceStep) {
	o.log.Debug("pipeline step",
		"run_id", step.RunID,
		"step", step.Name,
		"elapsed_ms", step.Elapsed.Milliseconds(),
		"output", step.Output,
	)
}

// JSONLObserver appends one JSON line per step, producing a run artifact
// that can be replayed or diffed between deployments.
type JSONLObserver struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

func NewJSONLObserver(w io.Writer) *JSONLObserver {
	return &JSONLObserver{w: w, enc: json.NewEncoder(w)}
}

func (o *JSONLObserver) ObserveStep(step domain.TraceStep) {
	o.mu.Lock()
	defer o.mu.Unlock()
	// Encode errors are dropped: tracing must never fail a run.
	_ = o.enc.Encode(step)
}

// Multi fans each step out to every observer.
type Multi []ports.RunObserver

func (m Multi) ObserveStep(step domain.TraceStep) {
	for _, o := range m {
		o.ObserveStep(step)
	}
}

// Nop discards all steps.
type Nop struct{}

func (Nop) ObserveStep(domain.TraceStep) {}
