package trace

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/akozyrev/factstack/internal/core/domain"
)

func TestJSONLObserverWritesOneLinePerStep(t *testing.T) {
	var buf bytes.Buffer
	o := NewJSONLObserver(&buf)

	o.ObserveStep(domain.TraceStep{RunID: "r1", Name: "retrieve", At: time.Now()})
	o.ObserveStep(domain.TraceStep{RunID: "r1", Name: "assemble_context", At: time.Now()})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var step domain.TraceStep
	if err := json.Unmarshal([]byte(lines[0]), &step); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if step.Name != "retrieve" {
		t.Fatalf("unexpected step %q", step.Name)
	}
}

func TestMultiFansOut(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi{NewJSONLObserver(&a), NewJSONLObserver(&b)}

	m.ObserveStep(domain.TraceStep{RunID: "r1", Name: "rerank"})

	if a.Len() == 0 || b.Len() == 0 {
		t.Fatalf("all observers must receive the step")
	}
}
