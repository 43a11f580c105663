package trace

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/akozyrev/factstack/internal/core/domain"
)

func TestRenderMarkdownAnsweredRun(t *testing.T) {
	result := &domain.AskResult{
		RunID:    "run-1",
		Question: "how do retries back off?",
		Answer: domain.AnswerResponse{
			Text:       "Retries use exponential backoff [C1].",
			Confidence: 0.82,
			Citations: []domain.Citation{
				{ChunkID: "c1", Source: "docs/retries.md", Text: "Retries use exponential backoff.", Score: 0.8},
			},
		},
		Retrieval: domain.CrossLingualStats{Language: domain.LanguageLatin, ChannelsUsed: 1},
	}

	md := RenderMarkdown(result)
	for _, want := range []string{
		"# Question", "# Answer", "## Confidence", "82.00%",
		"### [C1] docs/retries.md", "- Run ID: run-1",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("missing %q in artifact:\n%s", want, md)
		}
	}
	if strings.Contains(md, "Refusal Reason") {
		t.Fatalf("answered run must not carry a refusal section")
	}
}

func TestRenderMarkdownRefusal(t *testing.T) {
	result := &domain.AskResult{
		RunID:    "run-2",
		Question: "q",
		Answer: domain.AnswerResponse{
			Text:          "I can't answer that from the indexed documents.",
			IsRefusal:     true,
			RefusalReason: "insufficient evidence",
		},
	}

	md := RenderMarkdown(result)
	if !strings.Contains(md, "## Refusal Reason\ninsufficient evidence") {
		t.Fatalf("refusal reason missing:\n%s", md)
	}
}

type archiveStorageFake struct {
	keys []string
}

func (s *archiveStorageFake) Save(_ context.Context, key string, _ io.Reader) error {
	s.keys = append(s.keys, key)
	return nil
}

func (s *archiveStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, io.ErrUnexpectedEOF
}

type askServiceFake struct{}

func (askServiceFake) Ask(context.Context, string, int) (*domain.AskResult, error) {
	return &domain.AskResult{RunID: "run-9", Question: "q"}, nil
}

func TestAnswerArchiverSavesArtifact(t *testing.T) {
	storage := &archiveStorageFake{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	archiver := NewAnswerArchiver(askServiceFake{}, storage, log)

	result, err := archiver.Ask(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if result.RunID != "run-9" {
		t.Fatalf("result must pass through, got %+v", result)
	}
	if len(storage.keys) != 1 || storage.keys[0] != "runs/run-9.md" {
		t.Fatalf("unexpected artifact keys %v", storage.keys)
	}
}
