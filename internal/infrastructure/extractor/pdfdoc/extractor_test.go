package pdfdoc

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/akozyrev/factstack/internal/core/domain"
)

type storageFake struct {
	content string
}

func (s *storageFake) Save(_ context.Context, _ string, _ io.Reader) error { return nil }

func (s *storageFake) Open(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.content)), nil
}

func TestExtractRejectsNonPDF(t *testing.T) {
	e := NewExtractor(&storageFake{content: "plain text pretending to be a pdf"})
	doc := &domain.Document{Filename: "a.pdf", StoragePath: "a.pdf"}

	if _, err := e.Extract(context.Background(), doc); err == nil {
		t.Fatalf("expected error for invalid pdf")
	}
}
