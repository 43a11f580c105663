package plaintext

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/akozyrev/factstack/internal/core/domain"
)

type storageFake struct {
	content string
	openErr error
}

func (s *storageFake) Save(_ context.Context, _ string, _ io.Reader) error { return nil }

func (s *storageFake) Open(_ context.Context, _ string) (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return io.NopCloser(strings.NewReader(s.content)), nil
}

func TestExtractTrimsWhitespace(t *testing.T) {
	e := NewExtractor(&storageFake{content: "\n  hello world  \n"})
	doc := &domain.Document{Filename: "a.txt", StoragePath: "a.txt"}

	got, err := e.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "hello world" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	e := NewExtractor(&storageFake{content: "   "})
	got, err := e.Extract(context.Background(), &domain.Document{Filename: "a.txt"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}

func TestExtractRejectsBinary(t *testing.T) {
	e := NewExtractor(&storageFake{content: string([]byte{0xff, 0xfe, 0x00})})
	if _, err := e.Extract(context.Background(), &domain.Document{Filename: "a.txt"}); err == nil {
		t.Fatalf("expected error for non-UTF-8 content")
	}
}

func TestExtractOpenFailure(t *testing.T) {
	openErr := errors.New("missing")
	e := NewExtractor(&storageFake{openErr: openErr})
	if _, err := e.Extract(context.Background(), &domain.Document{Filename: "a.txt"}); !errors.Is(err, openErr) {
		t.Fatalf("expected wrapped open error, got %v", err)
	}
}
