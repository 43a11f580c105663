package spreadsheet

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/akozyrev/factstack/internal/core/domain"
)

type storageFake struct {
	content []byte
}

func (s *storageFake) Save(_ context.Context, _ string, _ io.Reader) error { return nil }

func (s *storageFake) Open(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.content)), nil
}

func workbookBytes(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	if err := f.SetCellValue("Sheet1", "A1", "service"); err != nil {
		t.Fatalf("SetCellValue() error = %v", err)
	}
	if err := f.SetCellValue("Sheet1", "B1", "timeout"); err != nil {
		t.Fatalf("SetCellValue() error = %v", err)
	}
	if err := f.SetCellValue("Sheet1", "A2", "gateway"); err != nil {
		t.Fatalf("SetCellValue() error = %v", err)
	}
	if err := f.SetCellValue("Sheet1", "B2", "5s"); err != nil {
		t.Fatalf("SetCellValue() error = %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	return buf.Bytes()
}

func TestExtractRendersSheetAsSection(t *testing.T) {
	e := NewExtractor(&storageFake{content: workbookBytes(t)})
	doc := &domain.Document{Filename: "limits.xlsx", StoragePath: "limits.xlsx"}

	got, err := e.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !strings.HasPrefix(got, "# Sheet1") {
		t.Fatalf("expected sheet heading, got %q", got)
	}
	if !strings.Contains(got, "service | timeout") || !strings.Contains(got, "gateway | 5s") {
		t.Fatalf("rows must survive extraction:\n%s", got)
	}
}

func TestExtractRejectsNonWorkbook(t *testing.T) {
	e := NewExtractor(&storageFake{content: []byte("not a zip archive")})
	if _, err := e.Extract(context.Background(), &domain.Document{Filename: "a.xlsx"}); err == nil {
		t.Fatalf("expected error for invalid workbook")
	}
}
