package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitEmptyText(t *testing.T) {
	s := NewSplitter(0, 0)
	if got := s.Split("   \n\n  "); got != nil {
		t.Fatalf("expected nil for blank input, got %v", got)
	}
}

func TestSplitPacksParagraphsIntoOneChunk(t *testing.T) {
	s := NewSplitter(100, 0)
	got := s.Split("first paragraph\n\nsecond paragraph")
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %v", len(got), got)
	}
	if got[0] != "first paragraph\nsecond paragraph" {
		t.Fatalf("unexpected chunk %q", got[0])
	}
}

func TestSplitStartsNewChunkOnOverflow(t *testing.T) {
	s := NewSplitter(20, 0)
	got := s.Split("aaaaaaaaaaaaaaa\n\nbbbbbbbbbbbbbbb")
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(got), got)
	}
	if got[0] != "aaaaaaaaaaaaaaa" || got[1] != "bbbbbbbbbbbbbbb" {
		t.Fatalf("unexpected chunks %v", got)
	}
}

func TestSplitCarriesOverlapForward(t *testing.T) {
	s := NewSplitter(10, 4)
	got := s.Split("abcdefgh\n\n12345678")
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(got), got)
	}
	if !strings.HasPrefix(got[1], "efgh\n") {
		t.Fatalf("second chunk must start with the tail of the first, got %q", got[1])
	}
	if !strings.HasSuffix(got[1], "12345678") {
		t.Fatalf("second chunk must keep its paragraph, got %q", got[1])
	}
}

func TestSplitMarkdownHeadingStartsParagraph(t *testing.T) {
	s := NewSplitter(30, 0)
	got := s.Split("intro paragraph\n# Heading One\nbody text here")
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(got), got)
	}
	if got[0] != "intro paragraph" {
		t.Fatalf("unexpected first chunk %q", got[0])
	}
	if !strings.HasPrefix(got[1], "# Heading One") {
		t.Fatalf("heading must open the second chunk, got %q", got[1])
	}
}

func TestSplitLongParagraphBySentences(t *testing.T) {
	s := NewSplitter(30, 0)
	got := s.Split("First sentence here. Second sentence over here. Third sentence here.")
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(got), got)
	}
	for _, c := range got {
		if !strings.HasSuffix(c, ".") {
			t.Fatalf("sentence boundary lost in %q", c)
		}
	}
}

func TestSplitHardSplitsUnbrokenText(t *testing.T) {
	s := NewSplitter(10, 0)
	got := s.Split(strings.Repeat("x", 25))
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(got), got)
	}
	if len(got[0]) != 10 || len(got[2]) != 5 {
		t.Fatalf("unexpected chunk sizes %v", got)
	}
}

func TestSplitHardSplitKeepsCJKRunesIntact(t *testing.T) {
	s := NewSplitter(10, 4)
	got := s.Split("数据库连接超时请检查网络配置")
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(got), got)
	}
	if got[0] != "数据库连接超时请检查" || got[1] != "网络配置" {
		t.Fatalf("unexpected chunks %q", got)
	}
	for i, c := range got {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %d is not valid UTF-8: %q", i, c)
		}
	}
}

func TestSplitOverlapKeepsCJKRunesIntact(t *testing.T) {
	s := NewSplitter(10, 4)
	got := s.Split("数据库连接超时错误\n\n请检查网络配置")
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(got), got)
	}
	if !strings.HasPrefix(got[1], "超时错误\n") {
		t.Fatalf("second chunk must carry the last 4 runes of the first, got %q", got[1])
	}
	for i, c := range got {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %d is not valid UTF-8: %q", i, c)
		}
	}
}

func TestNewSplitterDefaults(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.ChunkSize != 500 || s.Overlap != 0 {
		t.Fatalf("unexpected defaults %+v", s)
	}
	s = NewSplitter(100, 200)
	if s.Overlap != 25 {
		t.Fatalf("overlap must be clamped below chunk size, got %d", s.Overlap)
	}
}
