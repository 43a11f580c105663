package chunking

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	paragraphSep = regexp.MustCompile(`\n\n+`)
	headingLine  = regexp.MustCompile(`(?m)^#{1,6}\s`)
	sentenceEnd  = regexp.MustCompile(`(?:[.!?])\s+`)
)

// Splitter packs whole paragraphs into chunks up to ChunkSize characters,
// carrying Overlap characters of the previous chunk forward so sentences on a
// boundary stay retrievable from both sides. Overlong paragraphs are split on
// sentence boundaries, then hard-split as a last resort. All sizes are rune
// counts; chunks never cut through a multibyte character.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var out []string
	current := ""

	flush := func() {
		if c := strings.TrimSpace(current); c != "" {
			out = append(out, c)
		}
		current = ""
	}

	for _, para := range paragraphs {
		if runeLen(current)+runeLen(para)+1 <= s.ChunkSize {
			if current == "" {
				current = para
			} else {
				current += "\n" + para
			}
			continue
		}

		flush()

		if runeLen(para) > s.ChunkSize {
			out = append(out, s.splitLongParagraph(para)...)
			continue
		}

		if len(out) > 0 && s.Overlap > 0 {
			tail := []rune(out[len(out)-1])
			if len(tail) > s.Overlap {
				tail = tail[len(tail)-s.Overlap:]
			}
			current = string(tail) + "\n" + para
		} else {
			current = para
		}
	}
	flush()

	return out
}

func (s *Splitter) splitLongParagraph(para string) []string {
	sentences := splitSentences(para)

	var out []string
	current := ""
	for _, sentence := range sentences {
		if runeLen(current)+runeLen(sentence)+1 <= s.ChunkSize {
			if current == "" {
				current = sentence
			} else {
				current += " " + sentence
			}
			continue
		}

		if c := strings.TrimSpace(current); c != "" {
			out = append(out, c)
		}
		current = ""

		if runeLen(sentence) > s.ChunkSize {
			runes := []rune(sentence)
			for start := 0; start < len(runes); start += s.ChunkSize {
				end := start + s.ChunkSize
				if end > len(runes) {
					end = len(runes)
				}
				if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
					out = append(out, piece)
				}
			}
			continue
		}
		current = sentence
	}
	if c := strings.TrimSpace(current); c != "" {
		out = append(out, c)
	}
	return out
}

// splitParagraphs breaks on blank lines and treats each markdown heading as
// the start of a new paragraph, so a heading travels with its section.
func splitParagraphs(text string) []string {
	var out []string
	for _, block := range paragraphSep.Split(text, -1) {
		locs := headingLine.FindAllStringIndex(block, -1)
		prev := 0
		for _, loc := range locs {
			if loc[0] > prev {
				if p := strings.TrimSpace(block[prev:loc[0]]); p != "" {
					out = append(out, p)
				}
				prev = loc[0]
			}
		}
		if p := strings.TrimSpace(block[prev:]); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitSentences(para string) []string {
	locs := sentenceEnd.FindAllStringIndex(para, -1)
	var out []string
	prev := 0
	for _, loc := range locs {
		// Keep the terminator, drop the trailing whitespace.
		if s := strings.TrimSpace(para[prev : loc[0]+1]); s != "" {
			out = append(out, s)
		}
		prev = loc[1]
	}
	if s := strings.TrimSpace(para[prev:]); s != "" {
		out = append(out, s)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
