package usecase

import (
	"strings"
	"unicode"

	"github.com/akozyrev/factstack/internal/core/domain"
)

// cjkRanges covers the ideographic and syllabic blocks that mark a query as a
// candidate for cross-lingual retrieval.
var cjkRanges = []struct{ lo, hi rune }{
	{0x4E00, 0x9FFF},   // CJK Unified Ideographs
	{0x3400, 0x4DBF},   // Extension A
	{0x20000, 0x2A6DF}, // Extension B
	{0x2A700, 0x2B73F}, // Extension C
	{0x2B740, 0x2B81F}, // Extension D
	{0x2B820, 0x2CEAF}, // Extension E
	{0xF900, 0xFAFF},   // Compatibility Ideographs
	{0x2F800, 0x2FA1F}, // Compatibility Supplement
	{0x3000, 0x303F},   // CJK Symbols and Punctuation
	{0x3040, 0x309F},   // Hiragana
	{0x30A0, 0x30FF},   // Katakana
	{0xAC00, 0xD7AF},   // Hangul Syllables
}

func isCJKRune(r rune) bool {
	for _, rg := range cjkRanges {
		if r >= rg.lo && r <= rg.hi {
			return true
		}
	}
	return false
}

func countCJKRunes(s string) int {
	n := 0
	for _, r := range s {
		if isCJKRune(r) {
			n++
		}
	}
	return n
}

func countASCIIWords(s string) int {
	n := 0
	inWord := false
	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if isLetter && !inWord {
			n++
		}
		inWord = isLetter
	}
	return n
}

// DetectLanguage classifies a query by the fraction of CJK code points among
// its non-space characters: above one half it is primarily CJK, above one
// tenth alongside ASCII words it is mixed, otherwise Latin.
func DetectLanguage(query string) domain.QueryLanguage {
	if strings.TrimSpace(query) == "" {
		return domain.LanguageLatin
	}

	total := 0
	for _, r := range query {
		if !unicode.IsSpace(r) {
			total++
		}
	}
	if total == 0 {
		return domain.LanguageLatin
	}

	ratio := float64(countCJKRunes(query)) / float64(total)
	switch {
	case ratio > 0.5:
		return domain.LanguageCJK
	case ratio > 0.1 && countASCIIWords(query) > 0:
		return domain.LanguageMixed
	default:
		return domain.LanguageLatin
	}
}

// NeedsTranslation reports whether a second, translated retrieval channel may
// surface evidence the original-script query cannot reach.
func NeedsTranslation(query string) bool {
	lang := DetectLanguage(query)
	return lang == domain.LanguageCJK || lang == domain.LanguageMixed
}
