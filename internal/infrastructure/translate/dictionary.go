package translate

import (
	"context"
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/akozyrev/factstack/internal/core/domain"
)

//go:embed phrases.yaml
var embeddedPhrases []byte

var spaceRun = regexp.MustCompile(`\s+`)

// Dictionary is the rule-based query translator: longest-phrase-first
// matching against a static phrase table. It needs no network and serves as
// the fallback when the model-backed translator is unavailable.
type Dictionary struct {
	// phrases sorted by source length descending so longer matches win.
	phrases []phrase
}

type phrase struct {
	src      string
	srcRunes int
	dst      string
}

// NewDictionary loads the embedded phrase table.
func NewDictionary() (*Dictionary, error) {
	return NewDictionaryFromYAML(embeddedPhrases)
}

// NewDictionaryFromYAML builds a dictionary from a caller-supplied phrase
// table, letting deployments extend the embedded one.
func NewDictionaryFromYAML(data []byte) (*Dictionary, error) {
	var doc struct {
		Phrases map[string]string `yaml:"phrases"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse phrase table: %w", err)
	}
	if len(doc.Phrases) == 0 {
		return nil, fmt.Errorf("phrase table is empty")
	}

	phrases := make([]phrase, 0, len(doc.Phrases))
	for src, dst := range doc.Phrases {
		src = strings.TrimSpace(src)
		dst = strings.TrimSpace(dst)
		if src == "" || dst == "" {
			continue
		}
		phrases = append(phrases, phrase{src: src, srcRunes: len([]rune(src)), dst: dst})
	}
	sort.SliceStable(phrases, func(i, j int) bool {
		if phrases[i].srcRunes != phrases[j].srcRunes {
			return phrases[i].srcRunes > phrases[j].srcRunes
		}
		return phrases[i].src < phrases[j].src
	})

	return &Dictionary{phrases: phrases}, nil
}

// TranslateQuery walks the query left to right, replacing the longest
// matching phrase at each position. Unmatched ASCII alphanumerics and basic
// punctuation pass through; unmatched ideographs are dropped. If nothing
// translates, the original query is returned unchanged.
func (d *Dictionary) TranslateQuery(_ context.Context, query string, _ domain.QueryLanguage) (string, error) {
	remaining := []rune(query)
	var words []string

	for len(remaining) > 0 {
		matched := false
		for _, p := range d.phrases {
			if p.srcRunes > len(remaining) {
				continue
			}
			if string(remaining[:p.srcRunes]) == p.src {
				words = append(words, p.dst)
				remaining = remaining[p.srcRunes:]
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		r := remaining[0]
		if r < 128 && (isASCIIAlphaNum(r) || strings.ContainsRune("?!.,", r)) {
			words = append(words, string(r))
		}
		remaining = remaining[1:]
	}

	result := strings.TrimSpace(spaceRun.ReplaceAllString(strings.Join(words, " "), " "))
	if result == "" {
		return query, nil
	}
	return result, nil
}

func isASCIIAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
