// Package topics infers which subjects recent emails covered and picks the
// subject of the next one.
package topics

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywords []byte

// Canonical tags, in the order they appear in the keyword table.
const (
	TagFood       = "food"
	TagTravel     = "travel"
	TagWork       = "work"
	TagFamily     = "family"
	TagHobbies    = "hobbies"
	TagTechnology = "technology"
	TagWeather    = "weather"
)

// KeywordSet maps one tag to the keywords that indicate it.
type KeywordSet struct {
	Tag      string   `yaml:"tag"`
	Keywords []string `yaml:"keywords"`
}

// Table is the language -> ordered keyword sets lookup used for
// classification. Order within a language decides ties.
type Table map[string][]KeywordSet

// LoadTable decodes a YAML keyword table. Keywords are lower-cased so
// matching against lower-cased text is exact.
func LoadTable(r io.Reader) (Table, error) {
	var t Table
	if err := yaml.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("decoding keyword table: %w", err)
	}
	for lang, sets := range t {
		for i, set := range sets {
			if set.Tag == "" {
				return nil, fmt.Errorf("keyword table %s: entry %d has no tag", lang, i)
			}
			for j, kw := range set.Keywords {
				set.Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
			}
		}
	}
	return t, nil
}

// LoadTableFile reads a keyword table from path.
func LoadTableFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening keyword table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

var defaultTable = sync.OnceValue(func() Table {
	t, err := LoadTable(bytes.NewReader(defaultKeywords))
	if err != nil {
		panic(err)
	}
	return t
})

// DefaultTable returns the built-in keyword table. The returned table is
// shared and must not be modified.
func DefaultTable() Table {
	return defaultTable()
}

// Missing returns the languages in want that have no keywords in t.
func (t Table) Missing(want []string) []string {
	var out []string
	for _, lang := range want {
		if len(t[lang]) == 0 {
			out = append(out, lang)
		}
	}
	return out
}

// Classify returns the first tag whose keywords occur in text, or "" when
// nothing matches. Keywords written in Han or kana match anywhere, since
// those scripts do not separate words with spaces. Other keywords must
// match whole words, so "vent" does not fire on "souvent".
func (t Table) Classify(lang, text string) string {
	lower := strings.ToLower(text)
	for _, set := range t[lang] {
		for _, kw := range set.Keywords {
			if kw == "" {
				continue
			}
			if unsegmented(kw) {
				if strings.Contains(lower, kw) {
					return set.Tag
				}
			} else if containsWord(lower, kw) {
				return set.Tag
			}
		}
	}
	return ""
}

func unsegmented(kw string) bool {
	r, _ := utf8.DecodeRuneInString(kw)
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana)
}

// containsWord reports whether kw occurs in text with no letter or digit
// directly before or after it.
func containsWord(text, kw string) bool {
	for i := 0; i < len(text); {
		j := strings.Index(text[i:], kw)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(kw)
		if !wordRuneBefore(text, start) && !wordRuneAfter(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		i = start + size
	}
	return false
}

func wordRuneBefore(text string, at int) bool {
	if at == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:at])
	return isWordRune(r)
}

func wordRuneAfter(text string, at int) bool {
	if at >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[at:])
	return isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
