// Package gazetteer holds the lists of known entity surface forms and
// matches them against token sequences.
package gazetteer

import (
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/cognicore/nerpt/pkg/ner/tagger"
	"github.com/cognicore/nerpt/pkg/ner/tokenizer"
)

// DefaultConfidence is the rule confidence used for entries that do not
// set their own.
var DefaultConfidence = map[tagger.Category]float64{
	tagger.PER:  0.92,
	tagger.LOC:  0.90,
	tagger.ORG:  0.93,
	tagger.MISC: 0.88,
}

// Entry is one known surface form.
type Entry struct {
	Surface    string          `yaml:"surface" json:"surface"`
	Category   tagger.Category `yaml:"category" json:"category"`
	Confidence float64         `yaml:"confidence,omitempty" json:"confidence,omitempty"`
}

// Match is a gazetteer hit over tokens [Start, End], End inclusive.
type Match struct {
	Start      int
	End        int
	Category   tagger.Category
	Confidence float64
	Surface    string
}

// Set is an immutable collection of gazetteers, one per category.
type Set struct {
	phrases map[string][]Entry
	words   map[tagger.Category]map[string]struct{}
	maxLen  int
	entries []Entry
}

// Normalize maps a surface form to its lookup key: NFC, lower case,
// single spaces.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// New builds a set from entries. Later duplicates of the same surface and
// category are ignored.
func New(entries []Entry) *Set {
	s := &Set{
		phrases: make(map[string][]Entry),
		words:   make(map[tagger.Category]map[string]struct{}),
		maxLen:  1,
	}
	for _, c := range tagger.Categories {
		s.words[c] = make(map[string]struct{})
	}
	split := tokenizer.Default()

	for _, e := range entries {
		key := Normalize(e.Surface)
		if key == "" {
			continue
		}
		if _, ok := s.words[e.Category]; !ok {
			continue
		}
		if e.Confidence == 0 {
			e.Confidence = DefaultConfidence[e.Category]
		}
		if containsCategory(s.phrases[key], e.Category) {
			continue
		}
		s.phrases[key] = append(s.phrases[key], e)
		s.entries = append(s.entries, e)

		if toks, err := split.Tokenize(e.Surface, tokenizer.Conservative); err == nil && len(toks) > s.maxLen {
			s.maxLen = len(toks)
		}

		fields := strings.Fields(key)
		for _, w := range fields {
			if len(fields) == 1 || utf8.RuneCountInString(w) > 3 {
				s.words[e.Category][w] = struct{}{}
			}
		}
	}

	for key, list := range s.phrases {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].Confidence != list[j].Confidence {
				return list[i].Confidence > list[j].Confidence
			}
			return categoryRank(list[i].Category) < categoryRank(list[j].Category)
		})
		s.phrases[key] = list
	}
	return s
}

func containsCategory(list []Entry, c tagger.Category) bool {
	for _, e := range list {
		if e.Category == c {
			return true
		}
	}
	return false
}

func categoryRank(c tagger.Category) int {
	for i, x := range tagger.Categories {
		if x == c {
			return i
		}
	}
	return len(tagger.Categories)
}

// Len returns the number of distinct (surface, category) entries.
func (s *Set) Len() int { return len(s.entries) }

// MaxTokens is the longest entry length in tokens.
func (s *Set) MaxTokens() int { return s.maxLen }

// Entries returns the entries in insertion order.
func (s *Set) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// ContainsWord reports whether word occurs in any entry of category c.
func (s *Set) ContainsWord(c tagger.Category, word string) bool {
	if s == nil {
		return false
	}
	_, ok := s.words[c][Normalize(word)]
	return ok
}

// Lookup returns the best entry for a full surface form.
func (s *Set) Lookup(surface string) (Entry, bool) {
	if s == nil {
		return Entry{}, false
	}
	list := s.phrases[Normalize(surface)]
	if len(list) == 0 {
		return Entry{}, false
	}
	return list[0], true
}

// LongestAt finds the longest entry starting at token i. Tokens separated
// in the text are joined with a space, adjacent tokens are concatenated.
func (s *Set) LongestAt(tokens []tokenizer.Token, i int) (Match, bool) {
	if s == nil || i < 0 || i >= len(tokens) {
		return Match{}, false
	}
	maxN := s.maxLen
	if remaining := len(tokens) - i; maxN > remaining {
		maxN = remaining
	}
	for n := maxN; n >= 1; n-- {
		if e, ok := s.Lookup(Surface(tokens[i : i+n])); ok {
			return Match{
				Start:      i,
				End:        i + n - 1,
				Category:   e.Category,
				Confidence: e.Confidence,
				Surface:    e.Surface,
			}, true
		}
	}
	return Match{}, false
}

// Surface rebuilds the text covered by consecutive tokens.
func Surface(tokens []tokenizer.Token) string {
	var b strings.Builder
	for j, t := range tokens {
		if j > 0 && t.Start > tokens[j-1].End {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	return b.String()
}
