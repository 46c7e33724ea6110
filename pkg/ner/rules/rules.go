// Package rules matches gazetteers and lexical patterns against tokens.
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cognicore/nerpt/pkg/ner/features"
	"github.com/cognicore/nerpt/pkg/ner/gazetteer"
	"github.com/cognicore/nerpt/pkg/ner/stoplist"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
	"github.com/cognicore/nerpt/pkg/ner/tokenizer"
)

// Kind selects how a pattern is matched.
type Kind string

const (
	// Regex matches the text of a window of consecutive tokens.
	Regex Kind = "regex"
	// PrecededBy tags the capitalized run after a trigger word ("presidente Lula").
	PrecededBy Kind = "preceded_by"
	// FollowedBy tags the capitalized run before an indicator word and the
	// indicator itself ("Itaú S.A.").
	FollowedBy Kind = "followed_by"
)

// maxWindow bounds regex windows and capitalized runs, in tokens.
const maxWindow = 8

// Pattern is a static lexical rule.
type Pattern struct {
	Name       string          `yaml:"name" json:"name"`
	Kind       Kind            `yaml:"kind" json:"kind"`
	Regex      string          `yaml:"regex,omitempty" json:"regex,omitempty"`
	Words      []string        `yaml:"words,omitempty" json:"words,omitempty"`
	Label      tagger.Category `yaml:"label" json:"label"`
	Confidence float64         `yaml:"confidence" json:"confidence"`
}

type compiled struct {
	Pattern
	re    *regexp.Regexp
	words map[string]struct{}
}

// Hit is a rule match over tokens [Start, End], End inclusive.
type Hit struct {
	Start      int             `json:"start"`
	End        int             `json:"end"`
	Label      tagger.Category `json:"label"`
	Confidence float64         `json:"confidence"`
	Rule       string          `json:"rule"`
}

// Engine applies gazetteers first, then patterns on uncovered tokens.
type Engine struct {
	gaz      *gazetteer.Set
	stops    *stoplist.List
	patterns []compiled

	// AnyCase lets gazetteer matches start on a lower-case token.
	AnyCase bool
}

// NewEngine compiles patterns. The gazetteer set and stoplist may be nil.
func NewEngine(gaz *gazetteer.Set, patterns []Pattern, stops *stoplist.List) (*Engine, error) {
	e := &Engine{gaz: gaz, stops: stops}
	for _, p := range patterns {
		c, err := compile(p)
		if err != nil {
			return nil, err
		}
		e.patterns = append(e.patterns, c)
	}
	return e, nil
}

func compile(p Pattern) (compiled, error) {
	c := compiled{Pattern: p}
	if p.Name == "" {
		return c, fmt.Errorf("pattern without name")
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return c, fmt.Errorf("pattern %s: confidence %v outside [0,1]", p.Name, p.Confidence)
	}
	if _, err := tagger.ParseCategory(string(p.Label)); err != nil {
		return c, fmt.Errorf("pattern %s: %w", p.Name, err)
	}
	switch p.Kind {
	case Regex:
		re, err := regexp.Compile(`^(?:` + p.Regex + `)$`)
		if err != nil {
			return c, fmt.Errorf("pattern %s: %w", p.Name, err)
		}
		c.re = re
	case PrecededBy, FollowedBy:
		if len(p.Words) == 0 {
			return c, fmt.Errorf("pattern %s: no words", p.Name)
		}
		c.words = make(map[string]struct{}, len(p.Words))
		for _, w := range p.Words {
			c.words[features.WordKey(w)] = struct{}{}
		}
	default:
		return c, fmt.Errorf("pattern %s: unknown kind %q", p.Name, p.Kind)
	}
	return c, nil
}

// Match runs a one-off engine over tokens.
func Match(tokens []tokenizer.Token, gaz *gazetteer.Set, patterns []Pattern) ([]Hit, error) {
	e, err := NewEngine(gaz, patterns, stoplist.Default())
	if err != nil {
		return nil, err
	}
	return e.Match(tokens), nil
}

// Patterns returns the configured patterns in order.
func (e *Engine) Patterns() []Pattern {
	out := make([]Pattern, len(e.patterns))
	for i, c := range e.patterns {
		out[i] = c.Pattern
	}
	return out
}

// Match returns non-overlapping hits sorted by start.
func (e *Engine) Match(tokens []tokenizer.Token) []Hit {
	covered := make([]bool, len(tokens))
	var hits []Hit
	add := func(h Hit) {
		for k := h.Start; k <= h.End; k++ {
			covered[k] = true
		}
		hits = append(hits, h)
	}

	for i := 0; i < len(tokens); {
		if !e.AnyCase && !startsUpperOrDigit(tokens[i].Text) {
			i++
			continue
		}
		m, ok := e.gaz.LongestAt(tokens, i)
		if !ok {
			i++
			continue
		}
		add(Hit{
			Start:      m.Start,
			End:        m.End,
			Label:      m.Category,
			Confidence: m.Confidence,
			Rule:       strings.ToLower(string(m.Category)) + "_gazetteer",
		})
		i = m.End + 1
	}

	for _, p := range e.patterns {
		switch p.Kind {
		case Regex:
			e.matchRegex(p, tokens, covered, add)
		case PrecededBy:
			e.matchPrecededBy(p, tokens, covered, add)
		case FollowedBy:
			e.matchFollowedBy(p, tokens, covered, add)
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Start < hits[j].Start })
	return hits
}

func (p compiled) hit(start, end int) Hit {
	return Hit{Start: start, End: end, Label: p.Label, Confidence: p.Confidence, Rule: p.Name}
}

func (e *Engine) matchRegex(p compiled, tokens []tokenizer.Token, covered []bool, add func(Hit)) {
	for i := 0; i < len(tokens); i++ {
		if covered[i] {
			continue
		}
		free := 0
		for free < maxWindow && i+free < len(tokens) && !covered[i+free] {
			free++
		}
		for n := free; n >= 1; n-- {
			if p.re.MatchString(gazetteer.Surface(tokens[i : i+n])) {
				add(p.hit(i, i+n-1))
				i += n - 1
				break
			}
		}
	}
}

func (e *Engine) matchPrecededBy(p compiled, tokens []tokenizer.Token, covered []bool, add func(Hit)) {
	for i := 0; i+1 < len(tokens); i++ {
		if _, ok := p.words[features.WordKey(tokens[i].Text)]; !ok {
			continue
		}
		start := i + 1
		if covered[start] || !e.namePart(tokens[start].Text) {
			continue
		}
		end := start
		for j := start + 1; j < len(tokens) && j-start < maxWindow && !covered[j]; j++ {
			if e.namePart(tokens[j].Text) {
				end = j
				continue
			}
			if e.stops.IsConnector(tokens[j].Text) && j+1 < len(tokens) && !covered[j+1] && e.namePart(tokens[j+1].Text) {
				continue
			}
			break
		}
		add(p.hit(start, end))
		i = end
	}
}

func (e *Engine) matchFollowedBy(p compiled, tokens []tokenizer.Token, covered []bool, add func(Hit)) {
	for i := 1; i < len(tokens); i++ {
		if covered[i] {
			continue
		}
		if _, ok := p.words[features.WordKey(tokens[i].Text)]; !ok {
			continue
		}
		if covered[i-1] || !e.namePart(tokens[i-1].Text) {
			continue
		}
		start := i - 1
		for j := start - 1; j >= 0 && i-j < maxWindow && !covered[j]; j-- {
			if e.namePart(tokens[j].Text) {
				start = j
				continue
			}
			if e.stops.IsConnector(tokens[j].Text) && j > 0 && !covered[j-1] && e.namePart(tokens[j-1].Text) {
				continue
			}
			break
		}
		add(p.hit(start, i))
	}
}

// namePart reports whether s can be part of a capitalized name run.
func (e *Engine) namePart(s string) bool {
	return startsUpper(s) && !e.stops.IsStop(s)
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}

func startsUpperOrDigit(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}
