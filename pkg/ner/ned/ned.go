// Package ned resolves the category of recognized entities from the words
// around them. An ambiguous surface such as "Paris" carries a profile of
// context cues per category; the first category whose cue appears near the
// entity wins.
package ned

import (
	"fmt"

	"github.com/cognicore/nerpt/pkg/ner/gazetteer"
	"github.com/cognicore/nerpt/pkg/ner/internalerr"
	"github.com/cognicore/nerpt/pkg/ner/pipeline"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
	"github.com/cognicore/nerpt/pkg/ner/tokenizer"
)

const (
	// DefaultWindow is the number of tokens inspected on each side of an
	// entity.
	DefaultWindow = 3

	// Unprofiled is the confidence of an entity no profile applies to.
	Unprofiled = 0.80
)

// Cue lists context words that point to one category.
type Cue struct {
	Category   tagger.Category `yaml:"category" json:"category"`
	Words      []string        `yaml:"words" json:"words"`
	Confidence float64         `yaml:"confidence" json:"confidence"`
}

// Profile describes an ambiguous surface form. Cues are tried in order.
type Profile struct {
	Surface           string          `yaml:"surface" json:"surface"`
	Default           tagger.Category `yaml:"default" json:"default"`
	DefaultConfidence float64         `yaml:"default_confidence" json:"default_confidence"`
	Cues              []Cue           `yaml:"cues" json:"cues"`
}

// Entity is a span after disambiguation.
type Entity struct {
	Span       tagger.EntitySpan `json:"entity"`
	Original   tagger.Category   `json:"original_label"`
	Resolved   tagger.Category   `json:"resolved_label"`
	Confidence float64           `json:"confidence"`
	Clues      []string          `json:"clues"`
}

// Changed reports whether disambiguation moved the entity to another
// category.
func (e Entity) Changed() bool { return e.Original != e.Resolved }

type profile struct {
	Profile
	key   []string
	words map[string][]int // normalized word -> cue indices
}

// Disambiguator is immutable and safe for concurrent use.
type Disambiguator struct {
	profiles []profile
	window   int
}

// New validates profiles and builds a disambiguator. A nil or empty list is
// valid and keeps every entity's category.
func New(profiles []Profile) (*Disambiguator, error) {
	d := &Disambiguator{window: DefaultWindow}
	for i, p := range profiles {
		key := gazetteer.Normalize(p.Surface)
		if key == "" {
			return nil, configErr("profile %d: empty surface", i)
		}
		def, err := tagger.ParseCategory(string(p.Default))
		if err != nil {
			return nil, configErr("profile %q: default: %v", p.Surface, err)
		}
		p.Default = def
		if !validConfidence(p.DefaultConfidence) {
			return nil, configErr("profile %q: default_confidence %v outside [0,1]", p.Surface, p.DefaultConfidence)
		}

		pr := profile{Profile: p, key: splitWords(key), words: make(map[string][]int)}
		pr.Cues = make([]Cue, len(p.Cues))
		for j, c := range p.Cues {
			cat, err := tagger.ParseCategory(string(c.Category))
			if err != nil {
				return nil, configErr("profile %q cue %d: %v", p.Surface, j, err)
			}
			if !validConfidence(c.Confidence) {
				return nil, configErr("profile %q cue %d: confidence %v outside [0,1]", p.Surface, j, c.Confidence)
			}
			if len(c.Words) == 0 {
				return nil, configErr("profile %q cue %d: no words", p.Surface, j)
			}
			c.Category = cat
			pr.Cues[j] = c
			for _, w := range c.Words {
				nw := gazetteer.Normalize(w)
				pr.words[nw] = append(pr.words[nw], j)
			}
		}
		d.profiles = append(d.profiles, pr)
	}
	return d, nil
}

// Len is the number of profiles.
func (d *Disambiguator) Len() int { return len(d.profiles) }

// Disambiguate resolves every span against the tokens it was found in.
func (d *Disambiguator) Disambiguate(tokens []tokenizer.Token, spans []tagger.EntitySpan) []Entity {
	out := make([]Entity, 0, len(spans))
	for _, s := range spans {
		out = append(out, d.resolve(tokens, s))
	}
	return out
}

// Apply disambiguates the spans of a finished run.
func (d *Disambiguator) Apply(res pipeline.Result) []Entity {
	return d.Disambiguate(res.Tokens, res.Spans)
}

func (d *Disambiguator) resolve(tokens []tokenizer.Token, s tagger.EntitySpan) Entity {
	e := Entity{Span: s, Original: s.Label, Resolved: s.Label, Confidence: Unprofiled}

	p := d.match(s.Text)
	if p == nil {
		e.Clues = []string{"no disambiguation profile"}
		return e
	}

	lo, hi := s.Start-d.window, s.End+d.window
	if lo < 0 {
		lo = 0
	}
	if hi > len(tokens)-1 {
		hi = len(tokens) - 1
	}

	hit := make([]bool, len(p.Cues))
	for i := lo; i <= hi; i++ {
		for _, j := range p.words[gazetteer.Normalize(tokens[i].Text)] {
			hit[j] = true
			e.Clues = append(e.Clues, fmt.Sprintf("%s cue %q", p.Cues[j].Category, tokens[i].Text))
		}
	}

	for j, c := range p.Cues {
		if hit[j] {
			e.Resolved, e.Confidence = c.Category, c.Confidence
			return e
		}
	}
	for _, c := range p.Cues {
		if c.Category == s.Label {
			e.Confidence = c.Confidence
			e.Clues = append(e.Clues, fmt.Sprintf("no context cue, keeping %s", s.Label))
			return e
		}
	}
	e.Resolved, e.Confidence = p.Default, p.DefaultConfidence
	e.Clues = append(e.Clues, fmt.Sprintf("no context cue, assuming %s", p.Default))
	return e
}

// match returns the first profile whose surface occurs as whole words in
// text.
func (d *Disambiguator) match(text string) *profile {
	words := splitWords(gazetteer.Normalize(text))
	for i := range d.profiles {
		if containsRun(words, d.profiles[i].key) {
			return &d.profiles[i]
		}
	}
	return nil
}

func validConfidence(c float64) bool { return c >= 0 && c <= 1 }

func configErr(format string, args ...any) error {
	return internalerr.New(internalerr.KindConfiguration, "disambiguation "+format, args...)
}
