// Package nel links disambiguated entities to records of a small knowledge
// base by name match.
package nel

import (
	"strings"

	"github.com/cognicore/nerpt/pkg/ner/gazetteer"
	"github.com/cognicore/nerpt/pkg/ner/internalerr"
	"github.com/cognicore/nerpt/pkg/ner/ned"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
)

// Name match scores. A record whose category agrees with the resolved
// category gets CategoryBonus on top of a non-zero name score.
const (
	ExactScore    = 0.8
	PartialScore  = 0.5
	CategoryBonus = 0.15

	// MinScore is the lowest score that produces a link.
	MinScore = 0.5
)

// Record is one knowledge base entry. Category is optional.
type Record struct {
	ID          string          `yaml:"id" json:"id"`
	Name        string          `yaml:"name" json:"name"`
	Category    tagger.Category `yaml:"category,omitempty" json:"category,omitempty"`
	Description string          `yaml:"description" json:"description"`
	URL         string          `yaml:"url" json:"url"`
}

// Link is an entity with its best record, if any scored at least MinScore.
type Link struct {
	Entity ned.Entity `json:"entity"`
	Match  *Record    `json:"match"`
	Score  float64    `json:"score"`
}

type record struct {
	Record
	words []string
}

// KnowledgeBase is immutable and safe for concurrent use.
type KnowledgeBase struct {
	records []record
	byID    map[string]int
}

// NewKnowledgeBase validates records and builds a knowledge base. Record
// order breaks score ties.
func NewKnowledgeBase(records []Record) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{byID: make(map[string]int, len(records))}
	for i, r := range records {
		if r.ID == "" {
			return nil, configErr("record %d: empty id", i)
		}
		if _, dup := kb.byID[r.ID]; dup {
			return nil, configErr("duplicate record id %q", r.ID)
		}
		words := splitName(r.Name)
		if len(words) == 0 {
			return nil, configErr("record %q: empty name", r.ID)
		}
		if r.Category != "" {
			c, err := tagger.ParseCategory(string(r.Category))
			if err != nil {
				return nil, configErr("record %q: %v", r.ID, err)
			}
			r.Category = c
		}
		kb.byID[r.ID] = len(kb.records)
		kb.records = append(kb.records, record{Record: r, words: words})
	}
	return kb, nil
}

// Len is the number of records.
func (kb *KnowledgeBase) Len() int { return len(kb.records) }

// Lookup returns the record with the given id.
func (kb *KnowledgeBase) Lookup(id string) (Record, bool) {
	i, ok := kb.byID[id]
	if !ok {
		return Record{}, false
	}
	return kb.records[i].Record, true
}

// Link resolves every entity to its best scoring record.
func (kb *KnowledgeBase) Link(entities []ned.Entity) []Link {
	out := make([]Link, 0, len(entities))
	for _, e := range entities {
		out = append(out, kb.link(e))
	}
	return out
}

func (kb *KnowledgeBase) link(e ned.Entity) Link {
	query := splitName(e.Span.Text)
	best, bestScore := -1, 0.0
	for i, r := range kb.records {
		s := Score(query, r.words)
		if s > 0 && r.Category != "" && r.Category == e.Resolved {
			s += CategoryBonus
		}
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < MinScore {
		return Link{Entity: e}
	}
	m := kb.records[best].Record
	return Link{Entity: e, Match: &m, Score: bestScore}
}

// Score compares normalized name words: ExactScore for equal names,
// PartialScore when one is a contiguous run of the other, else 0.
func Score(query, name []string) float64 {
	if len(query) == 0 || len(name) == 0 {
		return 0
	}
	if equalWords(query, name) {
		return ExactScore
	}
	if ned.IndexRun(name, query) >= 0 || ned.IndexRun(query, name) >= 0 {
		return PartialScore
	}
	return 0
}

func splitName(s string) []string {
	return strings.Fields(gazetteer.Normalize(s))
}

func equalWords(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func configErr(format string, args ...any) error {
	return internalerr.New(internalerr.KindConfiguration, "knowledge base "+format, args...)
}
