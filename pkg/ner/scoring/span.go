package scoring

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cognicore/nerpt/pkg/ner/features"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
	"github.com/cognicore/nerpt/pkg/ner/tokenizer"
)

const (
	defaultMaxSpanLen = 6
	maxMaxSpanLen     = 16
)

// outside is the span class meaning "not an entity".
const outside = "O"

// SpanParams score whole candidate spans. Weights map a span feature to a
// score per class, where a class is an entity category or "O".
type SpanParams struct {
	MaxLen  int                           `yaml:"max_span_len,omitempty" json:"max_span_len,omitempty"`
	Weights map[string]map[string]float64 `yaml:"weights" json:"weights"`
}

// spanClasses is the class axis: the categories, then O.
var spanClasses = append(append([]tagger.Category{}, tagger.Categories...), outside)

type spanModel struct {
	maxLen  int
	weights map[string][]float64
}

// NewSpan compiles span-model parameters.
func NewSpan(p SpanParams) (Model, error) {
	m := &spanModel{maxLen: p.MaxLen, weights: make(map[string][]float64, len(p.Weights))}
	if m.maxLen == 0 {
		m.maxLen = defaultMaxSpanLen
	}
	if m.maxLen < 1 || m.maxLen > maxMaxSpanLen {
		return Model{}, configErr("span max_span_len %d outside [1,%d]", p.MaxLen, maxMaxSpanLen)
	}
	for feat, row := range p.Weights {
		w := make([]float64, len(spanClasses))
		for class, v := range row {
			idx := classIndex(class)
			if idx < 0 {
				return Model{}, configErr("span feature %s: unknown class %q", feat, class)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Model{}, configErr("span feature %s: weight %v is not finite", feat, v)
			}
			w[idx] = v
		}
		m.weights[feat] = w
	}
	return Model{kind: Span, span: m}, nil
}

func classIndex(s string) int {
	for i, c := range spanClasses {
		if strings.EqualFold(string(c), s) {
			return i
		}
	}
	return -1
}

// spanFeatures describes tokens [start, end].
func spanFeatures(tokens []tokenizer.Token, feats []features.FeatureSet, start, end int) []string {
	first, last := feats[start], feats[end]
	out := []string{
		"bias",
		"len=" + strconv.Itoa(end-start+1),
		"first_word=" + first.Categorical("word"),
		"last_word=" + last.Categorical("word"),
		"first_shape=" + first.Categorical("shape"),
		"last_shape=" + last.Categorical("shape"),
		"prev_word=" + first.Categorical("prev_word"),
		"next_word=" + last.Categorical("next_word"),
	}

	allCap, hasPunct := true, false
	for k := start; k <= end; k++ {
		f := feats[k]
		if f.Bool("is_punctuation") {
			hasPunct = true
		}
		inner := k > start && k < end
		if !f.Bool("is_capitalized") && !(inner && f.Bool("is_stopword")) {
			allCap = false
		}
		out = append(out, "in_span="+f.Categorical("word"))
	}
	if allCap {
		out = append(out, "all_capitalized")
	}
	if hasPunct {
		out = append(out, "has_punctuation")
	}
	if first.Bool("is_stopword") || last.Bool("is_stopword") {
		out = append(out, "stopword_edge")
	}
	if first.Bool("prev_is_capitalized") {
		out = append(out, "prev_is_capitalized")
	}
	if last.Bool("next_is_capitalized") {
		out = append(out, "next_is_capitalized")
	}

	for _, c := range tagger.Categories {
		name := features.GazetteerFeature(c)
		all := true
		for k := start; k <= end; k++ {
			if feats[k].Bool("is_stopword") && k > start && k < end {
				continue
			}
			if !feats[k].Bool(name) {
				all = false
				break
			}
		}
		if all {
			out = append(out, "all_"+strings.ToLower(string(c))+"_gazetteer")
		}
	}
	sort.Strings(out)
	return out
}

func (m *spanModel) classScores(names []string) []float64 {
	s := make([]float64, len(spanClasses))
	for _, n := range names {
		w, ok := m.weights[n]
		if !ok {
			continue
		}
		for k := range s {
			s[k] += w[k]
		}
	}
	return s
}

// score enumerates every span up to maxLen tokens and keeps those whose
// best entity class beats O. Candidates are ranked by score descending,
// then start and end ascending. The emission table carries, for each token,
// the best candidate score of each B or I label covering it.
func (m *spanModel) score(tokens []tokenizer.Token, feats []features.FeatureSet) (Result, error) {
	n := len(tokens)
	res := Result{Kind: Span, Emissions: make([]tagger.Scores, n)}
	oIdx := len(spanClasses) - 1

	for start := 0; start < n; start++ {
		for end := start; end < n && end-start < m.maxLen; end++ {
			s := m.classScores(spanFeatures(tokens, feats, start, end))
			best := 0
			for k := 1; k < oIdx; k++ {
				if s[k] > s[best] {
					best = k
				}
			}
			margin := s[best] - s[oIdx]
			if margin <= 0 {
				continue
			}
			cat := spanClasses[best]
			res.Candidates = append(res.Candidates, Candidate{
				Start:      start,
				End:        end,
				Label:      cat,
				Score:      margin,
				Confidence: math.Exp(s[best] - logSumExp(s)),
			})
		}
	}

	sort.SliceStable(res.Candidates, func(i, j int) bool {
		a, b := res.Candidates[i], res.Candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End < b.End
	})

	for _, c := range res.Candidates {
		for k := c.Start; k <= c.End; k++ {
			l := tagger.Inside(c.Label)
			if k == c.Start {
				l = tagger.Begin(c.Label)
			}
			if c.Score > res.Emissions[k][l] {
				res.Emissions[k][l] = c.Score
			}
		}
	}
	return res, nil
}
