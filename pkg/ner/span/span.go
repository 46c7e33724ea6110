// Package span turns label sequences, rule hits and span candidates into
// entity spans.
package span

import (
	"sort"
	"strings"

	"github.com/cognicore/nerpt/pkg/ner/rules"
	"github.com/cognicore/nerpt/pkg/ner/scoring"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
	"github.com/cognicore/nerpt/pkg/ner/tokenizer"
)

// Assemble groups B-X with the I-X labels that immediately follow it. An I-X
// that does not continue a span of the same category starts a new one.
// Span confidence is the mean of its token confidences; confidences may be
// nil, giving 1.
func Assemble(tokens []tokenizer.Token, labels []tagger.Label, confidences []float64, source tagger.Source) []tagger.EntitySpan {
	var out []tagger.EntitySpan
	cur := -1
	sum := 0.0

	flush := func(end int) {
		if cur < 0 {
			return
		}
		s := New(tokens, cur, end, labels[cur].Category(), sum/float64(end-cur+1), source)
		out = append(out, s)
		cur = -1
	}

	for i, l := range labels {
		c := 1.0
		if i < len(confidences) {
			c = confidences[i]
		}
		switch {
		case l.IsOutside():
			flush(i - 1)
		case l.IsInside() && cur >= 0 && labels[cur].Category() == l.Category():
			sum += c
		default:
			flush(i - 1)
			cur, sum = i, c
		}
	}
	flush(len(labels) - 1)
	return out
}

// SelectCandidates picks non-overlapping candidates greedily, best score
// first and earlier start on equal score. The result is ordered by start.
func SelectCandidates(tokens []tokenizer.Token, candidates []scoring.Candidate) []tagger.EntitySpan {
	ranked := append([]scoring.Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End < b.End
	})

	var out []tagger.EntitySpan
	for _, c := range ranked {
		s := New(tokens, c.Start, c.End, c.Label, c.Confidence, tagger.SourceStatistical)
		if OverlapsAny(out, s) {
			continue
		}
		out = append(out, s)
	}
	SortByStart(out)
	return out
}

// FromHits converts rule hits to spans.
func FromHits(tokens []tokenizer.Token, hits []rules.Hit) []tagger.EntitySpan {
	out := make([]tagger.EntitySpan, 0, len(hits))
	for _, h := range hits {
		s := New(tokens, h.Start, h.End, h.Label, h.Confidence, tagger.SourceRule)
		s.Rule = h.Rule
		out = append(out, s)
	}
	SortByStart(out)
	return out
}

// New builds the span over tokens[start..end]. Text joins the token texts
// with a single space wherever the original had a gap.
func New(tokens []tokenizer.Token, start, end int, label tagger.Category, confidence float64, source tagger.Source) tagger.EntitySpan {
	var b strings.Builder
	for k := start; k <= end; k++ {
		if k > start && tokens[k].Start > tokens[k-1].End {
			b.WriteByte(' ')
		}
		b.WriteString(tokens[k].Text)
	}
	return tagger.EntitySpan{
		Start:      start,
		End:        end,
		Label:      label,
		Confidence: confidence,
		Source:     source,
		Text:       b.String(),
		CharStart:  tokens[start].Start,
		CharEnd:    tokens[end].End,
	}
}

// SortByStart orders spans by start, then end.
func SortByStart(spans []tagger.EntitySpan) {
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
}

// OverlapsAny reports whether s shares a token with any accepted span.
func OverlapsAny(accepted []tagger.EntitySpan, s tagger.EntitySpan) bool {
	for _, a := range accepted {
		if a.Overlaps(s) {
			return true
		}
	}
	return false
}
