package pipeline

import (
	"github.com/cognicore/nerpt/pkg/ner/span"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
)

// DefaultOverrideThreshold is the rule confidence above which a rule span
// takes precedence over statistical spans.
const DefaultOverrideThreshold = 0.85

// Merge combines rule spans and statistical spans into one non-overlapping
// sequence ordered by start. Spans are accepted greedily in three tiers:
// rule spans with confidence above threshold, then statistical spans, then
// the remaining rule spans. Within a tier earlier starts go first. A rule
// span identical in extent and label to a statistical span yields a single
// hybrid span carrying the higher confidence.
func Merge(ruleSpans, statSpans []tagger.EntitySpan, threshold float64) []tagger.EntitySpan {
	stats := append([]tagger.EntitySpan(nil), statSpans...)
	var strong, weak []tagger.EntitySpan

rule:
	for _, r := range ruleSpans {
		for i, s := range stats {
			if s.Start == r.Start && s.End == r.End && s.Label == r.Label {
				stats[i].Source = tagger.SourceHybrid
				stats[i].Rule = r.Rule
				if r.Confidence > s.Confidence {
					stats[i].Confidence = r.Confidence
				}
				continue rule
			}
		}
		if r.Confidence > threshold {
			strong = append(strong, r)
		} else {
			weak = append(weak, r)
		}
	}

	var out []tagger.EntitySpan
	for _, tier := range [][]tagger.EntitySpan{strong, stats, weak} {
		span.SortByStart(tier)
		for _, s := range tier {
			if !span.OverlapsAny(out, s) {
				out = append(out, s)
			}
		}
	}
	span.SortByStart(out)
	return out
}
