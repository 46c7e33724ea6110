package tagger

import "fmt"

// Source records which part of the pipeline produced a span.
type Source string

const (
	SourceRule        Source = "rule"
	SourceStatistical Source = "statistical"
	SourceHybrid      Source = "hybrid"
)

// EntitySpan is a contiguous run of tokens carrying one entity category.
// Start and End are inclusive token indices; CharStart and CharEnd are rune
// offsets into the analyzed text.
type EntitySpan struct {
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Label      Category `json:"label"`
	Confidence float64  `json:"confidence"`
	Source     Source   `json:"source"`
	Text       string   `json:"text"`
	CharStart  int      `json:"char_start"`
	CharEnd    int      `json:"char_end"`
	Rule       string   `json:"rule,omitempty"`
}

// Len is the number of tokens in the span.
func (s EntitySpan) Len() int { return s.End - s.Start + 1 }

// Overlaps reports whether the spans share a token index.
func (s EntitySpan) Overlaps(o EntitySpan) bool {
	return s.Start <= o.End && o.Start <= s.End
}

func (s EntitySpan) String() string {
	return fmt.Sprintf("[%d,%d]%s", s.Start, s.End, s.Label)
}

// NonOverlapping reports whether no two spans share a token index.
func NonOverlapping(spans []EntitySpan) bool {
	for i := range spans {
		for j := i + 1; j < len(spans); j++ {
			if spans[i].Overlaps(spans[j]) {
				return false
			}
		}
	}
	return true
}
