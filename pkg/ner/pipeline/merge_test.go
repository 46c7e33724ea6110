package pipeline

import (
	"reflect"
	"testing"

	"github.com/cognicore/nerpt/pkg/ner/tagger"
)

func sp(start, end int, label tagger.Category, conf float64, src tagger.Source) tagger.EntitySpan {
	return tagger.EntitySpan{Start: start, End: end, Label: label, Confidence: conf, Source: src}
}

func TestMergeConfidentRuleOverrides(t *testing.T) {
	rules := []tagger.EntitySpan{sp(0, 1, tagger.ORG, 0.93, tagger.SourceRule)}
	stats := []tagger.EntitySpan{sp(0, 0, tagger.PER, 0.7, tagger.SourceStatistical)}

	got := Merge(rules, stats, 0.85)
	if want := []string{"[0,1]ORG"}; !reflect.DeepEqual(spanStrings(got), want) {
		t.Errorf("Expected %v, got %v", want, spanStrings(got))
	}
}

func TestMergeWeakRuleYields(t *testing.T) {
	rules := []tagger.EntitySpan{sp(0, 1, tagger.ORG, 0.80, tagger.SourceRule)}
	stats := []tagger.EntitySpan{sp(0, 0, tagger.PER, 0.7, tagger.SourceStatistical)}

	got := Merge(rules, stats, 0.85)
	if want := []string{"[0,0]PER"}; !reflect.DeepEqual(spanStrings(got), want) {
		t.Errorf("Expected %v, got %v", want, spanStrings(got))
	}
	if got[0].Source != tagger.SourceStatistical {
		t.Errorf("Expected statistical source, got %s", got[0].Source)
	}
}

func TestMergeThresholdIsStrict(t *testing.T) {
	rules := []tagger.EntitySpan{sp(2, 2, tagger.LOC, 0.85, tagger.SourceRule)}
	stats := []tagger.EntitySpan{sp(2, 3, tagger.MISC, 0.6, tagger.SourceStatistical)}

	got := Merge(rules, stats, 0.85)
	if want := []string{"[2,3]MISC"}; !reflect.DeepEqual(spanStrings(got), want) {
		t.Errorf("Expected %v, got %v", want, spanStrings(got))
	}
}

func TestMergeUnionAndHybrid(t *testing.T) {
	rules := []tagger.EntitySpan{
		sp(0, 1, tagger.PER, 0.92, tagger.SourceRule),
		sp(6, 6, tagger.LOC, 0.5, tagger.SourceRule),
	}
	stats := []tagger.EntitySpan{
		sp(0, 1, tagger.PER, 0.95, tagger.SourceStatistical),
		sp(3, 4, tagger.ORG, 0.6, tagger.SourceStatistical),
	}
	rules[0].Rule = "per_gazetteer"

	got := Merge(rules, stats, 0.85)
	if want := []string{"[0,1]PER", "[3,4]ORG", "[6,6]LOC"}; !reflect.DeepEqual(spanStrings(got), want) {
		t.Fatalf("Expected %v, got %v", want, spanStrings(got))
	}
	if got[0].Source != tagger.SourceHybrid || got[0].Rule != "per_gazetteer" || got[0].Confidence != 0.95 {
		t.Errorf("Expected hybrid span with rule name and max confidence, got %+v", got[0])
	}
	if got[2].Source != tagger.SourceRule {
		t.Errorf("Expected rule source for uncontested weak rule, got %s", got[2].Source)
	}
	if stats[0].Source != tagger.SourceStatistical {
		t.Errorf("Merge modified its input")
	}
}

func TestMergeEmpty(t *testing.T) {
	if got := Merge(nil, nil, 0.85); len(got) != 0 {
		t.Errorf("Expected no spans, got %v", got)
	}
}
