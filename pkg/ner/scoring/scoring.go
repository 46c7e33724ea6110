// Package scoring implements the five sequence-scoring model families.
//
// A Model is a closed tagged variant: exactly one of its parameter sets is
// populated and Score switches on the kind. Parameters are validated and
// compiled once at construction and are read-only afterwards, so a Model is
// safe for concurrent use.
package scoring

import (
	"fmt"
	"math"

	"github.com/cognicore/nerpt/pkg/ner/features"
	"github.com/cognicore/nerpt/pkg/ner/internalerr"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
	"github.com/cognicore/nerpt/pkg/ner/tokenizer"
)

// Kind names a model family.
type Kind string

const (
	CRF        Kind = "crf"
	HMM        Kind = "hmm"
	MaxEnt     Kind = "max_ent"
	Perceptron Kind = "perceptron"
	Span       Kind = "span"
)

// Kinds lists every family.
var Kinds = []Kind{CRF, HMM, MaxEnt, Perceptron, Span}

// ParseKind validates a model kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", internalerr.New(internalerr.KindConfiguration, "unknown model kind %q", s)
}

// Candidate is a scored span proposed by the span model. End is inclusive.
type Candidate struct {
	Start      int             `json:"start"`
	End        int             `json:"end"`
	Label      tagger.Category `json:"label"`
	Score      float64         `json:"score"`
	Confidence float64         `json:"confidence"`
}

// Result holds log-space scores for one token sequence. Transitions is nil
// for the span model, which ranks Candidates instead.
type Result struct {
	Kind        Kind                `json:"kind"`
	Emissions   []tagger.Scores     `json:"emissions"`
	Transitions *tagger.Transitions `json:"transitions,omitempty"`
	Initial     tagger.Scores       `json:"initial"`
	Candidates  []Candidate         `json:"candidates,omitempty"`
}

// Model is one of the five scoring families.
type Model struct {
	kind       Kind
	crf        *crfModel
	hmm        *hmmModel
	maxent     *maxentModel
	perceptron *perceptronModel
	span       *spanModel
}

// Kind reports the model family.
func (m Model) Kind() Kind { return m.kind }

// Sequential reports whether the model produces transition scores for the
// decoder.
func (m Model) Sequential() bool { return m.kind != Span && m.kind != "" }

// Score computes emission (and, for sequential models, transition) scores.
func (m Model) Score(tokens []tokenizer.Token, feats []features.FeatureSet) (Result, error) {
	if len(tokens) == 0 {
		return Result{}, internalerr.New(internalerr.KindScoring, "empty token sequence")
	}
	if len(feats) != len(tokens) {
		return Result{}, internalerr.New(internalerr.KindScoring,
			"%d feature sets for %d tokens", len(feats), len(tokens))
	}
	switch m.kind {
	case CRF:
		return m.crf.score(tokens, feats)
	case HMM:
		return m.hmm.score(feats)
	case MaxEnt:
		return m.maxent.score(feats)
	case Perceptron:
		return m.perceptron.score(feats)
	case Span:
		return m.span.score(tokens, feats)
	}
	return Result{}, internalerr.New(internalerr.KindConfiguration, "model has no parameters")
}

// linear is a sparse feature-to-label weight table.
type linear map[string]tagger.Scores

// emit sums the weights of every activation. Activations arrive sorted, so
// the float sums are reproducible. hit reports whether any activation had
// a weight.
func (l linear) emit(f features.FeatureSet) (s tagger.Scores, hit bool) {
	for _, a := range f.Active() {
		w, ok := l[a.Name]
		if !ok {
			continue
		}
		hit = true
		for k := range s {
			s[k] += w[k] * a.Value
		}
	}
	return s, hit
}

func configErr(format string, args ...any) error {
	return internalerr.New(internalerr.KindConfiguration, format, args...)
}

func parseWeights(m map[string]map[string]float64) (linear, error) {
	out := make(linear, len(m))
	for feat, row := range m {
		s, err := parseVector(row)
		if err != nil {
			return nil, configErr("feature %s: %v", feat, err)
		}
		out[feat] = s
	}
	return out, nil
}

func parseVector(row map[string]float64) (tagger.Scores, error) {
	var s tagger.Scores
	for name, w := range row {
		l, err := tagger.ParseLabel(name)
		if err != nil {
			return s, err
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return s, fmt.Errorf("label %s: weight %v is not finite", name, w)
		}
		s[l] = w
	}
	return s, nil
}

func parseMatrix(m map[string]map[string]float64) (tagger.Transitions, error) {
	var t tagger.Transitions
	for prev, row := range m {
		p, err := tagger.ParseLabel(prev)
		if err != nil {
			return t, configErr("transitions: %v", err)
		}
		s, err := parseVector(row)
		if err != nil {
			return t, configErr("transitions from %s: %v", prev, err)
		}
		t[p] = s
	}
	return t, nil
}

// logSumExp is log(sum(exp(xs))) computed without overflow.
func logSumExp(xs []float64) float64 {
	maxV := math.Inf(-1)
	for _, x := range xs {
		if x > maxV {
			maxV = x
		}
	}
	if math.IsInf(maxV, -1) {
		return maxV
	}
	sum := 0.0
	for _, x := range xs {
		sum += math.Exp(x - maxV)
	}
	return maxV + math.Log(sum)
}

// safeLog maps probability 0 to tagger.Impossible.
func safeLog(p float64) float64 {
	if p <= 0 {
		return tagger.Impossible
	}
	return math.Log(p)
}
