package scoring

import (
	"github.com/cognicore/nerpt/pkg/ner/features"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
)

// MaxEntParams are the weights of a per-token log-linear classifier.
// Transition is the uniform score of every structurally valid label pair;
// invalid pairs are always impossible.
type MaxEntParams struct {
	Weights    map[string]map[string]float64 `yaml:"weights" json:"weights"`
	Transition float64                       `yaml:"transition,omitempty" json:"transition,omitempty"`
}

type maxentModel struct {
	weights linear
	trans   tagger.Transitions
	start   tagger.Scores
}

// NewMaxEnt compiles MaxEnt parameters.
func NewMaxEnt(p MaxEntParams) (Model, error) {
	w, err := parseWeights(p.Weights)
	if err != nil {
		return Model{}, err
	}
	m := &maxentModel{weights: w}
	for prev := range m.trans {
		for next := range m.trans[prev] {
			m.trans[prev][next] = p.Transition
		}
	}
	tagger.Constrain(&m.trans, &m.start)
	return Model{kind: MaxEnt, maxent: m}, nil
}

// score emits log P(label | token), the log-softmax of the linear scores.
func (m *maxentModel) score(feats []features.FeatureSet) (Result, error) {
	res := Result{Kind: MaxEnt, Emissions: make([]tagger.Scores, len(feats)), Initial: m.start}
	for i, f := range feats {
		s, _ := m.weights.emit(f)
		z := logSumExp(s[:])
		for l := range s {
			s[l] -= z
		}
		res.Emissions[i] = s
	}
	trans := m.trans
	res.Transitions = &trans
	return res, nil
}
