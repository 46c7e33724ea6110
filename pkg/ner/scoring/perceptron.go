package scoring

import (
	"github.com/cognicore/nerpt/pkg/ner/features"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
)

// PerceptronParams hold an averaged structured perceptron: the averaged
// feature weights and a small transition table where missing pairs weigh 0.
type PerceptronParams struct {
	Weights     map[string]map[string]float64 `yaml:"weights" json:"weights"`
	Transitions map[string]map[string]float64 `yaml:"transitions,omitempty" json:"transitions,omitempty"`
}

type perceptronModel struct {
	weights linear
	trans   tagger.Transitions
	start   tagger.Scores
}

// NewPerceptron compiles perceptron parameters.
func NewPerceptron(p PerceptronParams) (Model, error) {
	w, err := parseWeights(p.Weights)
	if err != nil {
		return Model{}, err
	}
	trans, err := parseMatrix(p.Transitions)
	if err != nil {
		return Model{}, err
	}
	m := &perceptronModel{weights: w, trans: trans}
	tagger.Constrain(&m.trans, &m.start)
	return Model{kind: Perceptron, perceptron: m}, nil
}

func (m *perceptronModel) score(feats []features.FeatureSet) (Result, error) {
	res := Result{Kind: Perceptron, Emissions: make([]tagger.Scores, len(feats)), Initial: m.start}
	for i, f := range feats {
		res.Emissions[i], _ = m.weights.emit(f)
	}
	trans := m.trans
	res.Transitions = &trans
	return res, nil
}
