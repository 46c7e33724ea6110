package scoring

import (
	"github.com/cognicore/nerpt/pkg/ner/features"
	"github.com/cognicore/nerpt/pkg/ner/internalerr"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
	"github.com/cognicore/nerpt/pkg/ner/tokenizer"
)

// CRFParams are the weights of a linear-chain CRF. Emissions map a feature
// activation name to per-label weights; transitions are indexed
// [prev][next]. Pairs absent from the tables weigh 0.
type CRFParams struct {
	Emissions   map[string]map[string]float64 `yaml:"emissions" json:"emissions"`
	Transitions map[string]map[string]float64 `yaml:"transitions" json:"transitions"`
	Start       map[string]float64            `yaml:"start,omitempty" json:"start,omitempty"`
	// Strict rejects tokens that activate no weighted feature.
	Strict bool `yaml:"strict,omitempty" json:"strict,omitempty"`
}

type crfModel struct {
	emit   linear
	trans  tagger.Transitions
	start  tagger.Scores
	strict bool
}

// NewCRF compiles CRF parameters.
func NewCRF(p CRFParams) (Model, error) {
	emit, err := parseWeights(p.Emissions)
	if err != nil {
		return Model{}, err
	}
	trans, err := parseMatrix(p.Transitions)
	if err != nil {
		return Model{}, err
	}
	start, err := parseVector(p.Start)
	if err != nil {
		return Model{}, configErr("start: %v", err)
	}
	tagger.Constrain(&trans, &start)
	return Model{kind: CRF, crf: &crfModel{emit: emit, trans: trans, start: start, strict: p.Strict}}, nil
}

func (m *crfModel) score(tokens []tokenizer.Token, feats []features.FeatureSet) (Result, error) {
	res := Result{Kind: CRF, Emissions: make([]tagger.Scores, len(feats)), Initial: m.start}
	for i, f := range feats {
		s, hit := m.emit.emit(f)
		if m.strict && !hit {
			return Result{}, internalerr.New(internalerr.KindScoring,
				"token %d (%q) activates no weighted feature", i, tokens[i].Text)
		}
		res.Emissions[i] = s
	}
	trans := m.trans
	res.Transitions = &trans
	return res, nil
}
