package scoring

import (
	"fmt"
	"math"

	"github.com/cognicore/nerpt/pkg/ner/features"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
)

// stochasticTolerance is how far a probability row may drift from 1.
const stochasticTolerance = 1e-6

// defaultFloor is the probability of an observation a label never emitted.
const defaultFloor = 1e-6

// HMMParams are the probabilities of a first-order HMM. Words and Shapes
// map a label to P(observation | label). A token is observed as its lower
// case word when some label knows that word, otherwise as its shape.
type HMMParams struct {
	Start       map[string]float64            `yaml:"start" json:"start"`
	Transitions map[string]map[string]float64 `yaml:"transitions" json:"transitions"`
	Words       map[string]map[string]float64 `yaml:"words" json:"words"`
	Shapes      map[string]map[string]float64 `yaml:"shapes" json:"shapes"`
	Floor       float64                       `yaml:"floor,omitempty" json:"floor,omitempty"`
}

type hmmModel struct {
	start  tagger.Scores
	trans  tagger.Transitions
	words  [tagger.NumLabels]map[string]float64
	shapes [tagger.NumLabels]map[string]float64
	known  map[string]struct{}
	floor  float64
}

// NewHMM validates that start and every transition row are probability
// distributions and stores their logs.
func NewHMM(p HMMParams) (Model, error) {
	m := &hmmModel{known: make(map[string]struct{}), floor: p.Floor}
	if m.floor <= 0 {
		m.floor = defaultFloor
	}
	if m.floor >= 1 {
		return Model{}, configErr("hmm floor %v must be below 1", m.floor)
	}

	start, err := probVector(p.Start)
	if err != nil {
		return Model{}, configErr("hmm start: %v", err)
	}
	if err := checkStochastic("start", start); err != nil {
		return Model{}, err
	}

	var rows [tagger.NumLabels]tagger.Scores
	for prev, row := range p.Transitions {
		l, err := tagger.ParseLabel(prev)
		if err != nil {
			return Model{}, configErr("hmm transitions: %v", err)
		}
		if rows[l], err = probVector(row); err != nil {
			return Model{}, configErr("hmm transitions from %s: %v", prev, err)
		}
	}
	for l := range rows {
		if err := checkStochastic("transitions from "+tagger.Label(l).String(), rows[l]); err != nil {
			return Model{}, err
		}
	}

	for l := 0; l < tagger.NumLabels; l++ {
		m.start[l] = safeLog(start[l])
		for n := 0; n < tagger.NumLabels; n++ {
			m.trans[l][n] = safeLog(rows[l][n])
		}
	}
	tagger.Constrain(&m.trans, &m.start)

	if m.words, err = emissionTables(p.Words, m.known); err != nil {
		return Model{}, configErr("hmm words: %v", err)
	}
	if m.shapes, err = emissionTables(p.Shapes, nil); err != nil {
		return Model{}, configErr("hmm shapes: %v", err)
	}
	return Model{kind: HMM, hmm: m}, nil
}

func probVector(row map[string]float64) (tagger.Scores, error) {
	s, err := parseVector(row)
	if err != nil {
		return s, err
	}
	for l, p := range s {
		if p < 0 || p > 1 {
			return s, fmt.Errorf("probability %v for %s outside [0,1]", p, tagger.Label(l))
		}
	}
	return s, nil
}

func checkStochastic(what string, s tagger.Scores) error {
	sum := 0.0
	for _, p := range s {
		sum += p
	}
	if math.Abs(sum-1) > stochasticTolerance {
		return configErr("hmm %s sums to %v, want 1", what, sum)
	}
	return nil
}

// emissionTables stores log probabilities per label. When known is not nil
// every observation is recorded in it.
func emissionTables(m map[string]map[string]float64, known map[string]struct{}) ([tagger.NumLabels]map[string]float64, error) {
	var out [tagger.NumLabels]map[string]float64
	for name, row := range m {
		l, err := tagger.ParseLabel(name)
		if err != nil {
			return out, err
		}
		out[l] = make(map[string]float64, len(row))
		for obs, p := range row {
			if p <= 0 || p > 1 {
				return out, fmt.Errorf("P(%s|%s) = %v outside (0,1]", obs, name, p)
			}
			out[l][obs] = math.Log(p)
			if known != nil {
				known[obs] = struct{}{}
			}
		}
	}
	return out, nil
}

func (m *hmmModel) score(feats []features.FeatureSet) (Result, error) {
	res := Result{Kind: HMM, Emissions: make([]tagger.Scores, len(feats)), Initial: m.start}
	logFloor := math.Log(m.floor)
	for i, f := range feats {
		table := &m.shapes
		obs := f.Categorical("shape")
		if word := f.Categorical("word"); word != "" {
			if _, ok := m.known[word]; ok {
				table, obs = &m.words, word
			}
		}
		for l := 0; l < tagger.NumLabels; l++ {
			lp, ok := table[l][obs]
			if !ok {
				lp = logFloor
			}
			res.Emissions[i][l] = lp
		}
	}
	trans := m.trans
	res.Transitions = &trans
	return res, nil
}
