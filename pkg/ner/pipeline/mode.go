package pipeline

import (
	"github.com/cognicore/nerpt/pkg/ner/internalerr"
	"github.com/cognicore/nerpt/pkg/ner/scoring"
)

// AlgorithmMode selects which stages run and which model scores.
type AlgorithmMode string

const (
	Hybrid       AlgorithmMode = "hybrid"
	RulesOnly    AlgorithmMode = "rules_only"
	CRFOnly      AlgorithmMode = "crf_only"
	FeaturesOnly AlgorithmMode = "features_only"
	HMM          AlgorithmMode = "hmm"
	MaxEnt       AlgorithmMode = "max_ent"
	Perceptron   AlgorithmMode = "perceptron"
	SpanBased    AlgorithmMode = "span_based"
)

// Modes lists every mode in wire order.
var Modes = []AlgorithmMode{Hybrid, RulesOnly, CRFOnly, FeaturesOnly, HMM, MaxEnt, Perceptron, SpanBased}

// ParseMode validates a wire mode string. The empty string is Hybrid.
func ParseMode(s string) (AlgorithmMode, error) {
	if s == "" {
		return Hybrid, nil
	}
	m := AlgorithmMode(s)
	if _, ok := plans[m]; !ok {
		return "", internalerr.New(internalerr.KindConfiguration, "unknown mode %q", s)
	}
	return m, nil
}

// Stage identifies a trace event.
type Stage string

const (
	StageTokenized         Stage = "tokenized"
	StageFeaturesExtracted Stage = "features_extracted"
	StageRulesMatched      Stage = "rules_matched"
	StageScored            Stage = "scored"
	StageDecoded           Stage = "decoded"
	StageSpanned           Stage = "spanned"
	StageDone              Stage = "done"
	StageError             Stage = "error"
	StageWarning           Stage = "warning"
)

// plan is the fixed route of one mode through the pipeline.
type plan struct {
	stages []Stage
	scorer scoring.Kind
}

var (
	sequentialStages = []Stage{StageTokenized, StageFeaturesExtracted, StageScored, StageDecoded, StageSpanned}

	plans = map[AlgorithmMode]plan{
		Hybrid: {
			stages: []Stage{StageTokenized, StageFeaturesExtracted, StageRulesMatched, StageScored, StageDecoded, StageSpanned},
			scorer: scoring.CRF,
		},
		RulesOnly:    {stages: []Stage{StageTokenized, StageRulesMatched, StageSpanned}},
		CRFOnly:      {stages: sequentialStages, scorer: scoring.CRF},
		HMM:          {stages: sequentialStages, scorer: scoring.HMM},
		MaxEnt:       {stages: sequentialStages, scorer: scoring.MaxEnt},
		Perceptron:   {stages: sequentialStages, scorer: scoring.Perceptron},
		SpanBased:    {stages: []Stage{StageTokenized, StageFeaturesExtracted, StageScored, StageSpanned}, scorer: scoring.Span},
		FeaturesOnly: {stages: []Stage{StageTokenized, StageFeaturesExtracted}},
	}
)

// Stages returns the ordered stages mode traverses, nil for an unknown mode.
func Stages(mode AlgorithmMode) []Stage {
	p, ok := plans[mode]
	if !ok {
		return nil
	}
	return append([]Stage(nil), p.stages...)
}

// Scorer returns the model kind mode scores with, "" when it scores nothing.
func Scorer(mode AlgorithmMode) scoring.Kind {
	return plans[mode].scorer
}
