package pipeline

import (
	"time"

	"github.com/cognicore/nerpt/pkg/ner/features"
	"github.com/cognicore/nerpt/pkg/ner/internalerr"
	"github.com/cognicore/nerpt/pkg/ner/rules"
	"github.com/cognicore/nerpt/pkg/ner/scoring"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
	"github.com/cognicore/nerpt/pkg/ner/tokenizer"
	"github.com/cognicore/nerpt/pkg/ner/viterbi"
)

// Event is one entry of a run trace. Seq starts at 0 and increases by one.
type Event struct {
	Seq     int       `json:"seq"`
	Stage   Stage     `json:"stage"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

// TokenizedPayload carries the token sequence.
type TokenizedPayload struct {
	Mode   tokenizer.Mode    `json:"tokenizer_mode"`
	Tokens []tokenizer.Token `json:"tokens"`
}

// FeaturesPayload carries one feature set per token.
type FeaturesPayload struct {
	Features []features.FeatureSet `json:"features"`
}

// RulesPayload carries the rule hits.
type RulesPayload struct {
	Hits []rules.Hit `json:"hits"`
}

// ScoredPayload carries the score tables of the mode's model.
type ScoredPayload struct {
	Scores scoring.Result `json:"scores"`
}

// DecodedPayload carries the best path with its lattice and backpointers.
type DecodedPayload struct {
	viterbi.Result
}

// SpannedPayload carries the final spans.
type SpannedPayload struct {
	Spans []tagger.EntitySpan `json:"spans"`
}

// DonePayload summarizes a finished run.
type DonePayload struct {
	Tokens    int   `json:"tokens"`
	Spans     int   `json:"spans"`
	ElapsedMS int64 `json:"elapsed_ms"`
}

// ErrorPayload describes a failure or a recovered problem.
type ErrorPayload struct {
	Kind    internalerr.Kind `json:"kind"`
	Message string           `json:"message"`
}
