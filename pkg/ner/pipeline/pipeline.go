// Package pipeline wires tokenization, features, rules, scoring, decoding
// and span assembly into the eight algorithm modes, recording a trace event
// for every stage it runs.
package pipeline

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"k8s.io/klog/v2"

	"github.com/cognicore/nerpt/pkg/ner/features"
	"github.com/cognicore/nerpt/pkg/ner/internalerr"
	"github.com/cognicore/nerpt/pkg/ner/rules"
	"github.com/cognicore/nerpt/pkg/ner/scoring"
	"github.com/cognicore/nerpt/pkg/ner/span"
	"github.com/cognicore/nerpt/pkg/ner/stoplist"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
	"github.com/cognicore/nerpt/pkg/ner/tokenizer"
	"github.com/cognicore/nerpt/pkg/ner/viterbi"
)

// Resources are the process-wide tables every run reads. They must not be
// modified once handed to an Orchestrator.
type Resources struct {
	Tokenizer *tokenizer.Tokenizer
	Extractor *features.Extractor
	Rules     *rules.Engine
	Models    map[scoring.Kind]scoring.Model

	// OverrideThreshold is the hybrid rule-precedence threshold; 0 means
	// DefaultOverrideThreshold.
	OverrideThreshold float64
}

// Request is a run in wire form.
type Request struct {
	Text      string `json:"text"`
	Mode      string `json:"mode"`
	Tokenizer string `json:"tokenizer_mode"`

	// OnEvent, when set, sees each event as soon as it is recorded.
	OnEvent func(Event) `json:"-"`
}

// Result is the outcome of one run. Spans is set, possibly empty, for every
// mode except FeaturesOnly, which sets Features instead.
type Result struct {
	RunID     string                `json:"run_id"`
	Mode      AlgorithmMode         `json:"mode"`
	Tokenizer tokenizer.Mode        `json:"tokenizer_mode"`
	Tokens    []tokenizer.Token     `json:"tokens"`
	Events    []Event               `json:"events"`
	Spans     []tagger.EntitySpan   `json:"spans"`
	Features  []features.FeatureSet `json:"features,omitempty"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces time.Now for event timestamps and run IDs.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator runs texts through the pipeline. It is safe for concurrent
// use; each run keeps its state to itself.
type Orchestrator struct {
	res       Resources
	threshold float64
	now       func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New validates resources and fills in defaults for a missing tokenizer,
// extractor or rule engine.
func New(res Resources, opts ...Option) (*Orchestrator, error) {
	if res.Tokenizer == nil {
		res.Tokenizer = tokenizer.Default()
	}
	if res.Extractor == nil {
		res.Extractor = features.NewExtractor(nil, stoplist.Default())
	}
	if res.Rules == nil {
		engine, err := rules.NewEngine(nil, nil, stoplist.Default())
		if err != nil {
			return nil, err
		}
		res.Rules = engine
	}
	threshold := res.OverrideThreshold
	if threshold == 0 {
		threshold = DefaultOverrideThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, internalerr.New(internalerr.KindConfiguration,
			"override threshold %v outside [0,1]", threshold)
	}
	for kind, m := range res.Models {
		if m.Kind() != kind {
			return nil, internalerr.New(internalerr.KindConfiguration,
				"model registered as %s has kind %q", kind, m.Kind())
		}
	}

	o := &Orchestrator{
		res:       res,
		threshold: threshold,
		now:       time.Now,
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Threshold is the effective hybrid override threshold.
func (o *Orchestrator) Threshold() float64 { return o.threshold }

// Supports reports whether every resource mode needs is loaded.
func (o *Orchestrator) Supports(mode AlgorithmMode) bool {
	return o.check(mode) == nil
}

func (o *Orchestrator) check(mode AlgorithmMode) error {
	p, ok := plans[mode]
	if !ok {
		return internalerr.New(internalerr.KindConfiguration, "unknown mode %q", mode)
	}
	if p.scorer != "" {
		if _, ok := o.res.Models[p.scorer]; !ok {
			return internalerr.New(internalerr.KindConfiguration,
				"mode %s needs the %s model, which is not loaded", mode, p.scorer)
		}
	}
	return nil
}

// RunRequest parses the wire strings of req and runs it.
func (o *Orchestrator) RunRequest(req Request) (Result, error) {
	mode, err := ParseMode(req.Mode)
	if err != nil {
		return Result{}, err
	}
	tm, err := tokenizer.ParseMode(req.Tokenizer)
	if err != nil {
		return Result{}, err
	}
	return o.run(req.Text, mode, tm, req.OnEvent)
}

// Run analyzes text. A configuration problem (unknown mode or tokenizer, or
// a model the mode needs is missing) is returned before any stage runs and
// the result carries no events. Any other failure ends the trace with an
// error event, is returned alongside the partial trace and yields no spans.
func (o *Orchestrator) Run(text string, mode AlgorithmMode, tm tokenizer.Mode) (Result, error) {
	return o.run(text, mode, tm, nil)
}

func (o *Orchestrator) run(text string, mode AlgorithmMode, tm tokenizer.Mode, onEvent func(Event)) (Result, error) {
	if err := o.check(mode); err != nil {
		return Result{}, err
	}
	if _, err := tokenizer.ParseMode(string(tm)); err != nil {
		return Result{}, err
	}
	if tm == "" {
		tm = tokenizer.Standard
	}

	start := o.now()
	r := &run{
		o:       o,
		mode:    mode,
		tm:      tm,
		text:    text,
		onEvent: onEvent,
		result:  Result{RunID: o.newID(start), Mode: mode, Tokenizer: tm},
	}

	for _, stage := range plans[mode].stages {
		if err := r.step(stage); err != nil {
			kind, _ := internalerr.KindOf(err)
			if kind == internalerr.KindDecode {
				klog.Errorf("run %s: invariant violation in %s: %v", r.result.RunID, stage, err)
			} else {
				klog.Warningf("run %s: %s failed: %v", r.result.RunID, stage, err)
			}
			r.emit(StageError, ErrorPayload{Kind: kind, Message: err.Error()})
			r.result.Spans = nil
			return r.result, err
		}
	}

	r.emit(StageDone, DonePayload{
		Tokens:    len(r.tokens),
		Spans:     len(r.result.Spans),
		ElapsedMS: o.now().Sub(start).Milliseconds(),
	})
	klog.V(2).Infof("run %s: mode=%s tokenizer=%s tokens=%d spans=%d",
		r.result.RunID, mode, tm, len(r.tokens), len(r.result.Spans))
	return r.result, nil
}

func (o *Orchestrator) newID(t time.Time) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), o.entropy).String()
}

// run is the state of one invocation.
type run struct {
	o       *Orchestrator
	mode    AlgorithmMode
	tm      tokenizer.Mode
	text    string
	onEvent func(Event)
	result  Result

	tokens []tokenizer.Token
	feats  []features.FeatureSet
	hits   []rules.Hit
	scores scoring.Result
	path   viterbi.Result
}

func (r *run) emit(stage Stage, payload any) {
	ev := Event{Seq: len(r.result.Events), Stage: stage, Time: r.o.now(), Payload: payload}
	r.result.Events = append(r.result.Events, ev)
	if r.onEvent != nil {
		r.onEvent(ev)
	}
}

// step runs one stage and records its event. Rules, scoring and decoding are
// skipped on an empty token sequence.
func (r *run) step(stage Stage) error {
	empty := len(r.tokens) == 0
	switch stage {
	case StageTokenized:
		return r.tokenize()

	case StageFeaturesExtracted:
		r.feats = r.o.res.Extractor.Extract(r.tokens)
		r.emit(stage, FeaturesPayload{Features: r.feats})
		if r.mode == FeaturesOnly {
			r.result.Features = r.feats
		}

	case StageRulesMatched:
		if empty {
			return nil
		}
		r.hits = r.o.res.Rules.Match(r.tokens)
		r.emit(stage, RulesPayload{Hits: r.hits})

	case StageScored:
		if empty {
			return nil
		}
		res, err := r.o.res.Models[plans[r.mode].scorer].Score(r.tokens, r.feats)
		if err != nil {
			return err
		}
		r.scores = res
		r.emit(stage, ScoredPayload{Scores: res})

	case StageDecoded:
		if empty {
			return nil
		}
		res, err := viterbi.Decode(r.scores.Emissions, r.scores.Transitions, r.scores.Initial)
		if err != nil {
			return err
		}
		if !tagger.ValidSequence(res.Path) {
			return internalerr.New(internalerr.KindDecode, "decoded path %v is not well formed", res.Path)
		}
		r.path = res
		r.emit(stage, DecodedPayload{Result: res})

	case StageSpanned:
		spans := r.spans()
		if !tagger.NonOverlapping(spans) {
			return internalerr.New(internalerr.KindDecode, "overlapping spans %v", spans)
		}
		if spans == nil {
			spans = []tagger.EntitySpan{}
		}
		r.result.Spans = spans
		r.emit(stage, SpannedPayload{Spans: spans})

	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
	return nil
}

func (r *run) tokenize() error {
	toks, err := r.o.res.Tokenizer.Tokenize(r.text, r.tm)
	if err != nil {
		if !errors.Is(err, internalerr.ErrTokenization) {
			return err
		}
		klog.Warningf("run %s: %v; continuing with no tokens", r.result.RunID, err)
		r.emit(StageWarning, ErrorPayload{Kind: internalerr.KindTokenization, Message: err.Error()})
		toks = nil
	}
	if toks == nil {
		toks = []tokenizer.Token{}
	}
	r.tokens = toks
	r.result.Tokens = toks
	r.emit(StageTokenized, TokenizedPayload{Mode: r.tm, Tokens: toks})
	return nil
}

func (r *run) spans() []tagger.EntitySpan {
	if len(r.tokens) == 0 {
		return nil
	}
	switch r.mode {
	case RulesOnly:
		return span.FromHits(r.tokens, r.hits)
	case SpanBased:
		return span.SelectCandidates(r.tokens, r.scores.Candidates)
	}
	stat := span.Assemble(r.tokens, r.path.Path, r.path.Confidence, tagger.SourceStatistical)
	if r.mode == Hybrid {
		return Merge(span.FromHits(r.tokens, r.hits), stat, r.o.threshold)
	}
	return stat
}
