// Package config reads the YAML tables the pipeline starts from:
// gazetteers, rule patterns, model weights and pipeline settings.
package config

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/nerpt/pkg/ner/gazetteer"
	"github.com/cognicore/nerpt/pkg/ner/internalerr"
	"github.com/cognicore/nerpt/pkg/ner/ned"
	"github.com/cognicore/nerpt/pkg/ner/nel"
	"github.com/cognicore/nerpt/pkg/ner/rules"
	"github.com/cognicore/nerpt/pkg/ner/scoring"
	"github.com/cognicore/nerpt/pkg/ner/stoplist"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
	"github.com/cognicore/nerpt/pkg/ner/tokenizer"
)

// GazetteerFile is the gazetteers.yaml layout. Lists are keyed by category
// and take the category's default confidence.
type GazetteerFile struct {
	Lists   map[string][]string `yaml:"lists"`
	Entries []gazetteer.Entry   `yaml:"entries"`
}

// PatternFile is the patterns.yaml layout.
type PatternFile struct {
	Patterns []rules.Pattern `yaml:"patterns"`
}

// KnowledgeFile is the knowledge.yaml layout.
type KnowledgeFile struct {
	Disambiguation []ned.Profile `yaml:"disambiguation"`
	Records        []nel.Record  `yaml:"records"`
}

// Knowledge holds the tables applied to finished runs: disambiguation
// profiles and the linking knowledge base.
type Knowledge struct {
	Disambiguator *ned.Disambiguator
	Base          *nel.KnowledgeBase
}

// Settings is the pipeline.yaml layout.
type Settings struct {
	OverrideThreshold float64 `yaml:"override_threshold"`
	RulesAnyCase      bool    `yaml:"rules_any_case"`
	Tokenizer         struct {
		Abbreviations []string `yaml:"abbreviations"`
		Merges        []string `yaml:"merges"`
	} `yaml:"tokenizer"`
	Stoplist struct {
		Terms      []string `yaml:"terms"`
		Connectors []string `yaml:"connectors"`
	} `yaml:"stoplist"`
}

// StopList builds the configured stoplist, falling back to the built-in
// tables for each empty list.
func (s Settings) StopList() *stoplist.List {
	terms, connectors := s.Stoplist.Terms, s.Stoplist.Connectors
	if len(terms) == 0 {
		terms = stoplist.DefaultTerms
	}
	if len(connectors) == 0 {
		connectors = stoplist.DefaultConnectors
	}
	return stoplist.New(terms, connectors)
}

// NewTokenizer builds the configured tokenizer, falling back to the
// built-in tables for each empty list.
func (s Settings) NewTokenizer() *tokenizer.Tokenizer {
	abbrevs, merges := s.Tokenizer.Abbreviations, s.Tokenizer.Merges
	if len(abbrevs) == 0 {
		abbrevs = tokenizer.DefaultAbbreviations
	}
	if len(merges) == 0 {
		merges = tokenizer.DefaultMerges
	}
	return tokenizer.NewTokenizer(abbrevs, merges)
}

// decode reads one strict YAML document. An empty stream leaves v unchanged.
func decode(r io.Reader, v any, what string) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return internalerr.Wrap(internalerr.KindConfiguration, err, "parse "+what)
	}
	return nil
}

func configErr(format string, args ...any) error {
	return internalerr.New(internalerr.KindConfiguration, format, args...)
}

// ReadGazetteerEntries decodes gazetteers.yaml into a flat entry list:
// lists first in category order, then explicit entries.
func ReadGazetteerEntries(r io.Reader) ([]gazetteer.Entry, error) {
	var f GazetteerFile
	if err := decode(r, &f, "gazetteers"); err != nil {
		return nil, err
	}

	lists := make(map[tagger.Category][]string, len(f.Lists))
	for name, surfaces := range f.Lists {
		c, err := tagger.ParseCategory(name)
		if err != nil {
			return nil, configErr("gazetteer list %q: %v", name, err)
		}
		lists[c] = append(lists[c], surfaces...)
	}

	var entries []gazetteer.Entry
	for _, c := range tagger.Categories {
		for _, s := range lists[c] {
			entries = append(entries, gazetteer.Entry{Surface: s, Category: c})
		}
	}
	for _, e := range f.Entries {
		c, err := tagger.ParseCategory(string(e.Category))
		if err != nil {
			return nil, configErr("gazetteer entry %q: %v", e.Surface, err)
		}
		if e.Confidence < 0 || e.Confidence > 1 {
			return nil, configErr("gazetteer entry %q: confidence %v outside [0,1]", e.Surface, e.Confidence)
		}
		e.Category = c
		entries = append(entries, e)
	}
	return entries, nil
}

// LoadGazetteers decodes gazetteers.yaml into a lookup set.
func LoadGazetteers(r io.Reader) (*gazetteer.Set, error) {
	entries, err := ReadGazetteerEntries(r)
	if err != nil {
		return nil, err
	}
	return gazetteer.New(entries), nil
}

// LoadRulePatterns decodes patterns.yaml and compiles every pattern once to
// reject bad regexes, labels and confidences early.
func LoadRulePatterns(r io.Reader) ([]rules.Pattern, error) {
	var f PatternFile
	if err := decode(r, &f, "patterns"); err != nil {
		return nil, err
	}
	if _, err := rules.NewEngine(nil, f.Patterns, nil); err != nil {
		return nil, internalerr.Wrap(internalerr.KindConfiguration, err, "compile patterns")
	}
	return f.Patterns, nil
}

// LoadScoringWeights decodes the parameter document of one model family and
// builds the model.
func LoadScoringWeights(kind scoring.Kind, r io.Reader) (scoring.Model, error) {
	what := string(kind) + " weights"
	switch kind {
	case scoring.CRF:
		var p scoring.CRFParams
		if err := decode(r, &p, what); err != nil {
			return scoring.Model{}, err
		}
		return scoring.NewCRF(p)
	case scoring.HMM:
		var p scoring.HMMParams
		if err := decode(r, &p, what); err != nil {
			return scoring.Model{}, err
		}
		return scoring.NewHMM(p)
	case scoring.MaxEnt:
		var p scoring.MaxEntParams
		if err := decode(r, &p, what); err != nil {
			return scoring.Model{}, err
		}
		return scoring.NewMaxEnt(p)
	case scoring.Perceptron:
		var p scoring.PerceptronParams
		if err := decode(r, &p, what); err != nil {
			return scoring.Model{}, err
		}
		return scoring.NewPerceptron(p)
	case scoring.Span:
		var p scoring.SpanParams
		if err := decode(r, &p, what); err != nil {
			return scoring.Model{}, err
		}
		return scoring.NewSpan(p)
	}
	return scoring.Model{}, configErr("unknown model kind %q", kind)
}

// LoadSettings decodes pipeline.yaml.
func LoadSettings(r io.Reader) (Settings, error) {
	var s Settings
	if err := decode(r, &s, "pipeline settings"); err != nil {
		return Settings{}, err
	}
	if s.OverrideThreshold < 0 || s.OverrideThreshold > 1 {
		return Settings{}, configErr("override_threshold %v outside [0,1]", s.OverrideThreshold)
	}
	return s, nil
}

// LoadKnowledge decodes knowledge.yaml. An empty document yields tables that
// keep every entity's category and link nothing.
func LoadKnowledge(r io.Reader) (Knowledge, error) {
	var f KnowledgeFile
	if err := decode(r, &f, "knowledge"); err != nil {
		return Knowledge{}, err
	}
	d, err := ned.New(f.Disambiguation)
	if err != nil {
		return Knowledge{}, err
	}
	kb, err := nel.NewKnowledgeBase(f.Records)
	if err != nil {
		return Knowledge{}, err
	}
	return Knowledge{Disambiguator: d, Base: kb}, nil
}

// LoadGazetteersFile loads gazetteers from a YAML file
func LoadGazetteersFile(path string) (*gazetteer.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open gazetteers %q", path)
	}
	defer f.Close()
	return LoadGazetteers(f)
}

// LoadRulePatternsFile loads rule patterns from a YAML file
func LoadRulePatternsFile(path string) ([]rules.Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open patterns %q", path)
	}
	defer f.Close()
	return LoadRulePatterns(f)
}

// LoadScoringWeightsFile loads one model from a YAML file
func LoadScoringWeightsFile(kind scoring.Kind, path string) (scoring.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return scoring.Model{}, errors.Wrapf(err, "open %s weights %q", kind, path)
	}
	defer f.Close()
	return LoadScoringWeights(kind, f)
}

// LoadKnowledgeFile loads disambiguation profiles and knowledge base records
// from a YAML file
func LoadKnowledgeFile(path string) (Knowledge, error) {
	f, err := os.Open(path)
	if err != nil {
		return Knowledge{}, errors.Wrapf(err, "open knowledge %q", path)
	}
	defer f.Close()
	return LoadKnowledge(f)
}
