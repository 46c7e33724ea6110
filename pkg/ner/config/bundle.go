package config

import (
	"bytes"
	"context"
	"embed"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/cognicore/nerpt/pkg/ner/gazetteer"
	"github.com/cognicore/nerpt/pkg/ner/rules"
	"github.com/cognicore/nerpt/pkg/ner/scoring"
	"github.com/cognicore/nerpt/pkg/ner/store"
)

//go:embed defaults/*.yaml
var defaults embed.FS

// File names inside a bundle directory.
const (
	GazetteersFile    = "gazetteers.yaml"
	PatternsFile      = "patterns.yaml"
	SettingsFile      = "pipeline.yaml"
	KnowledgeBaseFile = "knowledge.yaml"
)

// Store document names of pipeline.yaml and knowledge.yaml.
const (
	SettingsDocument  = "pipeline"
	KnowledgeDocument = "knowledge"
)

// ModelFiles maps each model family to its file name.
var ModelFiles = map[scoring.Kind]string{
	scoring.CRF:        "crf.yaml",
	scoring.HMM:        "hmm.yaml",
	scoring.MaxEnt:     "maxent.yaml",
	scoring.Perceptron: "perceptron.yaml",
	scoring.Span:       "span.yaml",
}

// Bundle holds the raw YAML documents of a configuration. A nil model
// document leaves that family unloaded.
type Bundle struct {
	GazetteerYAML []byte
	PatternYAML   []byte
	SettingsYAML  []byte
	KnowledgeYAML []byte
	Models        map[scoring.Kind][]byte
}

// DefaultBundle returns the embedded Portuguese bundle.
func DefaultBundle() (*Bundle, error) {
	b := &Bundle{Models: make(map[scoring.Kind][]byte, len(ModelFiles))}
	read := func(name string) ([]byte, error) {
		data, err := defaults.ReadFile("defaults/" + name)
		if err != nil {
			return nil, errors.Wrapf(err, "read embedded %s", name)
		}
		return data, nil
	}

	var err error
	if b.GazetteerYAML, err = read(GazetteersFile); err != nil {
		return nil, err
	}
	if b.PatternYAML, err = read(PatternsFile); err != nil {
		return nil, err
	}
	if b.SettingsYAML, err = read(SettingsFile); err != nil {
		return nil, err
	}
	if b.KnowledgeYAML, err = read(KnowledgeBaseFile); err != nil {
		return nil, err
	}
	for kind, name := range ModelFiles {
		if b.Models[kind], err = read(name); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ReadDir loads a bundle directory. Files missing from dir keep the
// embedded defaults.
func ReadDir(dir string) (*Bundle, error) {
	b, err := DefaultBundle()
	if err != nil {
		return nil, err
	}

	override := func(name string, dst *[]byte) error {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", name)
		}
		*dst = data
		return nil
	}

	if err := override(GazetteersFile, &b.GazetteerYAML); err != nil {
		return nil, err
	}
	if err := override(PatternsFile, &b.PatternYAML); err != nil {
		return nil, err
	}
	if err := override(SettingsFile, &b.SettingsYAML); err != nil {
		return nil, err
	}
	if err := override(KnowledgeBaseFile, &b.KnowledgeYAML); err != nil {
		return nil, err
	}
	for kind, name := range ModelFiles {
		doc := b.Models[kind]
		if err := override(name, &doc); err != nil {
			return nil, err
		}
		b.Models[kind] = doc
	}
	return b, nil
}

// Gazetteers implements Source.
func (b *Bundle) Gazetteers(ctx context.Context) (*gazetteer.Set, error) {
	return LoadGazetteers(bytes.NewReader(b.GazetteerYAML))
}

// RulePatterns implements Source.
func (b *Bundle) RulePatterns(ctx context.Context) ([]rules.Pattern, error) {
	return LoadRulePatterns(bytes.NewReader(b.PatternYAML))
}

// ScoringWeights implements Source.
func (b *Bundle) ScoringWeights(ctx context.Context, kind scoring.Kind) (scoring.Model, bool, error) {
	doc, ok := b.Models[kind]
	if !ok || doc == nil {
		return scoring.Model{}, false, nil
	}
	m, err := LoadScoringWeights(kind, bytes.NewReader(doc))
	if err != nil {
		return scoring.Model{}, false, err
	}
	return m, true, nil
}

var _ Source = (*Bundle)(nil)

// PipelineSettings implements Source.
func (b *Bundle) PipelineSettings(ctx context.Context) (Settings, error) {
	return LoadSettings(bytes.NewReader(b.SettingsYAML))
}

// Knowledge implements Source.
func (b *Bundle) Knowledge(ctx context.Context) (Knowledge, error) {
	return LoadKnowledge(bytes.NewReader(b.KnowledgeYAML))
}

// Save validates the bundle and writes it to st: gazetteer entries and
// patterns as rows, model, settings and knowledge documents by name.
func (b *Bundle) Save(ctx context.Context, st store.Store) error {
	entries, err := ReadGazetteerEntries(bytes.NewReader(b.GazetteerYAML))
	if err != nil {
		return err
	}
	patterns, err := LoadRulePatterns(bytes.NewReader(b.PatternYAML))
	if err != nil {
		return err
	}
	if _, err := LoadSettings(bytes.NewReader(b.SettingsYAML)); err != nil {
		return err
	}
	if _, err := b.Knowledge(ctx); err != nil {
		return err
	}
	for _, kind := range scoring.Kinds {
		if _, _, err := b.ScoringWeights(ctx, kind); err != nil {
			return err
		}
	}

	if err := st.UpsertGazetteerEntries(ctx, entries); err != nil {
		return errors.Wrap(err, "store gazetteer entries")
	}
	if err := st.ReplacePatterns(ctx, patterns); err != nil {
		return errors.Wrap(err, "store patterns")
	}
	if err := st.UpsertDocument(ctx, SettingsDocument, b.SettingsYAML); err != nil {
		return errors.Wrap(err, "store settings")
	}
	if err := st.UpsertDocument(ctx, KnowledgeDocument, b.KnowledgeYAML); err != nil {
		return errors.Wrap(err, "store knowledge")
	}
	for _, kind := range scoring.Kinds {
		doc := b.Models[kind]
		if doc == nil {
			continue
		}
		if err := st.UpsertDocument(ctx, string(kind), doc); err != nil {
			return errors.Wrapf(err, "store %s weights", kind)
		}
	}
	return nil
}
