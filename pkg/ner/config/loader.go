package config

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/cognicore/nerpt/pkg/ner/features"
	"github.com/cognicore/nerpt/pkg/ner/gazetteer"
	"github.com/cognicore/nerpt/pkg/ner/internalerr"
	"github.com/cognicore/nerpt/pkg/ner/pipeline"
	"github.com/cognicore/nerpt/pkg/ner/rules"
	"github.com/cognicore/nerpt/pkg/ner/scoring"
	"github.com/cognicore/nerpt/pkg/ner/store"
	"github.com/cognicore/nerpt/pkg/ner/store/sqlite"
)

// Source provides the startup tables. ScoringWeights reports false when the
// family is not configured.
type Source interface {
	Gazetteers(ctx context.Context) (*gazetteer.Set, error)
	RulePatterns(ctx context.Context) ([]rules.Pattern, error)
	ScoringWeights(ctx context.Context, kind scoring.Kind) (scoring.Model, bool, error)
	PipelineSettings(ctx context.Context) (Settings, error)
	Knowledge(ctx context.Context) (Knowledge, error)
}

// StoreSource reads the startup tables from a store filled by Bundle.Save.
type StoreSource struct {
	Store store.Store
}

// Gazetteers implements Source.
func (s StoreSource) Gazetteers(ctx context.Context) (*gazetteer.Set, error) {
	entries, err := s.Store.GazetteerEntries(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read gazetteer entries")
	}
	return gazetteer.New(entries), nil
}

// RulePatterns implements Source.
func (s StoreSource) RulePatterns(ctx context.Context) ([]rules.Pattern, error) {
	patterns, err := s.Store.Patterns(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read patterns")
	}
	if _, err := rules.NewEngine(nil, patterns, nil); err != nil {
		return nil, internalerr.Wrap(internalerr.KindConfiguration, err, "compile stored patterns")
	}
	return patterns, nil
}

// ScoringWeights implements Source.
func (s StoreSource) ScoringWeights(ctx context.Context, kind scoring.Kind) (scoring.Model, bool, error) {
	doc, ok, err := s.Store.Document(ctx, string(kind))
	if err != nil {
		return scoring.Model{}, false, errors.Wrapf(err, "read %s weights", kind)
	}
	if !ok {
		return scoring.Model{}, false, nil
	}
	m, err := LoadScoringWeights(kind, bytes.NewReader(doc))
	if err != nil {
		return scoring.Model{}, false, err
	}
	return m, true, nil
}

// PipelineSettings implements Source. A store without settings yields the
// zero Settings.
func (s StoreSource) PipelineSettings(ctx context.Context) (Settings, error) {
	doc, ok, err := s.Store.Document(ctx, SettingsDocument)
	if err != nil {
		return Settings{}, errors.Wrap(err, "read settings")
	}
	if !ok {
		return Settings{}, nil
	}
	return LoadSettings(bytes.NewReader(doc))
}

// Knowledge implements Source. A store without a knowledge document yields
// empty tables.
func (s StoreSource) Knowledge(ctx context.Context) (Knowledge, error) {
	doc, _, err := s.Store.Document(ctx, KnowledgeDocument)
	if err != nil {
		return Knowledge{}, errors.Wrap(err, "read knowledge")
	}
	return LoadKnowledge(bytes.NewReader(doc))
}

// Build assembles pipeline resources from src.
func Build(ctx context.Context, src Source) (pipeline.Resources, error) {
	settings, err := src.PipelineSettings(ctx)
	if err != nil {
		return pipeline.Resources{}, fmt.Errorf("load settings: %w", err)
	}
	stops := settings.StopList()

	gaz, err := src.Gazetteers(ctx)
	if err != nil {
		return pipeline.Resources{}, fmt.Errorf("load gazetteers: %w", err)
	}

	patterns, err := src.RulePatterns(ctx)
	if err != nil {
		return pipeline.Resources{}, fmt.Errorf("load patterns: %w", err)
	}
	engine, err := rules.NewEngine(gaz, patterns, stops)
	if err != nil {
		return pipeline.Resources{}, internalerr.Wrap(internalerr.KindConfiguration, err, "build rule engine")
	}
	engine.AnyCase = settings.RulesAnyCase

	models := make(map[scoring.Kind]scoring.Model, len(scoring.Kinds))
	for _, kind := range scoring.Kinds {
		m, ok, err := src.ScoringWeights(ctx, kind)
		if err != nil {
			return pipeline.Resources{}, fmt.Errorf("load %s weights: %w", kind, err)
		}
		if ok {
			models[kind] = m
		}
	}

	klog.V(1).Infof("config: %d gazetteer entries, %d patterns, %d models, threshold %v",
		gaz.Len(), len(patterns), len(models), settings.OverrideThreshold)

	return pipeline.Resources{
		Tokenizer:         settings.NewTokenizer(),
		Extractor:         features.NewExtractor(gaz, stops),
		Rules:             engine,
		Models:            models,
		OverrideThreshold: settings.OverrideThreshold,
	}, nil
}

// Loader selects where the startup tables come from: a SQLite database
// when DBPath is set, else a bundle directory when Dir is set, else the
// embedded defaults.
type Loader struct {
	Dir    string
	DBPath string
}

// Load reads the configured source and returns pipeline resources.
func (l *Loader) Load(ctx context.Context) (pipeline.Resources, error) {
	var res pipeline.Resources
	err := l.withSource(ctx, func(src Source) error {
		var err error
		res, err = Build(ctx, src)
		return err
	})
	return res, err
}

// LoadKnowledge reads the disambiguation and linking tables from the
// configured source.
func (l *Loader) LoadKnowledge(ctx context.Context) (Knowledge, error) {
	var k Knowledge
	err := l.withSource(ctx, func(src Source) error {
		var err error
		if k, err = src.Knowledge(ctx); err != nil {
			return fmt.Errorf("load knowledge: %w", err)
		}
		return nil
	})
	return k, err
}

// withSource opens the configured source for the duration of fn. A database
// that was never imported into is a configuration error.
func (l *Loader) withSource(ctx context.Context, fn func(Source) error) error {
	if l.DBPath != "" {
		st, err := sqlite.OpenSQLite(ctx, l.DBPath)
		if err != nil {
			return errors.Wrapf(err, "open database %q", l.DBPath)
		}
		defer st.Close()

		names, err := st.DocumentNames(ctx)
		if err != nil {
			return errors.Wrapf(err, "list documents in %q", l.DBPath)
		}
		if len(names) == 0 {
			return internalerr.New(internalerr.KindConfiguration,
				"database %q holds no configuration; run ner-import first", l.DBPath)
		}
		return fn(StoreSource{Store: st})
	}

	var (
		b   *Bundle
		err error
	)
	if l.Dir != "" {
		b, err = ReadDir(l.Dir)
	} else {
		b, err = DefaultBundle()
	}
	if err != nil {
		return err
	}
	return fn(b)
}
