// Package store persists the startup tables of the pipeline (gazetteers,
// rule patterns and model parameter documents) and a log of analysis runs.
package store

import (
	"context"
	"time"

	"github.com/cognicore/nerpt/pkg/ner/gazetteer"
	"github.com/cognicore/nerpt/pkg/ner/rules"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
)

// Store is the persistence interface shared by the SQLite and in-memory
// implementations.
type Store interface {
	Close() error

	// Gazetteers. Entries keep insertion order; an entry with the same
	// surface and category replaces the stored confidence.
	UpsertGazetteerEntries(ctx context.Context, entries []gazetteer.Entry) error
	GazetteerEntries(ctx context.Context) ([]gazetteer.Entry, error)

	// Patterns are stored as an ordered list and replaced as a whole.
	ReplacePatterns(ctx context.Context, patterns []rules.Pattern) error
	Patterns(ctx context.Context) ([]rules.Pattern, error)

	// Documents are named YAML bodies such as model parameters.
	UpsertDocument(ctx context.Context, name string, body []byte) error
	Document(ctx context.Context, name string) ([]byte, bool, error)
	DocumentNames(ctx context.Context) ([]string, error)

	// Runs
	SaveRun(ctx context.Context, r Run) error
	RecentRuns(ctx context.Context, k int) ([]Run, error)
}

// Run is the stored summary of one analysis.
type Run struct {
	ID        string              `json:"id"`
	Mode      string              `json:"mode"`
	Tokenizer string              `json:"tokenizer_mode"`
	Text      string              `json:"text"`
	Spans     []tagger.EntitySpan `json:"spans"`
	CreatedAt time.Time           `json:"created_at"`
}
