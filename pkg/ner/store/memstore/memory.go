package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/nerpt/pkg/ner/gazetteer"
	"github.com/cognicore/nerpt/pkg/ner/rules"
	"github.com/cognicore/nerpt/pkg/ner/store"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
)

// Store is an in-memory implementation of store.Store for tests and for
// servers started without a database.
type Store struct {
	mu        sync.RWMutex
	entries   []gazetteer.Entry
	entryIdx  map[entryKey]int
	patterns  []rules.Pattern
	documents map[string][]byte
	runs      map[string]store.Run
}

type entryKey struct {
	surface  string
	category tagger.Category
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		entryIdx:  make(map[entryKey]int),
		documents: make(map[string][]byte),
		runs:      make(map[string]store.Run),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// UpsertGazetteerEntries adds entries, replacing the confidence of known ones.
func (s *Store) UpsertGazetteerEntries(ctx context.Context, entries []gazetteer.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		key := entryKey{e.Surface, e.Category}
		if i, ok := s.entryIdx[key]; ok {
			s.entries[i].Confidence = e.Confidence
			continue
		}
		s.entryIdx[key] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return nil
}

// GazetteerEntries returns a copy of the entries in insertion order.
func (s *Store) GazetteerEntries(ctx context.Context) ([]gazetteer.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]gazetteer.Entry(nil), s.entries...), nil
}

// ReplacePatterns swaps the pattern list.
func (s *Store) ReplacePatterns(ctx context.Context, patterns []rules.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.patterns = make([]rules.Pattern, len(patterns))
	for i, p := range patterns {
		p.Words = append([]string(nil), p.Words...)
		s.patterns[i] = p
	}
	return nil
}

// Patterns returns a copy of the pattern list.
func (s *Store) Patterns(ctx context.Context) ([]rules.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]rules.Pattern, len(s.patterns))
	for i, p := range s.patterns {
		p.Words = append([]string(nil), p.Words...)
		out[i] = p
	}
	return out, nil
}

// UpsertDocument stores a copy of body.
func (s *Store) UpsertDocument(ctx context.Context, name string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[name] = append([]byte(nil), body...)
	return nil
}

// Document returns a copy of a stored body.
func (s *Store) Document(ctx context.Context, name string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	body, ok := s.documents[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), body...), true, nil
}

// DocumentNames lists stored documents by name.
func (s *Store) DocumentNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.documents))
	for name := range s.documents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SaveRun inserts or replaces a run summary.
func (s *Store) SaveRun(ctx context.Context, r store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.Spans = append([]tagger.EntitySpan(nil), r.Spans...)
	s.runs[r.ID] = r
	return nil
}

// RecentRuns returns up to k runs, newest ID first.
func (s *Store) RecentRuns(ctx context.Context, k int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		k = 10
	}
	runs := make([]store.Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	if len(runs) > k {
		runs = runs[:k]
	}
	return runs, nil
}

var _ store.Store = (*Store)(nil)
