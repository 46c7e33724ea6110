package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/cognicore/nerpt/pkg/ner/gazetteer"
	"github.com/cognicore/nerpt/pkg/ner/rules"
	"github.com/cognicore/nerpt/pkg/ner/store"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
)

func openTemp(t *testing.T) store.Store {
	t.Helper()
	st, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "ner.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// TestSchemaCreationIdempotent checks that initSchema can run repeatedly.
func TestSchemaCreationIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "ner.db"))
	if err != nil {
		t.Fatalf("Open database: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := initSchema(ctx, db); err != nil {
			t.Fatalf("initSchema iteration %d: %v", i, err)
		}
	}

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&count)
	if err != nil {
		t.Fatalf("Count tables: %v", err)
	}
	if count != 4 { // gazetteer_entries, patterns, documents, runs
		t.Errorf("Expected 4 tables, got %d", count)
	}
}

func TestGazetteerEntriesUpsert(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)

	entries := []gazetteer.Entry{
		{Surface: "Santos Dumont", Category: tagger.PER, Confidence: 0.92},
		{Surface: "Santos", Category: tagger.ORG},
		{Surface: "Paris", Category: tagger.LOC, Confidence: 0.9},
	}
	if err := st.UpsertGazetteerEntries(ctx, entries); err != nil {
		t.Fatalf("UpsertGazetteerEntries: %v", err)
	}
	if err := st.UpsertGazetteerEntries(ctx, []gazetteer.Entry{{Surface: "Santos", Category: tagger.ORG, Confidence: 0.5}}); err != nil {
		t.Fatalf("UpsertGazetteerEntries update: %v", err)
	}

	got, err := st.GazetteerEntries(ctx)
	if err != nil {
		t.Fatalf("GazetteerEntries: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(got))
	}
	if got[0].Surface != "Santos Dumont" || got[2].Surface != "Paris" {
		t.Errorf("Insertion order not kept: %+v", got)
	}
	if got[1].Confidence != 0.5 {
		t.Errorf("Expected updated confidence 0.5, got %v", got[1].Confidence)
	}
}

func TestReplacePatternsKeepsOrder(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)

	first := []rules.Pattern{
		{Name: "cnpj_pattern", Kind: rules.Regex, Regex: `^\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}$`, Label: tagger.ORG, Confidence: 0.99},
		{Name: "title_pattern", Kind: rules.PrecededBy, Words: []string{"dr", "sr"}, Label: tagger.PER, Confidence: 0.8},
	}
	if err := st.ReplacePatterns(ctx, first); err != nil {
		t.Fatalf("ReplacePatterns: %v", err)
	}

	got, err := st.Patterns(ctx)
	if err != nil {
		t.Fatalf("Patterns: %v", err)
	}
	if !reflect.DeepEqual(got, first) {
		t.Errorf("Patterns mismatch:\n got %+v\nwant %+v", got, first)
	}

	second := first[1:]
	if err := st.ReplacePatterns(ctx, second); err != nil {
		t.Fatalf("ReplacePatterns second: %v", err)
	}
	got, err = st.Patterns(ctx)
	if err != nil {
		t.Fatalf("Patterns: %v", err)
	}
	if len(got) != 1 || got[0].Name != "title_pattern" {
		t.Errorf("Expected only title_pattern after replace, got %+v", got)
	}
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)

	if _, ok, err := st.Document(ctx, "crf"); err != nil || ok {
		t.Fatalf("Expected missing document, got ok=%v err=%v", ok, err)
	}

	if err := st.UpsertDocument(ctx, "crf", []byte("strict: false\n")); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}
	if err := st.UpsertDocument(ctx, "crf", []byte("strict: true\n")); err != nil {
		t.Fatalf("UpsertDocument overwrite: %v", err)
	}
	if err := st.UpsertDocument(ctx, "hmm", []byte("floor: 0.001\n")); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	body, ok, err := st.Document(ctx, "crf")
	if err != nil || !ok {
		t.Fatalf("Document: ok=%v err=%v", ok, err)
	}
	if string(body) != "strict: true\n" {
		t.Errorf("Expected overwritten body, got %q", body)
	}

	names, err := st.DocumentNames(ctx)
	if err != nil {
		t.Fatalf("DocumentNames: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"crf", "hmm"}) {
		t.Errorf("Expected [crf hmm], got %v", names)
	}
}

func TestRecentRuns(t *testing.T) {
	ctx := context.Background()
	st := openTemp(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := []string{"01HQ0000000000000000000001", "01HQ0000000000000000000002", "01HQ0000000000000000000003"}
	for i, id := range ids {
		run := store.Run{
			ID:        id,
			Mode:      "hybrid",
			Tokenizer: "standard",
			Text:      "Santos Dumont nasceu em Paris",
			Spans: []tagger.EntitySpan{
				{Start: 0, End: 1, Label: tagger.PER, Confidence: 0.92, Source: tagger.SourceRule, Text: "Santos Dumont", CharEnd: 13, Rule: "per_gazetteer"},
			},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := st.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun %s: %v", id, err)
		}
	}

	runs, err := st.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Errorf("Expected newest first, got %s, %s", runs[0].ID, runs[1].ID)
	}
	if !runs[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("CreatedAt mismatch: %v", runs[0].CreatedAt)
	}
	if len(runs[0].Spans) != 1 || runs[0].Spans[0].Rule != "per_gazetteer" {
		t.Errorf("Spans not restored: %+v", runs[0].Spans)
	}
}

func TestReopenPreservesData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "ner.db")

	st, err := OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := st.UpsertGazetteerEntries(ctx, []gazetteer.Entry{{Surface: "Fiocruz", Category: tagger.ORG, Confidence: 0.93}}); err != nil {
		t.Fatalf("UpsertGazetteerEntries: %v", err)
	}
	st.Close()

	st, err = OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	defer st.Close()

	got, err := st.GazetteerEntries(ctx)
	if err != nil {
		t.Fatalf("GazetteerEntries: %v", err)
	}
	if len(got) != 1 || got[0].Surface != "Fiocruz" {
		t.Errorf("Expected Fiocruz after reopen, got %+v", got)
	}
}
