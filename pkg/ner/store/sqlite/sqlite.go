package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/nerpt/pkg/ner/gazetteer"
	"github.com/cognicore/nerpt/pkg/ner/rules"
	"github.com/cognicore/nerpt/pkg/ner/store"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema when missing.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS gazetteer_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	surface TEXT NOT NULL,
	category TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	UNIQUE(surface, category)
);

CREATE TABLE IF NOT EXISTS patterns (
	position INTEGER PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	kind TEXT NOT NULL,
	regex TEXT,
	words TEXT,
	label TEXT NOT NULL,
	confidence REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	name TEXT PRIMARY KEY,
	body BLOB NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	tokenizer TEXT NOT NULL,
	text TEXT NOT NULL,
	spans TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertGazetteerEntries inserts entries in one transaction.
func (s *sqliteStore) UpsertGazetteerEntries(ctx context.Context, entries []gazetteer.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO gazetteer_entries (surface, category, confidence) VALUES (?, ?, ?)
ON CONFLICT(surface, category) DO UPDATE SET confidence=excluded.confidence;
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Surface, string(e.Category), e.Confidence); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GazetteerEntries returns every entry in insertion order.
func (s *sqliteStore) GazetteerEntries(ctx context.Context) ([]gazetteer.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT surface, category, confidence FROM gazetteer_entries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []gazetteer.Entry
	for rows.Next() {
		var e gazetteer.Entry
		var cat string
		if err := rows.Scan(&e.Surface, &cat, &e.Confidence); err != nil {
			return nil, err
		}
		e.Category = tagger.Category(cat)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReplacePatterns swaps the pattern list in a single transaction.
func (s *sqliteStore) ReplacePatterns(ctx context.Context, patterns []rules.Pattern) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM patterns`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO patterns (position, name, kind, regex, words, label, confidence)
VALUES (?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range patterns {
		wordsJSON, err := json.Marshal(p.Words)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, i, p.Name, string(p.Kind), p.Regex, string(wordsJSON), string(p.Label), p.Confidence); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Patterns returns the stored patterns in order.
func (s *sqliteStore) Patterns(ctx context.Context) ([]rules.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name, kind, regex, words, label, confidence
FROM patterns
ORDER BY position;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []rules.Pattern
	for rows.Next() {
		var p rules.Pattern
		var kind, label string
		var regex, wordsJSON sql.NullString
		if err := rows.Scan(&p.Name, &kind, &regex, &wordsJSON, &label, &p.Confidence); err != nil {
			return nil, err
		}
		p.Kind = rules.Kind(kind)
		p.Label = tagger.Category(label)
		p.Regex = regex.String
		if wordsJSON.Valid && wordsJSON.String != "" {
			if err := json.Unmarshal([]byte(wordsJSON.String), &p.Words); err != nil {
				return nil, err
			}
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// UpsertDocument stores a named document body.
func (s *sqliteStore) UpsertDocument(ctx context.Context, name string, body []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET body=excluded.body, updated_at=excluded.updated_at;
`, name, body, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Document returns a document body; ok is false when it does not exist.
func (s *sqliteStore) Document(ctx context.Context, name string) ([]byte, bool, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE name=?`, name).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

// DocumentNames lists stored documents by name.
func (s *sqliteStore) DocumentNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM documents ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SaveRun inserts or replaces a run summary.
func (s *sqliteStore) SaveRun(ctx context.Context, r store.Run) error {
	spansJSON, err := json.Marshal(r.Spans)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (id, mode, tokenizer, text, spans, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	mode=excluded.mode,
	tokenizer=excluded.tokenizer,
	text=excluded.text,
	spans=excluded.spans,
	created_at=excluded.created_at;
`, r.ID, r.Mode, r.Tokenizer, r.Text, string(spansJSON), r.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// RecentRuns returns up to k runs, newest first. Run IDs are ULIDs, so
// ordering by id is ordering by time.
func (s *sqliteStore) RecentRuns(ctx context.Context, k int) ([]store.Run, error) {
	if k <= 0 {
		k = 10
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, mode, tokenizer, text, spans, created_at
FROM runs
ORDER BY id DESC
LIMIT ?;
`, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		var r store.Run
		var spansJSON, created string
		if err := rows.Scan(&r.ID, &r.Mode, &r.Tokenizer, &r.Text, &spansJSON, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(spansJSON), &r.Spans); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
