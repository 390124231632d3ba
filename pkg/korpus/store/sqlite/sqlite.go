package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/korpus/pkg/korpus/document"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/store"
)

// sqliteStore implements store.Archive using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite archive with WAL mode enabled and creates the
// schema when missing.
func OpenSQLite(ctx context.Context, path string) (store.Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

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

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
	corpus TEXT NOT NULL,
	key TEXT NOT NULL,
	position INTEGER NOT NULL,
	source_level TEXT,
	source_name TEXT,
	source_fullname TEXT,
	document_number TEXT,
	document_date TEXT,
	initiator TEXT,
	type TEXT,
	title TEXT,
	url_polx TEXT,
	url TEXT,
	fulltext TEXT,
	text_kind TEXT NOT NULL,
	processed_text TEXT,
	PRIMARY KEY(corpus, key)
);

CREATE INDEX IF NOT EXISTS documents_position ON documents(corpus, position);

CREATE TABLE IF NOT EXISTS relevance (
	corpus TEXT NOT NULL,
	key TEXT NOT NULL,
	term TEXT NOT NULL,
	score REAL NOT NULL,
	PRIMARY KEY(corpus, key, term),
	FOREIGN KEY(corpus, key) REFERENCES documents(corpus, key) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	corpus TEXT NOT NULL,
	documents INTEGER NOT NULL,
	tokens INTEGER NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	stages TEXT NOT NULL,
	error TEXT
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// timeLayout is fixed width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	kindNone   = "none"
	kindText   = "text"
	kindTokens = "tokens"
)

// SaveCorpus replaces the stored corpus c.Name in one transaction.
func (s *sqliteStore) SaveCorpus(ctx context.Context, c *document.Corpus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE corpus=?`, c.Name); err != nil {
		return err
	}

	docStmt, err := tx.PrepareContext(ctx, `
INSERT INTO documents (corpus, key, position, source_level, source_name, source_fullname,
	document_number, document_date, initiator, type, title, url_polx, url, fulltext,
	text_kind, processed_text)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer docStmt.Close()

	relStmt, err := tx.PrepareContext(ctx, `INSERT INTO relevance (corpus, key, term, score) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer relStmt.Close()

	position := 0
	err = c.Each(func(key string, d *document.Doc) error {
		kind, text, err := encodeText(d.ProcessedText)
		if err != nil {
			return &internalerr.SerializationError{Key: key, Field: "processed_text", Err: err}
		}
		if _, err := docStmt.ExecContext(ctx,
			c.Name, key, position,
			d.SourceLevel, d.SourceName, d.SourceFullname, d.DocumentNumber,
			d.DocumentDate.String(), d.Initiator, d.Type, d.Title, d.URLPolx, d.URL, d.Fulltext,
			kind, text,
		); err != nil {
			return fmt.Errorf("insert %q: %w", key, err)
		}
		position++

		for term, score := range d.Relevance {
			if math.IsNaN(score) || math.IsInf(score, 0) {
				return &internalerr.SerializationError{
					Key:   key,
					Field: document.RelevancePrefix + term,
					Err:   fmt.Errorf("value %v is not representable", score),
				}
			}
			if _, err := relStmt.ExecContext(ctx, c.Name, key, term, score); err != nil {
				return fmt.Errorf("insert relevance %q/%s: %w", key, term, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return tx.Commit()
}

// LoadCorpus restores a stored corpus in its saved order.
func (s *sqliteStore) LoadCorpus(ctx context.Context, name string) (*document.Corpus, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT key, source_level, source_name, source_fullname, document_number, document_date,
	initiator, type, title, url_polx, url, fulltext, text_kind, processed_text
FROM documents
WHERE corpus = ?
ORDER BY position`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c := document.NewCorpus(name)
	for rows.Next() {
		var (
			key, date, kind string
			text            sql.NullString
			d               document.Doc
		)
		if err := rows.Scan(&key, &d.SourceLevel, &d.SourceName, &d.SourceFullname, &d.DocumentNumber,
			&date, &d.Initiator, &d.Type, &d.Title, &d.URLPolx, &d.URL, &d.Fulltext, &kind, &text); err != nil {
			return nil, err
		}
		d.DocumentDate = document.ParseSnapshotDate(date)
		pt, err := decodeText(kind, text)
		if err != nil {
			return nil, &internalerr.SerializationError{Key: key, Field: "processed_text", Err: err}
		}
		d.ProcessedText = pt
		if err := c.Add(key, &d); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if c.Len() == 0 {
		return nil, fmt.Errorf("load corpus %q: %w", name, internalerr.ErrNotFound)
	}

	if err := s.loadRelevance(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *sqliteStore) loadRelevance(ctx context.Context, c *document.Corpus) error {
	rows, err := s.db.QueryContext(ctx, `SELECT key, term, score FROM relevance WHERE corpus = ?`, c.Name)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key, term string
			score     float64
		)
		if err := rows.Scan(&key, &term, &score); err != nil {
			return err
		}
		if d, ok := c.Get(key); ok {
			d.SetRelevance(term, score)
		}
	}
	return rows.Err()
}

// Corpora lists stored corpus names.
func (s *sqliteStore) Corpora(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT corpus FROM documents ORDER BY corpus`)
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

// RecordRun stores r. A run id may be recorded once.
func (s *sqliteStore) RecordRun(ctx context.Context, r store.Run) error {
	stages, err := json.Marshal(r.Stages)
	if err != nil {
		return err
	}
	var errText sql.NullString
	if r.Err != "" {
		errText = sql.NullString{String: r.Err, Valid: true}
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, r.ID).Scan(&exists)
	switch {
	case err == nil:
		return fmt.Errorf("record run %s: %w", r.ID, internalerr.ErrDuplicate)
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (id, corpus, documents, tokens, started_at, finished_at, stages, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Corpus, r.Documents, r.Tokens,
		r.Started.UTC().Format(timeLayout),
		r.Finished.UTC().Format(timeLayout),
		string(stages), errText,
	)
	return err
}

// Runs returns the runs of corpus ordered by start time.
func (s *sqliteStore) Runs(ctx context.Context, corpus string) ([]store.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, corpus, documents, tokens, started_at, finished_at, stages, error
FROM runs
WHERE corpus = ?
ORDER BY started_at, id`, corpus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Run
	for rows.Next() {
		var (
			r                 store.Run
			started, finished string
			stages            string
			errText           sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Corpus, &r.Documents, &r.Tokens, &started, &finished, &stages, &errText); err != nil {
			return nil, err
		}
		if r.Started, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", r.ID, err)
		}
		if r.Finished, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("run %s finished_at: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(stages), &r.Stages); err != nil {
			return nil, fmt.Errorf("run %s stages: %w", r.ID, err)
		}
		r.Err = errText.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// encodeText stores token sequences as JSON arrays and free text verbatim.
func encodeText(t document.Text) (string, sql.NullString, error) {
	switch v := t.(type) {
	case nil:
		return kindNone, sql.NullString{}, nil
	case document.RawText:
		return kindText, sql.NullString{String: string(v), Valid: true}, nil
	case document.Tokens:
		if v == nil {
			v = document.Tokens{}
		}
		b, err := json.Marshal([]string(v))
		if err != nil {
			return "", sql.NullString{}, err
		}
		return kindTokens, sql.NullString{String: string(b), Valid: true}, nil
	default:
		return "", sql.NullString{}, fmt.Errorf("unsupported type %T", t)
	}
}

func decodeText(kind string, text sql.NullString) (document.Text, error) {
	switch kind {
	case kindNone:
		return nil, nil
	case kindText:
		return document.RawText(text.String), nil
	case kindTokens:
		var toks []string
		if err := json.Unmarshal([]byte(text.String), &toks); err != nil {
			return nil, err
		}
		if toks == nil {
			toks = []string{}
		}
		return document.Tokens(toks), nil
	default:
		return nil, fmt.Errorf("unknown text kind %q", kind)
	}
}
