// Package sqlite wires the factstore.Store interface to an embeddable
// sqlite database via modernc.org/sqlite, giving the CLI wrapper and tests
// a fact store binding that needs no external service.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/htnkit/corestn/corerr"
)

const schema = `
CREATE TABLE IF NOT EXISTS facts (
	predicate   TEXT NOT NULL,
	subject     TEXT NOT NULL,
	value       TEXT NOT NULL,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS facts_lookup ON facts(predicate, subject, recorded_at);
`

// Store implements factstore.Store against a sqlite database, encoding
// values as JSON text.
type Store struct {
	db *sql.DB
}

// Open creates (or attaches to) the sqlite database at path, applying the
// schema if not already present. path may be ":memory:" for ephemeral use
// in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, corerr.Wrap(corerr.InvalidInput, "open sqlite fact store", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, corerr.Wrap(corerr.InvalidInput, "apply sqlite fact store schema", err)
	}
	return &Store{db: db}, nil
}

// GetFact returns the most recently recorded value for (predicate, subject).
func (s *Store) GetFact(ctx context.Context, predicate, subject string) (any, bool, error) {
	return s.queryLatest(ctx, predicate, subject, time.Now().UTC())
}

// SetFact inserts a new recorded value, JSON-encoded, for (predicate,
// subject). Prior rows are retained so GetFactAt can answer historical
// reads.
func (s *Store) SetFact(ctx context.Context, predicate, subject string, value any) error {
	enc, err := encodeValue(value)
	if err != nil {
		return corerr.Wrap(corerr.InvalidInput, "encode fact value", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO facts (predicate, subject, value, recorded_at) VALUES (?, ?, ?, ?)`,
		predicate, subject, enc, time.Now().UTC().UnixMicro(),
	)
	if err != nil {
		return corerr.Wrap(corerr.InvalidInput, "set fact", err)
	}
	return nil
}

// GetFactAt returns the value recorded for (predicate, subject) as of time
// at.
func (s *Store) GetFactAt(ctx context.Context, predicate, subject string, at time.Time) (any, bool, error) {
	return s.queryLatest(ctx, predicate, subject, at)
}

func (s *Store) queryLatest(ctx context.Context, predicate, subject string, at time.Time) (any, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM facts WHERE predicate = ? AND subject = ? AND recorded_at <= ?
		 ORDER BY recorded_at DESC LIMIT 1`,
		predicate, subject, at.UnixMicro(),
	)
	var enc string
	if err := row.Scan(&enc); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, corerr.Wrap(corerr.InvalidInput, "get fact", err)
	}
	v, err := decodeValue(enc)
	if err != nil {
		return nil, false, corerr.Wrap(corerr.InvalidInput, "decode fact value", err)
	}
	return v, true, nil
}

// Cleanup drops every row; used by test teardown.
func (s *Store) Cleanup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM facts`); err != nil {
		return corerr.Wrap(corerr.InvalidInput, "cleanup fact store", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
