// Package store provides a SQLite-backed cache of verified bundle payloads.
//
// Entries are keyed by the SRI digest they were verified against, so a cached
// payload is only ever returned for the digest it matched. Callers verify
// returned content again before using it.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wippyai/wasm-distributed/errors"
	"github.com/wippyai/wasm-distributed/integrity"
)

const schema = `
CREATE TABLE IF NOT EXISTS bundles (
    sri TEXT PRIMARY KEY,
    location TEXT NOT NULL,
    content_digest TEXT NOT NULL,
    content BLOB NOT NULL,
    fetched_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS bundles_location ON bundles(location);
`

// Entry is one cached payload.
type Entry struct {
	FetchedAt     time.Time
	SRI           string
	Location      string
	ContentDigest string
	Content       []byte
	Size          int64
}

// Store persists bundle payloads in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite bundle store at path and ensures its schema.
// The special path ":memory:" opens a private in-memory store.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.InvalidInput(errors.PhaseCache, "storage path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCache, errors.KindLoadFailure, err, "open sqlite db")
	}
	// one connection keeps ":memory:" a single database
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(errors.PhaseCache, errors.KindLoadFailure, err, "ping sqlite db")
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(errors.PhaseCache, errors.KindLoadFailure, err, "apply schema")
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get returns the payload cached for sri.
func (s *Store) Get(ctx context.Context, sri string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return Entry{}, false, errors.InvalidInput(errors.PhaseCache, "storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT sri, location, content_digest, content, fetched_at FROM bundles WHERE sri = ?`,
		strings.TrimSpace(sri),
	)
	var (
		e         Entry
		fetchedAt int64
	)
	if err := row.Scan(&e.SRI, &e.Location, &e.ContentDigest, &e.Content, &fetchedAt); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, errors.Wrap(errors.PhaseCache, errors.KindLoadFailure, err, "get bundle")
	}
	e.FetchedAt = fromMillis(fetchedAt)
	e.Size = int64(len(e.Content))
	return e, true, nil
}

// Put stores a verified payload, replacing any entry with the same digest.
func (s *Store) Put(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return errors.InvalidInput(errors.PhaseCache, "storage is not configured")
	}
	sri := strings.TrimSpace(e.SRI)
	if sri == "" {
		return errors.InvalidInput(errors.PhaseCache, "sri is required")
	}
	if len(e.Content) == 0 {
		return errors.InvalidInput(errors.PhaseCache, "content is required")
	}
	fetchedAt := e.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR REPLACE INTO bundles (sri, location, content_digest, content, fetched_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sri,
		strings.TrimSpace(e.Location),
		integrity.ContentDigest(e.Content).String(),
		e.Content,
		toMillis(fetchedAt),
	)
	if err != nil {
		return errors.Wrap(errors.PhaseCache, errors.KindLoadFailure, err, "put bundle")
	}
	return nil
}

// Delete removes the entry for sri.
func (s *Store) Delete(ctx context.Context, sri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return errors.InvalidInput(errors.PhaseCache, "storage is not configured")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM bundles WHERE sri = ?`, strings.TrimSpace(sri)); err != nil {
		return errors.Wrap(errors.PhaseCache, errors.KindLoadFailure, err, "delete bundle")
	}
	return nil
}

// List returns every entry without content, most recently fetched first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, errors.InvalidInput(errors.PhaseCache, "storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT sri, location, content_digest, length(content), fetched_at
		 FROM bundles ORDER BY fetched_at DESC, sri`)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCache, errors.KindLoadFailure, err, "list bundles")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			fetchedAt int64
		)
		if err := rows.Scan(&e.SRI, &e.Location, &e.ContentDigest, &e.Size, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		e.FetchedAt = fromMillis(fetchedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
