// Package transcript records interpreter sessions in a sqlite database.
//
// Each engine session gets a uuid; every line read is stored with its output,
// the resulting data stack and any error. Transcripts are for inspection
// only, nothing is ever replayed into an engine.
package transcript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS lines (
	session_id TEXT NOT NULL REFERENCES sessions(id),
	seq        INTEGER NOT NULL,
	text       TEXT NOT NULL,
	output     TEXT NOT NULL,
	stack      TEXT NOT NULL,
	error      TEXT,
	suspended  INTEGER NOT NULL DEFAULT 0,
	at         TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, seq)
);
`

// ErrNotOpen is returned by operations on a Store without a database.
var ErrNotOpen = errors.New("transcript database not opened")

// Store is a sqlite-backed transcript.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating as needed) the database at path and initializes its
// schema. Use ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping transcript database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize transcript schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database path given to Open.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Session is one engine's run of lines.
type Session struct {
	ID        string
	Source    string
	StartedAt time.Time

	store *Store
	seq   int
}

// Entry is a recorded line.
type Entry struct {
	SessionID string
	Seq       int
	Text      string
	Output    string
	Stack     string
	Err       string
	Suspended bool
	At        time.Time
}

// Begin starts a new session; source names where its lines come from
// (a file name, or "repl").
func (s *Store) Begin(ctx context.Context, source string) (*Session, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotOpen
	}
	sess := &Session{
		ID:        uuid.New().String(),
		Source:    source,
		StartedAt: time.Now().UTC(),
		store:     s,
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, source, started_at) VALUES (?, ?, ?)`,
		sess.ID, sess.Source, sess.StartedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// Record appends an entry to the session, assigning its sequence number.
func (sess *Session) Record(ctx context.Context, ent Entry) error {
	s := sess.store
	if s == nil || s.db == nil {
		return ErrNotOpen
	}
	sess.seq++
	var errText sql.NullString
	if ent.Err != "" {
		errText = sql.NullString{String: ent.Err, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO lines (session_id, seq, text, output, stack, error, suspended, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.seq, ent.Text, ent.Output, ent.Stack, errText, ent.Suspended, time.Now().UTC(),
	); err != nil {
		sess.seq--
		return fmt.Errorf("failed to record line %d: %w", sess.seq+1, err)
	}
	return nil
}

// Sessions lists the most recent sessions, newest first.
func (s *Store) Sessions(ctx context.Context, limit int) ([]Session, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotOpen
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, started_at FROM sessions ORDER BY rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Source, &sess.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Lines returns a session's entries in order. An empty id selects the most
// recent session.
func (s *Store) Lines(ctx context.Context, id string) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotOpen
	}
	if id == "" {
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM sessions ORDER BY rowid DESC LIMIT 1`,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to find latest session: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, seq, text, output, stack, error, suspended, at
		 FROM lines WHERE session_id = ? ORDER BY seq`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			ent     Entry
			errText sql.NullString
		)
		if err := rows.Scan(&ent.SessionID, &ent.Seq, &ent.Text, &ent.Output, &ent.Stack,
			&errText, &ent.Suspended, &ent.At); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		ent.Err = errText.String
		entries = append(entries, ent)
	}
	return entries, rows.Err()
}
