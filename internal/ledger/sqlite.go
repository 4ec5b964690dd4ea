package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteLedger keeps entries in a SQLite table with indexed url and target
// columns, so duplicate checks do not scan the whole history.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens (or creates) the database at dbPath and ensures the
// entries table exists.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			seq            INTEGER PRIMARY KEY AUTOINCREMENT,
			type           TEXT NOT NULL,
			target         TEXT NOT NULL,
			url            TEXT NOT NULL,
			date           TEXT NOT NULL,
			action_taken   TEXT NOT NULL,
			emails_sent_to TEXT NOT NULL DEFAULT '[]',
			notes          TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_url ON entries (url)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_target ON entries (target)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating entries table: %w", err)
		}
	}

	return &SQLiteLedger{db: db}, nil
}

// Load returns all entries in insertion order.
func (s *SQLiteLedger) Load() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT type, target, url, date, action_taken, emails_sent_to, notes
		FROM entries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("loading ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var sent string
		if err := rows.Scan(&e.Type, &e.Target, &e.URL, &e.Date, &e.ActionTaken, &sent, &e.Notes); err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}
		if err := json.Unmarshal([]byte(sent), &e.EmailsSentTo); err != nil {
			return nil, fmt.Errorf("decoding emails_sent_to for %s: %w", e.Target, err)
		}
		entries = append(entries, e.normalized())
	}
	return entries, rows.Err()
}

// Append inserts one entry.
func (s *SQLiteLedger) Append(entry Entry) error {
	return s.insert(s.db, entry)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *SQLiteLedger) insert(db execer, entry Entry) error {
	entry = entry.normalized()
	sent, err := json.Marshal(entry.EmailsSentTo)
	if err != nil {
		return fmt.Errorf("encoding emails_sent_to: %w", err)
	}
	_, err = db.Exec(`INSERT INTO entries (type, target, url, date, action_taken, emails_sent_to, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Type, entry.Target, entry.URL, entry.Date, entry.ActionTaken, string(sent), entry.Notes)
	if err != nil {
		return fmt.Errorf("recording %s: %w", entry.Target, err)
	}
	return nil
}

// IsDuplicate returns true if any entry has key as its url or target.
func (s *SQLiteLedger) IsDuplicate(key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM entries WHERE url = ? OR target = ? LIMIT 1`, key, key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking ledger for %s: %w", key, err)
	}
	return true, nil
}

// ImportJSON copies every entry of a JSON ledger into the table in one
// transaction and returns how many were imported.
func (s *SQLiteLedger) ImportJSON(src *JSONLedger) (int, error) {
	entries, err := src.Load()
	if err != nil {
		return 0, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning import: %w", err)
	}
	for _, e := range entries {
		if err := s.insert(tx, e); err != nil {
			tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return len(entries), nil
}

// Close closes the underlying database connection.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}
