package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// JSONLedger stores entries as one JSON array rewritten in full on every
// append. Writers hold an exclusive lock file and replace the document
// through a temp file and rename, so a crash never leaves a torn file.
type JSONLedger struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

// NewJSONLedger uses path for the document and path+".lock" for the lock.
func NewJSONLedger(path string) *JSONLedger {
	return &JSONLedger{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the document location.
func (l *JSONLedger) Path() string { return l.path }

// Load returns all entries in append order. A missing or empty file is an
// empty ledger; a malformed one is an error so it is never overwritten.
func (l *JSONLedger) Load() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", l.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []Entry{}, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing ledger %s: %w", l.path, err)
	}
	return entries, nil
}

// Append adds entry under the file lock.
func (l *JSONLedger) Append(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}
	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("locking ledger: %w", err)
	}
	defer l.lock.Unlock()

	entries, err := l.Load()
	if err != nil {
		return err
	}
	entries = append(entries, entry.normalized())
	return l.write(entries)
}

func (l *JSONLedger) write(entries []Entry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}

// IsDuplicate scans every entry for key.
func (l *JSONLedger) IsDuplicate(key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	entries, err := l.Load()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Matches(key) {
			return true, nil
		}
	}
	return false, nil
}
