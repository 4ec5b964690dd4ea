// Package ledger records every outreach attempt so targets are never
// contacted twice across runs.
package ledger

import (
	"fmt"
	"time"

	"github.com/amishk599/jobreach/internal/model"
)

// DateLayout is the local ISO-8601 timestamp format of Entry.Date.
const DateLayout = "2006-01-02T15:04:05.000000"

// Entry is one recorded attempt.
type Entry struct {
	Type         model.Category `json:"type"`
	Target       string         `json:"target"`
	URL          string         `json:"url"`
	Date         string         `json:"date"`
	ActionTaken  model.Action   `json:"action_taken"`
	EmailsSentTo []string       `json:"emails_sent_to"`
	Notes        string         `json:"notes"`
}

// NewEntry builds an entry stamped with now in local time.
func NewEntry(category model.Category, target, url string, action model.Action, sentTo []string, notes string, now time.Time) Entry {
	e := Entry{
		Type:         category,
		Target:       target,
		URL:          url,
		Date:         now.Local().Format(DateLayout),
		ActionTaken:  action,
		EmailsSentTo: sentTo,
		Notes:        notes,
	}
	return e.normalized()
}

// normalized guarantees emails_sent_to is encoded as an array.
func (e Entry) normalized() Entry {
	if e.EmailsSentTo == nil {
		e.EmailsSentTo = []string{}
	}
	return e
}

// Matches reports whether the entry was recorded for key. Comparison is exact
// against the URL and the target label; an empty key never matches.
func (e Entry) Matches(key string) bool {
	return key != "" && (e.URL == key || e.Target == key)
}

// Time parses Date. Entries written by other tools may lack fractional
// seconds, so both forms are accepted.
func (e Entry) Time() (time.Time, error) {
	for _, layout := range []string{DateLayout, "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, e.Date, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ledger date %q", e.Date)
}

// Ledger is the append-only processing record.
type Ledger interface {
	Load() ([]Entry, error)
	Append(entry Entry) error
	IsDuplicate(key string) (bool, error)
}

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open returns the ledger for backend at path. The caller closes SQLite
// ledgers through the returned closer.
func Open(backend, path string) (Ledger, func() error, error) {
	switch backend {
	case BackendJSON, "":
		return NewJSONLedger(path), func() error { return nil }, nil
	case BackendSQLite:
		l, err := NewSQLiteLedger(path)
		if err != nil {
			return nil, nil, err
		}
		return l, l.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}
