package pipeline

import (
	"time"

	"github.com/amishk599/jobreach/internal/model"
)

// CategorySummary counts what happened in one category.
type CategorySummary struct {
	Category    model.Category
	Max         int
	Fetched     int
	Relevant    int
	Processed   int // attempts counted against the cap
	Duplicates  int
	Succeeded   int
	Failed      int
	DryRun      int
	Skipped     int
	CapReached  bool
	Interrupted bool
	Err         error // set when the category was abandoned
}

func (s *CategorySummary) record(a model.Action) {
	switch a {
	case model.ActionApplied, model.ActionEmailed:
		s.Succeeded++
	case model.ActionFailed:
		s.Failed++
	case model.ActionDryRun:
		s.DryRun++
	case model.ActionSkipped:
		s.Skipped++
	}
}

// Summary is the result of a whole run.
type Summary struct {
	RunID      string
	Mode       string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Categories []CategorySummary
}

// Totals adds up the per-category counters.
func (s Summary) Totals() CategorySummary {
	var t CategorySummary
	for _, c := range s.Categories {
		t.Fetched += c.Fetched
		t.Relevant += c.Relevant
		t.Processed += c.Processed
		t.Duplicates += c.Duplicates
		t.Succeeded += c.Succeeded
		t.Failed += c.Failed
		t.DryRun += c.DryRun
		t.Skipped += c.Skipped
	}
	return t
}

// Failed reports whether any category was abandoned.
func (s Summary) Failed() bool {
	for _, c := range s.Categories {
		if c.Err != nil {
			return true
		}
	}
	return false
}

// Duration is the wall-clock time of the run.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
