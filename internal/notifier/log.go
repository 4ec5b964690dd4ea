package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/amishk599/jobreach/internal/pipeline"
)

// Ensure LogNotifier implements Notifier.
var _ Notifier = (*LogNotifier)(nil)

// LogNotifier writes the run summary to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs the summary via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs one line per category and one with the totals.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(_ context.Context, s pipeline.Summary) error {
	for _, c := range s.Categories {
		args := []any{
			"category", string(c.Category),
			"fetched", c.Fetched,
			"relevant", c.Relevant,
			"processed", c.Processed,
			"max", c.Max,
			"succeeded", c.Succeeded,
			"failed", c.Failed,
			"dry_run", c.DryRun,
			"skipped", c.Skipped,
			"duplicates", c.Duplicates,
		}
		if c.Err != nil {
			args = append(args, "error", c.Err)
		}
		n.logger.Info("category summary", args...)
	}

	t := s.Totals()
	n.logger.Info("run summary",
		"run_id", s.RunID,
		"mode", s.Mode,
		"dry_run", s.DryRun,
		"duration", s.Duration().Round(time.Second),
		"processed", t.Processed,
		"succeeded", t.Succeeded,
		"failed", t.Failed,
		"skipped", t.Skipped,
		"duplicates", t.Duplicates,
	)
	return nil
}
