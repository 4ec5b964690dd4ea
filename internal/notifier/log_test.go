package notifier

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/pipeline"
)

func sampleSummary() pipeline.Summary {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return pipeline.Summary{
		RunID:      "run-1",
		Mode:       "full",
		StartedAt:  start,
		FinishedAt: start.Add(12 * time.Minute),
		Categories: []pipeline.CategorySummary{
			{Category: model.CategoryEmail, Max: 50, Fetched: 40, Relevant: 12, Processed: 5, Succeeded: 4, Failed: 1, Skipped: 2},
			{Category: model.CategoryProspect, Max: 50, Err: errors.New("company cache corrupt")},
		},
	}
}

func TestLogNotifier_Notify(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := n.Notify(context.Background(), sampleSummary()); err != nil {
		t.Fatalf("Notify = %v, want nil", err)
	}

	out := buf.String()
	for _, want := range []string{"category=job_email", "succeeded=4", "company cache corrupt", "run_id=run-1", "duration=12m0s"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestLogNotifier_EmptySummary(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	if err := n.Notify(context.Background(), pipeline.Summary{}); err != nil {
		t.Errorf("Notify(empty) = %v, want nil", err)
	}
}
