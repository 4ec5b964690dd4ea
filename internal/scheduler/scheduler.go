package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/jobreach/internal/pipeline"
)

// Runner executes one category.
type Runner interface {
	Run(ctx context.Context, cat pipeline.Category) (pipeline.CategorySummary, error)
}

// Scheduler runs the categories of a run in order.
type Scheduler struct {
	runner     Runner
	categories []pipeline.Category
	logger     *slog.Logger
	now        func() time.Time
}

// NewScheduler creates a scheduler for the given categories.
func NewScheduler(runner Runner, categories []pipeline.Category, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		categories: categories,
		logger:     logger,
		now:        time.Now,
	}
}

// Run executes every category sequentially and always returns the summary.
// A category that fails or panics is abandoned and the next one runs.
// Cancelling ctx stops before the next category.
func (s *Scheduler) Run(ctx context.Context, summary pipeline.Summary) pipeline.Summary {
	summary.StartedAt = s.now()
	s.logger.Info("starting run",
		"categories", len(s.categories),
		"dry_run", summary.DryRun,
	)

	for _, cat := range s.categories {
		if ctx.Err() != nil {
			s.logger.Info("run interrupted, skipping remaining categories")
			break
		}

		cs := s.runOne(ctx, cat)
		if cs.Err != nil {
			s.logger.Error("category failed",
				"category", string(cat.Name),
				"error", cs.Err,
			)
		}
		summary.Categories = append(summary.Categories, cs)
	}

	summary.FinishedAt = s.now()
	return summary
}

// runOne converts a panic in any collaborator into a category error.
func (s *Scheduler) runOne(ctx context.Context, cat pipeline.Category) (cs pipeline.CategorySummary) {
	defer func() {
		if r := recover(); r != nil {
			cs.Category = cat.Name
			cs.Err = fmt.Errorf("panic in %s: %v", cat.Name, r)
		}
	}()

	cs, err := s.runner.Run(ctx, cat)
	cs.Category = cat.Name
	cs.Err = err
	return cs
}
