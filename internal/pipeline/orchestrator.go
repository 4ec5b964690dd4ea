package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/jobreach/internal/ledger"
	"github.com/amishk599/jobreach/internal/model"
)

// Pacing is the inclusive range of the pause between processed candidates.
type Pacing struct {
	Min time.Duration
	Max time.Duration
}

// Pick returns a uniformly random duration in [Min, Max].
func (p Pacing) Pick() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + time.Duration(rand.Int64N(int64(p.Max-p.Min)+1))
}

// Category wires the collaborators of one pipeline.
type Category struct {
	Name    model.Category
	Fetcher Fetcher
	Ranker  Ranker
	Handler Handler
	Max     int // per-run cap on processed candidates
	Pacing  Pacing
}

// Pacer waits for d or until ctx is done.
type Pacer func(ctx context.Context, d time.Duration) error

// Sleep is the default Pacer.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDryRun records dry_run instead of performing side effects.
func WithDryRun(dryRun bool) Option { return func(o *Orchestrator) { o.dryRun = dryRun } }

// WithPacer replaces the pause between candidates.
func WithPacer(p Pacer) Option { return func(o *Orchestrator) { o.pause = p } }

// WithClock replaces the clock used to stamp ledger entries.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// Orchestrator processes categories against a shared ledger.
type Orchestrator struct {
	ledger ledger.Ledger
	dryRun bool
	pause  Pacer
	now    func() time.Time
	logger *slog.Logger
}

// New creates an orchestrator writing to l.
func New(l ledger.Ledger, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ledger: l,
		pause:  Sleep,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DryRun reports whether side effects are simulated.
func (o *Orchestrator) DryRun() bool { return o.dryRun }

// Run executes one category. Candidate failures are recorded and never stop
// the loop. A fetch, rank or ledger error ends the category and is returned
// with the counters gathered so far. Cancelling ctx stops before the next
// candidate; the candidate in flight always finishes and is recorded.
func (o *Orchestrator) Run(ctx context.Context, cat Category) (CategorySummary, error) {
	s := CategorySummary{Category: cat.Name, Max: cat.Max}
	log := o.logger.With("category", string(cat.Name))

	candidates, err := cat.Fetcher.Fetch(ctx)
	if err != nil {
		return s, fmt.Errorf("fetching %s candidates: %w", cat.Name, err)
	}
	s.Fetched = len(candidates)
	if len(candidates) == 0 {
		log.Warn("no candidates found")
		return s, nil
	}

	ranked, err := cat.Ranker.Rank(ctx, candidates)
	if err != nil {
		return s, fmt.Errorf("ranking %s candidates: %w", cat.Name, err)
	}
	s.Relevant = len(ranked)
	if len(ranked) == 0 {
		log.Warn("no candidates passed the relevance filter", "fetched", s.Fetched)
		return s, nil
	}

	for _, c := range ranked {
		if ctx.Err() != nil {
			s.Interrupted = true
			log.Warn("run interrupted", "processed", s.Processed)
			break
		}
		if s.Processed >= cat.Max {
			s.CapReached = true
			log.Info("per-run cap reached", "max", cat.Max)
			break
		}

		dup, err := o.ledger.IsDuplicate(c.Key)
		if err != nil {
			return s, fmt.Errorf("checking ledger for %s: %w", c.Label, err)
		}
		if dup {
			s.Duplicates++
			log.Info("already handled, skipping", "target", c.Label)
			continue
		}

		log.Info("processing candidate",
			"n", s.Processed+1,
			"target", c.Label,
			"score", c.Score,
		)
		out := cat.Handler.Handle(context.WithoutCancel(ctx), c, o.dryRun)
		action := o.action(cat.Name, out)

		notes := out.Notes
		if out.Err != nil {
			log.Error("candidate failed", "target", c.Label, "error", out.Err)
			if notes == "" {
				notes = out.Err.Error()
			}
		}
		entry := ledger.NewEntry(cat.Name, c.Label, c.URL, action, out.Sent, notes, o.now())
		if err := o.ledger.Append(entry); err != nil {
			return s, fmt.Errorf("recording %s: %w", c.Label, err)
		}
		s.record(action)

		if action == model.ActionSkipped {
			log.Warn("candidate skipped", "target", c.Label, "notes", notes)
			continue
		}
		s.Processed++

		if s.Processed < cat.Max {
			wait := cat.Pacing.Pick()
			log.Info("pausing before next candidate", "delay", wait.Round(time.Second))
			if err := o.pause(ctx, wait); err != nil {
				s.Interrupted = true
				log.Warn("run interrupted", "processed", s.Processed)
				break
			}
		}
	}

	log.Info("category finished",
		"fetched", s.Fetched,
		"relevant", s.Relevant,
		"processed", s.Processed,
		"duplicates", s.Duplicates,
	)
	return s, nil
}

// action maps a handler outcome to the recorded tag. A skip is recorded as
// such; otherwise dry-run wins over the handler's result.
func (o *Orchestrator) action(cat model.Category, out Outcome) model.Action {
	switch {
	case out.Skipped:
		return model.ActionSkipped
	case o.dryRun:
		return model.ActionDryRun
	case out.Err != nil:
		return model.ActionFailed
	default:
		return cat.SuccessAction()
	}
}
