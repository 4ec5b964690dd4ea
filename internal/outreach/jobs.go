package outreach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/amishk599/jobreach/internal/applier"
	"github.com/amishk599/jobreach/internal/mailer"
	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/pipeline"
	"github.com/amishk599/jobreach/internal/scoring"
	"github.com/amishk599/jobreach/internal/scraper"
)

// JobStore fetches postings once per run and keeps the jobs cache file in
// sync with their scores. The apply and email categories share it.
type JobStore struct {
	source    model.JobSource // nil reads the cache only
	path      string
	skipFetch bool
	now       func() time.Time
	logger    *slog.Logger

	mu     sync.Mutex
	loaded bool
	jobs   []model.Job
	ranked map[*model.Job]bool // scored during this run
}

// NewJobStore reads from source unless skipFetch is set, in which case the
// cache at path is used.
func NewJobStore(source model.JobSource, path string, skipFetch bool, logger *slog.Logger) *JobStore {
	return &JobStore{source: source, path: path, skipFetch: skipFetch, now: time.Now, logger: logger}
}

// Load returns the postings of this run, fetching them on first use.
func (s *JobStore) Load(ctx context.Context) ([]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.jobs, nil
	}

	if s.skipFetch || s.source == nil {
		jobs, err := scraper.LoadCache(s.path)
		if err != nil {
			return nil, err
		}
		s.logger.Info("jobs loaded from cache", "path", s.path, "jobs", len(jobs))
		s.jobs, s.loaded = jobs, true
		return s.jobs, nil
	}

	jobs, err := s.source.FetchJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching jobs: %w", err)
	}
	s.jobs, s.loaded = jobs, true
	if err := scraper.SaveCache(s.path, s.jobs, s.now()); err != nil {
		s.logger.Warn("saving jobs cache failed", "path", s.path, "error", err)
	}
	return s.jobs, nil
}

// unranked returns the postings not yet scored by this store's run. Scores
// read from the cache do not count.
func (s *JobStore) unranked(cs []pipeline.Candidate) []*model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ranked == nil {
		s.ranked = make(map[*model.Job]bool)
	}
	var out []*model.Job
	for _, c := range cs {
		if !s.ranked[c.Job] {
			s.ranked[c.Job] = true
			out = append(out, c.Job)
		}
	}
	return out
}

// Save writes the current postings, scores included, to the cache.
func (s *JobStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scraper.SaveCache(s.path, s.jobs, s.now())
}

// JobFetcher lists the run's postings as candidates.
func (d *Deps) JobFetcher() pipeline.Fetcher {
	return pipeline.FetcherFunc(func(ctx context.Context) ([]pipeline.Candidate, error) {
		jobs, err := d.Jobs.Load(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]pipeline.Candidate, 0, len(jobs))
		for i := range jobs {
			out = append(out, pipeline.JobCandidate(&jobs[i]))
		}
		return out, nil
	})
}

// JobRanker scores every posting once per run and keeps those at or above the
// minimum, best first. Cached scores are refreshed; scores are written back to
// the cache.
func (d *Deps) JobRanker() pipeline.Ranker {
	return pipeline.RankerFunc(func(ctx context.Context, cs []pipeline.Candidate) ([]pipeline.Candidate, error) {
		if unscored := d.Jobs.unranked(cs); len(unscored) > 0 {
			scoring.Score(ctx, d.Chat, unscored, scoring.JobOptions(d.Profile, d.MinScore), d.Logger)
			if err := d.Jobs.Save(); err != nil {
				d.Logger.Warn("saving scored jobs failed", "error", err)
			}
		}
		return relevant(cs, d.MinScore), nil
	})
}

// relevant rebuilds candidates from their current scores, keeps those at or
// above threshold and orders them best first.
func relevant(cs []pipeline.Candidate, threshold int) []pipeline.Candidate {
	out := make([]pipeline.Candidate, 0, len(cs))
	for _, c := range cs {
		var score int
		var ok bool
		if c.Job != nil {
			c = pipeline.JobCandidate(c.Job)
			score, ok = c.Job.Score()
		} else {
			c = pipeline.CompanyCandidate(c.Company)
			score, ok = c.Company.Score()
		}
		if ok && score >= threshold {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b pipeline.Candidate) int { return b.Score - a.Score })
	return out
}

// cvForJob adapts and renders the résumé for a posting.
func (d *Deps) cvForJob(ctx context.Context, job *model.Job) (string, error) {
	cv, adapted := d.CV.ForJob(ctx, job)
	path, err := d.Renderer.Render(ctx, cv, job.Company)
	if err != nil {
		return "", fmt.Errorf("render resume: %w", err)
	}
	d.Logger.Info("resume ready", "path", path, "adapted", adapted)
	return path, nil
}

// ApplyHandler submits an application through the browser agent.
func (d *Deps) ApplyHandler() pipeline.Handler {
	return pipeline.HandlerFunc(func(ctx context.Context, c pipeline.Candidate, dryRun bool) pipeline.Outcome {
		path, err := d.cvForJob(ctx, c.Job)
		if err != nil {
			return pipeline.Fail(err)
		}
		if dryRun {
			d.Logger.Info("dry-run, application not submitted", "target", c.Label, "resume", path)
			return pipeline.Outcome{Notes: "dry-run, resume " + filepath.Base(path)}
		}

		res, err := d.Applier.Apply(ctx, applier.Application{Job: c.Job, Applicant: d.Applicant, ResumePath: path})
		if errors.Is(err, applier.ErrDeclined) {
			return pipeline.Skip("declined at confirmation")
		}
		if err != nil {
			return pipeline.Fail(err)
		}
		return pipeline.Outcome{Notes: fmt.Sprintf("filled %s, resume uploaded: %t", strings.Join(res.Filled, ", "), res.Uploaded)}
	})
}

// EmailHandler writes to the recruiter and then the founder of a posting.
func (d *Deps) EmailHandler() pipeline.Handler {
	return pipeline.HandlerFunc(func(ctx context.Context, c pipeline.Candidate, dryRun bool) pipeline.Outcome {
		job := c.Job
		contacts, err := d.Finder.JobContacts(ctx, *job)
		if err != nil {
			return pipeline.Fail(fmt.Errorf("finding contacts: %w", err))
		}
		if contacts.HR == nil && contacts.CEO == nil {
			return pipeline.Skip("No emails found")
		}

		path, err := d.cvForJob(ctx, job)
		if err != nil {
			return pipeline.Fail(err)
		}

		var msgs []mailer.Message
		if contacts.HR != nil {
			msgs = append(msgs, message(contacts.HR.Email, d.Writer.HR(ctx, job, *contacts.HR), path))
		}
		if contacts.CEO != nil && (contacts.HR == nil || !strings.EqualFold(contacts.CEO.Email, contacts.HR.Email)) {
			msgs = append(msgs, message(contacts.CEO.Email, d.Writer.CEO(ctx, job, *contacts.CEO), path))
		}

		sent, failed, err := d.send(ctx, msgs, dryRun)
		if err != nil {
			return pipeline.Outcome{Sent: sent, Err: err}
		}
		return pipeline.Outcome{Sent: sent, Notes: failureNotes(failed)}
	})
}

func failureNotes(failed []string) string {
	if len(failed) == 0 {
		return ""
	}
	return "failed: " + strings.Join(failed, ", ")
}
