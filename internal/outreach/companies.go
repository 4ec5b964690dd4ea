package outreach

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amishk599/jobreach/internal/mailer"
	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/pipeline"
	"github.com/amishk599/jobreach/internal/prospect"
	"github.com/amishk599/jobreach/internal/scoring"
)

// CompanyStore owns the prospect list for a run and persists every change
// (emails found, scores, contacted flag) to the company cache.
type CompanyStore struct {
	sources     []model.CompanySource
	path        string
	skipCollect bool
	now         func() time.Time
	logger      *slog.Logger

	mu        sync.Mutex
	loaded    bool
	companies []model.Company
	ranked    map[*model.Company]bool // scored during this run
}

// NewCompanyStore collects from sources unless skipCollect is set, in which
// case only the cache at path is used.
func NewCompanyStore(sources []model.CompanySource, path string, skipCollect bool, logger *slog.Logger) *CompanyStore {
	return &CompanyStore{sources: sources, path: path, skipCollect: skipCollect, now: time.Now, logger: logger}
}

// Load returns the companies of this run. Freshly collected companies are
// merged with the cache; cached entries win so earlier crawl results, scores
// and the contacted flag survive.
func (s *CompanyStore) Load(ctx context.Context, pause prospect.Pause) ([]model.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.companies, nil
	}

	cached, err := prospect.LoadCompanies(s.path)
	if err != nil {
		return nil, err
	}
	if s.skipCollect || len(s.sources) == 0 {
		s.logger.Info("companies loaded from cache", "path", s.path, "companies", len(cached))
		s.companies, s.loaded = cached, true
		return s.companies, nil
	}

	collected, err := prospect.Collect(ctx, s.sources, pause, s.logger)
	if err != nil {
		return nil, fmt.Errorf("collecting companies: %w", err)
	}
	s.companies, s.loaded = mergeCompanies(cached, collected), true
	if err := s.save(); err != nil {
		s.logger.Warn("saving company cache failed", "path", s.path, "error", err)
	}
	return s.companies, nil
}

func mergeCompanies(cached, collected []model.Company) []model.Company {
	byID := make(map[string]bool, len(cached))
	for _, c := range cached {
		byID[c.ID] = true
	}
	out := append([]model.Company(nil), cached...)
	for _, c := range collected {
		if !byID[c.ID] {
			byID[c.ID] = true
			out = append(out, c)
		}
	}
	return out
}

// unranked returns the companies not yet scored by this store's run. Scores
// read from the cache do not count.
func (s *CompanyStore) unranked(cs []pipeline.Candidate) []*model.Company {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ranked == nil {
		s.ranked = make(map[*model.Company]bool)
	}
	var out []*model.Company
	for _, c := range cs {
		if !s.ranked[c.Company] {
			s.ranked[c.Company] = true
			out = append(out, c.Company)
		}
	}
	return out
}

// Save writes the current companies to the cache.
func (s *CompanyStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func (s *CompanyStore) save() error {
	return prospect.SaveCompanies(s.path, s.companies, s.now())
}

func (d *Deps) crawlPause(ctx context.Context) error {
	return d.sleep(ctx, d.CrawlDelay)
}

// ProspectFetcher loads the companies, crawls the websites of those without
// addresses and lists the ones not yet contacted that have at least one.
func (d *Deps) ProspectFetcher(skipCrawl bool) pipeline.Fetcher {
	return pipeline.FetcherFunc(func(ctx context.Context) ([]pipeline.Candidate, error) {
		companies, err := d.Companies.Load(ctx, d.crawlPause)
		if err != nil {
			return nil, err
		}

		if !skipCrawl {
			n, err := d.Finder.Enrich(ctx, companies, d.crawlPause)
			if saveErr := d.Companies.Save(); saveErr != nil {
				d.Logger.Warn("saving company cache failed", "error", saveErr)
			}
			if err != nil {
				return nil, fmt.Errorf("crawling company websites: %w", err)
			}
			d.Logger.Info("company websites crawled", "crawled", n)
		}

		var out []pipeline.Candidate
		for i := range companies {
			c := &companies[i]
			if c.Contacted || len(c.Emails) == 0 {
				continue
			}
			out = append(out, pipeline.CompanyCandidate(c))
		}
		return out, nil
	})
}

// ProspectRanker scores every company once per run, stores the scores and
// outreach angles, and keeps those at or above the minimum.
func (d *Deps) ProspectRanker() pipeline.Ranker {
	return pipeline.RankerFunc(func(ctx context.Context, cs []pipeline.Candidate) ([]pipeline.Candidate, error) {
		if unscored := d.Companies.unranked(cs); len(unscored) > 0 {
			scoring.Score(ctx, d.Chat, unscored, scoring.CompanyOptions(d.Profile, d.MinScore), d.Logger)
			if err := d.Companies.Save(); err != nil {
				d.Logger.Warn("saving scored companies failed", "error", err)
			}
		}
		return relevant(cs, d.MinScore), nil
	})
}

// ProspectHandler writes to the first addresses of a company and marks it
// contacted once at least one email went out.
func (d *Deps) ProspectHandler() pipeline.Handler {
	return pipeline.HandlerFunc(func(ctx context.Context, c pipeline.Candidate, dryRun bool) pipeline.Outcome {
		company := c.Company
		recipients := company.Emails
		if len(recipients) > maxProspectRecipients {
			recipients = recipients[:maxProspectRecipients]
		}
		if len(recipients) == 0 {
			return pipeline.Skip("No emails found")
		}

		cv, adapted := d.CV.ForCompany(ctx, company)
		path, err := d.Renderer.Render(ctx, cv, company.Name)
		if err != nil {
			return pipeline.Fail(fmt.Errorf("render resume: %w", err))
		}
		d.Logger.Info("resume ready", "path", path, "adapted", adapted)

		msgs := make([]mailer.Message, 0, len(recipients))
		for _, to := range recipients {
			msgs = append(msgs, message(to.Email, d.Writer.Prospect(ctx, company, to), path))
		}

		sent, failed, err := d.send(ctx, msgs, dryRun)
		if err != nil {
			return pipeline.Outcome{Sent: sent, Err: err}
		}
		if !dryRun && len(sent) > 0 {
			company.Contacted = true
			if err := d.Companies.Save(); err != nil {
				d.Logger.Warn("saving contacted flag failed", "company", company.Name, "error", err)
			}
		}
		return pipeline.Outcome{Sent: sent, Notes: failureNotes(failed)}
	})
}
