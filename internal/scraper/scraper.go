package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/jobreach/internal/filter"
	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/ratelimit"
	"github.com/amishk599/jobreach/internal/retry"
)

// ErrAllSourcesFailed is returned when no configured board could be fetched.
var ErrAllSourcesFailed = errors.New("all job sources failed")

// maxConcurrentBoards bounds the FETCH fan-out.
const maxConcurrentBoards = 4

// Board identifies one company job board.
type Board struct {
	Name       string
	ATS        string // greenhouse, lever or ashby
	Token      string
	CompanyURL string
}

// NewSource builds the adapter for b.
func NewSource(b Board, client *http.Client) (model.JobSource, error) {
	base := board{
		token:      b.Token,
		company:    b.Name,
		companyURL: b.CompanyURL,
		client:     client,
		now:        time.Now,
	}
	switch b.ATS {
	case "greenhouse":
		return &GreenhouseSource{base}, nil
	case "lever":
		return &LeverSource{base}, nil
	case "ashby":
		return &AshbySource{base}, nil
	default:
		return nil, fmt.Errorf("unsupported ATS %q for %s", b.ATS, b.Name)
	}
}

type namedSource struct {
	name   string
	source model.JobSource
}

// Scraper fetches every board concurrently and merges the results.
type Scraper struct {
	sources []namedSource
	filter  model.JobFilter
	logger  *slog.Logger
}

// Options configures the decorators wrapped around each board.
type Options struct {
	Limiter *ratelimit.KeyLimiter // shared per-ATS gap; nil disables
	Retry   retry.Policy
	Filter  model.JobFilter // nil keeps every job
}

// New wraps each board as retry(ratelimit(adapter)).
func New(boards []Board, client *http.Client, opts Options, logger *slog.Logger) (*Scraper, error) {
	s := &Scraper{filter: opts.Filter, logger: logger}
	for _, b := range boards {
		src, err := NewSource(b, client)
		if err != nil {
			return nil, err
		}
		if opts.Limiter != nil {
			src = ratelimit.NewLimitedSource(src, opts.Limiter, b.ATS)
		}
		src = retry.NewSource(src, opts.Retry, b.Name, logger)
		s.sources = append(s.sources, namedSource{name: b.Name, source: src})
	}
	return s, nil
}

// NewFromSources is used when the sources are already built.
func NewFromSources(sources map[string]model.JobSource, f model.JobFilter, logger *slog.Logger) *Scraper {
	s := &Scraper{filter: f, logger: logger}
	for name, src := range sources {
		s.sources = append(s.sources, namedSource{name: name, source: src})
	}
	return s
}

// FetchJobs fetches all boards, skipping the ones that fail, deduplicates by
// URL and applies the keyword filter. It fails only when every board failed.
func (s *Scraper) FetchJobs(ctx context.Context) ([]model.Job, error) {
	if len(s.sources) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		results = make([][]model.Job, len(s.sources))
		errs    []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBoards)
	for i, ns := range s.sources {
		g.Go(func() error {
			jobs, err := ns.source.FetchJobs(gctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("job source failed", "board", ns.name, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", ns.name, err))
				mu.Unlock()
				return nil
			}
			s.logger.Debug("job source fetched", "board", ns.name, "jobs", len(jobs))
			results[i] = jobs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(errs) == len(s.sources) {
		return nil, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(errs...))
	}

	seen := make(map[string]bool)
	var merged []model.Job
	for _, jobs := range results {
		for _, j := range jobs {
			if seen[j.URL] {
				continue
			}
			seen[j.URL] = true
			merged = append(merged, j)
		}
	}

	if s.filter == nil {
		return merged, nil
	}
	kept := filter.Apply(merged, s.filter)
	s.logger.Info("jobs fetched", "total", len(merged), "matching", len(kept), "boards", len(s.sources), "failed", len(errs))
	return kept, nil
}
