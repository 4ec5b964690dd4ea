// Package pipeline runs one outreach category: fetch candidates, rank them,
// then process each new one under a per-run cap with randomized pauses,
// recording every attempt in the ledger.
package pipeline

import (
	"context"

	"github.com/amishk599/jobreach/internal/model"
)

// Candidate is a ranked target. Exactly one of Job and Company is set.
type Candidate struct {
	Label   string // ledger target, e.g. "Title @ Company" or a company name
	Key     string // duplicate-check key
	URL     string
	Score   int
	Job     *model.Job
	Company *model.Company
}

// JobCandidate keys a job by its posting URL.
func JobCandidate(j *model.Job) Candidate {
	score, _ := j.Score()
	return Candidate{Label: j.Label(), Key: j.URL, URL: j.URL, Score: score, Job: j}
}

// CompanyCandidate keys a company by its website, or its name without one.
func CompanyCandidate(c *model.Company) Candidate {
	score, _ := c.Score()
	return Candidate{Label: c.Name, Key: c.Key(), URL: c.URL, Score: score, Company: c}
}

// Fetcher produces the raw candidates of a category.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Candidate, error)
}

// Ranker keeps relevant candidates, best first.
type Ranker interface {
	Rank(ctx context.Context, candidates []Candidate) ([]Candidate, error)
}

// Handler performs the side effect for one candidate. With dryRun set it
// must not send or submit anything.
type Handler interface {
	Handle(ctx context.Context, c Candidate, dryRun bool) Outcome
}

// Outcome is what a handler reports. A nil Err means success.
type Outcome struct {
	Skipped bool     // nothing attempted, e.g. no contact address found
	Sent    []string // addresses reached
	Notes   string
	Err     error
}

// Skip reports that the candidate was not attempted.
func Skip(notes string) Outcome { return Outcome{Skipped: true, Notes: notes} }

// Fail reports a failed attempt.
func Fail(err error) Outcome { return Outcome{Err: err} }

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]Candidate, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]Candidate, error) { return f(ctx) }

// RankerFunc adapts a function to Ranker.
type RankerFunc func(ctx context.Context, candidates []Candidate) ([]Candidate, error)

func (f RankerFunc) Rank(ctx context.Context, cs []Candidate) ([]Candidate, error) { return f(ctx, cs) }

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, c Candidate, dryRun bool) Outcome

func (f HandlerFunc) Handle(ctx context.Context, c Candidate, dryRun bool) Outcome {
	return f(ctx, c, dryRun)
}
