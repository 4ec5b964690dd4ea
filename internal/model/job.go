package model

import (
	"context"
	"fmt"
)

// Job is a posting fetched from any job source.
type Job struct {
	ID          string `json:"id"`          // md5(url)[:12]
	Title       string `json:"title"`       // job title
	Company     string `json:"company"`     // company name
	Location    string `json:"location"`    // location string
	Description string `json:"description"` // plain text, truncated
	URL         string `json:"url"`         // direct posting link
	Source      string `json:"source"`      // ATS name
	DatePosted  string `json:"date_posted"` // raw, source-specific
	CompanyURL  string `json:"company_url"` // company website when known
	ScrapedAt   string `json:"scraped_at"`

	// Nil until scored; zero is a real score.
	RelevanceScore  *int   `json:"relevance_score"`
	RelevanceReason string `json:"relevance_reason"`
}

// Label is the human-readable target recorded in the ledger.
func (j *Job) Label() string {
	return fmt.Sprintf("%s @ %s", j.Title, j.Company)
}

// Score returns the relevance score and whether it has been set.
func (j *Job) Score() (int, bool) {
	if j.RelevanceScore == nil {
		return 0, false
	}
	return *j.RelevanceScore, true
}

// SetRelevance records a scoring result. Jobs have no outreach angle.
func (j *Job) SetRelevance(score int, reason, _ string) {
	s := score
	j.RelevanceScore = &s
	j.RelevanceReason = reason
}

// JobSource fetches job postings (e.g. a Greenhouse board).
type JobSource interface {
	FetchJobs(ctx context.Context) ([]Job, error)
}

// JobFilter decides whether a job matches the user's criteria.
type JobFilter interface {
	Match(job Job) bool
}
