package filter

import (
	"strings"

	"github.com/amishk599/jobreach/internal/model"
)

// TermAndLocationFilter is the cheap keyword pass that runs before LLM scoring.
// A job matches when its title contains every word of at least one search
// term and its location contains one of the location keywords. Matching is
// case-insensitive. Empty lists match all, and so does an empty job location.
type TermAndLocationFilter struct {
	terms     [][]string
	locations []string
}

// NewTermAndLocationFilter splits each term into lowercase words.
func NewTermAndLocationFilter(terms []string, locations []string) *TermAndLocationFilter {
	f := &TermAndLocationFilter{}
	for _, t := range terms {
		if words := strings.Fields(strings.ToLower(t)); len(words) > 0 {
			f.terms = append(f.terms, words)
		}
	}
	for _, l := range locations {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			f.locations = append(f.locations, l)
		}
	}
	return f
}

func (f *TermAndLocationFilter) Match(job model.Job) bool {
	return f.matchTitle(strings.ToLower(job.Title)) && f.matchLocation(strings.ToLower(job.Location))
}

func (f *TermAndLocationFilter) matchTitle(title string) bool {
	if len(f.terms) == 0 {
		return true
	}
	for _, words := range f.terms {
		all := true
		for _, w := range words {
			if !strings.Contains(title, w) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func (f *TermAndLocationFilter) matchLocation(location string) bool {
	if len(f.locations) == 0 || strings.TrimSpace(location) == "" {
		return true
	}
	for _, loc := range f.locations {
		if strings.Contains(location, loc) {
			return true
		}
	}
	return false
}

// Apply returns the jobs accepted by f, preserving order.
func Apply(jobs []model.Job, f model.JobFilter) []model.Job {
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if f.Match(j) {
			out = append(out, j)
		}
	}
	return out
}
