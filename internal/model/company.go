package model

import "context"

// Contact kinds, derived from the local part of an address.
const (
	ContactHR      = "hr"
	ContactCEO     = "ceo"
	ContactInfo    = "info"
	ContactGeneric = "generic"
)

// Contact is one discovered email address.
type Contact struct {
	Email    string `json:"email"`
	Kind     string `json:"type"`
	Source   string `json:"source"`
	Name     string `json:"name,omitempty"`
	Position string `json:"position,omitempty"`
	Verified bool   `json:"verified"`
}

// Company is a prospecting target without a published posting.
type Company struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Sector      string    `json:"sector"`
	URL         string    `json:"url"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	Emails      []Contact `json:"emails"`
	Contacted   bool      `json:"contacted"`

	RelevanceScore  *int   `json:"relevance_score"`
	RelevanceReason string `json:"relevance_reason"`
	EmailAngle      string `json:"email_angle"`
}

// Key is the ledger key for a company: its URL, or its name when it has none.
func (c *Company) Key() string {
	if c.URL != "" {
		return c.URL
	}
	return c.Name
}

func (c *Company) Score() (int, bool) {
	if c.RelevanceScore == nil {
		return 0, false
	}
	return *c.RelevanceScore, true
}

// SetRelevance records a scoring result including the outreach angle.
func (c *Company) SetRelevance(score int, reason, angle string) {
	s := score
	c.RelevanceScore = &s
	c.RelevanceReason = reason
	if angle != "" {
		c.EmailAngle = angle
	}
}

// CompanySource lists prospecting targets (directory pages, seed files).
type CompanySource interface {
	FetchCompanies(ctx context.Context) ([]Company, error)
}
