package prospect

import (
	"context"
	"log/slog"

	"github.com/amishk599/jobreach/internal/model"
)

// jobCrawlPages bounds the crawl of a hiring company's site.
const jobCrawlPages = 5

// Finder combines the crawler, Hunter.io and MX verification.
type Finder struct {
	crawler *Crawler
	hunter  *HunterClient // nil disables enrichment
	mx      *MXVerifier   // nil disables verification
	logger  *slog.Logger
}

func NewFinder(crawler *Crawler, hunter *HunterClient, mx *MXVerifier, logger *slog.Logger) *Finder {
	return &Finder{crawler: crawler, hunter: hunter, mx: mx, logger: logger}
}

// CompanyContacts crawls the company website, adds Hunter.io results,
// verifies domains and returns the contacts best first.
func (f *Finder) CompanyContacts(ctx context.Context, c model.Company) ([]model.Contact, error) {
	if c.URL == "" {
		f.logger.Info("company has no website, skipping crawl", "company", c.Name)
		return nil, nil
	}

	contacts, err := f.crawler.Crawl(ctx, c.URL, 0)
	if err != nil {
		return nil, err
	}
	contacts = Merge(contacts, f.hunterContacts(ctx, Domain(c.URL))...)
	f.verify(ctx, contacts)
	Sort(contacts)

	f.logger.Info("company emails found", "company", c.Name, "emails", len(contacts))
	return contacts, nil
}

// JobContacts are the addresses found for one posting.
type JobContacts struct {
	HR  *model.Contact
	CEO *model.Contact
	All []model.Contact
}

// JobContacts looks in the posting text, then the company website, then
// Hunter.io. The first non-personal address found becomes the HR contact
// unless a dedicated HR mailbox turns up; executives come from Hunter positions.
func (f *Finder) JobContacts(ctx context.Context, job model.Job) (JobContacts, error) {
	var all []model.Contact

	for _, e := range ExtractEmails(job.Description) {
		if personalDomains[emailDomain(e)] {
			continue
		}
		all = Merge(all, model.Contact{Email: e, Kind: Classify(e, ""), Source: SourceListing})
	}

	if job.CompanyURL != "" {
		site, err := f.crawler.Crawl(ctx, job.CompanyURL, jobCrawlPages)
		if err != nil {
			return JobContacts{}, err
		}
		all = Merge(all, site...)
	}

	domain := Domain(job.CompanyURL)
	if domain == "" && len(all) > 0 {
		domain = emailDomain(all[0].Email)
	}
	all = Merge(all, f.hunterContacts(ctx, domain)...)
	f.verify(ctx, all)

	res := JobContacts{All: all}
	res.HR = Pick(all, model.ContactHR)
	if res.HR == nil {
		for i := range all {
			if all[i].Kind != model.ContactCEO {
				res.HR = &all[i]
				break
			}
		}
	}
	res.CEO = Pick(all, model.ContactCEO)

	f.logger.Info("job emails found", "company", job.Company, "emails", len(all),
		"hr", res.HR != nil, "ceo", res.CEO != nil)
	return res, nil
}

func (f *Finder) hunterContacts(ctx context.Context, domain string) []model.Contact {
	if f.hunter == nil || domain == "" {
		return nil
	}
	contacts, err := f.hunter.DomainSearch(ctx, domain)
	if err != nil {
		f.logger.Warn("hunter lookup failed", "domain", domain, "error", err)
		return nil
	}
	return contacts
}

func (f *Finder) verify(ctx context.Context, contacts []model.Contact) {
	if f.mx == nil {
		return
	}
	for i := range contacts {
		if !contacts[i].Verified {
			contacts[i].Verified = f.mx.HasMX(ctx, emailDomain(contacts[i].Email))
		}
	}
}

// Enrich fills Emails for every company that has none, pausing between
// crawls. It stops at the first context error and returns how many
// companies were crawled.
func (f *Finder) Enrich(ctx context.Context, companies []model.Company, pause Pause) (int, error) {
	crawled := 0
	for i := range companies {
		if len(companies[i].Emails) > 0 {
			continue
		}
		if crawled > 0 && pause != nil {
			if err := pause(ctx); err != nil {
				return crawled, err
			}
		}
		contacts, err := f.CompanyContacts(ctx, companies[i])
		if err != nil {
			return crawled, err
		}
		if contacts == nil {
			contacts = []model.Contact{}
		}
		companies[i].Emails = contacts
		if companies[i].URL != "" {
			crawled++
		}
	}
	return crawled, nil
}
