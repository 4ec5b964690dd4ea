// Package prospect discovers companies and their contact addresses.
package prospect

import (
	"html"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/amishk599/jobreach/internal/model"
)

// Contact sources.
const (
	SourceListing = "job_listing"
	SourceWebsite = "website_crawl"
	SourceHunter  = "hunter.io"
	SourceSeed    = "seed"
)

var (
	emailRegex = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	tagRegex   = regexp.MustCompile(`(?is)<[^>]+>`)
)

// htmlToText replaces tags with spaces so adjacent elements never run together.
func htmlToText(s string) string {
	s = tagRegex.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

var (
	hrPrefixes = map[string]bool{
		"rrhh": true, "hr": true, "empleo": true, "empleos": true, "jobs": true,
		"careers": true, "talent": true, "recruiting": true, "people": true,
		"seleccion": true, "trabajo": true,
	}
	infoPrefixes = map[string]bool{
		"info": true, "contacto": true, "contact": true, "hola": true, "hello": true,
		"ventas": true, "sales": true, "administracion": true, "admin": true,
	}
	ignoredPrefixes = map[string]bool{
		"no-reply": true, "noreply": true, "newsletter": true, "webmaster": true,
		"postmaster": true, "abuse": true, "privacy": true,
	}
	personalDomains = map[string]bool{
		"gmail.com": true, "hotmail.com": true, "outlook.com": true, "yahoo.com": true,
		"live.com": true, "icloud.com": true, "protonmail.com": true, "aol.com": true,
	}
	ceoTitles = []string{
		"ceo", "cto", "founder", "fundador", "director", "owner",
		"gerente general", "managing director",
	}
	assetSuffixes = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".css", ".js"}
)

// ValidEmail rejects malformed addresses, asset file names that look like
// addresses (logo@2x.png) and no-reply style mailboxes.
func ValidEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || len(email) > 254 {
		return false
	}
	if emailRegex.FindString(email) != email {
		return false
	}
	for _, ext := range assetSuffixes {
		if strings.HasSuffix(email, ext) {
			return false
		}
	}
	local, _, _ := strings.Cut(email, "@")
	return !ignoredPrefixes[local]
}

// Classify returns the contact kind for an address. A known position takes
// precedence over the local part.
func Classify(email, position string) string {
	if IsExecutive(position) {
		return model.ContactCEO
	}
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	switch {
	case hrPrefixes[local]:
		return model.ContactHR
	case local == "ceo" || local == "founder" || local == "fundador":
		return model.ContactCEO
	case infoPrefixes[local]:
		return model.ContactInfo
	default:
		return model.ContactGeneric
	}
}

// IsExecutive reports whether a job position names a founder or C-level role.
func IsExecutive(position string) bool {
	p := strings.ToLower(position)
	if p == "" {
		return false
	}
	for _, t := range ceoTitles {
		if strings.Contains(p, t) {
			return true
		}
	}
	return false
}

// Domain returns the host of rawURL without a leading "www.".
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// ExtractEmails returns the distinct valid addresses in text, in order of appearance.
func ExtractEmails(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range emailRegex.FindAllString(text, -1) {
		e := strings.ToLower(m)
		if seen[e] || !ValidEmail(e) {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

func emailDomain(email string) string {
	_, d, _ := strings.Cut(email, "@")
	return d
}

// Merge appends contacts not already present by address.
func Merge(into []model.Contact, more ...model.Contact) []model.Contact {
	for _, c := range more {
		if !slices.ContainsFunc(into, func(e model.Contact) bool { return e.Email == c.Email }) {
			into = append(into, c)
		}
	}
	return into
}

// rank orders contacts: verified before unverified, then hr, ceo, info, generic.
func rank(c model.Contact) int {
	r := 0
	switch c.Kind {
	case model.ContactHR:
	case model.ContactCEO:
		r = 1
	case model.ContactInfo:
		r = 2
	default:
		r = 3
	}
	if personalDomains[emailDomain(c.Email)] {
		r += 4
	}
	if !c.Verified {
		r += 10
	}
	return r
}

// Sort orders contacts best first, keeping discovery order among equals.
func Sort(contacts []model.Contact) {
	slices.SortStableFunc(contacts, func(a, b model.Contact) int { return rank(a) - rank(b) })
}

// Pick returns the first contact of kind, or nil.
func Pick(contacts []model.Contact, kind string) *model.Contact {
	for i := range contacts {
		if contacts[i].Kind == kind {
			return &contacts[i]
		}
	}
	return nil
}
