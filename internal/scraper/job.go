// Package scraper fetches job postings from public ATS board APIs and keeps
// the local job cache.
package scraper

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/amishk599/jobreach/internal/model"
)

// MaxDescription caps stored descriptions, in runes.
const MaxDescription = 5000

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// JobID is the first 12 hex characters of md5(url).
func JobID(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])[:12]
}

// extractText converts an HTML or HTML-encoded string to plain text.
// Greenhouse double-encodes, so entities are unescaped before and after
// stripping tags.
func extractText(content string) string {
	unescaped := html.UnescapeString(content)
	plain := html.UnescapeString(htmlTagRegex.ReplaceAllString(unescaped, " "))
	return strings.Join(strings.Fields(plain), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// board carries what every adapter needs to normalise a posting.
type board struct {
	token      string
	company    string
	companyURL string
	client     *http.Client
	now        func() time.Time
}

func (b board) job(source, title, location, description, url, posted string) model.Job {
	return model.Job{
		ID:          JobID(url),
		Title:       strings.TrimSpace(title),
		Company:     b.company,
		Location:    strings.TrimSpace(location),
		Description: truncate(description, MaxDescription),
		URL:         url,
		Source:      source,
		DatePosted:  posted,
		CompanyURL:  b.companyURL,
		ScrapedAt:   b.now().UTC().Format(time.RFC3339),
	}
}

func statusError(source, token string, resp *http.Response) error {
	return &model.HTTPError{
		StatusCode: resp.StatusCode,
		RetryAfter: model.ParseRetryAfter(resp.Header.Get("Retry-After")),
		Err:        fmt.Errorf("%s fetch for %s: unexpected status %d", source, token, resp.StatusCode),
	}
}
