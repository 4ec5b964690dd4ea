package prospect

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/ratelimit"
)

// userAgent is sent on every crawl and directory request.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// maxPageBytes caps how much of a page is parsed.
const maxPageBytes = 4 << 20

// Directory describes a listing page and the CSS selectors that read it.
type Directory struct {
	URL            string
	ItemSelector   string
	NameSelector   string
	LinkSelector   string // defaults to "a[href]"
	SectorSelector string
	Location       string
	Source         string
}

// DirectorySource scrapes companies from one listing page.
type DirectorySource struct {
	dir     Directory
	client  *http.Client
	limiter *ratelimit.HostLimiter
}

// NewDirectorySource returns a source for dir. limiter may be nil.
func NewDirectorySource(dir Directory, client *http.Client, limiter *ratelimit.HostLimiter) *DirectorySource {
	if dir.LinkSelector == "" {
		dir.LinkSelector = "a[href]"
	}
	if dir.Source == "" {
		dir.Source = Domain(dir.URL)
	}
	return &DirectorySource{dir: dir, client: client, limiter: limiter}
}

func (s *DirectorySource) FetchCompanies(ctx context.Context) ([]model.Company, error) {
	doc, err := fetchDocument(ctx, s.client, s.limiter, s.dir.URL)
	if err != nil {
		return nil, fmt.Errorf("directory %s: %w", s.dir.URL, err)
	}
	base, _ := url.Parse(s.dir.URL)
	dirHost := Domain(s.dir.URL)

	var companies []model.Company
	doc.Find(s.dir.ItemSelector).Each(func(_ int, item *goquery.Selection) {
		name := cleanText(item.Find(s.dir.NameSelector).First().Text())
		if len([]rune(name)) < 2 || len([]rune(name)) > 80 {
			return
		}

		var link string
		if href, ok := item.Find(s.dir.LinkSelector).First().Attr("href"); ok {
			link = resolveLink(base, href)
		}
		// Links back into the directory are profile pages, not company sites.
		if link != "" && Domain(link) == dirHost {
			link = ""
		}

		var sector string
		if s.dir.SectorSelector != "" {
			sector = cleanText(item.Find(s.dir.SectorSelector).First().Text())
		}

		companies = append(companies, model.Company{
			Name:     name,
			URL:      link,
			Sector:   sector,
			Location: s.dir.Location,
			Source:   s.dir.Source,
		})
	})
	return companies, nil
}

func fetchDocument(ctx context.Context, client *http.Client, limiter *ratelimit.HostLimiter, pageURL string) (*goquery.Document, error) {
	if limiter != nil {
		if err := limiter.WaitURL(ctx, pageURL); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "es-AR,es;q=0.9,en;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: model.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("get %s: unexpected status %d", pageURL, resp.StatusCode),
		}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("get %s: not an HTML page (%s)", pageURL, ct)
	}
	return goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CompanyID is md5("<lower name>:<host>")[:12].
func CompanyID(name, rawURL string) string {
	var host string
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(name)) + ":" + host))
	return hex.EncodeToString(sum[:])[:12]
}
