package prospect

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/ratelimit"
)

// contactPaths are visited right after the home page.
var contactPaths = []string{
	"/contacto", "/contact", "/about", "/nosotros", "/equipo",
	"/team", "/about-us", "/sobre-nosotros", "/empresa",
}

// Crawler extracts email addresses from a company website.
type Crawler struct {
	client   *http.Client
	limiter  *ratelimit.HostLimiter
	maxPages int
	logger   *slog.Logger
}

// NewCrawler returns a crawler visiting at most maxPages pages per site.
func NewCrawler(client *http.Client, limiter *ratelimit.HostLimiter, maxPages int, logger *slog.Logger) *Crawler {
	if maxPages <= 0 {
		maxPages = 10
	}
	return &Crawler{client: client, limiter: limiter, maxPages: maxPages, logger: logger}
}

// Crawl visits the home page, the usual contact pages and same-host links
// until maxPages pages were read. Unreachable pages are skipped. The only
// error returned is the context's.
func (c *Crawler) Crawl(ctx context.Context, siteURL string, maxPages int) ([]model.Contact, error) {
	start, err := url.Parse(strings.TrimSpace(siteURL))
	if err != nil || (start.Scheme != "http" && start.Scheme != "https") || start.Host == "" {
		return nil, nil
	}
	if maxPages <= 0 || maxPages > c.maxPages {
		maxPages = c.maxPages
	}
	host := Domain(siteURL)

	queue := []string{start.String()}
	for _, p := range contactPaths {
		queue = append(queue, (&url.URL{Scheme: start.Scheme, Host: start.Host, Path: p}).String())
	}

	var contacts []model.Contact
	visited := make(map[string]bool)
	crawled := 0
	for len(queue) > 0 && crawled < maxPages {
		page := queue[0]
		queue = queue[1:]
		if visited[page] {
			continue
		}
		visited[page] = true

		doc, err := fetchDocument(ctx, c.client, c.limiter, page)
		if err != nil {
			if ctx.Err() != nil {
				return contacts, ctx.Err()
			}
			c.logger.Debug("crawl page skipped", "url", page, "error", err)
			continue
		}
		crawled++

		base := doc.Url
		if base == nil {
			base, _ = url.Parse(page)
		}

		var found []string
		doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if addr, ok := strings.CutPrefix(strings.TrimSpace(href), "mailto:"); ok {
				addr, _, _ = strings.Cut(addr, "?")
				if u, err := url.PathUnescape(addr); err == nil {
					addr = u
				}
				found = append(found, strings.ToLower(strings.TrimSpace(addr)))
				return
			}
			link := resolveLink(base, href)
			if link != "" && Domain(link) == host && !visited[link] {
				queue = append(queue, link)
			}
		})
		if markup, err := doc.Html(); err == nil {
			found = append(found, ExtractEmails(htmlToText(markup))...)
		}

		for _, e := range found {
			if !ValidEmail(e) {
				continue
			}
			contacts = Merge(contacts, model.Contact{Email: e, Kind: Classify(e, ""), Source: SourceWebsite})
		}
	}

	c.logger.Debug("site crawled", "url", siteURL, "pages", crawled, "emails", len(contacts))
	return contacts, nil
}
