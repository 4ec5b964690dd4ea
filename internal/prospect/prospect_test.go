package prospect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/retry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func htmlServer(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"rrhh@acme.com.ar", true},
		{"Jane.Doe@Acme.io", true},
		{"logo@2x.png", false},
		{"noreply@acme.com", false},
		{"not-an-email", false},
		{"a@b", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := ValidEmail(tt.email); got != tt.want {
				t.Errorf("ValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		email, position, want string
	}{
		{"rrhh@acme.com", "", model.ContactHR},
		{"careers@acme.com", "", model.ContactHR},
		{"info@acme.com", "", model.ContactInfo},
		{"ceo@acme.com", "", model.ContactCEO},
		{"ana@acme.com", "Co-Founder & CEO", model.ContactCEO},
		{"ana@acme.com", "Engineer", model.ContactGeneric},
	}
	for _, tt := range tests {
		if got := Classify(tt.email, tt.position); got != tt.want {
			t.Errorf("Classify(%q, %q) = %q, want %q", tt.email, tt.position, got, tt.want)
		}
	}
}

func TestSort_VerifiedHRFirst(t *testing.T) {
	contacts := []model.Contact{
		{Email: "info@acme.com", Kind: model.ContactInfo, Verified: true},
		{Email: "rrhh@acme.com", Kind: model.ContactHR, Verified: false},
		{Email: "jobs@acme.com", Kind: model.ContactHR, Verified: true},
		{Email: "me@gmail.com", Kind: model.ContactGeneric, Verified: true},
	}
	Sort(contacts)

	var got []string
	for _, c := range contacts {
		got = append(got, c.Email)
	}
	want := "jobs@acme.com,info@acme.com,me@gmail.com,rrhh@acme.com"
	if strings.Join(got, ",") != want {
		t.Errorf("order = %v, want %s", got, want)
	}
}

func TestDirectorySource_FetchCompanies(t *testing.T) {
	srv := htmlServer(t, map[string]string{"/socios": `
		<ul>
			<li class="socio"><h3>Acme Software</h3><a href="https://www.acme.com/">web</a><span class="rubro">Software</span></li>
			<li class="socio"><h3>Beta Labs</h3><a href="/perfil/beta">perfil</a></li>
			<li class="socio"><h3>X</h3></li>
		</ul>`})

	src := NewDirectorySource(Directory{
		URL:            srv.URL + "/socios",
		ItemSelector:   "li.socio",
		NameSelector:   "h3",
		SectorSelector: ".rubro",
		Location:       "Mendoza",
		Source:         "polo_tic",
	}, srv.Client(), nil)

	companies, err := src.FetchCompanies(context.Background())
	if err != nil {
		t.Fatalf("FetchCompanies: %v", err)
	}
	if len(companies) != 2 {
		t.Fatalf("expected 2 companies, got %+v", companies)
	}
	if c := companies[0]; c.Name != "Acme Software" || c.URL != "https://www.acme.com/" || c.Sector != "Software" || c.Location != "Mendoza" || c.Source != "polo_tic" {
		t.Errorf("first = %+v", c)
	}
	if companies[1].URL != "" {
		t.Errorf("link into the directory should be dropped, got %q", companies[1].URL)
	}
}

func TestCollect_DedupsAndSkipsFailures(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "seed.json")
	os.WriteFile(seed, []byte(`{"known_companies": [
		{"name": "Acme", "url": "https://acme.com"},
		{"name": "NoSite"}
	]}`), 0644)

	pauses := 0
	companies, err := Collect(context.Background(), []model.CompanySource{
		NewSeedSource(seed),
		failingSource{},
		staticSource{{Name: "Acme Inc", URL: "https://www.acme.com/about"}, {Name: "nosite"}, {Name: "Gamma", URL: "https://gamma.dev"}},
	}, func(context.Context) error { pauses++; return nil }, discardLogger())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	var names []string
	for _, c := range companies {
		names = append(names, c.Name)
		if len(c.ID) != 12 || c.Emails == nil {
			t.Errorf("company %q not initialised: %+v", c.Name, c)
		}
	}
	if strings.Join(names, ",") != "Acme,NoSite,Gamma" {
		t.Errorf("names = %v", names)
	}
	if companies[0].Source != SourceSeed || companies[0].Sector != "technology" {
		t.Errorf("seed company = %+v", companies[0])
	}
	if pauses != 2 {
		t.Errorf("pauses = %d, want 2", pauses)
	}
}

type staticSource []model.Company

func (s staticSource) FetchCompanies(context.Context) ([]model.Company, error) { return s, nil }

type failingSource struct{}

func (failingSource) FetchCompanies(context.Context) ([]model.Company, error) {
	return nil, errors.New("directory down")
}

func TestCompanyCache_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.json")
	if got, err := LoadCompanies(path); err != nil || got != nil {
		t.Fatalf("LoadCompanies on missing file = %v, %v", got, err)
	}

	c := model.Company{Name: "Acme", URL: "https://acme.com", Emails: []model.Contact{{Email: "hr@acme.com", Kind: model.ContactHR}}}
	c.SetRelevance(81, "fits", "mention their Go platform")
	if err := SaveCompanies(path, []model.Company{c}, time.Now()); err != nil {
		t.Fatalf("SaveCompanies: %v", err)
	}
	got, err := LoadCompanies(path)
	if err != nil {
		t.Fatalf("LoadCompanies: %v", err)
	}
	if len(got) != 1 || got[0].EmailAngle != "mention their Go platform" || len(got[0].Emails) != 1 {
		t.Errorf("LoadCompanies = %+v", got)
	}
	if s, ok := got[0].Score(); !ok || s != 81 {
		t.Errorf("Score = %d, %v", s, ok)
	}
}

func TestCrawler_FindsMailtoAndTextEmails(t *testing.T) {
	srv := htmlServer(t, map[string]string{
		"/": `<html><body>
			<a href="/careers">Careers</a>
			<a href="https://facebook.com/acme">fb</a>
			<img src="logo@2x.png">
		</body></html>`,
		"/contact": `<p>Write to info@acme.com</p><a href="mailto:RRHH@acme.com?subject=CV">rrhh</a>`,
		"/careers": `<p>Send your CV to jobs@acme.com.</p>`,
	})

	c := NewCrawler(srv.Client(), nil, 10, discardLogger())
	contacts, err := c.Crawl(context.Background(), srv.URL+"/", 0)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	got := map[string]string{}
	for _, ct := range contacts {
		got[ct.Email] = ct.Kind
		if ct.Source != SourceWebsite {
			t.Errorf("source = %q", ct.Source)
		}
	}
	want := map[string]string{
		"info@acme.com": model.ContactInfo,
		"rrhh@acme.com": model.ContactHR,
		"jobs@acme.com": model.ContactHR,
	}
	if len(got) != len(want) {
		t.Fatalf("contacts = %v, want %v", got, want)
	}
	for e, k := range want {
		if got[e] != k {
			t.Errorf("%s kind = %q, want %q", e, got[e], k)
		}
	}
}

func TestCrawler_RespectsPageCap(t *testing.T) {
	pages := map[string]string{"/": `<a href="/p1">1</a><a href="/p2">2</a>`}
	pages["/p1"] = `a@acme.com <a href="/p3">3</a>`
	pages["/p2"] = `b@acme.com`
	pages["/p3"] = `c@acme.com`
	srv := htmlServer(t, pages)

	c := NewCrawler(srv.Client(), nil, 10, discardLogger())
	contacts, err := c.Crawl(context.Background(), srv.URL, 2)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(contacts) != 1 || contacts[0].Email != "a@acme.com" {
		t.Errorf("contacts = %+v, want only the first linked page", contacts)
	}
}

func TestCrawler_IgnoresNonHTTPURL(t *testing.T) {
	c := NewCrawler(http.DefaultClient, nil, 10, discardLogger())
	contacts, err := c.Crawl(context.Background(), "acme.com", 0)
	if err != nil || contacts != nil {
		t.Errorf("Crawl = %v, %v", contacts, err)
	}
}

func hunterServer(t *testing.T, status int, body string, gotQuery *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/domain-search" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if gotQuery != nil {
			*gotQuery = r.URL.RawQuery
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHunterClient_DomainSearch(t *testing.T) {
	var query string
	srv := hunterServer(t, http.StatusOK, `{"data": {"emails": [
		{"value": "Ana@acme.com", "first_name": "Ana", "last_name": "Diaz", "position": "Founder", "verification": {"status": "valid"}},
		{"value": "talent@acme.com", "position": "", "verification": {"status": "unknown"}},
		{"value": "broken"}
	]}}`, &query)

	h := NewHunterClient("secret", srv.URL, srv.Client(), retry.Policy{}, discardLogger())
	contacts, err := h.DomainSearch(context.Background(), "acme.com")
	if err != nil {
		t.Fatalf("DomainSearch: %v", err)
	}
	if !strings.Contains(query, "domain=acme.com") || !strings.Contains(query, "api_key=secret") {
		t.Errorf("query = %q", query)
	}
	if len(contacts) != 2 {
		t.Fatalf("contacts = %+v", contacts)
	}
	if c := contacts[0]; c.Email != "ana@acme.com" || c.Kind != model.ContactCEO || c.Name != "Ana Diaz" || !c.Verified {
		t.Errorf("first = %+v", c)
	}
	if c := contacts[1]; c.Kind != model.ContactHR || c.Verified {
		t.Errorf("second = %+v", c)
	}
}

func TestHunterClient_ErrorStatus(t *testing.T) {
	srv := hunterServer(t, http.StatusUnauthorized, `{"errors":[{"details":"bad key"}]}`, nil)

	h := NewHunterClient("bad", srv.URL, srv.Client(), retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond}, discardLogger())
	_, err := h.DomainSearch(context.Background(), "acme.com")
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 401 {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}

func TestNewHunterClient_EmptyKey(t *testing.T) {
	if h := NewHunterClient(" ", "", http.DefaultClient, retry.Policy{}, discardLogger()); h != nil {
		t.Error("expected nil client without key")
	}
}

type fakeResolver struct {
	calls   int
	domains map[string]bool
}

func (f *fakeResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	f.calls++
	if f.domains[name] {
		return []*net.MX{{Host: "mx." + name, Pref: 10}}, nil
	}
	return nil, fmt.Errorf("lookup %s: no such host", name)
}

func TestMXVerifier_CachesPerDomain(t *testing.T) {
	r := &fakeResolver{domains: map[string]bool{"acme.com": true}}
	v := NewMXVerifier(r)
	ctx := context.Background()

	if !v.HasMX(ctx, "acme.com") || !v.HasMX(ctx, "acme.com") {
		t.Error("acme.com should have MX")
	}
	if v.HasMX(ctx, "nomail.test") {
		t.Error("nomail.test should not have MX")
	}
	if r.calls != 2 {
		t.Errorf("resolver calls = %d, want 2", r.calls)
	}
}

func TestFinder_JobContacts(t *testing.T) {
	site := htmlServer(t, map[string]string{
		"/":        `<p>hello@acme.com</p>`,
		"/contact": `<a href="mailto:rrhh@acme.com">rrhh</a>`,
	})
	hunter := hunterServer(t, http.StatusOK, `{"data": {"emails": [
		{"value": "ana@acme.com", "first_name": "Ana", "position": "CEO"}
	]}}`, nil)

	r := &fakeResolver{domains: map[string]bool{"acme.com": true}}
	f := NewFinder(
		NewCrawler(site.Client(), nil, 10, discardLogger()),
		NewHunterClient("k", hunter.URL, hunter.Client(), retry.Policy{}, discardLogger()),
		NewMXVerifier(r),
		discardLogger(),
	)

	job := model.Job{
		Company:     "Acme",
		CompanyURL:  site.URL,
		Description: "Apply at apply@acme.com or recruiter@gmail.com",
	}
	res, err := f.JobContacts(context.Background(), job)
	if err != nil {
		t.Fatalf("JobContacts: %v", err)
	}
	if res.HR == nil || res.HR.Email != "rrhh@acme.com" {
		t.Errorf("HR = %+v, want dedicated HR mailbox", res.HR)
	}
	if res.CEO == nil || res.CEO.Email != "ana@acme.com" || res.CEO.Name != "Ana" {
		t.Errorf("CEO = %+v", res.CEO)
	}
	for _, c := range res.All {
		if c.Email == "recruiter@gmail.com" {
			t.Error("personal address from listing should be ignored")
		}
	}
	if res.All[0].Email != "apply@acme.com" || res.All[0].Source != SourceListing {
		t.Errorf("first contact = %+v", res.All[0])
	}
}

func TestFinder_JobContactsFallsBackToFirstAddress(t *testing.T) {
	f := NewFinder(NewCrawler(http.DefaultClient, nil, 10, discardLogger()), nil, nil, discardLogger())

	res, err := f.JobContacts(context.Background(), model.Job{Description: "Questions: team@startup.io"})
	if err != nil {
		t.Fatalf("JobContacts: %v", err)
	}
	if res.HR == nil || res.HR.Email != "team@startup.io" || res.CEO != nil {
		t.Errorf("res = %+v", res)
	}
}

func TestFinder_EnrichSkipsCompaniesWithEmails(t *testing.T) {
	site := htmlServer(t, map[string]string{"/": `<p>info@gamma.dev</p>`})
	f := NewFinder(NewCrawler(site.Client(), nil, 10, discardLogger()), nil, nil, discardLogger())

	companies := []model.Company{
		{Name: "Acme", URL: "https://acme.com", Emails: []model.Contact{{Email: "hr@acme.com"}}},
		{Name: "NoSite"},
		{Name: "Gamma", URL: site.URL},
	}
	pauses := 0
	n, err := f.Enrich(context.Background(), companies, func(context.Context) error { pauses++; return nil })
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if n != 1 || pauses != 0 {
		t.Errorf("crawled = %d, pauses = %d", n, pauses)
	}
	if companies[1].Emails == nil || len(companies[1].Emails) != 0 {
		t.Errorf("NoSite emails = %#v", companies[1].Emails)
	}
	if len(companies[2].Emails) != 1 || companies[2].Emails[0].Email != "info@gamma.dev" {
		t.Errorf("Gamma emails = %+v", companies[2].Emails)
	}
}
