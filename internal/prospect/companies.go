package prospect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/amishk599/jobreach/internal/model"
)

// SeedSource reads companies from a JSON file shaped {"known_companies": [...]}.
type SeedSource struct {
	path string
}

func NewSeedSource(path string) *SeedSource {
	return &SeedSource{path: path}
}

type seedCompany struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Sector   string `json:"sector"`
	Location string `json:"location"`
}

// FetchCompanies returns no companies when the file does not exist.
func (s *SeedSource) FetchCompanies(_ context.Context) ([]model.Company, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed companies: %w", err)
	}
	var f struct {
		Known []seedCompany `json:"known_companies"`
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed companies %s: %w", s.path, err)
	}
	out := make([]model.Company, 0, len(f.Known))
	for _, c := range f.Known {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		sector := c.Sector
		if sector == "" {
			sector = "technology"
		}
		out = append(out, model.Company{
			Name:     c.Name,
			URL:      c.URL,
			Sector:   sector,
			Location: c.Location,
			Source:   SourceSeed,
		})
	}
	return out, nil
}

// Pause waits between two directory fetches or two crawls.
type Pause func(ctx context.Context) error

// Collect gathers companies from every source in order, waiting pause between
// sources. A failing source is logged and skipped. Companies are deduplicated
// by website domain, or by lowercase name when they have no website.
func Collect(ctx context.Context, sources []model.CompanySource, pause Pause, logger *slog.Logger) ([]model.Company, error) {
	var all []model.Company
	for i, src := range sources {
		if i > 0 && pause != nil {
			if err := pause(ctx); err != nil {
				return nil, err
			}
		}
		companies, err := src.FetchCompanies(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("company source failed", "error", err)
			continue
		}
		all = append(all, companies...)
	}

	seen := make(map[string]bool)
	unique := make([]model.Company, 0, len(all))
	for _, c := range all {
		key := Domain(c.URL)
		if key == "" {
			key = strings.ToLower(strings.TrimSpace(c.Name))
		}
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		c.ID = CompanyID(c.Name, c.URL)
		if c.Emails == nil {
			c.Emails = []model.Contact{}
		}
		unique = append(unique, c)
	}
	logger.Info("companies collected", "total", len(unique), "sources", len(sources))
	return unique, nil
}

type companyCache struct {
	ScrapedAt string          `json:"scraped_at"`
	Total     int             `json:"total"`
	Companies []model.Company `json:"companies"`
}

// SaveCompanies writes the company cache, replacing it atomically.
func SaveCompanies(path string, companies []model.Company, now time.Time) error {
	if companies == nil {
		companies = []model.Company{}
	}
	data, err := json.MarshalIndent(companyCache{
		ScrapedAt: now.UTC().Format(time.RFC3339),
		Total:     len(companies),
		Companies: companies,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode company cache: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadCompanies reads the company cache. A missing file yields no companies.
func LoadCompanies(path string) ([]model.Company, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read company cache: %w", err)
	}
	var c companyCache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse company cache %s: %w", path, err)
	}
	return c.Companies, nil
}
