package scraper

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/amishk599/jobreach/internal/model"
)

// cacheFile is the on-disk layout of data/jobs.json.
type cacheFile struct {
	ScrapedAt string      `json:"scraped_at"`
	Total     int         `json:"total"`
	Jobs      []model.Job `json:"jobs"`
}

// SaveCache writes jobs to path, replacing it atomically.
func SaveCache(path string, jobs []model.Job, now time.Time) error {
	if jobs == nil {
		jobs = []model.Job{}
	}
	data, err := json.MarshalIndent(cacheFile{
		ScrapedAt: now.UTC().Format(time.RFC3339),
		Total:     len(jobs),
		Jobs:      jobs,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode job cache: %w", err)
	}
	return writeFileAtomic(path, data)
}

// LoadCache reads jobs saved by SaveCache. A missing file yields no jobs.
func LoadCache(path string) ([]model.Job, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read job cache: %w", err)
	}
	var c cacheFile
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse job cache %s: %w", path, err)
	}
	return c.Jobs, nil
}

func writeFileAtomic(path string, data []byte) error {
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
