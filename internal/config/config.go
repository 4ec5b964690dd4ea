package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/jobreach/internal/llm"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "JOBREACH_CONFIG"

// DefaultPath is used when neither --config nor JOBREACH_CONFIG is set.
const DefaultPath = "config.yaml"

// Run modes.
const (
	ModeApply    = "apply"
	ModeEmail    = "email"
	ModeProspect = "prospect"
	ModeFull     = "full"
)

// Config is the root configuration for jobreach.
type Config struct {
	LLM          LLMConfig
	Profile      ProfileConfig
	Search       SearchConfig
	Prospect     ProspectConfig
	Limits       LimitsConfig
	RateLimit    RateLimitConfig
	Ledger       LedgerConfig
	Data         DataConfig
	Email        EmailConfig
	Render       RenderConfig
	Applier      ApplierConfig
	Notification NotificationConfig
}

// LLMConfig lists the providers in failover order.
type LLMConfig struct {
	Providers         []llm.ProviderConfig
	Timeout           time.Duration // per-request HTTP timeout
	StringAwareRepair bool
}

// ProfileConfig points at the candidate's own documents.
type ProfileConfig struct {
	ContextFile string
	ResumeFile  string
}

// BoardConfig describes a single company board to fetch.
type BoardConfig struct {
	Name       string `yaml:"name"`
	ATS        string `yaml:"ats"`
	BoardToken string `yaml:"board_token"`
	CompanyURL string `yaml:"company_url"`
	Enabled    bool   `yaml:"enabled"`
}

// SearchConfig controls job fetching and the pre-filter.
type SearchConfig struct {
	Terms     []string
	Locations []string
	MinScore  int
	Boards    []BoardConfig
}

// DirectoryConfig describes one company listing page and how to read it.
type DirectoryConfig struct {
	URL            string `yaml:"url"`
	ItemSelector   string `yaml:"item_selector"`
	NameSelector   string `yaml:"name_selector"`
	LinkSelector   string `yaml:"link_selector"`
	SectorSelector string `yaml:"sector_selector"`
	Location       string `yaml:"location"`
	Source         string `yaml:"source"`
}

// ProspectConfig controls company discovery and email crawling.
type ProspectConfig struct {
	Directories     []DirectoryConfig
	SeedFile        string
	MaxPagesPerSite int
	HunterAPIKey    string
	VerifyMX        bool
	CrawlTimeout    time.Duration
}

// Range is an inclusive duration interval.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// LimitsConfig holds per-run caps and pauses.
type LimitsConfig struct {
	MaxApplications int
	MaxEmails       int
	ApplyDelay      Range
	EmailDelay      Range
	CrawlDelay      Range
}

// RateLimitConfig controls request pacing towards job boards and websites.
type RateLimitConfig struct {
	MinDelay     time.Duration            // minimum gap between requests to the same ATS
	ATSOverrides map[string]time.Duration // per-ATS overrides, keyed by ATS name
	CrawlRPS     float64                  // per-host request rate of the email crawler
	MaxRetries   int
	RetryDelay   time.Duration
}

// MinDelayFor returns the configured delay for the given ATS, falling back to MinDelay.
func (r RateLimitConfig) MinDelayFor(ats string) time.Duration {
	if d, ok := r.ATSOverrides[ats]; ok {
		return d
	}
	return r.MinDelay
}

// LedgerConfig selects the ledger backend.
type LedgerConfig struct {
	Backend string // "json" or "sqlite"
	Path    string
}

// DataConfig holds the cache and output locations.
type DataConfig struct {
	Dir string
}

// JobsFile is the job cache.
func (d DataConfig) JobsFile() string { return filepath.Join(d.Dir, "jobs.json") }

// CompaniesFile is the company cache.
func (d DataConfig) CompaniesFile() string { return filepath.Join(d.Dir, "companies.json") }

// OutputDir receives rendered PDFs.
func (d DataConfig) OutputDir() string { return filepath.Join(d.Dir, "output") }

// EmailConfig selects the mail sender.
type EmailConfig struct {
	Provider  string // "resend" or "log"
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string
}

// RenderConfig controls PDF rendering.
type RenderConfig struct {
	Timeout    time.Duration
	ChromePath string
}

// ApplierConfig controls the browser agent.
type ApplierConfig struct {
	Timeout time.Duration
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	LLM          rawLLMConfig       `yaml:"llm"`
	Profile      rawProfileConfig   `yaml:"profile"`
	Search       rawSearchConfig    `yaml:"search"`
	Prospect     rawProspectConfig  `yaml:"prospect"`
	Limits       rawLimitsConfig    `yaml:"limits"`
	RateLimit    rawRateLimitConfig `yaml:"rate_limit"`
	Ledger       rawLedgerConfig    `yaml:"ledger"`
	Data         rawDataConfig      `yaml:"data"`
	Email        rawEmailConfig     `yaml:"email"`
	Render       rawRenderConfig    `yaml:"render"`
	Applier      rawApplierConfig   `yaml:"applier"`
	Notification NotificationConfig `yaml:"notification"`
}

type rawProvider struct {
	Name              string  `yaml:"name"`
	Kind              string  `yaml:"kind"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type rawLLMConfig struct {
	Providers         []rawProvider `yaml:"providers"`
	Timeout           string        `yaml:"timeout"`
	StringAwareRepair bool          `yaml:"string_aware_repair"`
}

type rawProfileConfig struct {
	ContextFile string `yaml:"context_file"`
	ResumeFile  string `yaml:"resume_file"`
}

type rawSearchConfig struct {
	Terms     []string      `yaml:"terms"`
	Locations []string      `yaml:"locations"`
	MinScore  *int          `yaml:"min_score"`
	Boards    []BoardConfig `yaml:"boards"`
}

type rawProspectConfig struct {
	Directories     []DirectoryConfig `yaml:"directories"`
	SeedFile        string            `yaml:"seed_file"`
	MaxPagesPerSite int               `yaml:"max_pages_per_site"`
	HunterAPIKey    string            `yaml:"hunter_api_key"`
	VerifyMX        *bool             `yaml:"verify_mx"`
	CrawlTimeout    string            `yaml:"crawl_timeout"`
}

type rawRange struct {
	Min string `yaml:"min"`
	Max string `yaml:"max"`
}

type rawLimitsConfig struct {
	MaxApplications int      `yaml:"max_applications"`
	MaxEmails       int      `yaml:"max_emails"`
	ApplyDelay      rawRange `yaml:"apply_delay"`
	EmailDelay      rawRange `yaml:"email_delay"`
	CrawlDelay      rawRange `yaml:"crawl_delay"`
}

type rawRateLimitConfig struct {
	MinDelay     string            `yaml:"min_delay"`
	ATSOverrides map[string]string `yaml:"ats_overrides"`
	CrawlRPS     float64           `yaml:"crawl_rps"`
	MaxRetries   *int              `yaml:"max_retries"`
	RetryDelay   string            `yaml:"retry_delay"`
}

type rawLedgerConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type rawDataConfig struct {
	Dir string `yaml:"dir"`
}

type rawEmailConfig struct {
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

type rawRenderConfig struct {
	Timeout    string `yaml:"timeout"`
	ChromePath string `yaml:"chrome_path"`
}

type rawApplierConfig struct {
	Timeout string `yaml:"timeout"`
}

// ResolvePath picks the config file: the flag value, then JOBREACH_CONFIG,
// then DefaultPath. explicit is false only for DefaultPath.
func ResolvePath(flagValue string) (path string, explicit bool) {
	if flagValue != "" {
		return flagValue, true
	}
	if env := os.Getenv(EnvPath); env != "" {
		return env, true
	}
	return DefaultPath, false
}

// Load reads and parses the YAML config file at path. When the file does not
// exist and required is false, defaults and environment providers are used.
func Load(path string, required bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return Parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse expands environment variables in data, applies defaults, resolves
// keychain references and checks mode-independent settings.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	p := parser{}
	cfg := &Config{
		LLM: LLMConfig{
			Timeout:           p.duration("llm.timeout", raw.LLM.Timeout, 60*time.Second),
			StringAwareRepair: raw.LLM.StringAwareRepair,
		},
		Profile: ProfileConfig{
			ContextFile: orDefault(raw.Profile.ContextFile, "context.md"),
			ResumeFile:  orDefault(raw.Profile.ResumeFile, "resume.json"),
		},
		Search: SearchConfig{
			Terms:     orDefaultList(raw.Search.Terms, defaultSearchTerms),
			Locations: orDefaultList(raw.Search.Locations, defaultLocations),
			MinScore:  defaultMinScore,
			Boards:    raw.Search.Boards,
		},
		Prospect: ProspectConfig{
			Directories:     raw.Prospect.Directories,
			SeedFile:        raw.Prospect.SeedFile,
			MaxPagesPerSite: orDefaultInt(raw.Prospect.MaxPagesPerSite, 5),
			HunterAPIKey:    p.secret("prospect.hunter_api_key", raw.Prospect.HunterAPIKey),
			VerifyMX:        raw.Prospect.VerifyMX == nil || *raw.Prospect.VerifyMX,
			CrawlTimeout:    p.duration("prospect.crawl_timeout", raw.Prospect.CrawlTimeout, 15*time.Second),
		},
		Limits: LimitsConfig{
			MaxApplications: orDefaultInt(raw.Limits.MaxApplications, 20),
			MaxEmails:       orDefaultInt(raw.Limits.MaxEmails, 50),
			ApplyDelay:      p.rng("limits.apply_delay", raw.Limits.ApplyDelay, Range{30 * time.Second, 90 * time.Second}),
			EmailDelay:      p.rng("limits.email_delay", raw.Limits.EmailDelay, Range{15 * time.Second, 60 * time.Second}),
			CrawlDelay:      p.rng("limits.crawl_delay", raw.Limits.CrawlDelay, Range{5 * time.Second, 15 * time.Second}),
		},
		RateLimit: RateLimitConfig{
			MinDelay:     p.duration("rate_limit.min_delay", raw.RateLimit.MinDelay, 2*time.Second),
			ATSOverrides: make(map[string]time.Duration),
			CrawlRPS:     raw.RateLimit.CrawlRPS,
			MaxRetries:   2,
			RetryDelay:   p.duration("rate_limit.retry_delay", raw.RateLimit.RetryDelay, 5*time.Second),
		},
		Ledger: LedgerConfig{
			Backend: orDefault(raw.Ledger.Backend, "json"),
		},
		Data: DataConfig{Dir: orDefault(raw.Data.Dir, "data")},
		Email: EmailConfig{
			Provider:  orDefault(raw.Email.Provider, "resend"),
			APIKey:    p.secret("email.api_key", orDefault(raw.Email.APIKey, os.Getenv("RESEND_API_KEY"))),
			BaseURL:   raw.Email.BaseURL,
			FromEmail: orDefault(raw.Email.FromEmail, os.Getenv("SENDER_EMAIL")),
			FromName:  orDefault(raw.Email.FromName, os.Getenv("SENDER_NAME")),
		},
		Render: RenderConfig{
			Timeout:    p.duration("render.timeout", raw.Render.Timeout, 60*time.Second),
			ChromePath: raw.Render.ChromePath,
		},
		Applier: ApplierConfig{
			Timeout: p.duration("applier.timeout", raw.Applier.Timeout, 5*time.Minute),
		},
		Notification: raw.Notification,
	}

	if raw.Search.MinScore != nil {
		cfg.Search.MinScore = *raw.Search.MinScore
	}
	if raw.RateLimit.MaxRetries != nil {
		cfg.RateLimit.MaxRetries = *raw.RateLimit.MaxRetries
	}
	if cfg.RateLimit.CrawlRPS <= 0 {
		cfg.RateLimit.CrawlRPS = 1
	}
	for ats, v := range raw.RateLimit.ATSOverrides {
		cfg.RateLimit.ATSOverrides[ats] = p.duration(fmt.Sprintf("rate_limit.ats_overrides[%q]", ats), v, cfg.RateLimit.MinDelay)
	}
	if cfg.Prospect.HunterAPIKey == "" {
		cfg.Prospect.HunterAPIKey = os.Getenv("HUNTER_API_KEY")
	}
	cfg.Ledger.Path = raw.Ledger.Path
	if cfg.Ledger.Path == "" {
		name := "applications.json"
		if cfg.Ledger.Backend == "sqlite" {
			name = "applications.db"
		}
		cfg.Ledger.Path = filepath.Join(cfg.Data.Dir, name)
	}
	if cfg.Notification.Type == "" {
		cfg.Notification.Type = "log"
	}

	cfg.LLM.Providers = p.providers(raw.LLM.Providers)

	if err := errors.Join(p.err(), validate(cfg)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Search.MinScore < 0 || cfg.Search.MinScore > 100 {
		errs = append(errs, fmt.Errorf("search.min_score must be between 0 and 100, got %d", cfg.Search.MinScore))
	}
	for _, b := range cfg.Search.Boards {
		switch b.ATS {
		case "greenhouse", "lever", "ashby":
		default:
			errs = append(errs, fmt.Errorf("search.boards[%s]: unsupported ats %q", b.Name, b.ATS))
		}
		if b.BoardToken == "" {
			errs = append(errs, fmt.Errorf("search.boards[%s]: board_token is required", b.Name))
		}
	}
	for _, d := range cfg.Prospect.Directories {
		if d.URL == "" || d.ItemSelector == "" || d.NameSelector == "" {
			errs = append(errs, fmt.Errorf("prospect.directories: url, item_selector and name_selector are required"))
		}
	}
	for name, r := range map[string]Range{
		"limits.apply_delay": cfg.Limits.ApplyDelay,
		"limits.email_delay": cfg.Limits.EmailDelay,
		"limits.crawl_delay": cfg.Limits.CrawlDelay,
	} {
		if r.Min < 0 || r.Max < r.Min {
			errs = append(errs, fmt.Errorf("%s: need 0 <= min <= max, got %v..%v", name, r.Min, r.Max))
		}
	}
	if cfg.Limits.MaxApplications < 0 || cfg.Limits.MaxEmails < 0 {
		errs = append(errs, errors.New("limits.max_applications and limits.max_emails must not be negative"))
	}
	switch cfg.Ledger.Backend {
	case "json", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("ledger.backend must be \"json\" or \"sqlite\", got %q", cfg.Ledger.Backend))
	}
	switch cfg.Email.Provider {
	case "resend", "log":
	default:
		errs = append(errs, fmt.Errorf("email.provider must be \"resend\" or \"log\", got %q", cfg.Email.Provider))
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			errs = append(errs, fmt.Errorf("notification.webhook_url is required when type is \"slack\""))
		} else if !strings.HasPrefix(cfg.Notification.WebhookURL, "https://hooks.slack.com/") {
			errs = append(errs, fmt.Errorf("notification.webhook_url must start with https://hooks.slack.com/"))
		}
	default:
		errs = append(errs, fmt.Errorf("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type))
	}

	return errors.Join(errs...)
}

// Validate reports every missing setting needed by mode. Simulated runs do
// not need a mail API key.
func (c *Config) Validate(mode string, dryRun bool) error {
	var errs []error

	switch mode {
	case ModeApply, ModeEmail, ModeProspect, ModeFull:
	default:
		return fmt.Errorf("unknown mode %q (want apply, email, prospect or full)", mode)
	}

	if len(c.LLM.Providers) == 0 {
		errs = append(errs, fmt.Errorf("%w: set llm.providers or one of GROQ_API_KEY, OPENROUTER_API_KEY, GEMINI_API_KEY, ANTHROPIC_API_KEY", llm.ErrNoProviders))
	}

	sends := mode == ModeEmail || mode == ModeProspect || mode == ModeFull
	if sends && c.Email.Provider == "resend" && !dryRun && c.Email.APIKey == "" {
		errs = append(errs, fmt.Errorf("email.api_key (or RESEND_API_KEY) is required for mode %q", mode))
	}
	if sends && c.Email.FromEmail == "" {
		errs = append(errs, fmt.Errorf("email.from_email (or SENDER_EMAIL) is required for mode %q", mode))
	}

	if c.Profile.ResumeFile == "" {
		errs = append(errs, errors.New("profile.resume_file is required"))
	}

	if (mode == ModeApply || mode == ModeEmail || mode == ModeFull) && len(c.Search.Boards) == 0 {
		errs = append(errs, fmt.Errorf("search.boards must list at least one board for mode %q", mode))
	}
	if (mode == ModeProspect || mode == ModeFull) && len(c.Prospect.Directories) == 0 && c.Prospect.SeedFile == "" {
		errs = append(errs, fmt.Errorf("prospect.directories or prospect.seed_file is required for mode %q", mode))
	}

	return errors.Join(errs...)
}

// EnabledBoards returns the boards with enabled set.
func (c *Config) EnabledBoards() []BoardConfig {
	var out []BoardConfig
	for _, b := range c.Search.Boards {
		if b.Enabled {
			out = append(out, b)
		}
	}
	return out
}
