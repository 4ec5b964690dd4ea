package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/amishk599/jobreach/internal/applier"
	"github.com/amishk599/jobreach/internal/compose"
	"github.com/amishk599/jobreach/internal/config"
	"github.com/amishk599/jobreach/internal/filter"
	"github.com/amishk599/jobreach/internal/history"
	"github.com/amishk599/jobreach/internal/ledger"
	"github.com/amishk599/jobreach/internal/llm"
	"github.com/amishk599/jobreach/internal/mailer"
	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/outreach"
	"github.com/amishk599/jobreach/internal/pipeline"
	"github.com/amishk599/jobreach/internal/prospect"
	"github.com/amishk599/jobreach/internal/ratelimit"
	"github.com/amishk599/jobreach/internal/render"
	"github.com/amishk599/jobreach/internal/repair"
	"github.com/amishk599/jobreach/internal/resume"
	"github.com/amishk599/jobreach/internal/retry"
	"github.com/amishk599/jobreach/internal/scheduler"
	"github.com/amishk599/jobreach/internal/scoring"
	"github.com/amishk599/jobreach/internal/scraper"
)

// sendGap separates the HR and CEO emails of one posting.
var sendGap = pipeline.Pacing{Min: 5 * time.Second, Max: 15 * time.Second}

type runFlags struct {
	mode       string
	dryRun     bool
	max        int
	search     string
	location   string
	minScore   int
	headed     bool
	confirm    bool
	skipScrape bool
	skipCrawl  bool
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one or more outreach pipelines",
	Long: "Fetches and scores targets, then applies, emails or prospects them.\n" +
		"Every attempt is recorded in the ledger so nothing is contacted twice.",
	Example: "  jobreach run --mode apply --dry-run\n" +
		"  jobreach run --mode email --max 5\n" +
		"  jobreach run --mode prospect --skip-crawl\n" +
		"  jobreach run --mode full --dry-run --headed",
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.mode, "mode", "", "apply, email, prospect or full (required)")
	f.BoolVar(&runOpts.dryRun, "dry-run", false, "simulate without sending or submitting")
	f.IntVar(&runOpts.max, "max", 0, "per-run cap for every category (default from config)")
	f.StringVar(&runOpts.search, "search", "", "comma-separated search terms (overrides config)")
	f.StringVar(&runOpts.location, "location", "", "comma-separated locations (overrides config)")
	f.IntVar(&runOpts.minScore, "min-score", -1, "minimum relevance score 0-100 (default from config)")
	f.BoolVar(&runOpts.headed, "headed", false, "show the browser while applying")
	f.BoolVar(&runOpts.confirm, "confirm", false, "ask before submitting each application")
	f.BoolVar(&runOpts.skipScrape, "skip-scrape", false, "reuse cached jobs and companies")
	f.BoolVar(&runOpts.skipCrawl, "skip-crawl", false, "do not crawl company websites for emails")
	_ = runCmd.MarkFlagRequired("mode")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	runID := uuid.NewString()
	logger := setupLogger(debug).With("run_id", runID)

	cfg := mustLoadConfig(logger)
	applyOverrides(cfg, runOpts)
	if err := cfg.Validate(runOpts.mode, runOpts.dryRun); err != nil {
		logger.Error("invalid configuration", "mode", runOpts.mode, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: 30 * time.Second}

	deps, closeLedger, l, err := buildDeps(ctx, cfg, runOpts, httpClient, logger)
	if err != nil {
		logger.Error("setup failed", "error", err)
		os.Exit(1)
	}
	defer closeLedger()

	logger.Info("jobreach starting",
		"mode", runOpts.mode,
		"dry_run", runOpts.dryRun,
		"min_score", cfg.Search.MinScore,
	)

	orch := pipeline.New(l, logger, pipeline.WithDryRun(runOpts.dryRun))
	sched := scheduler.NewScheduler(orch, categories(cfg, runOpts, deps), logger)
	summary := sched.Run(ctx, pipeline.Summary{
		RunID:  runID,
		Mode:   runOpts.mode,
		DryRun: runOpts.dryRun,
	})

	fmt.Println(history.RenderSummary(summary))

	n := setupNotifier(cfg, httpClient, logger)
	if err := n.Notify(context.WithoutCancel(ctx), summary); err != nil {
		logger.Warn("notification failed", "error", err)
	}
	return nil
}

// applyOverrides folds command-line values into cfg.
func applyOverrides(cfg *config.Config, o runFlags) {
	if terms := splitList(o.search); len(terms) > 0 {
		cfg.Search.Terms = terms
	}
	if locs := splitList(o.location); len(locs) > 0 {
		cfg.Search.Locations = locs
	}
	if o.minScore >= 0 {
		cfg.Search.MinScore = o.minScore
	}
	if o.max > 0 {
		cfg.Limits.MaxApplications = o.max
		cfg.Limits.MaxEmails = o.max
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func pacing(r config.Range) pipeline.Pacing {
	return pipeline.Pacing{Min: r.Min, Max: r.Max}
}

// categories maps the run mode to the pipelines it executes, in order.
func categories(cfg *config.Config, o runFlags, d *outreach.Deps) []pipeline.Category {
	apply := func() pipeline.Category {
		return d.ApplyCategory(cfg.Limits.MaxApplications, pacing(cfg.Limits.ApplyDelay))
	}
	email := func() pipeline.Category {
		return d.EmailCategory(cfg.Limits.MaxEmails, pacing(cfg.Limits.EmailDelay))
	}
	prospects := func() pipeline.Category {
		return d.ProspectCategory(cfg.Limits.MaxEmails, pacing(cfg.Limits.EmailDelay), o.skipCrawl)
	}

	switch o.mode {
	case config.ModeApply:
		return []pipeline.Category{apply()}
	case config.ModeEmail:
		return []pipeline.Category{email()}
	case config.ModeProspect:
		return []pipeline.Category{prospects()}
	default:
		return []pipeline.Category{apply(), email(), prospects()}
	}
}

func needsJobs(mode string) bool {
	return mode == config.ModeApply || mode == config.ModeEmail || mode == config.ModeFull
}

func needsCompanies(mode string) bool {
	return mode == config.ModeProspect || mode == config.ModeFull
}

// buildDeps constructs every collaborator the mode needs and opens the ledger.
func buildDeps(ctx context.Context, cfg *config.Config, o runFlags, httpClient *http.Client, logger *slog.Logger) (*outreach.Deps, func() error, ledger.Ledger, error) {
	llmClient := &http.Client{Timeout: cfg.LLM.Timeout}
	registry, err := llm.Build(ctx, cfg.LLM.Providers, llmClient)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("building providers: %w", err)
	}
	gateway := llm.NewGateway(registry, logger,
		llm.WithExtractor(repair.Extractor{StringAware: cfg.LLM.StringAwareRepair}),
	)
	logger.Info("llm providers", "order", strings.Join(registry.Names(), " -> "), "current", gateway.Current())

	base, err := resume.Load(cfg.Profile.ResumeFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading resume: %w", err)
	}
	candidateContext, err := resume.LoadContext(cfg.Profile.ContextFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading context: %w", err)
	}
	basics := base.Basics()

	l, closeLedger, err := ledger.Open(cfg.Ledger.Backend, cfg.Ledger.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening ledger: %w", err)
	}

	policy := retry.Policy{MaxRetries: cfg.RateLimit.MaxRetries, BaseDelay: cfg.RateLimit.RetryDelay}
	hostLimiter := ratelimit.NewHostLimiter(cfg.RateLimit.CrawlRPS, 1)

	d := &outreach.Deps{
		Chat:       gateway,
		Profile:    scoring.ProfileSummary(candidateContext),
		MinScore:   cfg.Search.MinScore,
		CV:         resume.NewAdapter(gateway, base, candidateContext, logger),
		Renderer:   render.NewRenderer(render.NewChromeEngine(cfg.Render.ChromePath), cfg.Data.OutputDir(), cfg.Render.Timeout, logger),
		Writer:     compose.NewWriter(gateway, candidateContext, senderName(cfg, basics), logger),
		Mailer:     buildMailer(cfg, o.dryRun, httpClient, policy, logger),
		Applicant:  applier.ApplicantFrom(basics, cfg.Email.FromEmail),
		SendGap:    sendGap,
		CrawlDelay: pacing(cfg.Limits.CrawlDelay),
		Sleep:      pipeline.Sleep,
		Logger:     logger,
	}

	crawlClient := &http.Client{Timeout: cfg.Prospect.CrawlTimeout}
	crawler := prospect.NewCrawler(crawlClient, hostLimiter, cfg.Prospect.MaxPagesPerSite, logger)
	hunter := prospect.NewHunterClient(cfg.Prospect.HunterAPIKey, "", httpClient, policy, logger)
	var mx *prospect.MXVerifier
	if cfg.Prospect.VerifyMX {
		mx = prospect.NewMXVerifier(nil)
	}
	d.Finder = prospect.NewFinder(crawler, hunter, mx, logger)

	if needsJobs(o.mode) {
		src, err := buildScraper(cfg, httpClient, policy, logger)
		if err != nil {
			closeLedger()
			return nil, nil, nil, err
		}
		d.Jobs = outreach.NewJobStore(src, cfg.Data.JobsFile(), o.skipScrape, logger)
	}
	if needsCompanies(o.mode) {
		d.Companies = outreach.NewCompanyStore(companySources(cfg, httpClient, hostLimiter), cfg.Data.CompaniesFile(), o.skipScrape, logger)
	}
	if o.mode == config.ModeApply || o.mode == config.ModeFull {
		opts := applier.Options{
			Headed:   o.headed,
			ExecPath: cfg.Render.ChromePath,
			Timeout:  cfg.Applier.Timeout,
		}
		if o.confirm {
			opts.Confirm = applier.PromptConfirmer(os.Stdin, os.Stdout)
		}
		d.Applier = applier.NewChromeAgent(opts, logger)
	}

	return d, closeLedger, l, nil
}

func senderName(cfg *config.Config, b resume.Basics) string {
	if cfg.Email.FromName != "" {
		return cfg.Email.FromName
	}
	return b.Name
}

// buildMailer never returns a live sender for simulated runs.
func buildMailer(cfg *config.Config, dryRun bool, httpClient *http.Client, policy retry.Policy, logger *slog.Logger) mailer.Sender {
	if dryRun || cfg.Email.Provider == "log" {
		return mailer.NewLogMailer(logger)
	}
	return mailer.NewResendMailer(cfg.Email.APIKey, cfg.Email.BaseURL, cfg.Email.FromEmail, cfg.Email.FromName, httpClient, policy, logger)
}

func buildScraper(cfg *config.Config, httpClient *http.Client, policy retry.Policy, logger *slog.Logger) (*scraper.Scraper, error) {
	var boards []scraper.Board
	for _, b := range cfg.EnabledBoards() {
		boards = append(boards, scraper.Board{
			Name:       b.Name,
			ATS:        b.ATS,
			Token:      b.BoardToken,
			CompanyURL: b.CompanyURL,
		})
		logger.Debug("registered board", "name", b.Name, "ats", b.ATS)
	}
	return scraper.New(boards, httpClient, scraper.Options{
		Limiter: ratelimit.NewKeyLimiter(cfg.RateLimit.MinDelay, cfg.RateLimit.ATSOverrides),
		Retry:   policy,
		Filter:  filter.NewTermAndLocationFilter(cfg.Search.Terms, cfg.Search.Locations),
	}, logger)
}

func companySources(cfg *config.Config, httpClient *http.Client, limiter *ratelimit.HostLimiter) []model.CompanySource {
	var sources []model.CompanySource
	for _, dir := range cfg.Prospect.Directories {
		sources = append(sources, prospect.NewDirectorySource(prospect.Directory{
			URL:            dir.URL,
			ItemSelector:   dir.ItemSelector,
			NameSelector:   dir.NameSelector,
			LinkSelector:   dir.LinkSelector,
			SectorSelector: dir.SectorSelector,
			Location:       dir.Location,
			Source:         dir.Source,
		}, httpClient, limiter))
	}
	if cfg.Prospect.SeedFile != "" {
		sources = append(sources, prospect.NewSeedSource(cfg.Prospect.SeedFile))
	}
	return sources
}
