package applier

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// DefaultTimeout bounds one application including browser start-up.
const DefaultTimeout = 5 * time.Minute

const settleDelay = 2 * time.Second

// field is one form input the agent tries to fill.
type field struct {
	name     string
	selector string
	value    string
}

// fields lists the inputs to fill for a, skipping empty values.
func fields(a Applicant) []field {
	all := []field{
		{"first_name", `input[name*="first" i], input[autocomplete="given-name"]`, a.FirstName},
		{"last_name", `input[name*="last" i], input[autocomplete="family-name"]`, a.LastName},
		{"name", `input[name="name" i], input[name="full_name" i], input[autocomplete="name"]`, a.Name()},
		{"email", `input[type="email"], input[name*="email" i]`, a.Email},
		{"phone", `input[type="tel"], input[name*="phone" i]`, a.Phone},
		{"location", `input[name*="location" i]`, a.Location},
		{"linkedin", `input[name*="linkedin" i]`, a.LinkedIn},
		{"github", `input[name*="github" i]`, a.GitHub},
		{"website", `input[name*="website" i], input[name*="portfolio" i]`, a.Website},
	}
	out := all[:0]
	for _, f := range all {
		if f.value != "" {
			out = append(out, f)
		}
	}
	return out
}

const (
	fileSelector   = `input[type="file"]`
	submitSelector = `button[type="submit"], input[type="submit"]`
)

// openFormJS clicks an "apply" button when the page has no form yet.
const openFormJS = `(() => {
	if (document.querySelector('input[type="email"], input[type="file"]')) return false;
	const re = /apply|aplicar|postular|post[uú]late/i;
	for (const el of document.querySelectorAll('a, button')) {
		if (re.test(el.innerText || '')) { el.click(); return true; }
	}
	return false;
})()`

// Options configures the browser agent.
type Options struct {
	Headed   bool
	ExecPath string
	Timeout  time.Duration
	Confirm  Confirmer // nil submits without asking
}

// ChromeAgent fills and submits application forms with chromedp.
type ChromeAgent struct {
	opts   Options
	logger *slog.Logger
}

var _ Applier = (*ChromeAgent)(nil)

func NewChromeAgent(opts Options, logger *slog.Logger) *ChromeAgent {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ExecPath == "" {
		opts.ExecPath = os.Getenv("CHROME_PATH")
	}
	return &ChromeAgent{opts: opts, logger: logger}
}

// Apply opens the posting, fills the known fields, uploads the résumé and
// submits. A page without any fillable input returns ErrNoForm.
func (a *ChromeAgent) Apply(ctx context.Context, app Application) (Result, error) {
	var res Result
	resumePath, err := filepath.Abs(app.ResumePath)
	if err != nil {
		return res, fmt.Errorf("resolve resume path: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !a.opts.Headed),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if a.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(a.opts.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	cctx, cancelCtx := chromedp.NewContext(allocCtx)
	defer cancelCtx()

	log := a.logger.With("company", app.Job.Company, "title", app.Job.Title)
	log.Info("opening posting", "url", app.Job.URL, "headed", a.opts.Headed)

	var opened bool
	err = chromedp.Run(cctx,
		chromedp.Navigate(app.Job.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(openFormJS, &opened),
	)
	if err != nil {
		return res, fmt.Errorf("open posting: %w", err)
	}
	if opened {
		if err := chromedp.Run(cctx, chromedp.Sleep(settleDelay), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
			return res, fmt.Errorf("open application form: %w", err)
		}
	}

	for _, f := range fields(app.Applicant) {
		ok, err := fillFirst(cctx, f.selector, f.value)
		if err != nil {
			return res, fmt.Errorf("fill %s: %w", f.name, err)
		}
		if ok {
			res.Filled = append(res.Filled, f.name)
		}
	}

	nodes, err := query(cctx, fileSelector)
	if err != nil {
		return res, fmt.Errorf("find file input: %w", err)
	}
	if len(nodes) > 0 {
		err := chromedp.Run(cctx, chromedp.SetUploadFiles([]cdp.NodeID{nodes[0].NodeID}, []string{resumePath}, chromedp.ByNodeID))
		if err != nil {
			return res, fmt.Errorf("upload resume: %w", err)
		}
		res.Uploaded = true
	}

	if len(res.Filled) == 0 && !res.Uploaded {
		return res, ErrNoForm
	}
	log.Info("form filled", "fields", res.Filled, "uploaded", res.Uploaded)

	if a.opts.Confirm != nil {
		ok, err := a.opts.Confirm(ctx, app, res)
		if err != nil {
			return res, fmt.Errorf("confirm submission: %w", err)
		}
		if !ok {
			return res, ErrDeclined
		}
	}

	submit, err := query(cctx, submitSelector)
	if err != nil {
		return res, fmt.Errorf("find submit button: %w", err)
	}
	if len(submit) == 0 {
		return res, fmt.Errorf("no submit button on %s", app.Job.URL)
	}
	err = chromedp.Run(cctx,
		chromedp.Click([]cdp.NodeID{submit[0].NodeID}, chromedp.ByNodeID),
		chromedp.Sleep(settleDelay),
	)
	if err != nil {
		return res, fmt.Errorf("submit: %w", err)
	}
	res.Submitted = true
	log.Info("application submitted")
	return res, nil
}

// query returns the nodes matching sel without waiting for them to appear.
func query(ctx context.Context, sel string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	err := chromedp.Run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	return nodes, err
}

func fillFirst(ctx context.Context, sel, value string) (bool, error) {
	nodes, err := query(ctx, sel)
	if err != nil || len(nodes) == 0 {
		return false, err
	}
	err = chromedp.Run(ctx, chromedp.SendKeys([]cdp.NodeID{nodes[0].NodeID}, value, chromedp.ByNodeID))
	return err == nil, err
}
