package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/amishk599/jobreach/internal/resume"
)

// DefaultTimeout bounds one render including browser start-up.
const DefaultTimeout = 60 * time.Second

// Engine prints an HTML page to PDF bytes.
type Engine interface {
	PrintPDF(ctx context.Context, html []byte) ([]byte, error)
}

// ChromeEngine drives a headless Chrome through chromedp.
type ChromeEngine struct {
	execPath string
}

// NewChromeEngine uses execPath when set, otherwise CHROME_PATH or the
// browser chromedp finds on PATH.
func NewChromeEngine(execPath string) *ChromeEngine {
	if execPath == "" {
		execPath = os.Getenv("CHROME_PATH")
	}
	return &ChromeEngine{execPath: execPath}
}

func (e *ChromeEngine) PrintPDF(ctx context.Context, html []byte) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if e.execPath != "" {
		opts = append(opts, chromedp.ExecPath(e.execPath))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()
	cctx, cancelCtx := chromedp.NewContext(allocCtx)
	defer cancelCtx()

	tmpDir, err := os.MkdirTemp("", "jobreach-cv-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	htmlPath := filepath.Join(tmpDir, "index.html")
	if err := os.WriteFile(htmlPath, html, 0o644); err != nil {
		return nil, err
	}

	var pdf []byte
	err = chromedp.Run(cctx,
		chromedp.Navigate("file://"+filepath.ToSlash(htmlPath)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			// A4 in inches.
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome print to pdf: %w", err)
	}
	return pdf, nil
}

// Renderer writes adapted résumés as PDF files.
type Renderer struct {
	engine  Engine
	outDir  string
	timeout time.Duration
	logger  *slog.Logger
}

func NewRenderer(engine Engine, outDir string, timeout time.Duration, logger *slog.Logger) *Renderer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Renderer{engine: engine, outDir: outDir, timeout: timeout, logger: logger}
}

// Render writes CV-<name>-<target>.pdf into the output directory and returns its path.
func (r *Renderer) Render(ctx context.Context, cv resume.Resume, target string) (string, error) {
	html, err := HTML(cv)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	pdf, err := r.engine.PrintPDF(ctx, html)
	if err != nil {
		return "", fmt.Errorf("render pdf for %s: %w", target, err)
	}
	if len(pdf) == 0 {
		return "", fmt.Errorf("render pdf for %s: empty output", target)
	}

	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(r.outDir, FileName(cv.Basics().Name, target))
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}

	r.logger.Info("pdf rendered", "path", path, "kb", len(pdf)/1024, "took", time.Since(start).Round(time.Millisecond))
	return path, nil
}

var (
	unsafeChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	spaces      = regexp.MustCompile(`\s+`)
	foldMarks   = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Sanitize lowercases s, folds accents, drops anything outside [a-z0-9-],
// joins words with "-" and caps the result at 50 characters.
func Sanitize(s string) string {
	if folded, _, err := transform.String(foldMarks, s); err == nil {
		s = folded
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = unsafeChars.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(strings.TrimSpace(s), "-")
	if len(s) > 50 {
		s = strings.TrimRight(s[:50], "-")
	}
	return s
}

// FileName is CV-<name>-<target>.pdf with both parts sanitised.
func FileName(name, target string) string {
	n := Sanitize(name)
	if n == "" {
		n = "candidate"
	}
	t := Sanitize(target)
	if t == "" {
		t = "general"
	}
	return fmt.Sprintf("CV-%s-%s.pdf", n, t)
}
