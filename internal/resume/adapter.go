package resume

import (
	"bytes"
	_ "embed"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/amishk599/jobreach/internal/llm"
	"github.com/amishk599/jobreach/internal/model"
)

const (
	adaptTemperature = 0.4
	adaptMaxTokens   = 6000
)

//go:embed prompts/job.tmpl
var jobPromptRaw string

//go:embed prompts/company.tmpl
var companyPromptRaw string

var funcs = template.FuncMap{
	"excerpt": func(s string, n int) string {
		r := []rune(s)
		if len(r) <= n {
			return s
		}
		return string(r[:n])
	},
}

var (
	jobTemplate     = template.Must(template.New("job").Funcs(funcs).Parse(jobPromptRaw))
	companyTemplate = template.Must(template.New("company").Funcs(funcs).Parse(companyPromptRaw))
)

// Chatter is the part of the gateway the adapter uses.
type Chatter interface {
	ChatJSON(ctx context.Context, messages []llm.Message, temperature float64, maxTokens int) (json.RawMessage, error)
}

// Adapter tailors the base résumé to a job or a company.
type Adapter struct {
	chat    Chatter
	base    Resume
	context string
	logger  *slog.Logger
}

func NewAdapter(chat Chatter, base Resume, candidateContext string, logger *slog.Logger) *Adapter {
	return &Adapter{chat: chat, base: base, context: candidateContext, logger: logger}
}

// Base returns a copy of the unadapted résumé.
func (a *Adapter) Base() Resume { return a.base.Clone() }

// ForJob adapts the résumé to a posting. On any failure the base résumé is
// returned and adapted is false.
func (a *Adapter) ForJob(ctx context.Context, job *model.Job) (r Resume, adapted bool) {
	return a.adapt(ctx, jobTemplate, struct {
		Context string
		Base    string
		Job     *model.Job
	}{a.context, a.base.JSON(), job}, job.Label())
}

// ForCompany adapts the résumé to a company without a posting.
func (a *Adapter) ForCompany(ctx context.Context, c *model.Company) (r Resume, adapted bool) {
	return a.adapt(ctx, companyTemplate, struct {
		Context string
		Base    string
		Company *model.Company
	}{a.context, a.base.JSON(), c}, c.Name)
}

func (a *Adapter) adapt(ctx context.Context, tmpl *template.Template, data any, target string) (Resume, bool) {
	r, err := a.tryAdapt(ctx, tmpl, data)
	if err != nil {
		a.logger.Warn("resume adaptation failed, using base resume", "target", target, "error", err)
		return a.base.Clone(), false
	}
	a.logger.Info("resume adapted", "target", target)
	return r, true
}

func (a *Adapter) tryAdapt(ctx context.Context, tmpl *template.Template, data any) (Resume, error) {
	var system, user bytes.Buffer
	if err := tmpl.Execute(&system, data); err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}
	if err := tmpl.ExecuteTemplate(&user, "user", data); err != nil {
		return nil, fmt.Errorf("render user prompt: %w", err)
	}

	raw, err := a.chat.ChatJSON(ctx, []llm.Message{
		llm.System(strings.TrimSpace(system.String())),
		llm.User(strings.TrimSpace(user.String())),
	}, adaptTemperature, adaptMaxTokens)
	if err != nil {
		return nil, err
	}

	var r Resume
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("adapted resume is not an object: %w", err)
	}
	if r == nil {
		return nil, errors.New("adapted resume is null")
	}
	a.restoreBasics(r)
	if err := Validate(r); err != nil {
		return nil, err
	}
	return r, nil
}

// restoreBasics puts back the base basics, or just the name, when the model dropped them.
func (a *Adapter) restoreBasics(r Resume) {
	base := a.base.Clone()
	basics, ok := r["basics"].(map[string]any)
	if !ok {
		r["basics"] = base["basics"]
		return
	}
	if name, _ := basics["name"].(string); strings.TrimSpace(name) == "" {
		if bb, ok := base["basics"].(map[string]any); ok {
			basics["name"] = bb["name"]
		}
	}
}
