package scoring

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/amishk599/jobreach/internal/llm"
	"github.com/amishk599/jobreach/internal/model"
)

// Batch sizes and limits of the two rubrics.
const (
	JobBatchSize       = 5
	CompanyBatchSize   = 8
	jobExcerptLen      = 500
	profileSummaryLen  = 2000
	scoringTemperature = 0.2
)

//go:embed prompts/jobs.tmpl
var jobPromptRaw string

//go:embed prompts/companies.tmpl
var companyPromptRaw string

var funcs = template.FuncMap{
	"inc":     func(i int) int { return i + 1 },
	"excerpt": Excerpt,
}

// The template body is the system message; the "user" block is the user message.
var (
	jobTemplate     = template.Must(template.New("jobs").Funcs(funcs).Parse(jobPromptRaw))
	companyTemplate = template.Must(template.New("companies").Funcs(funcs).Parse(companyPromptRaw))
)

// ProfileSummary returns the first 2000 characters of the candidate context.
func ProfileSummary(context string) string {
	return Excerpt(context, profileSummaryLen)
}

// Excerpt truncates s to n runes.
func Excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// JobOptions is the job rubric: batches of 5, descriptions cut to 500 characters.
func JobOptions(profile string, threshold int) Options[*model.Job] {
	return Options[*model.Job]{
		BatchSize:   JobBatchSize,
		Threshold:   threshold,
		Temperature: scoringTemperature,
		Prompt: func(batch []*model.Job) ([]llm.Message, error) {
			return render(jobTemplate, struct {
				Profile string
				Jobs    []*model.Job
			}{profile, batch})
		},
	}
}

// CompanyOptions is the prospect rubric: batches of 8 with an outreach angle.
func CompanyOptions(profile string, threshold int) Options[*model.Company] {
	return Options[*model.Company]{
		BatchSize:   CompanyBatchSize,
		Threshold:   threshold,
		Temperature: scoringTemperature,
		Prompt: func(batch []*model.Company) ([]llm.Message, error) {
			return render(companyTemplate, struct {
				Profile   string
				Companies []*model.Company
			}{profile, batch})
		},
	}
}

func render(tmpl *template.Template, data any) ([]llm.Message, error) {
	var system, user bytes.Buffer
	if err := tmpl.Execute(&system, data); err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}
	if err := tmpl.ExecuteTemplate(&user, "user", data); err != nil {
		return nil, fmt.Errorf("render user prompt: %w", err)
	}
	return []llm.Message{
		llm.System(strings.TrimSpace(system.String())),
		llm.User(strings.TrimSpace(user.String())),
	}, nil
}
