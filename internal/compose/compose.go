// Package compose writes the outreach emails: recruiter, founder and prospect.
package compose

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"text/template"

	"github.com/amishk599/jobreach/internal/llm"
	"github.com/amishk599/jobreach/internal/model"
)

const (
	writeTemperature = 0.6
	contextLen       = 3000
)

//go:embed prompts/hr.tmpl
var hrPromptRaw string

//go:embed prompts/ceo.tmpl
var ceoPromptRaw string

//go:embed prompts/prospect.tmpl
var prospectPromptRaw string

var funcs = template.FuncMap{"excerpt": excerpt}

var (
	hrTemplate       = template.Must(template.New("hr").Funcs(funcs).Parse(hrPromptRaw))
	ceoTemplate      = template.Must(template.New("ceo").Funcs(funcs).Parse(ceoPromptRaw))
	prospectTemplate = template.Must(template.New("prospect").Funcs(funcs).Parse(prospectPromptRaw))
)

// Email is a ready-to-send message.
type Email struct {
	Subject string `json:"subject"`
	HTML    string `json:"body_html"`
	Text    string `json:"body_text"`
}

// Chatter is the part of the gateway the writer uses.
type Chatter interface {
	ChatJSON(ctx context.Context, messages []llm.Message, temperature float64, maxTokens int) (json.RawMessage, error)
}

// Writer generates emails through the gateway and falls back to fixed
// templates when generation fails.
type Writer struct {
	chat    Chatter
	context string
	sender  string
	logger  *slog.Logger
}

func NewWriter(chat Chatter, candidateContext, senderName string, logger *slog.Logger) *Writer {
	if strings.TrimSpace(senderName) == "" {
		senderName = "el candidato"
	}
	return &Writer{chat: chat, context: excerpt(candidateContext, contextLen), sender: senderName, logger: logger}
}

type jobData struct {
	Context string
	Sender  string
	Job     *model.Job
	To      model.Contact
}

type companyData struct {
	Context string
	Sender  string
	Company *model.Company
	To      model.Contact
}

// HR writes to the recruiting contact of a posting.
func (w *Writer) HR(ctx context.Context, job *model.Job, to model.Contact) Email {
	return w.write(ctx, hrTemplate, jobData{w.context, w.sender, job, to}, job.Company, func() Email {
		return w.jobFallback(job)
	})
}

// CEO writes to the founder of a hiring company.
func (w *Writer) CEO(ctx context.Context, job *model.Job, to model.Contact) Email {
	return w.write(ctx, ceoTemplate, jobData{w.context, w.sender, job, to}, job.Company, func() Email {
		return w.jobFallback(job)
	})
}

// Prospect writes to a company without a published opening.
func (w *Writer) Prospect(ctx context.Context, c *model.Company, to model.Contact) Email {
	return w.write(ctx, prospectTemplate, companyData{w.context, w.sender, c, to}, c.Name, func() Email {
		return w.prospectFallback(c)
	})
}

func (w *Writer) write(ctx context.Context, tmpl *template.Template, data any, target string, fallback func() Email) Email {
	e, err := w.generate(ctx, tmpl, data)
	if err != nil {
		w.logger.Warn("email generation failed, using fallback", "target", target, "template", tmpl.Name(), "error", err)
		return fallback()
	}
	w.logger.Info("email written", "target", target, "template", tmpl.Name())
	return e
}

func (w *Writer) generate(ctx context.Context, tmpl *template.Template, data any) (Email, error) {
	var system, user bytes.Buffer
	if err := tmpl.Execute(&system, data); err != nil {
		return Email{}, fmt.Errorf("render system prompt: %w", err)
	}
	if err := tmpl.ExecuteTemplate(&user, "user", data); err != nil {
		return Email{}, fmt.Errorf("render user prompt: %w", err)
	}

	raw, err := w.chat.ChatJSON(ctx, []llm.Message{
		llm.System(strings.TrimSpace(system.String())),
		llm.User(strings.TrimSpace(user.String())),
	}, writeTemperature, 0)
	if err != nil {
		return Email{}, err
	}

	var e Email
	if err := json.Unmarshal(raw, &e); err != nil {
		return Email{}, fmt.Errorf("decode email: %w", err)
	}
	return e.normalize()
}

var tagRegex = regexp.MustCompile(`(?s)<[^>]*>`)

// normalize fills whichever body is missing from the other one.
func (e Email) normalize() (Email, error) {
	e.Subject = strings.TrimSpace(e.Subject)
	e.HTML = strings.TrimSpace(e.HTML)
	e.Text = strings.TrimSpace(e.Text)
	if e.Subject == "" {
		return e, errors.New("email has no subject")
	}
	switch {
	case e.HTML == "" && e.Text == "":
		return e, errors.New("email has no body")
	case e.HTML == "":
		e.HTML = TextToHTML(e.Text)
	case e.Text == "":
		text := strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "\n\n", "</li>", "\n").Replace(e.HTML)
		e.Text = strings.TrimSpace(html.UnescapeString(tagRegex.ReplaceAllString(text, "")))
	}
	return e, nil
}

// TextToHTML wraps blank-line separated paragraphs in <p> and escapes them.
func TextToHTML(text string) string {
	var b strings.Builder
	for _, para := range strings.Split(strings.TrimSpace(text), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

func (w *Writer) jobFallback(job *model.Job) Email {
	title := orDefault(job.Title, "la posición")
	company := orDefault(job.Company, "la empresa")
	text := fmt.Sprintf("Hola,\n\nMe contacto en relación a la posición de %s en %s. Soy %s y creo que mi experiencia encaja con lo que buscan.\n\nAdjunto mi CV para su consideración. Quedo a disposición para coordinar una entrevista.\n\nSaludos,\n%s",
		title, company, w.sender, w.sender)
	return Email{
		Subject: fmt.Sprintf("Aplicación para %s - %s", title, w.sender),
		Text:    text,
		HTML:    TextToHTML(text),
	}
}

func (w *Writer) prospectFallback(c *model.Company) Email {
	name := orDefault(c.Name, "la empresa")
	text := fmt.Sprintf("Hola,\n\nSoy %s. Conozco el trabajo que hacen en %s y me encantaría explorar cómo podría aportar valor al equipo.\n\nAdjunto mi CV. ¿Tendrían disponibilidad para una breve charla?\n\nSaludos,\n%s",
		w.sender, name, w.sender)
	return Email{
		Subject: fmt.Sprintf("Propuesta de colaboración - %s", w.sender),
		Text:    text,
		HTML:    TextToHTML(text),
	}
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
