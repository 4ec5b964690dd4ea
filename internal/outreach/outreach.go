// Package outreach wires the collaborators of each category (job sources,
// scoring, résumé adaptation, rendering, email and the browser agent) into
// pipeline fetchers, rankers and handlers.
package outreach

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/amishk599/jobreach/internal/applier"
	"github.com/amishk599/jobreach/internal/compose"
	"github.com/amishk599/jobreach/internal/mailer"
	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/pipeline"
	"github.com/amishk599/jobreach/internal/prospect"
	"github.com/amishk599/jobreach/internal/resume"
	"github.com/amishk599/jobreach/internal/scoring"
)

// maxProspectRecipients caps the addresses written to per company.
const maxProspectRecipients = 3

// CVAdapter tailors the base résumé to a target.
type CVAdapter interface {
	ForJob(ctx context.Context, job *model.Job) (resume.Resume, bool)
	ForCompany(ctx context.Context, c *model.Company) (resume.Resume, bool)
}

// CVRenderer turns a résumé into a PDF file and returns its path.
type CVRenderer interface {
	Render(ctx context.Context, cv resume.Resume, target string) (string, error)
}

// ContactFinder discovers email addresses for postings and companies.
type ContactFinder interface {
	JobContacts(ctx context.Context, job model.Job) (prospect.JobContacts, error)
	Enrich(ctx context.Context, companies []model.Company, pause prospect.Pause) (int, error)
}

// EmailWriter composes the outgoing messages.
type EmailWriter interface {
	HR(ctx context.Context, job *model.Job, to model.Contact) compose.Email
	CEO(ctx context.Context, job *model.Job, to model.Contact) compose.Email
	Prospect(ctx context.Context, c *model.Company, to model.Contact) compose.Email
}

// Deps holds everything the categories need. Fields a mode does not use may
// be left nil.
type Deps struct {
	Chat     scoring.Chatter
	Profile  string // candidate summary given to the scoring rubric
	MinScore int

	Jobs      *JobStore
	Companies *CompanyStore

	CV        CVAdapter
	Renderer  CVRenderer
	Finder    ContactFinder
	Writer    EmailWriter
	Mailer    mailer.Sender
	Applier   applier.Applier
	Applicant applier.Applicant

	SendGap    pipeline.Pacing // between two emails to the same target
	CrawlDelay pipeline.Pacing // between two company crawls
	Sleep      pipeline.Pacer

	Logger *slog.Logger
}

func (d *Deps) sleep(ctx context.Context, p pipeline.Pacing) error {
	wait := p.Pick()
	if wait <= 0 {
		return nil
	}
	d.Logger.Debug("waiting", "delay", wait.Round(time.Second))
	if d.Sleep == nil {
		return pipeline.Sleep(ctx, wait)
	}
	return d.Sleep(ctx, wait)
}

// send delivers one email per recipient with a pause between them. In dry-run
// nothing is sent and every recipient is reported. The returned error is set
// only when no recipient was reached.
func (d *Deps) send(ctx context.Context, msgs []mailer.Message, dryRun bool) ([]string, []string, error) {
	var sent, failed []string
	var lastErr error
	for i, msg := range msgs {
		if dryRun {
			d.Logger.Info("dry-run, email not sent", "to", msg.To, "subject", msg.Subject, "attachment", msg.AttachmentName)
			sent = append(sent, msg.To)
			continue
		}
		if i > 0 {
			if err := d.sleep(ctx, d.SendGap); err != nil {
				return sent, failed, err
			}
		}
		if _, err := d.Mailer.Send(ctx, msg); err != nil {
			d.Logger.Error("email failed", "to", msg.To, "error", err)
			failed = append(failed, msg.To)
			lastErr = err
			continue
		}
		sent = append(sent, msg.To)
	}
	if len(sent) == 0 && lastErr != nil {
		return nil, failed, fmt.Errorf("no email delivered: %w", lastErr)
	}
	return sent, failed, nil
}

func message(to string, e compose.Email, pdfPath string) mailer.Message {
	return mailer.Message{
		To:             to,
		Subject:        e.Subject,
		HTML:           e.HTML,
		Text:           e.Text,
		AttachmentPath: pdfPath,
		AttachmentName: filepath.Base(pdfPath),
	}
}

// ApplyCategory applies to relevant postings through the browser agent.
func (d *Deps) ApplyCategory(max int, pacing pipeline.Pacing) pipeline.Category {
	return pipeline.Category{
		Name:    model.CategoryApply,
		Fetcher: d.JobFetcher(),
		Ranker:  d.JobRanker(),
		Handler: d.ApplyHandler(),
		Max:     max,
		Pacing:  pacing,
	}
}

// EmailCategory emails the recruiters and founders of relevant postings.
func (d *Deps) EmailCategory(max int, pacing pipeline.Pacing) pipeline.Category {
	return pipeline.Category{
		Name:    model.CategoryEmail,
		Fetcher: d.JobFetcher(),
		Ranker:  d.JobRanker(),
		Handler: d.EmailHandler(),
		Max:     max,
		Pacing:  pacing,
	}
}

// ProspectCategory emails companies without a published opening.
func (d *Deps) ProspectCategory(max int, pacing pipeline.Pacing, skipCrawl bool) pipeline.Category {
	return pipeline.Category{
		Name:    model.CategoryProspect,
		Fetcher: d.ProspectFetcher(skipCrawl),
		Ranker:  d.ProspectRanker(),
		Handler: d.ProspectHandler(),
		Max:     max,
		Pacing:  pacing,
	}
}
