// Package applier submits job applications through a real browser.
package applier

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/resume"
)

var (
	// ErrNoForm means the posting page had nothing to fill in.
	ErrNoForm = errors.New("no application form found")
	// ErrDeclined means the operator refused the submission.
	ErrDeclined = errors.New("submission declined")
)

// Applicant is the personal data typed into application forms.
type Applicant struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Location  string
	LinkedIn  string
	GitHub    string
	Website   string
}

// Name is the full name.
func (a Applicant) Name() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// ApplicantFrom takes the contact fields from a résumé. email overrides
// the résumé address when set.
func ApplicantFrom(b resume.Basics, email string) Applicant {
	first, last := splitName(b.Name)
	if email == "" {
		email = b.Email
	}
	return Applicant{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Phone:     b.Phone,
		Location:  b.Location,
		LinkedIn:  b.Profiles["linkedin"],
		GitHub:    b.Profiles["github"],
		Website:   b.URL,
	}
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// Application is one posting to apply to with the résumé to upload.
type Application struct {
	Job        *model.Job
	Applicant  Applicant
	ResumePath string
}

// Result reports what the agent did on the page.
type Result struct {
	Filled    []string
	Uploaded  bool
	Submitted bool
}

// Applier submits one application.
type Applier interface {
	Apply(ctx context.Context, app Application) (Result, error)
}

// Confirmer asks whether a filled-in form may be submitted.
type Confirmer func(ctx context.Context, app Application, res Result) (bool, error)

// PromptConfirmer asks on out and reads a y/N answer from in.
func PromptConfirmer(in io.Reader, out io.Writer) Confirmer {
	r := bufio.NewReader(in)
	return func(ctx context.Context, app Application, res Result) (bool, error) {
		fmt.Fprintf(out, "\n%s\n  %s\n  filled: %s, resume uploaded: %t\nSubmit application? [y/N]: ",
			app.Job.Label(), app.Job.URL, strings.Join(res.Filled, ", "), res.Uploaded)

		type answer struct {
			line string
			err  error
		}
		ch := make(chan answer, 1)
		go func() {
			line, err := r.ReadString('\n')
			ch <- answer{line, err}
		}()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case a := <-ch:
			if a.err != nil && a.line == "" {
				if errors.Is(a.err, io.EOF) {
					return false, nil
				}
				return false, a.err
			}
			switch strings.ToLower(strings.TrimSpace(a.line)) {
			case "y", "yes", "s", "si", "sí":
				return true, nil
			}
			return false, nil
		}
	}
}
