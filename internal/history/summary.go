package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobreach/internal/pipeline"
)

var (
	summaryTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))

	summaryLabelStyle = lipgloss.NewStyle().
				Width(14).
				Foreground(lipgloss.Color("245"))

	summaryErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196"))

	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// RenderSummary formats a run summary as a bordered block for the terminal.
func RenderSummary(s pipeline.Summary) string {
	title := "Run " + s.Mode
	if s.DryRun {
		title += " (dry-run)"
	}

	var b strings.Builder
	b.WriteString(summaryTitleStyle.Render(title) + "\n")
	line := func(label, value string) {
		b.WriteString(summaryLabelStyle.Render(label) + value + "\n")
	}
	line("Run ID", s.RunID)
	line("Duration", s.Duration().Round(time.Second).String())

	for _, c := range s.Categories {
		b.WriteByte('\n')
		b.WriteString(summaryTitleStyle.Render(string(c.Category)) + "\n")
		line("Processed", fmt.Sprintf("%d/%d", c.Processed, c.Max))
		line("Fetched", fmt.Sprintf("%d (relevant %d, duplicates %d)", c.Fetched, c.Relevant, c.Duplicates))
		line("Outcomes", fmt.Sprintf("ok %d, failed %d, dry-run %d, skipped %d", c.Succeeded, c.Failed, c.DryRun, c.Skipped))
		switch {
		case c.Err != nil:
			b.WriteString(summaryErrorStyle.Render("aborted: "+c.Err.Error()) + "\n")
		case c.Interrupted:
			b.WriteString(summaryErrorStyle.Render("interrupted") + "\n")
		case c.CapReached:
			line("", "per-run cap reached")
		}
	}

	return summaryBoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
