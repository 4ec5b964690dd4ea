package history

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amishk599/jobreach/internal/ledger"
	"github.com/amishk599/jobreach/internal/model"
	"github.com/amishk599/jobreach/internal/pipeline"
)

func sampleEntries() []ledger.Entry {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)
	return []ledger.Entry{
		ledger.NewEntry(model.CategoryEmail, "Backend @ Acme", "https://acme.example/1", model.ActionEmailed, []string{"rrhh@acme.example"}, "", base),
		ledger.NewEntry(model.CategoryProspect, "Bodega Sur", "https://bodegasur.example", model.ActionFailed, nil, "HTTP 422", base.Add(time.Hour)),
		ledger.NewEntry(model.CategoryApply, "Data @ Beta", "https://beta.example/2", model.ActionApplied, nil, "", base.Add(2*time.Hour)),
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m historyModel, msgs ...tea.Msg) historyModel {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(historyModel)
	}
	return m
}

func TestNewModel_NewestFirst(t *testing.T) {
	m := newModel(sampleEntries())
	if len(m.shown) != 3 || m.shown[0].Target != "Data @ Beta" || m.shown[2].Target != "Backend @ Acme" {
		t.Errorf("order = %v", targets(m.shown))
	}
}

func TestTabsFilterByCategory(t *testing.T) {
	m := update(t, newModel(sampleEntries()), tea.WindowSizeMsg{Width: 100, Height: 30})

	m = update(t, m, key("tab"))
	if len(m.shown) != 1 || m.shown[0].Type != model.CategoryApply {
		t.Errorf("apply tab = %v", targets(m.shown))
	}
	m = update(t, m, key("tab"), key("tab"))
	if len(m.shown) != 1 || m.shown[0].Type != model.CategoryProspect {
		t.Errorf("prospect tab = %v", targets(m.shown))
	}
	m = update(t, m, key("tab"))
	if len(m.shown) != 3 {
		t.Errorf("tab should wrap to all, got %d entries", len(m.shown))
	}
}

func TestDetailViewAndOpenURL(t *testing.T) {
	var opened string
	m := newModel(sampleEntries())
	m.openURL = func(u string) { opened = u }
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30}, key("down"), key("enter"))

	if m.view != viewDetail {
		t.Fatal("enter should open the detail view")
	}
	if !strings.Contains(m.View(), "HTTP 422") {
		t.Error("detail should show the notes")
	}

	m = update(t, m, key("o"))
	if opened != "https://bodegasur.example" {
		t.Errorf("opened %q", opened)
	}

	m = update(t, m, key("esc"))
	if m.view != viewList {
		t.Error("esc should return to the list")
	}
}

func TestCountLine(t *testing.T) {
	if got := countLine(sampleEntries()); got != "1 applied | 1 emailed | 1 failed" {
		t.Errorf("countLine = %q", got)
	}
	if got := countLine(nil); got != "0 entries" {
		t.Errorf("countLine(nil) = %q", got)
	}
}

func TestRenderSummary(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	out := RenderSummary(pipeline.Summary{
		RunID:      "run-7",
		Mode:       "email",
		DryRun:     true,
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Categories: []pipeline.CategorySummary{
			{Category: model.CategoryEmail, Max: 2, Processed: 2, DryRun: 2, CapReached: true},
			{Category: model.CategoryProspect, Err: errors.New("ledger locked")},
		},
	})

	for _, want := range []string{"Run email (dry-run)", "run-7", "1m30s", "2/2", "per-run cap reached", "aborted: ledger locked"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func targets(es []ledger.Entry) []string {
	var out []string
	for _, e := range es {
		out = append(out, e.Target)
	}
	return out
}
