// Package history is a terminal browser for the processing ledger.
package history

import (
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/jobreach/internal/ledger"
	"github.com/amishk599/jobreach/internal/model"
)

// Lines per entry in the list view (target + subtitle + blank separator).
const entryItemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

// tabs are the category filters, in tab order. Empty means all.
var tabs = []model.Category{"", model.CategoryApply, model.CategoryEmail, model.CategoryProspect}

var tabTitles = map[model.Category]string{
	"":                     "All",
	model.CategoryApply:    "Applied",
	model.CategoryEmail:    "Job emails",
	model.CategoryProspect: "Prospects",
}

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39"))

	tabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("240"))

	activeTabStyle = tabStyle.
			Bold(true).
			Foreground(lipgloss.Color("39"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	targetStyle = lipgloss.NewStyle().
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	selectedTargetStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(16)

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)
)

// actionColors tint the action tag in the list.
var actionColors = map[model.Action]lipgloss.Color{
	model.ActionApplied: lipgloss.Color("42"),
	model.ActionEmailed: lipgloss.Color("42"),
	model.ActionFailed:  lipgloss.Color("196"),
	model.ActionDryRun:  lipgloss.Color("214"),
	model.ActionSkipped: lipgloss.Color("245"),
}

type historyModel struct {
	all      []ledger.Entry
	shown    []ledger.Entry
	tab      int
	cursor   int
	list     viewport.Model
	detail   viewport.Model
	view     viewState
	width    int
	height   int
	ready    bool
	openURL  func(string)
	quitting bool
}

func newModel(entries []ledger.Entry) historyModel {
	sorted := append([]ledger.Entry(nil), entries...)
	// Newest first. Dates share one layout so they sort as strings.
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date > sorted[j].Date })
	m := historyModel{all: sorted, openURL: openURL}
	m.applyFilter()
	return m
}

func (m historyModel) Init() tea.Cmd {
	return nil
}

func (m historyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}
	return m, nil
}

func (m historyModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "tab", "right", "l":
		m.tab = (m.tab + 1) % len(tabs)
		m.applyFilter()
		return m, nil
	case "shift+tab", "left", "h":
		m.tab = (m.tab + len(tabs) - 1) % len(tabs)
		m.applyFilter()
		return m, nil
	case "up", "k":
		m.cursor = clamp(m.cursor-1, 0, max(len(m.shown)-1, 0))
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.cursor = clamp(m.cursor+1, 0, max(len(m.shown)-1, 0))
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		if len(m.shown) == 0 {
			return m, nil
		}
		m.view = viewDetail
		m.detail = viewport.New(max(m.width-4, 20), max(m.height-4, 5))
		m.detail.SetContent(renderDetail(m.shown[m.cursor]))
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m historyModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		if u := m.shown[m.cursor].URL; u != "" && m.openURL != nil {
			m.openURL(u)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

// applyFilter keeps the entries of the selected tab and resets the cursor.
func (m *historyModel) applyFilter() {
	m.shown = filterEntries(m.all, tabs[m.tab])
	m.cursor = 0
	if m.ready {
		m.list.SetYOffset(0)
		m.recalcContent()
	}
}

func filterEntries(entries []ledger.Entry, cat model.Category) []ledger.Entry {
	if cat == "" {
		return entries
	}
	var out []ledger.Entry
	for _, e := range entries {
		if e.Type == cat {
			out = append(out, e)
		}
	}
	return out
}

func (m *historyModel) recalcLayout() {
	// Tab row (1) + border (2) + status bar (1).
	w := max(m.width-2, 20)
	h := max(m.height-4, 5)
	if !m.ready {
		m.list = viewport.New(w, h)
		m.ready = true
	} else {
		m.list.Width = w
		m.list.Height = h
	}
	if m.view == viewDetail {
		m.detail.Width = max(m.width-4, 20)
		m.detail.Height = max(m.height-4, 5)
	}
	m.recalcContent()
}

func (m *historyModel) recalcContent() {
	m.list.SetContent(renderEntries(m.shown, m.cursor))
}

func (m *historyModel) ensureCursorVisible() {
	top := m.cursor * entryItemHeight
	bottom := top + entryItemHeight - 1
	if top < m.list.YOffset {
		m.list.SetYOffset(top)
	} else if bottom >= m.list.YOffset+m.list.Height {
		m.list.SetYOffset(bottom - m.list.Height + 1)
	}
}

func (m historyModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.view == viewDetail {
		title := detailTitleStyle.Render("Ledger entry")
		status := statusBarStyle.Width(m.width).Render(" o open URL  esc/backspace back  ↑/↓ scroll  q quit")
		return title + "\n" + borderStyle.Width(m.width-2).Render(m.detail.View()) + "\n" + status
	}

	var tabRow []string
	for i, cat := range tabs {
		label := fmt.Sprintf("%s (%d)", tabTitles[cat], len(filterEntries(m.all, cat)))
		if i == m.tab {
			tabRow = append(tabRow, activeTabStyle.Render(label))
		} else {
			tabRow = append(tabRow, tabStyle.Render(label))
		}
	}

	status := statusBarStyle.Width(m.width).Render(" " + countLine(m.shown) + "    Tab switch  ↑/↓ cursor  Enter detail  q quit")
	return lipgloss.JoinHorizontal(lipgloss.Top, tabRow...) + "\n" +
		borderStyle.Width(m.list.Width).Render(m.list.View()) + "\n" + status
}

// countLine summarises the actions of entries, e.g. "3 emailed | 1 failed".
func countLine(entries []ledger.Entry) string {
	counts := map[model.Action]int{}
	for _, e := range entries {
		counts[e.ActionTaken]++
	}
	var parts []string
	for _, a := range []model.Action{model.ActionApplied, model.ActionEmailed, model.ActionDryRun, model.ActionFailed, model.ActionSkipped} {
		if counts[a] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[a], a))
		}
	}
	if len(parts) == 0 {
		return "0 entries"
	}
	return strings.Join(parts, " | ")
}

func renderEntries(entries []ledger.Entry, cursor int) string {
	if len(entries) == 0 {
		return "  (no entries)"
	}

	var b strings.Builder
	for i, e := range entries {
		titleSt, subtitleSt, prefix := targetStyle, subtitleStyle, "  "
		if i == cursor {
			titleSt, subtitleSt, prefix = selectedTargetStyle, selectedSubtitleStyle, "> "
		}

		tag := lipgloss.NewStyle().Foreground(actionColors[e.ActionTaken]).Render("[" + string(e.ActionTaken) + "]")
		b.WriteString(prefix + tag + " " + titleSt.Render(e.Target) + "\n")

		sub := fmt.Sprintf("%s · %s", e.Type, displayDate(e))
		if len(e.EmailsSentTo) > 0 {
			sub += " · " + strings.Join(e.EmailsSentTo, ", ")
		}
		b.WriteString(prefix + subtitleSt.Render(sub) + "\n")

		if i < len(entries)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderDetail(e ledger.Entry) string {
	var b strings.Builder
	add := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}
	add("Target", e.Target)
	add("Category", string(e.Type))
	add("Action", string(e.ActionTaken))
	add("Date", displayDate(e))
	add("URL", e.URL)
	add("Sent to", strings.Join(e.EmailsSentTo, ", "))
	add("Notes", e.Notes)
	return b.String()
}

func displayDate(e ledger.Entry) string {
	t, err := e.Time()
	if err != nil {
		return e.Date
	}
	return t.Format("2006-01-02 15:04")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// Run opens the ledger browser in the alternate screen.
func Run(entries []ledger.Entry) error {
	p := tea.NewProgram(newModel(entries), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
