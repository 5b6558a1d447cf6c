// Package ui renders a read-only status dashboard over the core's snapshot.
// All state lives in the core; this model only polls Snapshot and draws it.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"patternpilot/internal/app"
)

const refreshInterval = 500 * time.Millisecond

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// DashboardModel is the top-level bubbletea model.
type DashboardModel struct {
	core    *app.Core
	spinner spinner.Model
	styles  Styles
	snap    app.Snapshot
	width   int
	height  int
}

// NewDashboard creates the dashboard over core.
func NewDashboard(core *app.Core) DashboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return DashboardModel{
		core:    core,
		spinner: sp,
		styles:  DefaultStyles(),
		snap:    core.Snapshot(),
	}
}

// Init starts the refresh and spinner timers.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(tick(), m.spinner.Tick)
}

// Update handles keys, resizes, and refresh ticks.
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.snap = m.core.Snapshot()
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View draws the snapshot.
func (m DashboardModel) View() string {
	var sb strings.Builder

	sb.WriteString(m.styles.Header.Render("patternpilot"))
	sb.WriteString("\n\n")

	sb.WriteString(m.styles.Title.Render("Inbox"))
	sb.WriteString(fmt.Sprintf("  %d notifications, ", len(m.snap.Notifications)))
	sb.WriteString(m.styles.Badge.Render(fmt.Sprintf("%d unread", m.snap.UnreadCount)))
	sb.WriteString("\n")

	sb.WriteString(m.styles.Title.Render("Patterns"))
	sb.WriteString(fmt.Sprintf("  %d actionable\n", len(m.snap.PatternQueue)))
	for _, e := range m.snap.PatternQueue {
		sb.WriteString(fmt.Sprintf("    %s  %s (%.0f%%)\n",
			e.Pattern.ID, e.Pattern.Type, e.Pattern.Confidence))
	}

	sb.WriteString(m.styles.Title.Render("Recording"))
	rec := m.snap.Recording
	if rec.IsRecording {
		sb.WriteString("  " + m.styles.Recording.Render("● recording") +
			fmt.Sprintf(" tab %s, %d actions\n", rec.TabID, rec.ActionCount))
	} else {
		sb.WriteString("  " + m.styles.Muted.Render(string(rec.Status)) + "\n")
	}

	sb.WriteString(m.styles.Title.Render("Automations"))
	sb.WriteString(fmt.Sprintf("  %d saved\n", len(m.snap.Automations)))
	for _, id := range m.snap.Executing {
		line := fmt.Sprintf("    %s %s", m.spinner.View(), id)
		if p, ok := m.snap.Progress[id]; ok {
			line += fmt.Sprintf("  step %d/%d  %s", p.CurrentStep, p.TotalSteps, p.StepDescription)
		}
		sb.WriteString(line + "\n")
	}

	sb.WriteString(m.styles.Title.Render("Conversation"))
	sb.WriteString(fmt.Sprintf("  %d turns", len(m.snap.Turns)))
	if m.snap.ShowPendingIndicator {
		sb.WriteString("  " + m.spinner.View() + m.styles.Muted.Render(" thinking"))
	}
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Muted.Render("q to quit"))

	return sb.String()
}
