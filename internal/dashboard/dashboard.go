// Package dashboard renders a live-updating terminal view of cluster
// state, polling the coordinator's get_stats client action.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	busyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	idleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// StatsFunc fetches a fresh stats snapshot, or returns an error if the
// coordinator could not be reached.
type StatsFunc func() (protocol.Stats, error)

// Model is the bubbletea model driving the dashboard screen.
type Model struct {
	fetch    StatsFunc
	interval time.Duration
	stats    protocol.Stats
	err      error
	quitting bool
}

// New builds a dashboard Model that polls fetch every interval.
func New(fetch StatsFunc, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	return Model{fetch: fetch, interval: interval}
}

type tickMsg time.Time

type statsMsg struct {
	stats protocol.Stats
	err   error
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.pollCmd(), tickCmd(m.interval))
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) pollCmd() tea.Cmd {
	return func() tea.Msg {
		stats, err := m.fetch()
		return statsMsg{stats: stats, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.pollCmd(), tickCmd(m.interval))
	case statsMsg:
		m.stats = msg.stats
		m.err = msg.err
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("cluster monitor") + "\n\n")

	if m.err != nil {
		b.WriteString(fmt.Sprintf("error contacting coordinator: %v\n", m.err))
		return b.String()
	}

	counts := fmt.Sprintf("queued=%d running=%d completed=%d failed=%d cancelled=%d",
		m.stats.Queued, m.stats.Running, m.stats.Completed, m.stats.Failed, m.stats.Cancelled)
	b.WriteString(headerStyle.Render(counts) + "\n\n")

	var rows strings.Builder
	for _, w := range m.stats.Workers {
		status := idleStyle.Render("idle")
		if w.Busy {
			status = busyStyle.Render("busy")
		}
		rows.WriteString(fmt.Sprintf("%-24s %s  heartbeat %s\n", w.WorkerID, status, w.LastHeartbeat.Format(time.RFC3339)))
	}
	if len(m.stats.Workers) == 0 {
		rows.WriteString("no workers registered\n")
	}
	b.WriteString(sectionStyle.Render(rows.String()))

	b.WriteString("\nq to quit\n")
	return b.String()
}
