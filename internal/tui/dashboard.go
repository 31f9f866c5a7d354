// Package tui provides the live session dashboard shown by
// "transferd dashboard".
package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/redpay/transferd/internal/orchestrator"
)

// Fetch returns the current pending sessions. Called once per refresh tick.
type Fetch func() ([]orchestrator.SessionInfo, error)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("241"))
	staleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// refreshInterval is how often the session list is re-read.
const refreshInterval = time.Second

type tickMsg time.Time

type sessionsMsg struct {
	infos []orchestrator.SessionInfo
	err   error
}

// Model is the dashboard view model.
type Model struct {
	fetch    Fetch
	spinner  spinner.Model
	sessions []orchestrator.SessionInfo
	err      error
	window   time.Duration
}

// NewModel creates a dashboard over fetch. window is the inactivity window,
// used to highlight sessions close to expiry.
func NewModel(fetch Fetch, window time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED"))

	return Model{
		fetch:   fetch,
		spinner: sp,
		window:  window,
	}
}

// Init starts the spinner, the first load, and the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) load() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		infos, err := fetch()
		return sessionsMsg{infos: infos, err: err}
	}
}

// Update handles messages and updates the dashboard state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.load(), tick())

	case sessionsMsg:
		m.sessions = msg.infos
		m.err = msg.err
		return m, nil

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

// View renders the pending session table.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("transferd — pending OTP sessions"))
	b.WriteString("\n\n")
	b.WriteString(m.spinner.View())
	b.WriteString(" watching\n\n")

	if m.err != nil {
		b.WriteString(fmt.Sprintf("error: %v\n", m.err))
		return b.String()
	}

	if len(m.sessions) == 0 {
		b.WriteString("no sessions awaiting OTP\n")
	} else {
		b.WriteString(headerStyle.Render(fmt.Sprintf("  %-20s %-14s %10s  %-15s %8s", "SESSION", "BANK", "AMOUNT", "STATUS", "AGE")))
		b.WriteString("\n")
		now := time.Now()
		for _, info := range m.sessions {
			age := now.Sub(info.UpdatedAt).Truncate(time.Second)
			line := fmt.Sprintf("  %-20s %-14s %10.2f  %-15s %8s", info.SessionID, info.BankID, info.Amount, info.Status, age)
			if m.window > 0 && age > m.window*3/4 {
				line = staleStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q: quit"))
	b.WriteString("\n")
	return b.String()
}

// IsTTY reports whether stdout is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Run starts the dashboard program and blocks until the user quits.
func Run(fetch Fetch, window time.Duration) error {
	p := tea.NewProgram(NewModel(fetch, window))
	_, err := p.Run()
	return err
}
