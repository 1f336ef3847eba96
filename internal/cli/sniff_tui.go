package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/guiyumin/vsniff/internal/core/media"
)

var (
	sniffInfoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	sniffDoneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	sniffErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	sniffHintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
)

// sniffState holds the state shared between the sniff goroutine and the TUI
type sniffState struct {
	mu     sync.RWMutex
	done   bool
	err    error
	found  int
	result []media.Candidate
}

func (s *sniffState) setFound(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.found = n
}

func (s *sniffState) finish(result []media.Candidate, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.result = result
	s.err = err
}

func (s *sniffState) get() (done bool, found int, result []media.Candidate, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done, s.found, s.result, s.err
}

type sniffTickMsg time.Time

type sniffModel struct {
	spinner  spinner.Model
	url      string
	wait     time.Duration
	started  time.Time
	state    *sniffState
	quitting bool
}

func newSniffModel(url string, wait time.Duration, state *sniffState) sniffModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return sniffModel{
		spinner: s,
		url:     url,
		wait:    wait,
		started: time.Now(),
		state:   state,
	}
}

func sniffTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return sniffTickMsg(t)
	})
}

func (m sniffModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, sniffTickCmd())
}

func (m sniffModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sniffTickMsg:
		if done, _, _, _ := m.state.get(); done {
			return m, tea.Quit
		}
		return m, sniffTickCmd()
	}

	return m, nil
}

func (m sniffModel) View() string {
	done, found, result, err := m.state.get()

	if err != nil {
		return fmt.Sprintf("\n  %s sniff failed: %v\n\n", sniffErrStyle.Render("✗"), err)
	}
	if done {
		return fmt.Sprintf("\n  %s %d assets found on %s\n\n",
			sniffDoneStyle.Render("✓"), len(result), sniffInfoStyle.Render(m.url))
	}

	remaining := m.wait - time.Since(m.started)
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf("\n  %s Sniffing %s  %s\n  %s\n\n",
		m.spinner.View(),
		sniffInfoStyle.Render(m.url),
		sniffHintStyle.Render(fmt.Sprintf("%d found, %s left", found, remaining.Round(time.Second))),
		sniffHintStyle.Render("press q to cancel"),
	)
}

// runSniffWithSpinner runs fn in the background behind a spinner
func runSniffWithSpinner(url string, wait time.Duration, fn func(progress func(int)) ([]media.Candidate, error)) ([]media.Candidate, error) {
	state := &sniffState{}

	go func() {
		state.finish(fn(state.setFound))
	}()

	p := tea.NewProgram(newSniffModel(url, wait, state))
	if _, err := p.Run(); err != nil {
		return nil, err
	}

	done, _, result, err := state.get()
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, fmt.Errorf("sniff cancelled")
	}
	return result, nil
}
