package ui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type statusMsg string

type doneMsg struct{}

type progressModel struct {
	spinner spinner.Model
	label   string
	status  string
	done    bool
}

func newProgressModel(label string) progressModel {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = successStyle

	return progressModel{spinner: s, label: label}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.status = string(msg)
		return m, nil

	case doneMsg:
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + m.label + "  " + m.status + "\n"
}

// Track runs work, showing a spinner with its latest status on terminals.
// Elsewhere the status updates are dropped.
func Track[T any](ctx context.Context, label string, work func(status func(string)) (T, error)) (T, error) {
	if !Interactive() {
		return work(func(string) {})
	}

	p := tea.NewProgram(newProgressModel(label),
		tea.WithContext(ctx),
		tea.WithOutput(Stderr),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		value, err := work(func(s string) { p.Send(statusMsg(s)) })
		done <- result{value, err}
		p.Send(doneMsg{})
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		// the display failed, the work goes on
		Warnf("progress display failed: %s", err)
	}

	r := <-done
	return r.value, r.err
}
