package ui

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))

type confirmModel struct {
	prompt   string
	answered bool
	accepted bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.answered, m.accepted = true, true
		return m, tea.Quit
	case "n", "N", "q", "esc", "enter", "ctrl+c":
		// anything but an explicit yes declines
		m.answered = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.answered {
		if m.accepted {
			return promptStyle.Render(m.prompt) + " yes\n"
		}
		return promptStyle.Render(m.prompt) + " no\n"
	}
	return promptStyle.Render(m.prompt) + " [y/N] "
}

// Confirm asks a yes/no question on the terminal.
func Confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	p := tea.NewProgram(confirmModel{prompt: prompt}, tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return false, err
	}
	m, ok := final.(confirmModel)
	return ok && m.accepted, nil
}
