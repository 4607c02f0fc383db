package prompt

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	questionStyle = lipgloss.NewStyle().Bold(true)
	markStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	choiceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var yesNo = []string{"Yes", "No"}

// selectModel is a one-line picker over a fixed set of choices.
type selectModel struct {
	question  string
	choices   []string
	cursor    int
	chosen    int
	cancelled bool
}

func newSelectModel(question string, choices []string, initial int) selectModel {
	return selectModel{question: question, choices: choices, cursor: initial, chosen: -1}
}

func (m selectModel) Init() tea.Cmd {
	return nil
}

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc":
		m.cancelled = true
		return m, tea.Quit
	case "left", "up", "h", "k", "shift+tab":
		if m.cursor > 0 {
			m.cursor--
		}
	case "right", "down", "l", "j", "tab":
		if m.cursor < len(m.choices)-1 {
			m.cursor++
		}
	case "enter":
		m.chosen = m.cursor
		return m, tea.Quit
	default:
		for i, c := range m.choices {
			if strings.EqualFold(key.String(), c[:1]) {
				m.chosen = i
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m selectModel) View() string {
	if m.chosen >= 0 || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(markStyle.Render("?") + " " + questionStyle.Render(m.question) + " ")
	for i, c := range m.choices {
		if i > 0 {
			b.WriteString("  ")
		}
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("» " + c))
		} else {
			b.WriteString(choiceStyle.Render("  " + c))
		}
	}
	b.WriteString("\n")
	return b.String()
}

func (p *Prompter) confirmSelect(ctx context.Context, question string, defaultYes bool) (bool, error) {
	initial := 1
	if defaultYes {
		initial = 0
	}

	program := tea.NewProgram(
		newSelectModel(question, yesNo, initial),
		tea.WithContext(ctx),
		tea.WithInput(p.file),
		tea.WithOutput(p.out),
	)
	final, err := program.Run()
	if err != nil {
		if ctx.Err() != nil {
			return false, ErrInterrupted
		}
		return false, fmt.Errorf("run selector: %w", err)
	}

	m := final.(selectModel)
	if m.cancelled || m.chosen < 0 {
		return false, ErrInterrupted
	}

	fmt.Fprintf(p.out, "%s %s %s\n", markStyle.Render("?"), questionStyle.Render(question), cursorStyle.Render(m.choices[m.chosen]))
	return m.chosen == 0, nil
}
