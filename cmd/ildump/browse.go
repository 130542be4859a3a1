package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/clrmeta/typesys"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type browseState int

const (
	stateTypes browseState = iota
	stateFilter
	stateMethods
	stateBody
)

// browserModel walks a module: types, then the methods of one type, then
// the IL of one method.
type browserModel struct {
	mod       *typesys.Module
	types     []*typesys.TypeDef
	methods   []*typesys.Method
	filter    textinput.Model
	body      viewport.Model
	err       error
	typeIdx   int
	methodIdx int
	tree      bool
	height    int
	state     browseState
}

type bodyMsg struct {
	text string
	err  error
}

func newBrowserModel(mod *typesys.Module) *browserModel {
	filter := textinput.New()
	filter.Prompt = "prefix: "
	filter.Placeholder = "Namespace.Type"
	filter.Width = 40
	return &browserModel{
		mod:    mod,
		types:  mod.Types(),
		filter: filter,
		body:   viewport.New(80, 20),
		height: 20,
		state:  stateTypes,
	}
}

func (m *browserModel) Init() tea.Cmd {
	return nil
}

func (m *browserModel) loadBody() tea.Msg {
	method := m.methods[m.methodIdx]
	text, err := methodIL(method, m.tree)
	return bodyMsg{text: text, err: err}
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.body.Width = msg.Width
		m.body.Height = max(msg.Height-4, 1)
		m.height = max(msg.Height-6, 1)
		return m, nil

	case bodyMsg:
		m.err = msg.err
		m.body.SetContent(msg.text)
		m.body.GotoTop()
		m.state = stateBody
		return m, nil

	case tea.KeyMsg:
		if m.state == stateFilter {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			m.move(-1)

		case "down", "j":
			m.move(1)

		case "/":
			if m.state == stateTypes {
				m.state = stateFilter
				return m, m.filter.Focus()
			}

		case "t":
			if m.state == stateBody {
				m.tree = !m.tree
				return m, m.loadBody
			}

		case "enter":
			switch m.state {
			case stateTypes:
				if len(m.types) == 0 {
					return m, nil
				}
				m.methods = m.types[m.typeIdx].Methods()
				m.methodIdx = 0
				m.state = stateMethods
			case stateMethods:
				if len(m.methods) > 0 {
					return m, m.loadBody
				}
			}

		case "esc":
			switch m.state {
			case stateMethods:
				m.state = stateTypes
				m.methods = nil
			case stateBody:
				m.state = stateMethods
				m.err = nil
			}
		}
	}

	if m.state == stateBody {
		var cmd tea.Cmd
		m.body, cmd = m.body.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *browserModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.filter.Blur()
		m.state = stateTypes
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	if p := m.filter.Value(); p != "" {
		m.types = m.mod.TypesWithPrefix(p)
	} else {
		m.types = m.mod.Types()
	}
	m.typeIdx = 0
	return m, cmd
}

func (m *browserModel) move(delta int) {
	switch m.state {
	case stateTypes:
		m.typeIdx = clamp(m.typeIdx+delta, len(m.types))
	case stateMethods:
		m.methodIdx = clamp(m.methodIdx+delta, len(m.methods))
	}
}

func clamp(i, n int) int {
	switch {
	case n == 0 || i < 0:
		return 0
	case i >= n:
		return n - 1
	}
	return i
}

func (m *browserModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ildump"))
	b.WriteString(" ")
	b.WriteString(m.mod.String())
	b.WriteString("\n\n")

	switch m.state {
	case stateTypes, stateFilter:
		if m.state == stateFilter || m.filter.Value() != "" {
			b.WriteString(m.filter.View())
			b.WriteString("\n\n")
		}
		lines := make([]string, len(m.types))
		for i, t := range m.types {
			lines[i] = kindStyle.Render(t.Kind.String()) + " " + nameStyle.Render(t.FullName())
		}
		b.WriteString(m.list(lines, m.typeIdx))
		b.WriteString(helpStyle.Render("↑/↓ select • enter methods • / filter • q quit"))

	case stateMethods:
		t := m.types[m.typeIdx]
		b.WriteString(fmt.Sprintf("Methods of %s\n\n", nameStyle.Render(t.FullName())))
		lines := make([]string, len(m.methods))
		for i, method := range m.methods {
			lines[i] = methodLine(method)
		}
		b.WriteString(m.list(lines, m.methodIdx))
		b.WriteString(helpStyle.Render("↑/↓ select • enter IL • esc back • q quit"))

	case stateBody:
		method := m.methods[m.methodIdx]
		form := "instructions"
		if m.tree {
			form = "tree"
		}
		b.WriteString(fmt.Sprintf("%s (%s)\n", nameStyle.Render(method.String()), form))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n")
		} else {
			b.WriteString(m.body.View())
			b.WriteString("\n")
		}
		b.WriteString(helpStyle.Render("↑/↓ scroll • t toggle tree • esc back • q quit"))
	}
	return b.String()
}

// list renders a window of lines around the selection.
func (m *browserModel) list(lines []string, selected int) string {
	if len(lines) == 0 {
		return "(none)\n\n"
	}
	start := 0
	if selected >= m.height {
		start = selected - m.height + 1
	}
	end := min(start+m.height, len(lines))

	var b strings.Builder
	for i := start; i < end; i++ {
		if i == selected {
			b.WriteString(selectedStyle.Render("> " + lines[i]))
		} else {
			b.WriteString("  " + lines[i])
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func runBrowser(mod *typesys.Module) error {
	p := tea.NewProgram(newBrowserModel(mod), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
