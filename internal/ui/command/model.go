package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/labordesk/internal/theme"
)

// Command is a parsed palette command.
type Command struct {
	Name string
	Args []string
}

// CommandMsg is emitted when the user executes a valid command.
type CommandMsg Command

// Definition describes one palette command.
type Definition struct {
	Name  string
	Args  int
	Usage string
}

// Commands lists every command the palette accepts.
var Commands = []Definition{
	{Name: "today", Usage: "notifications created today"},
	{Name: "week", Usage: "last 7 days"},
	{Name: "month", Usage: "last 30 days"},
	{Name: "all", Usage: "clear the date window"},
	{Name: "custom", Args: 2, Usage: "custom START END (YYYY-MM-DDTHH:MM:SS)"},
	{Name: "archived", Usage: "show archived notifications"},
	{Name: "active", Usage: "show active notifications"},
	{Name: "grouped", Usage: "grouped summary view"},
	{Name: "compose", Usage: "write a new notification"},
	{Name: "refresh", Usage: "reload from the server"},
	{Name: "quit", Usage: "exit"},
}

// Parse splits input into a command and validates its arity.
func Parse(input string) (Command, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	name := strings.ToLower(fields[0])
	for _, def := range Commands {
		if def.Name != name {
			continue
		}
		args := fields[1:]
		if len(args) != def.Args {
			return Command{}, fmt.Errorf("usage: %s", def.Usage)
		}
		return Command{Name: name, Args: args}, nil
	}
	return Command{}, fmt.Errorf("unknown command %q", fields[0])
}

// complete returns the single command name starting with prefix, if any.
func complete(prefix string) (string, bool) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return "", false
	}
	var match string
	for _, def := range Commands {
		if strings.HasPrefix(def.Name, prefix) {
			if match != "" {
				return "", false
			}
			match = def.Name
		}
	}
	return match, match != ""
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	err    error
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "today, week, archived, compose..."
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			raw := strings.TrimSpace(m.input.Value())
			if raw == "" {
				return m, nil
			}
			c, err := Parse(raw)
			if err != nil {
				m.err = err
				return m, nil
			}
			m.err = nil
			m.input.Reset()
			return m, func() tea.Msg { return CommandMsg(c) }

		case "tab":
			if name, ok := complete(m.input.Value()); ok {
				m.input.SetValue(name)
				m.input.CursorEnd()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	lines := []string{titleStyle.Render("Command Palette"), m.input.View()}
	if m.err != nil {
		lines = append(lines, theme.ToastErrorStyle.Render(m.err.Error()))
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input and clears any error.
func (m *Model) Focus() tea.Cmd {
	m.err = nil
	m.input.Reset()
	return m.input.Focus()
}
