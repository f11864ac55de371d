// Package grouped renders the server-computed notification summaries.
package grouped

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/labordesk/internal/feed"
	"github.com/nhle/labordesk/internal/keys"
	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/theme"
)

// LoadedMsg is sent when the grouped summaries have been fetched.
type LoadedMsg struct {
	Err error
}

// BackMsg signals the parent to return to the list view.
type BackMsg struct{}

// Model lists one row per group. Toggling a row shows its messages.
type Model struct {
	store    *feed.Store
	keys     *keys.KeyMap
	days     int
	groups   []model.GroupedNotification
	cursor   int
	expanded map[string]bool
	loading  bool
	err      error
	width    int
	height   int
}

// New creates the grouped view over the last days.
func New(s *feed.Store, k *keys.KeyMap, days, width, height int) Model {
	if days <= 0 {
		days = 7
	}
	return Model{
		store:    s,
		keys:     k,
		days:     days,
		expanded: make(map[string]bool),
		width:    width,
		height:   height,
	}
}

// Load fetches the summaries.
func (m *Model) Load() tea.Cmd {
	m.loading = true
	s, days := m.store, m.days
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, err := s.LoadGrouped(ctx, days)
		return LoadedMsg{Err: err}
	}
}

// Update handles messages for the grouped view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		m.err = msg.Err
		m.groups = m.store.Groups()
		if m.cursor >= len(m.groups) {
			m.cursor = max(len(m.groups)-1, 0)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.groups)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.ToggleDetail):
			if m.cursor < len(m.groups) {
				k := m.groups[m.cursor].Key()
				m.expanded[k] = !m.expanded[k]
			}
		}
	}
	return m, nil
}

// Expanded reports whether the group with key k shows its messages.
func (m Model) Expanded(k string) bool {
	return m.expanded[k]
}

// View renders the grouped view.
func (m Model) View() string {
	header := theme.HeaderStyle.Render(fmt.Sprintf("Grouped (last %d days)", m.days))

	empty := lipgloss.NewStyle().
		Width(m.width).
		Align(lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loading:
		return lipgloss.JoinVertical(lipgloss.Left, header, empty.Render("Loading..."))
	case m.err != nil:
		return lipgloss.JoinVertical(lipgloss.Left, header,
			empty.Foreground(theme.ColorRed).Render("Could not load grouped notifications."))
	case len(m.groups) == 0:
		return lipgloss.JoinVertical(lipgloss.Left, header, empty.Render("Nothing in this period."))
	}

	lines := []string{header, ""}
	timeStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	for i, g := range m.groups {
		marker := "▸"
		if m.expanded[g.Key()] {
			marker = "▾"
		}
		line := fmt.Sprintf("%s %s  %d notification(s)  %s",
			marker,
			theme.TypeLabelStyle(string(g.Type)).Render(g.Key()),
			g.Count,
			timeStyle.Render(lastCreated(g.LastCreated)),
		)
		if i == m.cursor {
			line = theme.SelectedItemStyle.Render(line)
		} else {
			line = theme.ListItemStyle.Render(line)
		}
		lines = append(lines, line)

		if m.expanded[g.Key()] {
			for _, msg := range g.Messages {
				lines = append(lines, theme.ListItemStyle.PaddingLeft(6).Render("• "+msg))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func lastCreated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return "latest " + t.Local().Format("Jan 02 15:04")
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
