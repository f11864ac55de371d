package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/labordesk/internal/keys"
	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/theme"
	"github.com/nhle/labordesk/internal/ui/feedlist"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// ActionMsg signals the parent to run an action on the current
// notification.
type ActionMsg struct {
	Action feedlist.Action
	ID     int64
}

// Model is the notification detail view component.
type Model struct {
	n           *model.Notification
	viewport    viewport.Model
	keys        *keys.KeyMap
	resolveLink func(string) string
	width       int
	height      int
}

// New creates a new detail view model. resolveLink turns a server-relative
// attachment path into a download URL.
func New(keys *keys.KeyMap, resolveLink func(string) string, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport:    vp,
		keys:        keys,
		resolveLink: resolveLink,
		width:       width,
		height:      height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Archive):
			return m, m.action(feedlist.ActionArchive)

		case key.Matches(msg, m.keys.Delete):
			return m, m.action(feedlist.ActionDelete)

		case key.Matches(msg, m.keys.Confirm):
			if m.n != nil && m.n.NeedsAction() {
				return m, m.action(feedlist.ActionConfirm)
			}
			return m, nil

		case key.Matches(msg, m.keys.Reject):
			if m.n != nil && m.n.NeedsAction() {
				return m, m.action(feedlist.ActionReject)
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) action(a feedlist.Action) tea.Cmd {
	if m.n == nil {
		return nil
	}
	id := m.n.ID
	return func() tea.Msg {
		return ActionMsg{Action: a, ID: id}
	}
}

// View renders the detail view.
func (m Model) View() string {
	if m.n == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notification selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.n == nil {
		return ""
	}

	n := m.n
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	glyph := feedlist.ResolveIcon(*n)
	sections = append(sections, glyph.Render()+" "+titleStyle.Render(n.Message))

	badges := []string{theme.TypeLabelStyle(string(n.Type)).Render(string(n.Type))}
	if n.Archived {
		badges = append(badges, theme.DimmedStyle.Render("archived"))
	}
	if n.IsExpired(time.Now()) {
		badges = append(badges, theme.DimmedStyle.Render("expired"))
	}
	sections = append(sections, strings.Join(badges, "  "), "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(12)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) {
		sections = append(sections, fmt.Sprintf("%s %s",
			metaStyle.Render(label+":"), valStyle.Render(value)))
	}

	row("ID", fmt.Sprintf("%d", n.ID))
	if !n.CreatedAt.IsZero() {
		row("Created", n.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if n.ScheduledAt != nil {
		row("Scheduled", n.ScheduledAt.Local().Format("2006-01-02 15:04"))
	}
	if n.ExpiresAt != nil {
		row("Expires", n.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	if roles := n.Roles(); len(roles) > 0 {
		row("Roles", strings.Join(roles, ", "))
	}

	if n.Attachment != "" {
		link := n.Attachment
		if m.resolveLink != nil {
			link = m.resolveLink(n.Attachment)
		}
		sections = append(sections, fmt.Sprintf("%s %s",
			metaStyle.Render("Attachment:"), theme.LinkStyle.Render(link)))
	}

	if n.ActionRequired != "" {
		sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
		sections = append(sections, "",
			sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 1))), "")
		row("Action", n.ActionRequired)
		sections = append(sections, feedlist.ActionControls(*n))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetNotification updates the notification being displayed.
func (m *Model) SetNotification(n model.Notification) {
	m.n = &n
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Current returns the displayed notification, if any.
func (m Model) Current() (model.Notification, bool) {
	if m.n == nil {
		return model.Notification{}, false
	}
	return *m.n, true
}

// Clear drops the displayed notification.
func (m *Model) Clear() {
	m.n = nil
	m.viewport.SetContent("")
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.n != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
