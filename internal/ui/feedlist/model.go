package feedlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/labordesk/internal/feed"
	"github.com/nhle/labordesk/internal/keys"
	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/theme"
)

// requestTimeout bounds a single list or mutation request.
const requestTimeout = 30 * time.Second

// LoadedMsg is sent when a list refresh completes.
type LoadedMsg struct {
	Err error
}

// SelectedMsg is sent when the user opens a notification.
type SelectedMsg struct {
	ID int64
}

// Action names a mutation triggered from the list or detail view.
type Action string

const (
	ActionArchive Action = "archive"
	ActionDelete  Action = "delete"
	ActionConfirm Action = "confirm"
	ActionReject  Action = "reject"
)

// ActionDoneMsg reports the outcome of a mutation.
type ActionDoneMsg struct {
	Action Action
	ID     int64
	Err    error
}

// Model is the notification list view component.
type Model struct {
	list        list.Model
	store       *feed.Store
	keys        *keys.KeyMap
	searchMode  bool
	searchInput textinput.Model
	term        string
	loading     bool
	loadErr     error
	width       int
	height      int
}

// New creates a new notification list model over the shared store.
func New(s *feed.Store, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search notifications..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		store:       s,
		keys:        k,
		searchInput: si,
		loading:     true,
		width:       width,
		height:      height,
	}
}

// Init returns a command that loads the initial list.
func (m Model) Init() tea.Cmd {
	return m.Reload()
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		if errors.Is(msg.Err, feed.ErrStaleResponse) {
			return m, nil
		}
		m.loading = false
		m.loadErr = msg.Err
		return m, m.Rebuild()

	case ActionDoneMsg:
		return m, m.Rebuild()

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys filters locally as the user types.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.searchInput.Blur()
		return m, nil

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.searchInput.Blur()
		m.term = ""
		return m, m.Rebuild()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.term = m.searchInput.Value()
	return m, tea.Batch(cmd, m.Rebuild())
}

// handleNormalKeys processes key input in normal (non-search) mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		n, ok := m.Selected()
		if !ok {
			return m, nil
		}
		m.store.MarkLocallyRead(n.ID)
		return m, tea.Batch(m.Rebuild(), func() tea.Msg {
			return SelectedMsg{ID: n.ID}
		})

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.SetValue(m.term)
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.MarkAllRead):
		m.store.MarkAllVisibleRead(m.term)
		return m, m.Rebuild()

	case key.Matches(msg, m.keys.Archive):
		if n, ok := m.Selected(); ok {
			return m, Mutate(m.store, ActionArchive, n.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if n, ok := m.Selected(); ok {
			return m, Mutate(m.store, ActionDelete, n.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		if n, ok := m.Selected(); ok && n.NeedsAction() {
			return m, Mutate(m.store, ActionConfirm, n.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Reject):
		if n, ok := m.Selected(); ok && n.NeedsAction() {
			return m, Mutate(m.store, ActionReject, n.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(NotificationItem)
	if !ok {
		return model.Notification{}, false
	}
	return it.N, true
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// Term returns the active search term.
func (m Model) Term() string {
	return m.term
}

// Rebuild re-reads the store into the list, applying the search term and
// the local read overlay.
func (m *Model) Rebuild() tea.Cmd {
	now := time.Now()
	visible := m.store.FilterBySearch(m.term)
	items := make([]list.Item, len(visible))
	for i, n := range visible {
		items[i] = NotificationItem{
			N:       n,
			Read:    m.store.IsRead(n),
			Expired: n.IsExpired(now),
		}
	}
	m.list.Title = fmt.Sprintf("Notifications (%d unread)", m.store.UnreadCount())
	return m.list.SetItems(items)
}

// Reload refreshes the list with the store's current filter.
func (m Model) Reload() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := s.RefreshCurrent(ctx)
		return LoadedMsg{Err: err}
	}
}

// ApplyWindow refreshes with a date window.
func (m Model) ApplyWindow(kind feed.WindowKind, start, end string) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := s.ApplyDateFilter(ctx, kind, start, end)
		return LoadedMsg{Err: err}
	}
}

// ShowArchived switches between the active and archived views.
func (m Model) ShowArchived(archived bool) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := s.ShowArchived(ctx, archived)
		return LoadedMsg{Err: err}
	}
}

// Mutate returns a tea.Cmd that runs action against the store.
func Mutate(s *feed.Store, action Action, id int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		var err error
		switch action {
		case ActionArchive:
			err = s.Archive(ctx, id)
		case ActionDelete:
			err = s.Remove(ctx, id)
		case ActionConfirm:
			err = s.SetActionStatus(ctx, id, model.ActionConfirmed)
		case ActionReject:
			err = s.SetActionStatus(ctx, id, model.ActionRejected)
		default:
			err = fmt.Errorf("unknown action %q", action)
		}
		return ActionDoneMsg{Action: action, ID: id, Err: err}
	}
}

// View renders the list view.
func (m Model) View() string {
	if m.searchMode || m.term != "" {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		if !m.searchMode {
			searchBar = theme.HelpStyle.Padding(0, 1).Render("filter: " + m.term)
		}
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when the list is empty.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loading:
		return style.Render("Loading notifications...")
	case m.loadErr != nil:
		return style.Foreground(theme.ColorRed).Render(
			"Could not load notifications.\n\nPress r to retry.",
		)
	default:
		return style.Render("No notifications.\n\nPress n to compose one.")
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
