package app

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/labordesk/internal/compose"
	"github.com/nhle/labordesk/internal/feed"
	"github.com/nhle/labordesk/internal/keys"
	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/source"
	appsync "github.com/nhle/labordesk/internal/sync"
	"github.com/nhle/labordesk/internal/ui"
	"github.com/nhle/labordesk/internal/ui/command"
	"github.com/nhle/labordesk/internal/ui/composer"
	"github.com/nhle/labordesk/internal/ui/detail"
	"github.com/nhle/labordesk/internal/ui/feedlist"
	"github.com/nhle/labordesk/internal/ui/grouped"
	helpview "github.com/nhle/labordesk/internal/ui/help"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewGrouped
	ViewCompose
	ViewHelp
	ViewCommand
)

// initialLoadMsg is sent when the first list and grouped fetch complete.
type initialLoadMsg struct {
	listErr  error
	groupErr error
}

// Options wires the root model to its collaborators.
type Options struct {
	Source        source.NotificationSource
	Config        *model.AppConfig
	Logger        *zap.Logger
	AttachmentURL func(string) string
}

// Model is the root Bubble Tea model that manages view routing, layout,
// and the session's single notification store.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	store        *feed.Store
	poller       *appsync.Poller
	log          *zap.Logger
	groupedDays  int
	archived     bool
	feedStatus   appsync.FeedStatus
	toast        *ui.Toast
	toastSeq     int
	ready        bool

	feedList    feedlist.Model
	detail      detail.Model
	grouped     grouped.Model
	composer    composer.Model
	helpView    helpview.Model
	commandView command.Model
}

// New creates the root model. All views share one feed.Store.
func New(opts Options) Model {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	k := keys.DefaultKeyMap()

	store := feed.New(opts.Source, cfg.Backend.Role, log)
	poller := appsync.New(store, opts.Source, appsync.Options{
		PollInterval: time.Duration(cfg.Feed.PollIntervalSec) * time.Second,
		Logger:       log,
	})

	composeOpts := compose.Options{
		RequireTarget:          cfg.Feed.RequireTarget,
		LegacyMultipartRouting: cfg.Feed.LegacyMultipartRouting,
	}

	return Model{
		currentView: ViewList,
		keys:        k,
		store:       store,
		poller:      poller,
		log:         log,
		groupedDays: cfg.Feed.GroupedDays,
		feedList:    feedlist.New(store, k, 80, 24),
		detail:      detail.New(k, opts.AttachmentURL, 80, 24),
		grouped:     grouped.New(store, k, cfg.Feed.GroupedDays, 80, 24),
		composer:    composer.New(opts.Source, composeOpts, cfg.Feed.Roles, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
	}
}

// Init loads the list and grouped summaries concurrently and starts the
// live feed.
func (m Model) Init() tea.Cmd {
	s, days := m.store, m.groupedDays
	load := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		listErr, groupErr := s.Load(ctx, days)
		return initialLoadMsg{listErr: listErr, groupErr: groupErr}
	}
	return tea.Batch(load, m.poller.Start())
}

// Shutdown stops the live feed and background refresh.
func (m Model) Shutdown() {
	m.poller.Stop()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.feedList.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.grouped.SetSize(w, h)
		m.composer.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case initialLoadMsg:
		var cmd tea.Cmd
		m.feedList, cmd = m.feedList.Update(feedlist.LoadedMsg{Err: msg.listErr})
		m.grouped, _ = m.grouped.Update(grouped.LoadedMsg{Err: msg.groupErr})
		switch {
		case msg.listErr != nil && !errors.Is(msg.listErr, feed.ErrStaleResponse):
			return m, tea.Batch(cmd, m.showToast(ui.Failure("Could not load notifications", msg.listErr)))
		case msg.groupErr != nil:
			return m, tea.Batch(cmd, m.showToast(ui.Failure("Could not load grouped summaries", msg.groupErr)))
		}
		return m, cmd

	case feedlist.LoadedMsg:
		var cmd tea.Cmd
		m.feedList, cmd = m.feedList.Update(msg)
		if msg.Err != nil && !errors.Is(msg.Err, feed.ErrStaleResponse) {
			return m, tea.Batch(cmd, m.showToast(ui.Failure("Could not load notifications", msg.Err)))
		}
		return m, cmd

	case feedlist.SelectedMsg:
		n, ok := m.store.Get(msg.ID)
		if !ok {
			return m, nil
		}
		m.detail.SetNotification(n)
		m.previousView = m.currentView
		m.currentView = ViewDetail
		return m, nil

	case feedlist.ActionDoneMsg:
		return m.handleActionDone(msg)

	case detail.ActionMsg:
		return m, feedlist.Mutate(m.store, msg.Action, msg.ID)

	case detail.BackMsg, grouped.BackMsg, composer.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case grouped.LoadedMsg:
		var cmd tea.Cmd
		m.grouped, cmd = m.grouped.Update(msg)
		if msg.Err != nil {
			return m, tea.Batch(cmd, m.showToast(ui.Failure("Could not load grouped view", msg.Err)))
		}
		return m, cmd

	case composer.CreatedMsg:
		m.store.Prepend(msg.Notification)
		m.currentView = ViewList
		return m, tea.Batch(m.feedList.Rebuild(), m.showToast(ui.Success("Notification sent")))

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(command.Command(msg))

	case appsync.PushMsg:
		return m, tea.Batch(m.feedList.Rebuild(), m.poller.WaitForNextResult())

	case appsync.RefreshResultMsg:
		var cmd tea.Cmd
		m.feedList, cmd = m.feedList.Update(feedlist.LoadedMsg{Err: msg.Error})
		return m, tea.Batch(cmd, m.poller.WaitForNextResult())

	case appsync.StatusMsg:
		m.feedStatus = msg.Status
		return m, m.poller.WaitForNextResult()

	case appsync.AuthErrorMsg:
		return m, tea.Batch(
			m.showToast(ui.Toast{Kind: ui.ToastError, Text: msg.Message}),
			m.poller.WaitForNextResult(),
		)

	case ui.ToastExpiredMsg:
		if m.toast != nil && m.toast.ID == msg.ID {
			m.toast = nil
		}
		return m, nil

	case tea.KeyMsg:
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that switch views. Views with text input
// receive every key except ctrl+c.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		m.poller.Stop()
		return m, tea.Quit, true
	}

	switch m.currentView {
	case ViewCompose:
		return m, nil, false
	case ViewCommand:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return m, nil, true
		}
		return m, nil, false
	case ViewHelp:
		if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return m, nil, true
		}
		return m, nil, false
	case ViewList:
		if m.feedList.Searching() {
			return m, nil, false
		}
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus(), true
	}

	if m.currentView != ViewList {
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.poller.Stop()
		return m, tea.Quit, true
	case key.Matches(msg, m.keys.Refresh):
		return m, m.feedList.Reload(), true
	case key.Matches(msg, m.keys.ComposeNew):
		return m, m.openComposer(), true
	case key.Matches(msg, m.keys.Grouped):
		return m, m.openGrouped(), true
	case key.Matches(msg, m.keys.Archived):
		m.archived = !m.archived
		return m, m.feedList.ShowArchived(m.archived), true
	case key.Matches(msg, m.keys.CycleWindow):
		return m, m.feedList.ApplyWindow(nextWindow(m.store.Window()), "", ""), true
	}
	return m, nil, false
}

// handleActionDone turns a mutation result into a toast and keeps the
// detail view consistent with the store.
func (m Model) handleActionDone(msg feedlist.ActionDoneMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.feedList, cmd = m.feedList.Update(msg)

	if msg.Err != nil {
		return m, tea.Batch(cmd, m.showToast(ui.Failure(actionFailure(msg.Action), msg.Err)))
	}

	if cur, ok := m.detail.Current(); ok && cur.ID == msg.ID {
		if n, still := m.store.Get(msg.ID); still {
			m.detail.SetNotification(n)
		} else {
			m.detail.Clear()
			if m.currentView == ViewDetail {
				m.currentView = ViewList
			}
		}
	}
	return m, tea.Batch(cmd, m.showToast(ui.Success(actionSuccess(msg.Action))))
}

func (m *Model) openComposer() tea.Cmd {
	m.previousView = m.currentView
	m.currentView = ViewCompose
	return m.composer.Start()
}

func (m *Model) openGrouped() tea.Cmd {
	m.previousView = m.currentView
	m.currentView = ViewGrouped
	return m.grouped.Load()
}

// showToast replaces the current toast and schedules its expiry.
func (m *Model) showToast(t ui.Toast) tea.Cmd {
	m.toastSeq++
	t.ID = m.toastSeq
	m.toast = &t
	return t.Expire()
}

// Toast returns the toast currently displayed, if any.
func (m Model) Toast() (ui.Toast, bool) {
	if m.toast == nil {
		return ui.Toast{}, false
	}
	return *m.toast, true
}

// Store returns the session store.
func (m Model) Store() *feed.Store {
	return m.store
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.feedList, cmd = m.feedList.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewGrouped:
		m.grouped, cmd = m.grouped.Update(msg)
	case ViewCompose:
		m.composer, cmd = m.composer.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("LaborDesk", ui.HeaderInfo{
		Unread: m.store.UnreadCount(),
		Window: m.windowLabel(),
		Feed:   m.poller.Status().State.String(),
	})
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.toast)

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.feedList.View()
	case ViewDetail:
		return m.detail.View()
	case ViewGrouped:
		return m.grouped.View()
	case ViewCompose:
		return m.composer.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

func (m Model) windowLabel() string {
	label := string(m.store.Window())
	if m.archived {
		label += " (archived)"
	}
	return label
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewDetail:
		return "esc back | a archive | d delete | y confirm | x reject | j/k scroll"
	case ViewGrouped:
		return "enter show details | j/k move | esc back"
	case ViewCompose:
		return "enter next | shift+tab back | esc cancel"
	default:
		return "q quit | ? help | n new | / search | m mark read | tab window | z archived | g grouped"
	}
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(c command.Command) tea.Cmd {
	switch c.Name {
	case "today", "week", "month", "all":
		return m.feedList.ApplyWindow(feed.WindowKind(c.Name), "", "")
	case "custom":
		return m.feedList.ApplyWindow(feed.WindowCustom, c.Args[0], c.Args[1])
	case "archived":
		m.archived = true
		return m.feedList.ShowArchived(true)
	case "active":
		m.archived = false
		return m.feedList.ShowArchived(false)
	case "grouped":
		return m.openGrouped()
	case "compose":
		return m.openComposer()
	case "refresh":
		return m.feedList.Reload()
	case "quit":
		m.poller.Stop()
		return tea.Quit
	default:
		return nil
	}
}
