package ui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/labordesk/internal/source"
	"github.com/nhle/labordesk/internal/theme"
)

// ToastDuration is how long a toast stays in the status bar.
const ToastDuration = 4 * time.Second

// ToastKind distinguishes success from failure toasts.
type ToastKind int

const (
	ToastSuccess ToastKind = iota
	ToastError
)

// Toast is a transient one-line status message.
type Toast struct {
	ID   int
	Kind ToastKind
	Text string
}

// ToastExpiredMsg clears the toast with the matching ID.
type ToastExpiredMsg struct {
	ID int
}

// Success returns a success toast.
func Success(text string) Toast {
	return Toast{Kind: ToastSuccess, Text: text}
}

// Failure flattens err into a single-line error toast prefixed by what.
func Failure(what string, err error) Toast {
	msg := strings.Join(strings.Fields(err.Error()), " ")
	if source.IsAuthError(err) {
		msg = "not authorized, run 'labordesk login'"
	}
	return Toast{Kind: ToastError, Text: what + ": " + msg}
}

// Render draws the toast text.
func (t Toast) Render() string {
	if t.Kind == ToastError {
		return theme.ToastErrorStyle.Render("✗ " + t.Text)
	}
	return theme.ToastSuccessStyle.Render("✓ " + t.Text)
}

// Expire returns a command that fires ToastExpiredMsg after ToastDuration.
func (t Toast) Expire() tea.Cmd {
	id := t.ID
	return tea.Tick(ToastDuration, func(time.Time) tea.Msg {
		return ToastExpiredMsg{ID: id}
	})
}
