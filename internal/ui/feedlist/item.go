package feedlist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/theme"
)

// Glyph is the resolved leading symbol of a notification row.
type Glyph struct {
	Symbol string
	// Icon is the mapped icon name, empty for emoji glyphs.
	Icon  string
	Emoji bool
	Color string
}

// iconGlyphs maps the known icon names to terminal symbols.
var iconGlyphs = map[string]string{
	"info":        "ⓘ",
	"assignment":  "☑",
	"description": "✎",
	"alert":       "⚑",
}

// ResolveIcon picks the glyph for n: its emoji if set, else its named
// icon, else the default icon for its type.
func ResolveIcon(n model.Notification) Glyph {
	deco := model.DecorationOf(n)
	switch deco.Kind {
	case model.DecorationEmoji:
		return Glyph{Symbol: deco.Value, Emoji: true, Color: deco.Color}
	case model.DecorationIcon:
		if sym, ok := iconGlyphs[deco.Value]; ok {
			return Glyph{Symbol: sym, Icon: deco.Value, Color: deco.Color}
		}
	}

	name := "info"
	switch n.Type {
	case model.TypePassport:
		name = "assignment"
	case model.TypePermit:
		name = "description"
	}
	return Glyph{Symbol: iconGlyphs[name], Icon: name, Color: n.Color}
}

// Render returns the glyph styled with its tint.
func (g Glyph) Render() string {
	if g.Emoji {
		return g.Symbol
	}
	return theme.Tint(g.Color, theme.ColorBlue).Render(g.Symbol)
}

// NotificationItem wraps a model.Notification for a bubbles/list, with
// the read state resolved against the local overlay.
type NotificationItem struct {
	N       model.Notification
	Read    bool
	Expired bool
}

// FilterValue returns the string used for filtering.
func (i NotificationItem) FilterValue() string { return i.N.Message }

// Title returns the message for the list.
func (i NotificationItem) Title() string { return i.N.Message }

// Description returns a short summary line for the list.
func (i NotificationItem) Description() string {
	parts := []string{string(i.N.Type), relativeTime(i.N.CreatedAt)}
	return strings.Join(parts, " | ")
}

// ActionControls returns the inline action affordance: key hints while
// pending, a static label once resolved, and "" when no action applies.
func ActionControls(n model.Notification) string {
	if n.ActionRequired == "" {
		return ""
	}
	if n.NeedsAction() {
		return theme.ActionStyle(string(model.ActionPending)).Render("[y] confirm / [x] reject")
	}
	return theme.ActionStyle(string(n.ActionStatus)).Render(string(n.ActionStatus))
}

// ItemDelegate implements list.ItemDelegate for notification rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single list item line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(NotificationItem)
	if !ok {
		return
	}
	fmt.Fprint(w, RenderRow(it, index == m.Index()))
}

// RenderRow renders one notification row.
func RenderRow(it NotificationItem, selected bool) string {
	n := it.N

	msgStyle := theme.UnreadStyle
	if it.Read {
		msgStyle = theme.ReadStyle
	}
	message := msgStyle.Render(n.Message)

	typeBadge := theme.TypeLabelStyle(string(n.Type)).Render(string(n.Type))

	extras := ""
	if ctl := ActionControls(n); ctl != "" {
		extras += " " + ctl
	}
	if n.Attachment != "" {
		extras += lipgloss.NewStyle().Foreground(theme.ColorGray).Render(" 📎")
	}
	if it.Expired {
		extras += theme.DimmedStyle.Render(" expired")
	}

	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(n.CreatedAt))

	line := fmt.Sprintf("%s %s %s%s  %s",
		ResolveIcon(n).Render(), typeBadge, message, extras, timeStr)

	if it.Expired {
		line = theme.DimmedStyle.Render(line)
	}
	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
