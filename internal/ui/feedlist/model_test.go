package feedlist

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/labordesk/internal/feed"
	"github.com/nhle/labordesk/internal/keys"
	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/tests/testutil"
)

func TestResolveIcon(t *testing.T) {
	tests := []struct {
		name  string
		n     model.Notification
		icon  string
		emoji bool
		sym   string
	}{
		{"emoji wins", model.Notification{Emoji: "⚠️", Icon: "info", Type: model.TypePermit}, "", true, "⚠️"},
		{"named icon", model.Notification{Icon: "alert", Type: model.TypePermit}, "alert", false, "⚑"},
		{"unknown icon falls back to type", model.Notification{Icon: "rocket", Type: model.TypePassport}, "assignment", false, "☑"},
		{"passport", model.Notification{Type: model.TypePassport}, "assignment", false, "☑"},
		{"permit", model.Notification{Type: model.TypePermit}, "description", false, "✎"},
		{"general", model.Notification{Type: model.TypeGeneral}, "info", false, "ⓘ"},
		{"unknown type", model.Notification{Type: "payroll"}, "info", false, "ⓘ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := ResolveIcon(tt.n)
			assert.Equal(t, tt.icon, g.Icon)
			assert.Equal(t, tt.emoji, g.Emoji)
			assert.Equal(t, tt.sym, g.Symbol)
		})
	}
}

func TestResolveIconKeepsColor(t *testing.T) {
	g := ResolveIcon(model.Notification{Icon: "info", Color: "#e53935"})
	assert.Equal(t, "#e53935", g.Color)
	assert.Contains(t, g.Render(), "ⓘ")
}

func TestActionControls(t *testing.T) {
	assert.Empty(t, ActionControls(model.Notification{}))
	assert.Contains(t, ActionControls(model.Notification{ActionRequired: "confirm"}), "[y] confirm")
	assert.Contains(t, ActionControls(model.Notification{
		ActionRequired: "confirm", ActionStatus: model.ActionPending,
	}), "[x] reject")

	resolved := ActionControls(model.Notification{
		ActionRequired: "confirm", ActionStatus: model.ActionRejected,
	})
	assert.Contains(t, resolved, "rejected")
	assert.NotContains(t, resolved, "[y]")
}

func TestRenderRow(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	row := RenderRow(NotificationItem{
		N: model.Notification{
			Message: "Visa expired", Type: model.TypePermit,
			ExpiresAt: &past, Attachment: "/uploads/a.pdf",
		},
		Expired: true,
	}, false)
	assert.Contains(t, row, "Visa expired")
	assert.Contains(t, row, "expired")
	assert.Contains(t, row, "📎")
	assert.Contains(t, row, "permit")
}

func newLoadedModel(t *testing.T, src *testutil.FakeSource) (Model, *feed.Store) {
	t.Helper()
	s := feed.New(src, "", nil)
	m := New(s, keys.DefaultKeyMap(), 100, 30)

	msg := m.Reload()()
	loaded, ok := msg.(LoadedMsg)
	require.True(t, ok)
	require.NoError(t, loaded.Err)
	m, _ = m.Update(loaded)
	return m, s
}

func TestSelectMarksRead(t *testing.T) {
	src := &testutil.FakeSource{Items: []model.Notification{
		{ID: 1, Message: "first"}, {ID: 2, Message: "second"},
	}}
	m, s := newLoadedModel(t, src)
	assert.Equal(t, 2, s.UnreadCount())

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, 1, s.UnreadCount())

	n, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, int64(1), n.ID)
}

func TestSearchAndMarkVisibleRead(t *testing.T) {
	src := &testutil.FakeSource{Items: []model.Notification{
		{ID: 1, Message: "Permit renewal"}, {ID: 2, Message: "Lunch"}, {ID: 3, Message: "permit photo"},
	}}
	m, s := newLoadedModel(t, src)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	assert.True(t, m.Searching())
	for _, r := range "permit" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.Searching())
	assert.Equal(t, "permit", m.Term())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	assert.Equal(t, 1, s.UnreadCount(), "only the hidden item stays unread")
	assert.Contains(t, m.View(), "permit")
}

func TestArchiveFailureKeepsItem(t *testing.T) {
	src := &testutil.FakeSource{Items: []model.Notification{{ID: 42, Message: "contract"}}}
	m, s := newLoadedModel(t, src)
	src.ArchiveErr = errors.New("500 Internal Server Error")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	require.NotNil(t, cmd)
	done, ok := cmd().(ActionDoneMsg)
	require.True(t, ok)
	assert.Equal(t, ActionArchive, done.Action)
	assert.Error(t, done.Err)
	_, present := s.Get(42)
	assert.True(t, present)

	src.ArchiveErr = nil
	done = Mutate(s, ActionArchive, 42)().(ActionDoneMsg)
	require.NoError(t, done.Err)
	_, present = s.Get(42)
	assert.False(t, present)
}

func TestConfirmOnlyWhilePending(t *testing.T) {
	src := &testutil.FakeSource{Items: []model.Notification{
		{ID: 1, ActionRequired: "confirm", ActionStatus: model.ActionConfirmed},
	}}
	m, _ := newLoadedModel(t, src)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	assert.Nil(t, cmd, "resolved actions ignore the key")
}

func TestStaleLoadIsIgnored(t *testing.T) {
	src := &testutil.FakeSource{}
	m, _ := newLoadedModel(t, src)
	m, cmd := m.Update(LoadedMsg{Err: feed.ErrStaleResponse})
	assert.Nil(t, cmd)
	assert.NotContains(t, m.View(), "Could not load")

	src.ListFunc = func(context.Context, model.ListFilter) ([]model.Notification, error) {
		return nil, errors.New("down")
	}
	m, _ = m.Update(m.Reload()())
	assert.Contains(t, m.View(), "Could not load")
}
