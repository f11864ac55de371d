package detail

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/labordesk/internal/keys"
	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/source/backend"
	"github.com/nhle/labordesk/internal/ui/feedlist"
)

func newDetail() Model {
	resolve := func(p string) string { return backend.AttachmentURL("http://hr.local", p) }
	return New(keys.DefaultKeyMap(), resolve, 100, 40)
}

func TestDetailShowsAttachmentLinkAndControls(t *testing.T) {
	m := newDetail()
	m.SetNotification(model.Notification{
		ID:             5,
		Message:        "Sign the permit form",
		Type:           model.TypePermit,
		AllowedRoles:   "hr,admin",
		Attachment:     "/uploads/form.pdf",
		ActionRequired: "confirm",
	})

	view := m.View()
	assert.Contains(t, view, "Sign the permit form")
	assert.Contains(t, view, "http://hr.local/uploads/form.pdf")
	assert.Contains(t, view, "hr, admin")
	assert.Contains(t, view, "[y] confirm")
}

func TestDetailKeys(t *testing.T) {
	m := newDetail()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	assert.Nil(t, cmd, "no notification, no action")

	m.SetNotification(model.Notification{ID: 9, ActionRequired: "confirm"})
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	require.NotNil(t, cmd)
	assert.Equal(t, ActionMsg{Action: feedlist.ActionReject, ID: 9}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, BackMsg{}, cmd())

	m.SetNotification(model.Notification{ID: 9, ActionRequired: "confirm", ActionStatus: model.ActionConfirmed})
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "confirmed")
}
