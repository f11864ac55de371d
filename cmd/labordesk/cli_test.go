package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/labordesk/internal/model"
)

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateBaseURL(t *testing.T) {
	assert.NoError(t, validateBaseURL("http://localhost:8085"))
	assert.NoError(t, validateBaseURL("https://hr.example.com/api"))
	assert.Error(t, validateBaseURL("localhost:8085"))
	assert.Error(t, validateBaseURL("ftp://hr.example.com"))
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]model.Notification{
		{
			ID:             7,
			Message:        "Confirm passport copy",
			Type:           model.TypePassport,
			ActionRequired: "confirm",
			Attachment:     "/uploads/x-passport.pdf",
			CreatedAt:      time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		},
	})

	assert.Contains(t, out, "Confirm passport copy")
	assert.Contains(t, out, "passport")
	assert.Contains(t, out, "action: confirm")
	assert.Contains(t, out, "📎")
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"list", "grouped", "send", "archive", "delete", "action", "devserver", "login"} {
		assert.True(t, names[want], want)
	}
}
