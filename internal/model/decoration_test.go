package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDecoration(t *testing.T) {
	d, err := NewDecoration("", "⚠️", "#e53935")
	require.NoError(t, err)
	assert.Equal(t, DecorationEmoji, d.Kind)
	assert.Equal(t, "⚠️", d.Value)

	d, err = NewDecoration("alert", "", "")
	require.NoError(t, err)
	assert.Equal(t, DecorationIcon, d.Kind)

	d, err = NewDecoration("", "", "")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = NewDecoration("alert", "⚠️", "")
	assert.ErrorIs(t, err, ErrConflictingDecoration)
}

func TestDecorationApply(t *testing.T) {
	req := CreateRequest{Icon: "info", Emoji: "x"}
	EmojiDecoration("🔔", "#000").Apply(&req)
	assert.Equal(t, "", req.Icon)
	assert.Equal(t, "🔔", req.Emoji)
	assert.Equal(t, "#000", req.Color)
}

func TestDecorationOfEmojiDominates(t *testing.T) {
	d := DecorationOf(Notification{Icon: "alert", Emoji: "⚠️"})
	assert.Equal(t, DecorationEmoji, d.Kind)
	assert.Equal(t, "⚠️", d.Value)
}
