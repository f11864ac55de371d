package model

import "errors"

// ErrConflictingDecoration is returned when both an icon and an emoji are
// supplied for the same notification.
var ErrConflictingDecoration = errors.New("icon and emoji are mutually exclusive")

// DecorationKind tags the variant held by a Decoration.
type DecorationKind int

const (
	DecorationNone DecorationKind = iota
	DecorationIcon
	DecorationEmoji
)

// Decoration is the visual override of a notification: nothing, a named
// icon, or an emoji glyph. Color is optional for both variants.
type Decoration struct {
	Kind  DecorationKind
	Value string
	Color string
}

// NoDecoration returns the empty decoration with an optional color.
func NoDecoration(color string) Decoration {
	return Decoration{Kind: DecorationNone, Color: color}
}

// IconDecoration returns an icon decoration.
func IconDecoration(name, color string) Decoration {
	return Decoration{Kind: DecorationIcon, Value: name, Color: color}
}

// EmojiDecoration returns an emoji decoration.
func EmojiDecoration(glyph, color string) Decoration {
	return Decoration{Kind: DecorationEmoji, Value: glyph, Color: color}
}

// NewDecoration builds a Decoration from raw form values, rejecting the
// combination of icon and emoji.
func NewDecoration(icon, emoji, color string) (Decoration, error) {
	switch {
	case icon != "" && emoji != "":
		return Decoration{}, ErrConflictingDecoration
	case emoji != "":
		return EmojiDecoration(emoji, color), nil
	case icon != "":
		return IconDecoration(icon, color), nil
	default:
		return NoDecoration(color), nil
	}
}

// IsZero reports whether the decoration carries no override at all.
func (d Decoration) IsZero() bool {
	return d.Kind == DecorationNone && d.Color == ""
}

// Apply writes the decoration into the wire fields of a create request.
func (d Decoration) Apply(req *CreateRequest) {
	req.Icon, req.Emoji = "", ""
	req.Color = d.Color
	switch d.Kind {
	case DecorationIcon:
		req.Icon = d.Value
	case DecorationEmoji:
		req.Emoji = d.Value
	}
}

// DecorationOf reads the decoration back from a notification. Emoji
// dominates when both fields are populated.
func DecorationOf(n Notification) Decoration {
	switch {
	case n.Emoji != "":
		return EmojiDecoration(n.Emoji, n.Color)
	case n.Icon != "":
		return IconDecoration(n.Icon, n.Color)
	default:
		return NoDecoration(n.Color)
	}
}
