package model

import (
	"strings"
	"time"
)

// NotificationType is the coarse category of a notification. It drives the
// default iconography when no explicit icon or emoji is set.
type NotificationType string

const (
	TypeGeneral  NotificationType = "general"
	TypePermit   NotificationType = "permit"
	TypePassport NotificationType = "passport"
)

// ActionStatus records how a viewer resolved an action-required notification.
type ActionStatus string

const (
	ActionPending   ActionStatus = "pending"
	ActionConfirmed ActionStatus = "confirmed"
	ActionRejected  ActionStatus = "rejected"
)

// Valid reports whether s is a status a viewer may submit.
func (s ActionStatus) Valid() bool {
	return s == ActionConfirmed || s == ActionRejected
}

// Notification is a server-owned alert shown in the back-office feed.
type Notification struct {
	// ID is assigned by the server and never changes.
	ID int64 `json:"id"`

	// Message is the display text.
	Message string `json:"message"`

	// Type is the coarse category (general, permit, passport, ...).
	Type NotificationType `json:"type"`

	// CreatedAt is the server-assigned creation time.
	CreatedAt time.Time `json:"created_at"`

	// Read is the server-tracked global read flag. The local read overlay
	// kept by the feed store is tracked separately.
	Read bool `json:"read"`

	// ExpiresAt is an optional expiry time.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Archived items are excluded from the default active view.
	Archived bool `json:"archived,omitempty"`

	// AllowedRoles is a comma-separated list of viewer roles. Enforced by
	// the server; the client only passes it through on create.
	AllowedRoles string `json:"allowed_roles,omitempty"`

	// Icon, Color and Emoji are presentation overrides. Emoji wins over
	// Icon when both are set.
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
	Emoji string `json:"emoji,omitempty"`

	// ActionRequired names the interactive action (e.g. "confirm").
	ActionRequired string `json:"action_required,omitempty"`

	// ActionStatus is empty or pending until the viewer resolves it.
	ActionStatus ActionStatus `json:"action_status,omitempty"`

	// Attachment is a server-relative path to an uploaded file.
	Attachment string `json:"attachment,omitempty"`

	// ScheduledAt delays delivery until the given time.
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// IsExpired reports whether the notification has an expiry in the past.
func (n Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// NeedsAction reports whether the notification still awaits a
// confirm/reject decision.
func (n Notification) NeedsAction() bool {
	if n.ActionRequired == "" {
		return false
	}
	return n.ActionStatus == "" || n.ActionStatus == ActionPending
}

// Roles splits AllowedRoles into trimmed, non-empty role names.
func (n Notification) Roles() []string {
	return SplitRoles(n.AllowedRoles)
}

// SplitRoles parses a comma-separated role list.
func SplitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		r = strings.TrimSpace(r)
		if r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// GroupedNotification is a read-only server-computed summary of
// notifications sharing a group key or type.
type GroupedNotification struct {
	GroupKey    string           `json:"group_key,omitempty"`
	Type        NotificationType `json:"type,omitempty"`
	Count       int              `json:"count"`
	LastCreated time.Time        `json:"last_created"`
	Messages    []string         `json:"messages"`
}

// Key returns the group key, falling back to the type.
func (g GroupedNotification) Key() string {
	if g.GroupKey != "" {
		return g.GroupKey
	}
	return string(g.Type)
}

// ListFilter holds the optional query parameters for listing
// notifications. Empty fields are omitted from the request.
type ListFilter struct {
	Archived  *bool
	StartDate string
	EndDate   string
	UserRole  string
}

// CreateRequest is the payload for creating a notification, sent either
// as a JSON body or as the "notification" part of a multipart request.
type CreateRequest struct {
	Message      string           `json:"message"`
	Type         NotificationType `json:"type"`
	AllowedRoles string           `json:"allowed_roles"`
	Icon         string           `json:"icon,omitempty"`
	Color        string           `json:"color,omitempty"`
	Emoji        string           `json:"emoji,omitempty"`
	ScheduledAt  *time.Time       `json:"scheduled_at,omitempty"`
}

// Upload is a file attached to a multipart create request.
type Upload struct {
	Name    string
	Content []byte
}
