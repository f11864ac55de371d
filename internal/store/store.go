package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/labordesk/internal/model"
)

// ErrNotFound is returned when no notification has the requested id.
var ErrNotFound = errors.New("notification not found")

// NotificationFilter controls which notifications ListNotifications
// returns. Zero-valued fields do not filter.
type NotificationFilter struct {
	// Archived selects the archived view instead of the active one.
	Archived bool

	// Start and End bound created_at as [Start, End).
	Start *time.Time
	End   *time.Time

	// Role hides notifications whose allowed_roles is set and does not
	// contain it.
	Role string

	// Now hides notifications scheduled after it. Zero means time.Now.
	Now time.Time
}

// Store defines the persistence interface for the development backend.
type Store interface {
	CreateNotification(ctx context.Context, n model.Notification) (*model.Notification, error)
	GetNotification(ctx context.Context, id int64) (*model.Notification, error)
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error)
	GroupNotifications(ctx context.Context, since time.Time) ([]model.GroupedNotification, error)
	ArchiveNotification(ctx context.Context, id int64) error
	DeleteNotification(ctx context.Context, id int64) error
	SetActionStatus(ctx context.Context, id int64, status model.ActionStatus) error
	MarkNotificationRead(ctx context.Context, id int64) error
	Close() error
}
