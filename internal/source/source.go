package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nhle/labordesk/internal/model"
)

// ErrInvalidActionStatus is returned when a caller tries to submit an
// action status other than confirmed or rejected.
var ErrInvalidActionStatus = errors.New("action status must be confirmed or rejected")

// AuthError indicates that authentication has failed or expired.
// It is returned by the backend client when a 401 response is received.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// StatusError is returned for any other non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf(
		"unexpected status %d on %s %s: %s", e.Code, e.Method, e.Path, e.Body,
	)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// LiveFeed is a push channel of newly created notifications.
type LiveFeed interface {
	// Next blocks until the next notification arrives or the feed fails.
	Next() (model.Notification, error)

	// Close tears down the underlying connection.
	Close() error
}

// NotificationSource defines the contract of the back-office notification
// API as seen by the client.
type NotificationSource interface {
	// List returns notifications matching the filter.
	List(ctx context.Context, filter model.ListFilter) ([]model.Notification, error)

	// ListGrouped returns server-computed summaries over the last days.
	ListGrouped(ctx context.Context, days int) ([]model.GroupedNotification, error)

	// Create submits a notification as a JSON body.
	Create(ctx context.Context, req model.CreateRequest) (*model.Notification, error)

	// CreateWithAttachment submits a notification as a multipart form with
	// an optional file part.
	CreateWithAttachment(
		ctx context.Context,
		req model.CreateRequest,
		file *model.Upload,
	) (*model.Notification, error)

	// Archive soft-excludes a notification from the active view.
	Archive(ctx context.Context, id int64) error

	// Remove hard-deletes a notification.
	Remove(ctx context.Context, id int64) error

	// SetActionStatus resolves an action-required notification.
	SetActionStatus(ctx context.Context, id int64, status model.ActionStatus) error

	// OpenLiveFeed dials the push channel once.
	OpenLiveFeed(ctx context.Context) (LiveFeed, error)
}
