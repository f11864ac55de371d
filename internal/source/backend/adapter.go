package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/source"
)

// Adapter implements source.NotificationSource against the back-office
// REST API and its WebSocket live feed.
type Adapter struct {
	client *Client
	wsURL  string
	token  string
	log    *zap.Logger
}

// Options configures an Adapter.
type Options struct {
	BaseURL string
	WSURL   string
	Token   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewAdapter creates a new backend adapter. When WSURL is empty it is
// derived from BaseURL.
func NewAdapter(opts Options) (*Adapter, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	wsURL := opts.WSURL
	if wsURL == "" {
		derived, err := model.DeriveWSURL(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("deriving live feed url: %w", err)
		}
		wsURL = derived
	}
	return &Adapter{
		client: NewClient(opts.BaseURL, opts.Token, opts.Timeout, log),
		wsURL:  wsURL,
		token:  opts.Token,
		log:    log,
	}, nil
}

// AttachmentURL resolves a server-relative attachment path to a full
// download URL.
func (a *Adapter) AttachmentURL(path string) string {
	return AttachmentURL(a.client.BaseURL(), path)
}

// AttachmentURL joins a base URL and a server-relative attachment path.
func AttachmentURL(baseURL, path string) string {
	if path == "" {
		return ""
	}
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if path[0] != '/' {
		path = "/" + path
	}
	return baseURL + path
}

// List issues GET /notifications with only the filters that are set.
func (a *Adapter) List(
	ctx context.Context,
	filter model.ListFilter,
) ([]model.Notification, error) {
	var items []model.Notification
	if err := a.client.Get(ctx, pathNotifications, listQuery(filter), &items); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return items, nil
}

// listQuery encodes the present fields of a filter as query parameters.
func listQuery(filter model.ListFilter) url.Values {
	q := url.Values{}
	if filter.Archived != nil {
		q.Set("archived", strconv.FormatBool(*filter.Archived))
	}
	if filter.StartDate != "" {
		q.Set("start_date", filter.StartDate)
	}
	if filter.EndDate != "" {
		q.Set("end_date", filter.EndDate)
	}
	if filter.UserRole != "" {
		q.Set("user_role", filter.UserRole)
	}
	return q
}

// ListGrouped issues GET /notifications/grouped?days=N.
func (a *Adapter) ListGrouped(
	ctx context.Context,
	days int,
) ([]model.GroupedNotification, error) {
	q := url.Values{}
	q.Set("days", strconv.Itoa(days))

	var groups []model.GroupedNotification
	if err := a.client.Get(ctx, pathGrouped, q, &groups); err != nil {
		return nil, fmt.Errorf("listing grouped notifications: %w", err)
	}
	return groups, nil
}

// Create posts a notification as a JSON body.
func (a *Adapter) Create(
	ctx context.Context,
	req model.CreateRequest,
) (*model.Notification, error) {
	var created model.Notification
	if err := a.client.Post(ctx, pathNotifications, req, &created); err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	return &created, nil
}

// CreateWithAttachment posts a multipart form with a "notification" JSON
// part and, when file is non-nil, a "file" part.
func (a *Adapter) CreateWithAttachment(
	ctx context.Context,
	req model.CreateRequest,
	file *model.Upload,
) (*model.Notification, error) {
	body, contentType, err := encodeMultipart(req, file)
	if err != nil {
		return nil, fmt.Errorf("encoding multipart body: %w", err)
	}

	var created model.Notification
	if err := a.client.PostRaw(ctx, pathWithAttachment, body, contentType, &created); err != nil {
		return nil, fmt.Errorf("creating notification with attachment: %w", err)
	}
	return &created, nil
}

// encodeMultipart builds the two-part form body.
func encodeMultipart(req model.CreateRequest, file *model.Upload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if file != nil {
		fw, err := w.CreateFormFile("file", file.Name)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(file.Content); err != nil {
			return nil, "", err
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, "", err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="notification"`)
	h.Set("Content-Type", contentTypeJSON)
	pw, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := pw.Write(payload); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// Archive posts to the archive sub-resource with no body.
func (a *Adapter) Archive(ctx context.Context, id int64) error {
	if err := a.client.Post(ctx, pathArchive(id), nil, nil); err != nil {
		return fmt.Errorf("archiving notification %d: %w", id, err)
	}
	return nil
}

// Remove deletes a notification by id.
func (a *Adapter) Remove(ctx context.Context, id int64) error {
	if err := a.client.Delete(ctx, pathNotification(id)); err != nil {
		return fmt.Errorf("deleting notification %d: %w", id, err)
	}
	return nil
}

// SetActionStatus posts the viewer's decision as a query parameter.
func (a *Adapter) SetActionStatus(
	ctx context.Context,
	id int64,
	status model.ActionStatus,
) error {
	if !status.Valid() {
		return fmt.Errorf("notification %d: %w", id, source.ErrInvalidActionStatus)
	}
	q := url.Values{}
	q.Set("action_status", string(status))

	if err := a.client.Post(ctx, withQuery(pathAction(id), q), nil, nil); err != nil {
		return fmt.Errorf("setting action status on %d: %w", id, err)
	}
	return nil
}

// OpenLiveFeed dials the live feed endpoint once.
func (a *Adapter) OpenLiveFeed(ctx context.Context) (source.LiveFeed, error) {
	feed, err := dialFeed(ctx, a.wsURL, a.token, a.log)
	if err != nil {
		return nil, err
	}
	return feed, nil
}
