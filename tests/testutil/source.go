package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/source"
)

// FakeSource is an in-memory source.NotificationSource. Hooks, when set,
// replace the default behaviour of the matching method.
type FakeSource struct {
	mu sync.Mutex

	Items  []model.Notification
	Groups []model.GroupedNotification
	NextID int64

	ListFunc     func(ctx context.Context, f model.ListFilter) ([]model.Notification, error)
	GroupedErr   error
	ArchiveErr   error
	RemoveErr    error
	ActionErr    error
	FeedFunc     func(ctx context.Context) (source.LiveFeed, error)
	ListCalls    []model.ListFilter
	Created      []model.CreateRequest
	Uploads      []*model.Upload
	Multipart    int
	Archived     []int64
	Removed      []int64
	ActionStatus map[int64]model.ActionStatus
}

var _ source.NotificationSource = (*FakeSource)(nil)

func (f *FakeSource) List(ctx context.Context, filter model.ListFilter) ([]model.Notification, error) {
	f.mu.Lock()
	f.ListCalls = append(f.ListCalls, filter)
	hook := f.ListFunc
	items := append([]model.Notification(nil), f.Items...)
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx, filter)
	}
	return items, nil
}

// ListCallCount returns how many List calls have been made.
func (f *FakeSource) ListCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ListCalls)
}

func (f *FakeSource) ListGrouped(_ context.Context, _ int) ([]model.GroupedNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GroupedErr != nil {
		return nil, f.GroupedErr
	}
	return append([]model.GroupedNotification(nil), f.Groups...), nil
}

func (f *FakeSource) Create(_ context.Context, req model.CreateRequest) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Created = append(f.Created, req)
	return f.echo(req, ""), nil
}

func (f *FakeSource) CreateWithAttachment(
	_ context.Context,
	req model.CreateRequest,
	file *model.Upload,
) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Created = append(f.Created, req)
	f.Uploads = append(f.Uploads, file)
	f.Multipart++
	path := ""
	if file != nil {
		path = "/uploads/" + file.Name
	}
	return f.echo(req, path), nil
}

// echo must be called with mu held.
func (f *FakeSource) echo(req model.CreateRequest, attachment string) *model.Notification {
	f.NextID++
	return &model.Notification{
		ID:           f.NextID,
		Message:      req.Message,
		Type:         req.Type,
		AllowedRoles: req.AllowedRoles,
		Icon:         req.Icon,
		Color:        req.Color,
		Emoji:        req.Emoji,
		Attachment:   attachment,
		ScheduledAt:  req.ScheduledAt,
	}
}

func (f *FakeSource) Archive(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ArchiveErr != nil {
		return f.ArchiveErr
	}
	f.Archived = append(f.Archived, id)
	return nil
}

func (f *FakeSource) Remove(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	f.Removed = append(f.Removed, id)
	return nil
}

func (f *FakeSource) SetActionStatus(_ context.Context, id int64, status model.ActionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ActionErr != nil {
		return f.ActionErr
	}
	if f.ActionStatus == nil {
		f.ActionStatus = make(map[int64]model.ActionStatus)
	}
	f.ActionStatus[id] = status
	return nil
}

func (f *FakeSource) OpenLiveFeed(ctx context.Context) (source.LiveFeed, error) {
	f.mu.Lock()
	hook := f.FeedFunc
	f.mu.Unlock()
	if hook == nil {
		return nil, errors.New("live feed not configured")
	}
	return hook(ctx)
}

// ChanFeed is a LiveFeed driven by a channel. Closing the feed or closing
// the channel makes Next return an error.
type ChanFeed struct {
	C      chan model.Notification
	done   chan struct{}
	closer sync.Once
}

// NewChanFeed returns a feed with a buffered channel.
func NewChanFeed() *ChanFeed {
	return &ChanFeed{C: make(chan model.Notification, 8), done: make(chan struct{})}
}

func (c *ChanFeed) Next() (model.Notification, error) {
	select {
	case n, ok := <-c.C:
		if !ok {
			return model.Notification{}, errors.New("feed dropped")
		}
		return n, nil
	case <-c.done:
		return model.Notification{}, errors.New("feed closed")
	}
}

func (c *ChanFeed) Close() error {
	c.closer.Do(func() { close(c.done) })
	return nil
}
