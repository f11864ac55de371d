// Package feed holds the session-wide notification state: the list as last
// received from the server, the local read overlay, and the derived
// unread/search views.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/source"
)

// ErrStaleResponse is returned by Refresh when a newer refresh was issued
// while this one was in flight. The stale result is discarded.
var ErrStaleResponse = errors.New("list response superseded by a newer request")

// Store is the single source of truth for notifications in one
// application session. It is safe for concurrent use.
type Store struct {
	src source.NotificationSource
	log *zap.Logger
	now func() time.Time

	mu        sync.Mutex
	items     []model.Notification
	groups    []model.GroupedNotification
	localRead map[int64]struct{}
	filter    model.ListFilter
	window    WindowKind
	gen       uint64
}

// New creates a store backed by src. The role is sent as user_role on
// every list request.
func New(src source.NotificationSource, role string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		src:       src,
		log:       log,
		now:       time.Now,
		localRead: make(map[int64]struct{}),
		filter:    model.ListFilter{UserRole: role},
		window:    WindowAll,
	}
}

// SetClock overrides the wall clock used for date windows.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Filter returns the filter of the most recently issued refresh.
func (s *Store) Filter() model.ListFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// Window returns the active date window preset.
func (s *Store) Window() WindowKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// Notifications returns a snapshot of the list in received order.
func (s *Store) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Groups returns the last loaded grouped summaries.
func (s *Store) Groups() []model.GroupedNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.GroupedNotification, len(s.groups))
	copy(out, s.groups)
	return out
}

// Get returns the notification with the given id, if present.
func (s *Store) Get(id int64) (model.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	return model.Notification{}, false
}

// IsRead reports the effective read state: the server flag or the local
// overlay.
func (s *Store) IsRead(n model.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isReadLocked(n)
}

func (s *Store) isReadLocked(n model.Notification) bool {
	if n.Read {
		return true
	}
	_, ok := s.localRead[n.ID]
	return ok
}

// UnreadCount counts items that are neither server-read nor locally read.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.items {
		if !s.isReadLocked(n) {
			count++
		}
	}
	return count
}

// MarkLocallyRead adds id to the local read overlay. Idempotent.
func (s *Store) MarkLocallyRead(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localRead[id] = struct{}{}
}

// MarkAllVisibleRead marks every unread item matching the search term as
// locally read and returns how many were newly marked.
func (s *Store) MarkAllVisibleRead(term string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	marked := 0
	for _, n := range filterBySearch(s.items, term) {
		if !s.isReadLocked(n) {
			s.localRead[n.ID] = struct{}{}
			marked++
		}
	}
	return marked
}

// FilterBySearch returns items whose message contains term,
// case-insensitively. An empty term returns the full list.
func (s *Store) FilterBySearch(term string) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterBySearch(s.items, term)
}

func filterBySearch(items []model.Notification, term string) []model.Notification {
	out := make([]model.Notification, 0, len(items))
	if term == "" {
		return append(out, items...)
	}
	needle := strings.ToLower(term)
	for _, n := range items {
		if strings.Contains(strings.ToLower(n.Message), needle) {
			out = append(out, n)
		}
	}
	return out
}

// Refresh lists notifications with filter and replaces the in-memory list.
// If another refresh is issued before this one completes, the result is
// discarded and ErrStaleResponse is returned. A failed refresh that is
// still current leaves an empty list.
func (s *Store) Refresh(ctx context.Context, filter model.ListFilter) ([]model.Notification, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.filter = filter
	s.mu.Unlock()

	items, err := s.src.List(ctx, filter)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		s.log.Debug("discarding stale list response", zap.Uint64("generation", gen))
		return nil, ErrStaleResponse
	}
	if err != nil {
		s.items = nil
		return nil, err
	}
	s.items = items
	out := make([]model.Notification, len(items))
	copy(out, items)
	return out, nil
}

// Replace installs a list fetched outside Refresh. Any refresh still in
// flight becomes stale.
func (s *Store) Replace(items []model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.items = append([]model.Notification(nil), items...)
}

// RefreshCurrent repeats the last refresh with the same filter.
func (s *Store) RefreshCurrent(ctx context.Context) ([]model.Notification, error) {
	return s.Refresh(ctx, s.Filter())
}

// ApplyDateFilter computes a window from the current wall clock and
// refreshes with it, keeping the role and archived flags.
func (s *Store) ApplyDateFilter(
	ctx context.Context,
	kind WindowKind,
	customStart, customEnd string,
) ([]model.Notification, error) {
	s.mu.Lock()
	now := s.now()
	base := s.filter
	s.mu.Unlock()

	w, err := Window(kind, now, customStart, customEnd)
	if err != nil {
		return nil, err
	}
	base.StartDate = w.StartDate
	base.EndDate = w.EndDate

	s.mu.Lock()
	s.window = kind
	s.mu.Unlock()

	return s.Refresh(ctx, base)
}

// ShowArchived switches between the active and archived views and
// refreshes.
func (s *Store) ShowArchived(ctx context.Context, archived bool) ([]model.Notification, error) {
	f := s.Filter()
	if archived {
		v := true
		f.Archived = &v
	} else {
		f.Archived = nil
	}
	return s.Refresh(ctx, f)
}

// LoadGrouped fetches grouped summaries for the last days.
func (s *Store) LoadGrouped(ctx context.Context, days int) ([]model.GroupedNotification, error) {
	groups, err := s.src.ListGrouped(ctx, days)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.groups = groups
	s.mu.Unlock()
	return groups, nil
}

// Load fetches the list and the grouped summaries concurrently. Neither
// fetch cancels the other, so each error is reported on its own.
func (s *Store) Load(ctx context.Context, days int) (listErr, groupErr error) {
	var g errgroup.Group
	g.Go(func() error {
		_, listErr = s.RefreshCurrent(ctx)
		return listErr
	})
	g.Go(func() error {
		_, groupErr = s.LoadGrouped(ctx, days)
		return groupErr
	})
	_ = g.Wait()
	return listErr, groupErr
}

// Prepend inserts a pushed notification at the head of the list. A
// notification already present is replaced in place.
func (s *Store) Prepend(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(n.ID); i >= 0 {
		s.items[i] = n
		return
	}
	s.items = append([]model.Notification{n}, s.items...)
}

// Archive archives id on the server and drops it from the list once the
// server confirms. On failure the list is untouched.
func (s *Store) Archive(ctx context.Context, id int64) error {
	if err := s.src.Archive(ctx, id); err != nil {
		return err
	}
	s.drop(id)
	return nil
}

// Remove deletes id on the server and drops it from the list once the
// server confirms. On failure the list is untouched.
func (s *Store) Remove(ctx context.Context, id int64) error {
	if err := s.src.Remove(ctx, id); err != nil {
		return err
	}
	s.drop(id)
	return nil
}

// SetActionStatus records the viewer's decision on the server and then on
// the local copy.
func (s *Store) SetActionStatus(ctx context.Context, id int64, status model.ActionStatus) error {
	s.mu.Lock()
	i := s.indexOf(id)
	var current model.Notification
	if i >= 0 {
		current = s.items[i]
	}
	s.mu.Unlock()

	if i >= 0 && !current.NeedsAction() {
		return fmt.Errorf("notification %d has no pending action", id)
	}
	if err := s.src.SetActionStatus(ctx, id, status); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		s.items[i].ActionStatus = status
	}
	return nil
}

func (s *Store) drop(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		s.items = append(s.items[:i:i], s.items[i+1:]...)
	}
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id int64) int {
	for i, n := range s.items {
		if n.ID == id {
			return i
		}
	}
	return -1
}
