package feed

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/source"
	"github.com/nhle/labordesk/tests/testutil"
)

func sample() []model.Notification {
	return []model.Notification{
		{ID: 1, Message: "Permit for Ana expires soon", Type: model.TypePermit},
		{ID: 2, Message: "Passport renewal", Type: model.TypePassport, Read: true},
		{ID: 3, Message: "Team lunch on Friday", Type: model.TypeGeneral},
		{ID: 4, Message: "PERMIT office closed", Type: model.TypePermit},
	}
}

func loadedStore(t *testing.T) (*Store, *testutil.FakeSource) {
	t.Helper()
	src := &testutil.FakeSource{Items: sample()}
	s := New(src, "hr", nil)
	_, err := s.RefreshCurrent(context.Background())
	require.NoError(t, err)
	return s, src
}

func TestEffectiveReadState(t *testing.T) {
	s, _ := loadedStore(t)
	assert.Equal(t, 3, s.UnreadCount())

	n1, _ := s.Get(1)
	n2, _ := s.Get(2)
	assert.False(t, s.IsRead(n1))
	assert.True(t, s.IsRead(n2), "server read flag counts as read")

	s.MarkLocallyRead(1)
	s.MarkLocallyRead(1)
	assert.True(t, s.IsRead(n1))
	assert.Equal(t, 2, s.UnreadCount())

	// Marking a server-read item changes nothing.
	s.MarkLocallyRead(2)
	assert.Equal(t, 2, s.UnreadCount())
}

func TestFilterBySearch(t *testing.T) {
	s, _ := loadedStore(t)

	all := s.FilterBySearch("")
	assert.Equal(t, s.Notifications(), all)

	hits := s.FilterBySearch("permit")
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].ID)
	assert.Equal(t, int64(4), hits[1].ID)

	assert.Empty(t, s.FilterBySearch("payroll"))
}

func TestMarkAllVisibleReadLeavesComplementUnread(t *testing.T) {
	s, _ := loadedStore(t)

	marked := s.MarkAllVisibleRead("permit")
	assert.Equal(t, 2, marked)

	// Only item 3 is outside the search and still unread.
	assert.Equal(t, 1, s.UnreadCount())
	assert.Equal(t, 0, s.MarkAllVisibleRead("permit"))
}

func TestRefreshFailureEmptiesList(t *testing.T) {
	s, src := loadedStore(t)
	src.ListFunc = func(context.Context, model.ListFilter) ([]model.Notification, error) {
		return nil, errors.New("connection refused")
	}

	_, err := s.RefreshCurrent(context.Background())
	require.Error(t, err)
	assert.Empty(t, s.Notifications())
}

func TestApplyDateFilterKeepsRoleAndArchived(t *testing.T) {
	s, src := loadedStore(t)
	s.SetClock(func() time.Time { return time.Date(2026, 3, 10, 15, 30, 0, 0, time.Local) })

	_, err := s.ShowArchived(context.Background(), true)
	require.NoError(t, err)
	_, err = s.ApplyDateFilter(context.Background(), WindowToday, "", "")
	require.NoError(t, err)

	last := src.ListCalls[len(src.ListCalls)-1]
	assert.Equal(t, "hr", last.UserRole)
	require.NotNil(t, last.Archived)
	assert.True(t, *last.Archived)
	assert.Equal(t, "2026-03-10T00:00:00", last.StartDate)
	assert.Equal(t, "2026-03-11T00:00:00", last.EndDate)
	assert.Equal(t, WindowToday, s.Window())

	_, err = s.ApplyDateFilter(context.Background(), WindowKind("yearly"), "", "")
	assert.Error(t, err)
}

func TestStaleRefreshIsDiscarded(t *testing.T) {
	src := &testutil.FakeSource{}
	s := New(src, "", nil)

	releaseA := make(chan struct{})
	startedA := make(chan struct{})
	src.ListFunc = func(_ context.Context, f model.ListFilter) ([]model.Notification, error) {
		if f.StartDate == "A" {
			close(startedA)
			<-releaseA
			return []model.Notification{{ID: 100, Message: "from A"}}, nil
		}
		return []model.Notification{{ID: 200, Message: "from B"}}, nil
	}

	errA := make(chan error, 1)
	go func() {
		_, err := s.Refresh(context.Background(), model.ListFilter{StartDate: "A"})
		errA <- err
	}()
	<-startedA

	items, err := s.Refresh(context.Background(), model.ListFilter{StartDate: "B"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	close(releaseA)
	assert.ErrorIs(t, <-errA, ErrStaleResponse)

	got := s.Notifications()
	require.Len(t, got, 1)
	assert.Equal(t, int64(200), got[0].ID)
	assert.Equal(t, "B", s.Filter().StartDate)
}

func TestReplaceSupersedesInFlightRefresh(t *testing.T) {
	src := &testutil.FakeSource{}
	s := New(src, "", nil)

	release := make(chan struct{})
	started := make(chan struct{})
	src.ListFunc = func(context.Context, model.ListFilter) ([]model.Notification, error) {
		close(started)
		<-release
		return []model.Notification{{ID: 1}}, nil
	}

	errc := make(chan error, 1)
	go func() {
		_, err := s.RefreshCurrent(context.Background())
		errc <- err
	}()
	<-started
	s.Replace([]model.Notification{{ID: 9}})
	close(release)

	assert.ErrorIs(t, <-errc, ErrStaleResponse)
	got := s.Notifications()
	require.Len(t, got, 1)
	assert.Equal(t, int64(9), got[0].ID)
}

func TestPrepend(t *testing.T) {
	s, _ := loadedStore(t)

	s.Prepend(model.Notification{ID: 10, Message: "new"})
	got := s.Notifications()
	require.Len(t, got, 5)
	assert.Equal(t, int64(10), got[0].ID)
	assert.Equal(t, 4, s.UnreadCount())

	s.Prepend(model.Notification{ID: 3, Message: "lunch moved"})
	got = s.Notifications()
	require.Len(t, got, 5, "known ids are replaced, not duplicated")
	assert.Equal(t, "lunch moved", got[3].Message)
}

func TestArchiveRemovesOnlyAfterSuccess(t *testing.T) {
	src := &testutil.FakeSource{Items: []model.Notification{{ID: 42}, {ID: 43}}}
	s := New(src, "", nil)
	_, err := s.RefreshCurrent(context.Background())
	require.NoError(t, err)

	src.ArchiveErr = &source.StatusError{Code: http.StatusInternalServerError, Body: "boom"}
	err = s.Archive(context.Background(), 42)
	require.Error(t, err)
	_, ok := s.Get(42)
	assert.True(t, ok, "failed archive keeps the item")

	src.ArchiveErr = nil
	require.NoError(t, s.Archive(context.Background(), 42))
	_, ok = s.Get(42)
	assert.False(t, ok)
	assert.Equal(t, []int64{42}, src.Archived)
	assert.Len(t, s.Notifications(), 1)
}

func TestRemove(t *testing.T) {
	s, src := loadedStore(t)

	src.RemoveErr = errors.New("offline")
	require.Error(t, s.Remove(context.Background(), 3))
	assert.Len(t, s.Notifications(), 4)

	src.RemoveErr = nil
	require.NoError(t, s.Remove(context.Background(), 3))
	assert.Len(t, s.Notifications(), 3)
	_, ok := s.Get(3)
	assert.False(t, ok)
}

func TestSetActionStatus(t *testing.T) {
	src := &testutil.FakeSource{Items: []model.Notification{
		{ID: 1, ActionRequired: "confirm", ActionStatus: model.ActionPending},
		{ID: 2, ActionRequired: "confirm", ActionStatus: model.ActionConfirmed},
	}}
	s := New(src, "", nil)
	_, err := s.RefreshCurrent(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.SetActionStatus(context.Background(), 1, model.ActionRejected))
	n, _ := s.Get(1)
	assert.Equal(t, model.ActionRejected, n.ActionStatus)
	assert.Equal(t, model.ActionRejected, src.ActionStatus[1])

	err = s.SetActionStatus(context.Background(), 2, model.ActionRejected)
	assert.Error(t, err, "resolved actions cannot be changed")
	assert.NotContains(t, src.ActionStatus, int64(2))
}

func TestLoadFetchesListAndGroups(t *testing.T) {
	src := &testutil.FakeSource{
		Items:  sample(),
		Groups: []model.GroupedNotification{{Type: model.TypePermit, Count: 2}},
	}
	s := New(src, "", nil)

	listErr, groupErr := s.Load(context.Background(), 7)
	require.NoError(t, listErr)
	require.NoError(t, groupErr)
	assert.Len(t, s.Notifications(), 4)
	require.Len(t, s.Groups(), 1)
	assert.Equal(t, 2, s.Groups()[0].Count)
}

func TestLoadGroupedFailureKeepsList(t *testing.T) {
	items := sample()
	src := &testutil.FakeSource{
		GroupedErr: &source.StatusError{Code: http.StatusInternalServerError, Body: "boom"},
	}
	// The list answers after the grouped call has already failed.
	src.ListFunc = func(ctx context.Context, _ model.ListFilter) ([]model.Notification, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return items, nil
		}
	}
	s := New(src, "", nil)

	listErr, groupErr := s.Load(context.Background(), 7)
	require.NoError(t, listErr)
	require.Error(t, groupErr)
	assert.Len(t, s.Notifications(), 4)
	assert.Empty(t, s.Groups())
}
