package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/store"
	"github.com/nhle/labordesk/tests/testutil"
)

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, s store.Store, ns ...model.Notification) []model.Notification {
	t.Helper()
	out := make([]model.Notification, len(ns))
	for i, n := range ns {
		created, err := s.CreateNotification(context.Background(), n)
		require.NoError(t, err)
		out[i] = *created
	}
	return out
}

func ids(ns []model.Notification) []int64 {
	out := make([]int64, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func TestCreateAssignsIDAndDefaults(t *testing.T) {
	s := testutil.NewTestStore(t)
	expires := base.Add(48 * time.Hour)

	created, err := s.CreateNotification(context.Background(), model.Notification{
		Message:        "Permit expires",
		Type:           model.TypePermit,
		Emoji:          "⚠️",
		AllowedRoles:   "hr,manager",
		ActionRequired: "confirm",
		CreatedAt:      base,
		ExpiresAt:      &expires,
	})
	require.NoError(t, err)

	assert.NotZero(t, created.ID)
	assert.Equal(t, "⚠️", created.Emoji)
	assert.Equal(t, model.ActionPending, created.ActionStatus)
	assert.True(t, created.CreatedAt.Equal(base))
	require.NotNil(t, created.ExpiresAt)
	assert.True(t, created.ExpiresAt.Equal(expires))
	assert.Nil(t, created.ScheduledAt)

	got, err := s.GetNotification(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCreateDefaultsType(t *testing.T) {
	s := testutil.NewTestStore(t)
	created, err := s.CreateNotification(context.Background(), model.Notification{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, model.TypeGeneral, created.Type)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestListNewestFirstAndActiveByDefault(t *testing.T) {
	s := testutil.NewTestStore(t)
	ns := seed(t, s,
		model.Notification{Message: "old", CreatedAt: base.Add(-2 * time.Hour)},
		model.Notification{Message: "new", CreatedAt: base},
		model.Notification{Message: "gone", CreatedAt: base.Add(-time.Hour)},
	)
	require.NoError(t, s.ArchiveNotification(context.Background(), ns[2].ID))

	active, err := s.ListNotifications(context.Background(), store.NotificationFilter{Now: base})
	require.NoError(t, err)
	assert.Equal(t, []int64{ns[1].ID, ns[0].ID}, ids(active))

	archived, err := s.ListNotifications(context.Background(), store.NotificationFilter{Archived: true, Now: base})
	require.NoError(t, err)
	assert.Equal(t, []int64{ns[2].ID}, ids(archived))
	assert.True(t, archived[0].Archived)
}

func TestListDateRangeIsHalfOpen(t *testing.T) {
	s := testutil.NewTestStore(t)
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	ns := seed(t, s,
		model.Notification{Message: "at start", CreatedAt: start},
		model.Notification{Message: "inside", CreatedAt: start.Add(5 * time.Hour)},
		model.Notification{Message: "at end", CreatedAt: end},
		model.Notification{Message: "before", CreatedAt: start.Add(-time.Second)},
	)

	got, err := s.ListNotifications(context.Background(), store.NotificationFilter{
		Start: &start,
		End:   &end,
		Now:   end.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{ns[1].ID, ns[0].ID}, ids(got))
}

func TestListFiltersByRole(t *testing.T) {
	s := testutil.NewTestStore(t)
	ns := seed(t, s,
		model.Notification{Message: "everyone", CreatedAt: base},
		model.Notification{Message: "hr only", AllowedRoles: "hr", CreatedAt: base.Add(time.Minute)},
		model.Notification{Message: "managers", AllowedRoles: "admin, manager", CreatedAt: base.Add(2 * time.Minute)},
		model.Notification{Message: "hr-lead", AllowedRoles: "hr-lead", CreatedAt: base.Add(3 * time.Minute)},
	)
	now := base.Add(time.Hour)

	hr, err := s.ListNotifications(context.Background(), store.NotificationFilter{Role: "hr", Now: now})
	require.NoError(t, err)
	assert.Equal(t, []int64{ns[1].ID, ns[0].ID}, ids(hr))

	mgr, err := s.ListNotifications(context.Background(), store.NotificationFilter{Role: "manager", Now: now})
	require.NoError(t, err)
	assert.Equal(t, []int64{ns[2].ID, ns[0].ID}, ids(mgr))

	all, err := s.ListNotifications(context.Background(), store.NotificationFilter{Now: now})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestListHidesFutureScheduled(t *testing.T) {
	s := testutil.NewTestStore(t)
	later := base.Add(time.Hour)
	earlier := base.Add(-time.Hour)
	ns := seed(t, s,
		model.Notification{Message: "later", ScheduledAt: &later, CreatedAt: base.Add(-2 * time.Hour)},
		model.Notification{Message: "due", ScheduledAt: &earlier, CreatedAt: base.Add(-2 * time.Hour)},
	)

	got, err := s.ListNotifications(context.Background(), store.NotificationFilter{Now: base})
	require.NoError(t, err)
	assert.Equal(t, []int64{ns[1].ID}, ids(got))

	got, err = s.ListNotifications(context.Background(), store.NotificationFilter{Now: later})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGroupNotificationsByType(t *testing.T) {
	s := testutil.NewTestStore(t)
	seed(t, s,
		model.Notification{Message: "p1", Type: model.TypePermit, CreatedAt: base.Add(-3 * time.Hour)},
		model.Notification{Message: "p2", Type: model.TypePermit, CreatedAt: base.Add(-time.Hour)},
		model.Notification{Message: "g1", Type: model.TypeGeneral, CreatedAt: base.Add(-2 * time.Hour)},
		model.Notification{Message: "ancient", Type: model.TypePassport, CreatedAt: base.AddDate(0, 0, -30)},
	)

	groups, err := s.GroupNotifications(context.Background(), base.AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, model.TypePermit, groups[0].Type)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, []string{"p2", "p1"}, groups[0].Messages)
	assert.True(t, groups[0].LastCreated.Equal(base.Add(-time.Hour)))

	assert.Equal(t, model.TypeGeneral, groups[1].Type)
	assert.Equal(t, 1, groups[1].Count)
}

func TestMutationsReportNotFound(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.ArchiveNotification(ctx, 99), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteNotification(ctx, 99), store.ErrNotFound)
	assert.ErrorIs(t, s.SetActionStatus(ctx, 99, model.ActionConfirmed), store.ErrNotFound)
	assert.ErrorIs(t, s.MarkNotificationRead(ctx, 99), store.ErrNotFound)

	_, err := s.GetNotification(ctx, 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestActionStatusReadAndDelete(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	n := seed(t, s, model.Notification{Message: "sign", ActionRequired: "confirm", CreatedAt: base})[0]

	require.NoError(t, s.SetActionStatus(ctx, n.ID, model.ActionRejected))
	require.NoError(t, s.MarkNotificationRead(ctx, n.ID))

	got, err := s.GetNotification(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ActionRejected, got.ActionStatus)
	assert.True(t, got.Read)

	require.NoError(t, s.DeleteNotification(ctx, n.ID))
	_, err = s.GetNotification(ctx, n.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
