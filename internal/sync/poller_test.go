package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhle/labordesk/internal/feed"
	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/source"
	"github.com/nhle/labordesk/tests/testutil"
)

func fastOptions() Options {
	return Options{MinBackoff: 5 * time.Millisecond, MaxBackoff: 20 * time.Millisecond}
}

// feedQueue hands out queued feeds and fails the dial when none is queued.
func feedQueue(feeds chan *testutil.ChanFeed) func(context.Context) (source.LiveFeed, error) {
	return func(context.Context) (source.LiveFeed, error) {
		select {
		case f := <-feeds:
			return f, nil
		default:
			return nil, errors.New("connection refused")
		}
	}
}

func TestNextBackoff(t *testing.T) {
	d := time.Second
	var got []time.Duration
	for i := 0; i < 7; i++ {
		d = nextBackoff(d, 30*time.Second)
		got = append(got, d)
	}
	assert.Equal(t, []time.Duration{
		2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
		30 * time.Second, 30 * time.Second, 30 * time.Second,
	}, got)
}

func TestPushedNotificationsReachStore(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &testutil.FakeSource{}
	store := feed.New(src, "", nil)
	feeds := make(chan *testutil.ChanFeed, 1)
	first := testutil.NewChanFeed()
	feeds <- first
	src.FeedFunc = feedQueue(feeds)

	p := New(store, src, fastOptions())
	cmd := p.Start()
	require.NotNil(t, cmd)
	assert.Nil(t, p.Start(), "second start is a no-op")

	first.C <- model.Notification{ID: 1, Message: "permit expiring"}

	var push PushMsg
	for i := 0; i < 10; i++ {
		msg := cmd()
		if m, ok := msg.(PushMsg); ok {
			push = m
			break
		}
		cmd = p.WaitForNextResult()
	}
	assert.Equal(t, int64(1), push.Notification.ID)

	got := store.Notifications()
	require.Len(t, got, 1)
	assert.Equal(t, "permit expiring", got[0].Message)
	assert.Equal(t, FeedConnected, p.Status().State)
	assert.Equal(t, 0, src.ListCallCount(), "first connect does not refetch")

	p.Stop()
	p.Stop()
}

func TestReconnectRefetchesList(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &testutil.FakeSource{Items: []model.Notification{{ID: 7, Message: "missed while offline"}}}
	store := feed.New(src, "hr", nil)
	feeds := make(chan *testutil.ChanFeed, 2)
	first := testutil.NewChanFeed()
	feeds <- first
	src.FeedFunc = feedQueue(feeds)

	p := New(store, src, fastOptions())
	p.Start()

	require.Eventually(t, func() bool {
		return p.Status().State == FeedConnected
	}, time.Second, 5*time.Millisecond)

	// Drop the connection; dials fail until a new feed is queued.
	close(first.C)
	require.Eventually(t, func() bool {
		return p.Status().Attempts >= 2
	}, time.Second, 5*time.Millisecond)

	feeds <- testutil.NewChanFeed()
	require.Eventually(t, func() bool {
		return src.ListCallCount() == 1
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(store.Notifications()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(7), store.Notifications()[0].ID)
	assert.Equal(t, "hr", src.ListCalls[0].UserRole)

	p.Stop()
}

func TestAuthFailureIsReported(t *testing.T) {
	defer goleak.VerifyNone(t)

	var dials atomic.Int32
	src := &testutil.FakeSource{}
	src.FeedFunc = func(context.Context) (source.LiveFeed, error) {
		dials.Add(1)
		return nil, &source.AuthError{Message: "token expired"}
	}
	p := New(feed.New(src, "", nil), src, fastOptions())
	cmd := p.Start()

	var sawAuth bool
	for i := 0; i < 10 && !sawAuth; i++ {
		_, sawAuth = cmd().(AuthErrorMsg)
		cmd = p.WaitForNextResult()
	}
	assert.True(t, sawAuth)
	assert.True(t, source.IsAuthError(p.Status().Error))
	assert.Equal(t, FeedDisconnected, p.Status().State)

	// Several backoff periods pass without another dial or toast.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), dials.Load())
	select {
	case msg := <-p.resultCh:
		t.Fatalf("unexpected message after auth failure: %#v", msg)
	default:
	}

	p.Stop()
}

func TestRefreshNow(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &testutil.FakeSource{Items: []model.Notification{{ID: 3}}}
	src.FeedFunc = feedQueue(make(chan *testutil.ChanFeed))
	store := feed.New(src, "", nil)
	p := New(store, src, Options{MinBackoff: time.Hour})
	cmd := p.Start()

	assert.Nil(t, p.RefreshNow())

	var res RefreshResultMsg
	var msg tea.Msg
	for i := 0; i < 10; i++ {
		msg = cmd()
		if m, ok := msg.(RefreshResultMsg); ok {
			res = m
			break
		}
		cmd = p.WaitForNextResult()
	}
	require.NoError(t, res.Error)
	assert.False(t, res.AfterRedial)
	assert.Len(t, res.Items, 1)
	assert.Len(t, store.Notifications(), 1)

	p.Stop()
}
