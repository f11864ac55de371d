package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/labordesk/internal/feed"
	"github.com/nhle/labordesk/internal/model"
	"github.com/nhle/labordesk/internal/source"
)

// FeedState represents the state of the live feed connection.
type FeedState int

const (
	FeedIdle FeedState = iota
	FeedConnecting
	FeedConnected
	FeedDisconnected
)

func (s FeedState) String() string {
	switch s {
	case FeedConnecting:
		return "connecting"
	case FeedConnected:
		return "live"
	case FeedDisconnected:
		return "offline"
	default:
		return "idle"
	}
}

// FeedStatus holds the live feed connection state.
type FeedStatus struct {
	State     FeedState
	LastEvent time.Time
	Attempts  int
	Error     error
}

// PushMsg is a tea.Msg sent when the live feed delivers a notification.
// The notification has already been prepended to the store.
type PushMsg struct {
	Notification model.Notification
}

// RefreshResultMsg is a tea.Msg sent when a background refresh completes,
// either after a reconnect or on the periodic timer.
type RefreshResultMsg struct {
	Items       []model.Notification
	Error       error
	AfterRedial bool
}

// StatusMsg is a tea.Msg with the current live feed status.
type StatusMsg struct {
	Status FeedStatus
}

// AuthErrorMsg is a tea.Msg sent when the backend rejects the token.
type AuthErrorMsg struct {
	Message string
}

// fetchTimeout is the maximum time allowed for a single refresh.
const fetchTimeout = 30 * time.Second

// Options configures a Poller.
type Options struct {
	// PollInterval enables a periodic refresh on top of the live feed.
	// Zero disables it.
	PollInterval time.Duration

	// MinBackoff and MaxBackoff bound the reconnect delay. The delay
	// doubles after every failed dial and resets after a successful one.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	Logger *zap.Logger
}

const (
	defaultMinBackoff = time.Second
	defaultMaxBackoff = 30 * time.Second
)

// Poller keeps the store in step with the server: it consumes the live
// feed, redials it with backoff, and refreshes the list after every
// reconnect and on the optional timer.
type Poller struct {
	store *feed.Store
	src   source.NotificationSource
	opts  Options
	log   *zap.Logger

	resultCh  chan tea.Msg
	triggerCh chan struct{}

	mu      gosync.Mutex
	status  FeedStatus
	running bool
	cancel  context.CancelFunc
	wg      gosync.WaitGroup
}

// New creates a new Poller for the given store and source.
func New(store *feed.Store, src source.NotificationSource, opts Options) *Poller {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = defaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = defaultMaxBackoff
		if opts.MaxBackoff < opts.MinBackoff {
			opts.MaxBackoff = opts.MinBackoff
		}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		store:     store,
		src:       src,
		opts:      opts,
		log:       log,
		resultCh:  make(chan tea.Msg, 64),
		triggerCh: make(chan struct{}, 1),
	}
}

// Start launches the feed and refresh goroutines and returns a tea.Cmd
// that waits for the first result.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	p.wg.Add(2)
	go p.runFeed(ctx)
	go p.runRefresh(ctx)

	return p.waitForResult()
}

// Stop cancels the goroutines, closes the live feed and waits for both
// loops to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

// RefreshNow triggers an immediate background refresh.
func (p *Poller) RefreshNow() tea.Cmd {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A refresh is already queued.
	}
	return nil
}

// Status returns the current live feed status.
func (p *Poller) Status() FeedStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// runFeed dials the live feed until the context is cancelled or the
// backend rejects the token.
func (p *Poller) runFeed(ctx context.Context) {
	defer p.wg.Done()

	delay := p.opts.MinBackoff
	connectedBefore := false

	for ctx.Err() == nil {
		p.setStatus(FeedConnecting, nil)

		lf, err := p.src.OpenLiveFeed(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.setStatus(FeedDisconnected, err)
			p.sendResult(StatusMsg{Status: p.Status()})
			if source.IsAuthError(err) {
				// Redialing with the same token cannot succeed.
				p.log.Error("live feed rejected the token", zap.Error(err))
				p.sendResult(AuthErrorMsg{
					Message: "backend rejected the token. Run 'labordesk login' to update it.",
				})
				return
			}
			p.log.Warn("live feed dial failed",
				zap.Error(err), zap.Duration("retry_in", delay))
			if !sleep(ctx, delay) {
				return
			}
			delay = nextBackoff(delay, p.opts.MaxBackoff)
			continue
		}

		delay = p.opts.MinBackoff
		p.setStatus(FeedConnected, nil)
		p.sendResult(StatusMsg{Status: p.Status()})

		if connectedBefore {
			p.refresh(ctx, true)
		}
		connectedBefore = true

		err = p.consume(ctx, lf)
		if ctx.Err() != nil {
			return
		}
		p.log.Info("live feed dropped", zap.Error(err))
		p.setStatus(FeedDisconnected, err)
		p.sendResult(StatusMsg{Status: p.Status()})
	}
}

// consume reads from lf until it fails or ctx is cancelled. The feed is
// always closed on return.
func (p *Poller) consume(ctx context.Context, lf source.LiveFeed) error {
	done := make(chan struct{})
	var closer gosync.WaitGroup
	closer.Add(1)
	go func() {
		defer closer.Done()
		select {
		case <-ctx.Done():
			_ = lf.Close()
		case <-done:
		}
	}()
	defer func() {
		close(done)
		closer.Wait()
		_ = lf.Close()
	}()

	for {
		n, err := lf.Next()
		if err != nil {
			return err
		}
		p.store.Prepend(n)
		p.touch()
		p.sendResult(PushMsg{Notification: n})
	}
}

// runRefresh serves RefreshNow triggers and the periodic timer.
func (p *Poller) runRefresh(ctx context.Context) {
	defer p.wg.Done()

	var tick <-chan time.Time
	if p.opts.PollInterval > 0 {
		ticker := time.NewTicker(p.opts.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			p.refresh(ctx, false)
		case <-p.triggerCh:
			p.refresh(ctx, false)
		}
	}
}

// refresh re-lists with the store's current filter. Superseded responses
// are dropped silently.
func (p *Poller) refresh(parent context.Context, afterRedial bool) {
	ctx, cancel := context.WithTimeout(parent, fetchTimeout)
	defer cancel()

	items, err := p.store.RefreshCurrent(ctx)
	if errors.Is(err, feed.ErrStaleResponse) || parent.Err() != nil {
		return
	}
	if err != nil {
		p.log.Warn("background refresh failed", zap.Error(err))
	}
	p.sendResult(RefreshResultMsg{Items: items, Error: err, AfterRedial: afterRedial})
}

func (p *Poller) setStatus(state FeedState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	switch state {
	case FeedConnecting:
		p.status.Attempts++
	case FeedConnected:
		p.status.Attempts = 0
		p.status.LastEvent = time.Now()
	}
}

func (p *Poller) touch() {
	p.mu.Lock()
	p.status.LastEvent = time.Now()
	p.mu.Unlock()
}

// sendResult sends a message on the result channel without blocking.
func (p *Poller) sendResult(msg tea.Msg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full; the store already holds the state.
	}
}

// waitForResult returns a tea.Cmd that waits for the next result.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		return <-p.resultCh
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next result.
// Call it after handling each poller message to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}

// nextBackoff doubles d up to max.
func nextBackoff(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}

// sleep waits for d or until ctx is done. It reports whether the full
// delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
