// Package router gates the realtime connection on session presence and
// turns the raw event stream into derived state: connection status, the
// last notification, and the unread count. Task events are fanned out to
// subscribers.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btouchard/boardsync/internal/event"
	"github.com/btouchard/boardsync/internal/session"
	"github.com/btouchard/boardsync/internal/subscription"
	"github.com/btouchard/boardsync/internal/transport"
)

const (
	DefaultSessionPollInterval = 500 * time.Millisecond
	DefaultConnectPollInterval = 100 * time.Millisecond
	DefaultConnectPollAttempts = 100
	DefaultCountTimeout        = 10 * time.Second
)

// State is the router's view of the realtime connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport is the connection the router owns. No other component may
// call Connect or Disconnect on it.
type Transport interface {
	Connect(onEvent transport.EventHandler)
	Disconnect()
	IsConnected() bool
}

// reconnectNotifier is implemented by transports that report drops and
// automatic reconnections.
type reconnectNotifier interface {
	OnConnectionLost(func(error))
	OnReconnected(func())
}

// CountSource provides the authoritative unread count, typically the
// notifications REST endpoint.
type CountSource interface {
	UnreadCount(ctx context.Context) (int, error)
}

// ErrNoCountSource is returned by RefreshUnreadCount when the router was
// built without a CountSource.
var ErrNoCountSource = errors.New("no unread count source configured")

// Options tunes the router. Zero durations and attempts use the defaults.
type Options struct {
	SessionPollInterval time.Duration
	ConnectPollInterval time.Duration
	ConnectPollAttempts int

	// TrackReconnects moves Connected back to Connecting when the
	// transport reports a drop, and forward again when it reconnects.
	// Without it the state stays Connected across transient drops.
	TrackReconnects bool

	// Counts, when set, is read once every time the router reaches
	// Connected.
	Counts       CountSource
	CountTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.SessionPollInterval <= 0 {
		o.SessionPollInterval = DefaultSessionPollInterval
	}
	if o.ConnectPollInterval <= 0 {
		o.ConnectPollInterval = DefaultConnectPollInterval
	}
	if o.ConnectPollAttempts <= 0 {
		o.ConnectPollAttempts = DefaultConnectPollAttempts
	}
	if o.CountTimeout <= 0 {
		o.CountTimeout = DefaultCountTimeout
	}
}

// Router is built once and shared by every consumer of realtime events.
type Router struct {
	store session.Store
	tr    Transport
	opts  Options

	// checking serializes presence checks with every Connect and
	// Disconnect call on the transport, so reads are applied in the order
	// they were made. Code running on the transport's read goroutine never
	// blocks on it: Focus queues a recheck instead.
	checking sync.Mutex
	recheck  atomic.Bool

	// lifecycle guards the fields below. It is never held across
	// Transport.Disconnect, which waits for in-flight deliveries.
	lifecycle   sync.Mutex
	present     bool
	initialized bool
	generation  uint64
	pollCancel  context.CancelFunc
	runCancel   context.CancelFunc
	runDone     chan struct{}
	closed      bool

	// mu guards the state read by consumers.
	mu      sync.RWMutex
	state   State
	last    *event.NotificationRecord
	dropped bool

	unread Counter

	tasks         *subscription.Registry[event.TaskEvent]
	notifications *subscription.Registry[event.NotificationRecord]
	counts        *subscription.Registry[int]
}

// New creates a router over store and tr. Nothing happens until Start or
// Focus.
func New(store session.Store, tr Transport, opts Options) *Router {
	opts.applyDefaults()
	r := &Router{
		store:         store,
		tr:            tr,
		opts:          opts,
		tasks:         subscription.New[event.TaskEvent]("tasks"),
		notifications: subscription.New[event.NotificationRecord]("notifications"),
		counts:        subscription.New[int]("unread_count"),
	}

	if opts.TrackReconnects {
		if n, ok := tr.(reconnectNotifier); ok {
			n.OnConnectionLost(r.connectionLost)
			n.OnReconnected(r.reconnected)
		}
	}
	return r
}

// Start begins watching the session store. Presence is checked at once,
// then on every poll tick, and on every change signalled by stores that
// implement session.Watcher.
func (r *Router) Start(ctx context.Context) error {
	r.lifecycle.Lock()
	if r.closed {
		r.lifecycle.Unlock()
		return errors.New("router closed")
	}
	if r.runCancel != nil {
		r.lifecycle.Unlock()
		return errors.New("router already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	r.runCancel = cancel
	r.runDone = make(chan struct{})
	done := r.runDone
	r.lifecycle.Unlock()

	var changes <-chan struct{}
	if w, ok := r.store.(session.Watcher); ok {
		ch, err := w.Watch(ctx)
		if err != nil {
			slog.Warn("session change notifications unavailable, polling only", "error", err)
		} else {
			changes = ch
		}
	}

	go r.watchSession(ctx, changes, done)
	slog.Info("router started", "session_poll_interval", r.opts.SessionPollInterval)
	return nil
}

func (r *Router) watchSession(ctx context.Context, changes <-chan struct{}, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.opts.SessionPollInterval)
	defer ticker.Stop()

	r.checkSession()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkSession()
		case <-changes:
			r.checkSession()
		}
	}
}

// Focus re-checks session presence. When another check is in progress,
// Focus returns at once and that check runs again before finishing, so
// Focus is safe to call from a subscriber callback.
func (r *Router) Focus() {
	r.checkSession()
}

// Close stops watching the session, disconnects the transport and drops
// every subscriber. It must not be called from a subscriber callback.
func (r *Router) Close() {
	r.lifecycle.Lock()
	if r.closed {
		r.lifecycle.Unlock()
		return
	}
	r.closed = true
	cancel, done := r.runCancel, r.runDone
	r.runCancel = nil
	r.lifecycle.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	r.checking.Lock()
	r.lifecycle.Lock()
	wasInitialized := r.teardownLocked()
	r.lifecycle.Unlock()
	if wasInitialized {
		r.tr.Disconnect()
	}
	r.setState(Disconnected)
	r.checking.Unlock()

	r.tasks.Clear()
	r.notifications.Clear()
	r.counts.Clear()
	slog.Info("router closed")
}

func (r *Router) checkSession() {
	r.recheck.Store(true)
	for r.recheck.Load() {
		if !r.checking.TryLock() {
			// The running check sees the flag before it lets go.
			return
		}
		for r.recheck.Swap(false) {
			r.applyPresence()
		}
		r.checking.Unlock()
	}
}

// applyPresence reads the store and applies the result. Callers hold
// checking.
func (r *Router) applyPresence() {
	sess, err := r.store.Load()
	if err != nil {
		slog.Warn("reading session, skipping presence check", "error", err)
		return
	}
	present := sess.Present()

	r.lifecycle.Lock()
	if r.closed || present == r.present {
		r.lifecycle.Unlock()
		return
	}
	r.present = present

	if present {
		slog.Info("session present, connecting")
		r.connectLocked()
		r.lifecycle.Unlock()
		return
	}

	slog.Info("session ended, disconnecting")
	wasInitialized := r.teardownLocked()
	r.lifecycle.Unlock()

	if wasInitialized {
		r.tr.Disconnect()
	}
	// The transport has stopped delivering, so nothing can race the reset.
	r.unread.Reset()
	r.mu.Lock()
	r.state = Disconnected
	r.last = nil
	r.dropped = false
	r.mu.Unlock()
	r.counts.Deliver(0)
}

func (r *Router) connectLocked() {
	if r.initialized {
		return
	}
	r.initialized = true
	r.generation++
	gen := r.generation

	r.setState(Connecting)
	r.tr.Connect(r.handleEvent)

	ctx, cancel := context.WithCancel(context.Background())
	r.pollCancel = cancel
	go r.awaitReady(ctx, gen)
}

// teardownLocked retires the current session and reports whether the
// transport was started for it. The caller disconnects the transport
// after releasing lifecycle, then publishes the Disconnected state.
func (r *Router) teardownLocked() bool {
	r.stopPollLocked()
	r.generation++
	wasInitialized := r.initialized
	r.initialized = false
	return wasInitialized
}

func (r *Router) stopPollLocked() {
	if r.pollCancel != nil {
		r.pollCancel()
		r.pollCancel = nil
	}
}

// awaitReady polls the transport until it reports connected or the
// attempt budget runs out.
func (r *Router) awaitReady(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(r.opts.ConnectPollInterval)
	defer ticker.Stop()

	for range r.opts.ConnectPollAttempts {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if r.tr.IsConnected() {
			r.ready(gen)
			return
		}
	}
	r.readyTimedOut(gen)
}

func (r *Router) ready(gen uint64) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	if gen != r.generation || !r.initialized {
		return
	}
	r.pollCancel = nil
	r.setState(Connected)
	slog.Info("realtime connected")

	if r.opts.Counts != nil {
		go r.refreshCount(gen)
	}
}

func (r *Router) readyTimedOut(gen uint64) {
	r.checking.Lock()
	defer func() {
		r.checking.Unlock()
		// A Focus that arrived meanwhile left its check to us.
		if r.recheck.Load() {
			r.checkSession()
		}
	}()

	r.lifecycle.Lock()
	if gen != r.generation || !r.initialized {
		r.lifecycle.Unlock()
		return
	}
	timeout := r.opts.ConnectPollInterval * time.Duration(r.opts.ConnectPollAttempts)
	slog.Error("realtime connection not established, giving up until next login",
		"timeout", timeout, "attempts", r.opts.ConnectPollAttempts)

	r.pollCancel = nil
	r.generation++
	r.initialized = false
	r.setState(Disconnected)
	r.lifecycle.Unlock()

	r.tr.Disconnect()
}

func (r *Router) refreshCount(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.CountTimeout)
	defer cancel()

	n, err := r.opts.Counts.UnreadCount(ctx)
	if err != nil {
		slog.Warn("reading unread count", "error", err)
		return
	}
	r.applyCount(gen, n)
}

// applyCount sets n only if the session that requested it is still the
// current one.
func (r *Router) applyCount(gen uint64, n int) bool {
	r.lifecycle.Lock()
	if gen != r.generation || !r.present {
		r.lifecycle.Unlock()
		slog.Debug("discarding stale unread count", "count", n)
		return false
	}
	v := r.unread.Set(n)
	r.lifecycle.Unlock()

	r.counts.Deliver(v)
	return true
}

// RefreshUnreadCount reads the authoritative count from the CountSource
// and applies it, unless no session is present or the session changed
// while the read was in flight. In both cases the current count is
// returned.
func (r *Router) RefreshUnreadCount(ctx context.Context) (int, error) {
	if r.opts.Counts == nil {
		return 0, ErrNoCountSource
	}

	r.lifecycle.Lock()
	gen := r.generation
	r.lifecycle.Unlock()

	n, err := r.opts.Counts.UnreadCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading unread count: %w", err)
	}
	if !r.applyCount(gen, n) {
		return r.unread.Value(), nil
	}
	return n, nil
}

// handleEvent runs on the transport's read goroutine.
func (r *Router) handleEvent(ev event.TaskEvent) {
	if ev.Kind != event.KindNotification {
		r.tasks.Deliver(ev)
		return
	}

	var rec *event.NotificationRecord
	if ev.Notification != nil {
		rec = ev.Notification.Clone()
		r.mu.Lock()
		r.last = rec
		r.mu.Unlock()
		if !rec.Read {
			r.unread.Increment()
		}
	}
	if ev.UnreadCount != nil {
		r.unread.Set(*ev.UnreadCount)
	}

	if rec != nil {
		r.notifications.Deliver(*rec.Clone())
	}
	r.counts.Deliver(r.unread.Value())
}

func (r *Router) connectionLost(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Connected {
		return
	}
	r.state = Connecting
	r.dropped = true
	slog.Warn("realtime connection lost, waiting for reconnect", "error", err)
}

func (r *Router) reconnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dropped {
		return
	}
	r.state = Connected
	r.dropped = false
	slog.Info("realtime reconnected")
}

func (r *Router) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.dropped = false
	r.mu.Unlock()
}

// State returns the current connection state.
func (r *Router) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// IsConnected reports whether the state is Connected.
func (r *Router) IsConnected() bool {
	return r.State() == Connected
}

// LastNotification returns a copy of the most recent notification, or nil.
func (r *Router) LastNotification() *event.NotificationRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last.Clone()
}

// UnreadCount returns the current unread count.
func (r *Router) UnreadCount() int {
	return r.unread.Value()
}

// Subscribe registers fn for task lifecycle events.
func (r *Router) Subscribe(fn func(event.TaskEvent)) (unsubscribe func()) {
	return r.tasks.Subscribe(fn)
}

// SubscribeNotifications registers fn for every notification record.
func (r *Router) SubscribeNotifications(fn func(event.NotificationRecord)) (unsubscribe func()) {
	return r.notifications.Subscribe(fn)
}

// SubscribeUnreadCount registers fn for every change to the unread count.
func (r *Router) SubscribeUnreadCount(fn func(int)) (unsubscribe func()) {
	return r.counts.Subscribe(fn)
}
