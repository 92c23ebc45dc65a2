// Package transport keeps one STOMP-over-websocket subscription open to the
// board backend and hands every decoded event to a single handler.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"

	"github.com/btouchard/boardsync/internal/event"
	"github.com/btouchard/boardsync/internal/stomp"
)

const (
	DefaultReconnectDelay   = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultHeartBeat        = 4 * time.Second

	writeTimeout = 5 * time.Second
)

// EventHandler receives decoded events on the transport's read goroutine.
type EventHandler func(event.TaskEvent)

// Config describes the endpoint and the connection policy.
type Config struct {
	URL   string
	Topic string

	// Token is called before every dial. An empty result sends CONNECT
	// without an Authorization header.
	Token func() string

	HeartBeat        stomp.HeartBeat
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.HeartBeat == (stomp.HeartBeat{}) {
		c.HeartBeat = stomp.HeartBeat{Outgoing: DefaultHeartBeat, Incoming: DefaultHeartBeat}
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Token == nil {
		c.Token = func() string { return "" }
	}
}

// Transport manages the websocket connection. Connect starts a background
// loop that dials, subscribes, reads, and redials after a fixed delay
// until Disconnect is called.
type Transport struct {
	cfg    Config
	dialer *websocket.Dialer

	// mu serializes Connect and Disconnect.
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	connMu  sync.Mutex
	current *conn

	connected atomic.Bool

	hookMu        sync.RWMutex
	onError       func(error)
	onLost        func(error)
	onReconnected func()
}

// New creates a Transport. Nothing is dialed until Connect.
func New(cfg Config) *Transport {
	cfg.applyDefaults()
	return &Transport{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
	}
}

// OnError sets the hook receiving protocol and decode errors. These never
// stop the read loop.
func (t *Transport) OnError(fn func(error)) {
	t.hookMu.Lock()
	t.onError = fn
	t.hookMu.Unlock()
}

// OnConnectionLost sets the hook fired when an established connection
// drops for any reason other than Disconnect.
func (t *Transport) OnConnectionLost(fn func(error)) {
	t.hookMu.Lock()
	t.onLost = fn
	t.hookMu.Unlock()
}

// OnReconnected sets the hook fired when a later connection in the same
// Connect call completes its handshake.
func (t *Transport) OnReconnected(fn func()) {
	t.hookMu.Lock()
	t.onReconnected = fn
	t.hookMu.Unlock()
}

// IsConnected reports whether a CONNECTED frame has been received on the
// current connection.
func (t *Transport) IsConnected() bool {
	return t.connected.Load()
}

// Connect starts the connection loop. It returns immediately; use
// IsConnected to observe the handshake. A second Connect without an
// intervening Disconnect is ignored.
func (t *Transport) Connect(onEvent EventHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		slog.Warn("transport already started, ignoring connect", "url", t.cfg.URL)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})

	go t.run(ctx, onEvent, t.done)
}

// Disconnect stops the loop and waits for it to exit. A DISCONNECT frame
// is sent first when a connection is up. No handler call happens after
// Disconnect returns.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel == nil {
		return
	}

	t.connMu.Lock()
	c := t.current
	t.connMu.Unlock()
	if c != nil && t.connected.Load() {
		if err := c.writeFrame(frame.New(frame.DISCONNECT)); err != nil {
			slog.Debug("sending disconnect frame", "error", err)
		}
	}

	t.cancel()
	<-t.done

	t.cancel = nil
	t.done = nil
	t.connected.Store(false)
	slog.Info("transport disconnected", "url", t.cfg.URL)
}

func (t *Transport) run(ctx context.Context, onEvent EventHandler, done chan struct{}) {
	defer close(done)

	established := false
	for {
		handshook, err := t.session(ctx, onEvent, established)
		if handshook {
			established = true
		}
		if ctx.Err() != nil {
			return
		}

		slog.Warn("transport connection ended, retrying",
			"error", err, "delay", t.cfg.ReconnectDelay)

		timer := time.NewTimer(t.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session runs one connection from dial to drop. handshook reports whether
// CONNECTED was received.
func (t *Transport) session(ctx context.Context, onEvent EventHandler, reconnect bool) (handshook bool, err error) {
	ws, _, err := t.dialer.DialContext(ctx, t.cfg.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dialing %s: %w", t.cfg.URL, err)
	}

	ws.SetReadLimit(stomp.MaxMessageSize)
	c := &conn{ws: ws}
	t.connMu.Lock()
	t.current = c
	t.connMu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer func() {
		stop()
		_ = ws.Close()
		t.connMu.Lock()
		t.current = nil
		t.connMu.Unlock()
	}()

	send, recv, err := t.handshake(c)
	if err != nil {
		return false, err
	}

	t.connected.Store(true)
	slog.Info("transport connected", "url", t.cfg.URL, "topic", t.cfg.Topic,
		"heartbeat_send", send, "heartbeat_recv", recv)
	if reconnect {
		t.fireReconnected()
	}

	beatCtx, stopBeats := context.WithCancel(ctx)
	defer stopBeats()
	if send > 0 {
		go c.heartbeat(beatCtx, send)
	}

	err = t.readLoop(c, recv, onEvent)
	t.connected.Store(false)
	if ctx.Err() == nil {
		t.fireLost(err)
	}
	return true, err
}

func (t *Transport) handshake(c *conn) (send, recv time.Duration, err error) {
	connect := frame.New(frame.CONNECT,
		frame.AcceptVersion, "1.2",
		frame.HeartBeat, t.cfg.HeartBeat.String(),
	)
	if u, perr := url.Parse(t.cfg.URL); perr == nil {
		connect.Header.Add(frame.Host, u.Hostname())
	}
	if token := t.cfg.Token(); token != "" {
		connect.Header.Add("Authorization", "Bearer "+token)
	}
	if err := c.writeFrame(connect); err != nil {
		return 0, 0, fmt.Errorf("sending connect: %w", err)
	}

	_ = c.ws.SetReadDeadline(time.Now().Add(t.cfg.HandshakeTimeout))
	var reply *frame.Frame
	for reply == nil {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return 0, 0, fmt.Errorf("waiting for connected: %w", err)
		}
		frames, err := stomp.Parse(data)
		if err != nil {
			return 0, 0, fmt.Errorf("reading connected: %w", err)
		}
		if len(frames) > 0 {
			reply = frames[0]
		}
	}

	switch reply.Command {
	case frame.CONNECTED:
	case frame.ERROR:
		return 0, 0, fmt.Errorf("broker rejected connect: %s", reply.Header.Get(frame.Message))
	default:
		return 0, 0, fmt.Errorf("%w: expected CONNECTED, got %s", stomp.ErrMalformedFrame, reply.Command)
	}

	server, err := stomp.ParseHeartBeat(reply.Header.Get(frame.HeartBeat))
	if err != nil {
		t.fireError(err)
		server = stomp.HeartBeat{}
	}
	send, recv = stomp.Negotiate(t.cfg.HeartBeat, server)

	subscribe := frame.New(frame.SUBSCRIBE,
		frame.Id, uuid.NewString(),
		frame.Destination, t.cfg.Topic,
		frame.Ack, "auto",
	)
	if err := c.writeFrame(subscribe); err != nil {
		return 0, 0, fmt.Errorf("subscribing to %s: %w", t.cfg.Topic, err)
	}
	return send, recv, nil
}

// readLoop returns only when the connection fails or the broker sends
// ERROR. Bad frames and bad bodies are reported and skipped.
func (t *Transport) readLoop(c *conn, recv time.Duration, onEvent EventHandler) error {
	for {
		deadline := time.Time{}
		if recv > 0 {
			deadline = time.Now().Add(2 * recv)
		}
		_ = c.ws.SetReadDeadline(deadline)

		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading: %w", err)
		}

		frames, err := stomp.Parse(data)
		if err != nil {
			slog.Warn("dropping malformed frame", "error", err)
			t.fireError(err)
		}
		for _, f := range frames {
			switch f.Command {
			case frame.MESSAGE:
				ev, err := event.Decode(f.Body)
				if err != nil {
					slog.Warn("dropping undecodable event",
						"error", err, "message_id", f.Header.Get(frame.MessageId))
					t.fireError(err)
					continue
				}
				onEvent(ev)
			case frame.ERROR:
				err := errors.New("broker error: " + f.Header.Get(frame.Message))
				t.fireError(err)
				return err
			default:
				slog.Debug("ignoring frame", "command", f.Command)
			}
		}
	}
}

func (t *Transport) fireError(err error) {
	t.hookMu.RLock()
	fn := t.onError
	t.hookMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func (t *Transport) fireLost(err error) {
	t.hookMu.RLock()
	fn := t.onLost
	t.hookMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func (t *Transport) fireReconnected() {
	t.hookMu.RLock()
	fn := t.onReconnected
	t.hookMu.RUnlock()
	if fn != nil {
		fn()
	}
}

// conn serializes writes; the websocket allows one concurrent writer.
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *conn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) writeFrame(f *frame.Frame) error {
	data, err := stomp.Encode(f)
	if err != nil {
		return err
	}
	return c.write(data)
}

func (c *conn) heartbeat(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.write([]byte{'\n'}); err != nil {
				slog.Debug("heartbeat write failed", "error", err)
				return
			}
		}
	}
}
