// Package realtime keeps the single push connection to the server and
// routes pushed ticket events into the shared cache and to subscribers.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	wstypes "ticketsync/internal/domain/realtime"
)

const (
	writeWait        = 10 * time.Second
	handshakeTimeout = 45 * time.Second
	maxMessageSize   = 512 * 1024 // 512KB
)

type Options struct {
	URL        string
	Jar        http.CookieJar
	Token      func() string
	Dispatcher *Dispatcher
	// Reconnect yields the delay before each reconnect attempt. Nil means a
	// fixed DefaultReconnectDelay.
	Reconnect backoff.BackOff
	// MaxAttempts caps consecutive failed reconnects before the channel
	// enters StateFailed. Zero means never give up.
	MaxAttempts int
	Logger      *zap.Logger
}

// Channel owns at most one live push connection. Connect and Disconnect
// never block on the network.
type Channel struct {
	url         string
	dialer      *websocket.Dialer
	token       func() string
	dispatcher  *Dispatcher
	policy      backoff.BackOff
	maxAttempts int
	log         *zap.Logger

	mu          sync.Mutex
	state       wstypes.ConnState
	conn        *websocket.Conn
	gen         uint64 // identifies the current connection attempt
	intentional bool
	timer       *time.Timer
	timerSeq    uint64             // identifies the armed timer; a fired callback with a stale value does nothing
	cancel      context.CancelFunc // ends the current attempt or connection
	attempts    int
	dials       int

	obsMu     sync.Mutex
	observers map[uint64]func(wstypes.ConnState)
	nextObs   uint64

	wg sync.WaitGroup
}

func NewChannel(opts Options) *Channel {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	policy := opts.Reconnect
	if policy == nil {
		policy = backoff.NewConstantBackOff(DefaultReconnectDelay)
	}
	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = NewDispatcher()
	}
	return &Channel{
		url: opts.URL,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			Jar:              opts.Jar,
		},
		token:       opts.Token,
		dispatcher:  dispatcher,
		policy:      policy,
		maxAttempts: opts.MaxAttempts,
		log:         log.Named("realtime"),
		state:       wstypes.StateDisconnected,
		observers:   make(map[uint64]func(wstypes.ConnState)),
	}
}

func (c *Channel) State() wstypes.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStateChange registers fn for every state transition. fn must not call
// back into the channel synchronously.
func (c *Channel) OnStateChange(fn func(wstypes.ConnState)) func() {
	c.obsMu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.obsMu.Unlock()

	return func() {
		c.obsMu.Lock()
		delete(c.observers, id)
		c.obsMu.Unlock()
	}
}

// Connect starts a connection unless one is connecting or open. A pending
// reconnect is cancelled in favour of an immediate attempt.
func (c *Channel) Connect() {
	c.mu.Lock()
	if c.state == wstypes.StateConnecting || c.state == wstypes.StateOpen {
		c.mu.Unlock()
		return
	}
	c.intentional = false
	c.stopTimerLocked()
	if c.state == wstypes.StateFailed {
		c.attempts = 0
		c.policy.Reset()
	}
	notify := c.startDialLocked()
	c.mu.Unlock()
	notify()
}

// Disconnect closes the connection with a normal closure and suppresses
// any reconnect until the next Connect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.intentional = true
	c.stopTimerLocked()
	c.gen++
	c.cancelLocked()
	conn := c.conn
	c.conn = nil
	c.attempts = 0
	c.policy.Reset()
	notify := c.setStateLocked(wstypes.StateDisconnected)
	c.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Client disconnecting")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
			c.log.Debug("close frame not sent", zap.Error(err))
		}
		_ = conn.Close()
		c.log.Info("push channel disconnected")
	}
	notify()
}

// Close disconnects and waits for the connection goroutine to exit.
func (c *Channel) Close() {
	c.Disconnect()
	c.wg.Wait()
}

func (c *Channel) startDialLocked() func() {
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.dials++

	c.wg.Add(1)
	go c.run(ctx, gen)

	return c.setStateLocked(wstypes.StateConnecting)
}

func (c *Channel) run(ctx context.Context, gen uint64) {
	defer c.wg.Done()

	header := http.Header{}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	c.log.Debug("connecting", zap.String("url", c.url))
	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.log.Warn("push channel dial failed", zap.String("url", c.url), zap.Error(err))
		c.cancelLocked()
		notify := c.lostLocked()
		c.mu.Unlock()
		notify()
		return
	}
	c.conn = conn
	c.attempts = 0
	c.policy.Reset()
	notify := c.setStateLocked(wstypes.StateOpen)
	c.mu.Unlock()

	c.log.Info("push channel open", zap.String("url", c.url))
	notify()
	c.readLoop(ctx, conn, gen)
}

// readLoop dispatches frames in arrival order until the connection ends.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn, gen uint64) {
	conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("push channel read failed", zap.Error(err))
			} else {
				c.log.Debug("push channel closed", zap.Error(err))
			}

			c.mu.Lock()
			if gen != c.gen {
				c.mu.Unlock()
				return
			}
			c.conn = nil
			c.cancelLocked()
			notify := c.lostLocked()
			c.mu.Unlock()

			_ = conn.Close()
			notify()
			return
		}

		c.handleFrame(ctx, data)
	}
}

func (c *Channel) handleFrame(ctx context.Context, data []byte) {
	env, err := wstypes.ParseEnvelope(data)
	if err != nil {
		c.log.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	handled, err := c.dispatcher.Dispatch(ctx, env)
	switch {
	case err != nil:
		c.log.Warn("event handler failed", zap.String("event", string(env.Event)), zap.Error(err))
	case !handled:
		c.log.Debug("ignoring unknown event", zap.String("event", string(env.Event)))
	}
}

// lostLocked records an unplanned loss of the connection and schedules the
// next attempt unless the loss was caller-initiated.
func (c *Channel) lostLocked() func() {
	if c.intentional {
		return c.setStateLocked(wstypes.StateDisconnected)
	}
	if !c.scheduleReconnectLocked() {
		return c.setStateLocked(wstypes.StateFailed)
	}
	return c.setStateLocked(wstypes.StateDisconnected)
}

// scheduleReconnectLocked arms the reconnect timer. It is a no-op while a
// timer is outstanding and returns false once the policy gives up.
func (c *Channel) scheduleReconnectLocked() bool {
	if c.timer != nil {
		return true
	}

	c.attempts++
	if c.maxAttempts > 0 && c.attempts > c.maxAttempts {
		c.log.Error("giving up on push channel", zap.Int("attempts", c.attempts-1))
		return false
	}
	delay := c.policy.NextBackOff()
	if delay == backoff.Stop {
		c.log.Error("reconnect policy stopped", zap.Int("attempts", c.attempts-1))
		return false
	}

	c.log.Info("reconnecting", zap.Duration("in", delay), zap.Int("attempt", c.attempts))
	c.timerSeq++
	seq := c.timerSeq
	c.timer = time.AfterFunc(delay, func() { c.fireReconnect(seq) })
	return true
}

func (c *Channel) fireReconnect(seq uint64) {
	c.mu.Lock()
	if c.timer == nil || c.timerSeq != seq {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.intentional || c.state == wstypes.StateConnecting || c.state == wstypes.StateOpen {
		c.mu.Unlock()
		return
	}
	notify := c.startDialLocked()
	c.mu.Unlock()
	notify()
}

func (c *Channel) cancelLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Channel) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// setStateLocked records the new state and returns the func that tells
// observers; call it after releasing c.mu.
func (c *Channel) setStateLocked(s wstypes.ConnState) func() {
	if c.state == s {
		return func() {}
	}
	c.state = s

	c.obsMu.Lock()
	fns := make([]func(wstypes.ConnState), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.obsMu.Unlock()

	return func() {
		for _, fn := range fns {
			fn(s)
		}
	}
}

func (c *Channel) reconnectPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

// Dials reports how many connection attempts have been started.
func (c *Channel) Dials() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dials
}
