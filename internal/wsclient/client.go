// Package wsclient is the client side of the analysis websocket: it keeps a
// connection open, reconnects with backoff and hands every decoded reply to
// the registered callbacks.
package wsclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/park285/chess-analyzer/internal/analysis"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrNotConnected = errors.New("websocket not connected")

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "disconnected"
	}
}

type ResponseCallback func(resp analysis.Response)

type StateCallback func(state State)

type callbackEntry struct {
	id       int
	callback ResponseCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// link is one dialed connection; done closes when its reader exits.
type link struct {
	conn *websocket.Conn
	done chan struct{}
}

type Option func(*Client)

// WithReconnect sets how many dial attempts follow a dropped connection and
// the first backoff delay. Zero attempts disables reconnecting.
func WithReconnect(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.maxReconnectAttempts = maxAttempts
		if baseDelay > 0 {
			c.reconnectDelay = baseDelay
		}
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h.Clone() }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

type Client struct {
	url    string
	header http.Header
	logger *zap.Logger

	link  *link
	linkM sync.RWMutex

	state  State
	stateM sync.RWMutex

	respCbs  []callbackEntry
	stateCbs []stateCallbackEntry
	nextID   int
	cbM      sync.RWMutex

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func New(url string, opts ...Option) *Client {
	c := &Client{
		url:                  url,
		header:               http.Header{},
		logger:               zap.NewNop(),
		state:                StateDisconnected,
		maxReconnectAttempts: 5,
		reconnectDelay:       100 * time.Millisecond,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rootCtx, c.rootCancel = context.WithCancel(context.Background())
	return c
}

// Connect dials once. On failure it returns the error and, when reconnects
// are enabled, keeps trying in the background.
func (c *Client) Connect(ctx context.Context) error {
	switch c.State() {
	case StateConnected, StateConnecting:
		return nil
	}
	c.setState(StateConnecting)

	conn, err := c.dial(ctx)
	if err != nil {
		c.logger.Warn("ws_connect_failed", zap.String("url", c.url), zap.Error(err))
		c.setState(StateFailed)
		c.scheduleReconnect()
		return err
	}
	c.attach(conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      c.header,
	})
	return conn, err
}

func (c *Client) attach(conn *websocket.Conn) {
	l := &link{conn: conn, done: make(chan struct{})}
	c.linkM.Lock()
	c.link = l
	c.linkM.Unlock()
	c.setState(StateConnected)

	c.wg.Add(2)
	go c.listen(l)
	go c.pingLoop(l)
}

// Send writes one request. Replies arrive through OnAnalysis callbacks.
func (c *Client) Send(ctx context.Context, req analysis.Request) error {
	c.linkM.RLock()
	l := c.link
	c.linkM.RUnlock()
	if l == nil {
		return ErrNotConnected
	}
	return wsjson.Write(ctx, l.conn, req)
}

func (c *Client) listen(l *link) {
	defer c.wg.Done()
	defer close(l.done)
	for {
		var resp analysis.Response
		if err := wsjson.Read(c.rootCtx, l.conn, &resp); err != nil {
			if c.isStopping() {
				return
			}
			c.logger.Info("ws_read_failed", zap.Error(err))
			c.drop(l, websocket.StatusGoingAway, "reconnect")
			c.setState(StateDisconnected)
			c.scheduleReconnect()
			return
		}

		c.cbM.RLock()
		callbacks := make([]callbackEntry, len(c.respCbs))
		copy(callbacks, c.respCbs)
		c.cbM.RUnlock()
		for _, entry := range callbacks {
			if entry.callback != nil {
				entry.callback(resp)
			}
		}
	}
}

// pingLoop closes the link after two missed pongs; the reader then notices
// and reconnects.
func (c *Client) pingLoop(l *link) {
	defer c.wg.Done()
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-c.stopCh:
			return
		case <-l.done:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(c.rootCtx, 3*time.Second)
			err := l.conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				c.logger.Warn("ws_ping_failed", zap.Error(err))
				c.drop(l, websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (c *Client) scheduleReconnect() {
	if c.maxReconnectAttempts <= 0 {
		return
	}
	c.setState(StateReconnecting)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for attempt := 1; attempt <= c.maxReconnectAttempts; attempt++ {
			select {
			case <-c.stopCh:
				return
			case <-time.After(backoffDuration(c.reconnectDelay, attempt)):
			}

			conn, err := c.dial(c.rootCtx)
			if err != nil {
				c.logger.Debug("ws_reconnect_failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			if c.isStopping() {
				_ = conn.Close(websocket.StatusNormalClosure, "close")
				return
			}
			c.logger.Info("ws_reconnected", zap.Int("attempt", attempt))
			c.attach(conn)
			return
		}
		c.setState(StateFailed)
	}()
}

// backoffDuration doubles base per attempt, capped at the sixth.
func backoffDuration(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * base
}

func (c *Client) OnAnalysis(cb ResponseCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextID++
	c.respCbs = append(c.respCbs, callbackEntry{id: c.nextID, callback: cb})
	return c.nextID
}

func (c *Client) RemoveCallback(id int) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	for i, cb := range c.respCbs {
		if cb.id == id {
			c.respCbs = append(c.respCbs[:i], c.respCbs[i+1:]...)
			break
		}
	}
}

func (c *Client) OnStateChange(cb StateCallback) int {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.nextID++
	c.stateCbs = append(c.stateCbs, stateCallbackEntry{id: c.nextID, callback: cb})
	return c.nextID
}

func (c *Client) RemoveStateCallback(id int) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	for i, cb := range c.stateCbs {
		if cb.id == id {
			c.stateCbs = append(c.stateCbs[:i], c.stateCbs[i+1:]...)
			break
		}
	}
}

func (c *Client) State() State {
	c.stateM.RLock()
	defer c.stateM.RUnlock()
	return c.state
}

func (c *Client) setState(state State) {
	c.stateM.Lock()
	c.state = state
	c.stateM.Unlock()

	c.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(c.stateCbs))
	copy(callbacks, c.stateCbs)
	c.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

// Close stops reconnecting, closes the connection and waits for the
// background goroutines or ctx, whichever comes first.
func (c *Client) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	c.linkM.RLock()
	l := c.link
	c.linkM.RUnlock()
	if l != nil {
		c.drop(l, websocket.StatusNormalClosure, "close")
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		c.rootCancel()
		c.setState(StateDisconnected)
		return nil
	}
}

func (c *Client) drop(l *link, code websocket.StatusCode, reason string) {
	c.linkM.Lock()
	if c.link == l {
		c.link = nil
	}
	c.linkM.Unlock()
	_ = l.conn.Close(code, reason)
}

func (c *Client) isStopping() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}
