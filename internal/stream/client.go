package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dellis86/sidekick/internal/sink"
)

// State represents the connection state of the stream client.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosing    State = "closing"
)

// defaultDialTimeout bounds a single transport connect attempt.
const defaultDialTimeout = 10 * time.Second

// Logger defines the logging interface for the stream client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Conn is the subset of *websocket.Conn the client uses.
// It exists so tests can substitute the transport.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc establishes a WebSocket connection to the given stream URL.
type DialFunc func(ctx context.Context, streamURL string) (Conn, error)

// defaultDial connects using the gorilla/websocket default dialer.
func defaultDial(ctx context.Context, streamURL string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close() //nolint:errcheck // Handshake response body is not used
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Config holds configuration for the stream client.
type Config struct {
	// DialTimeout bounds a single connect attempt. Defaults to 10s.
	DialTimeout time.Duration

	// BackoffBase is the delay before the first reconnect attempt.
	// Defaults to 500ms.
	BackoffBase time.Duration

	// BackoffCap bounds the reconnect delay. Defaults to 5s.
	BackoffCap time.Duration

	// Dial substitutes the transport. Defaults to the gorilla dialer.
	Dial DialFunc

	// OnConnect is invoked after every successful connect.
	OnConnect func(streamURL string)

	// OnDisconnect is invoked after every unexpected disconnect.
	OnDisconnect func(streamURL string, err error)

	// OnMessage is invoked for every recognised envelope, after the
	// formatted line has been written to the sink.
	OnMessage func(Message)

	// OnReconnectScheduled is invoked each time a reconnect is scheduled,
	// with the attempt number and the chosen delay. It runs inside the
	// scheduler's critical section and must not call back into the client.
	OnReconnectScheduled func(attempt int, delay time.Duration)
}

// Client maintains the single logical stream connection to the backend's
// event channel.
//
// There is at most one connect attempt in flight, at most one scheduled
// reconnect pending, and at most one read loop running at any time. All
// state transitions are linearised by an internal mutex.
//
// None of the public methods return errors: every failure is logged and
// recovered by the reconnect scheduler, matching the shim's contract that
// stream trouble never interrupts the developer.
type Client struct {
	cfg    Config
	out    sink.Sink
	logger Logger

	mu          sync.Mutex
	state       State
	conn        Conn
	url         string             // current target stream URL
	manualClose bool               // set by Close(true); suppresses reconnects
	attempts    int                // consecutive failed-connect counter
	pending     *time.Timer        // the one scheduled reconnect, nil when none
	readCancel  context.CancelFunc // cancels the active read loop
}

// NewClient creates a stream client writing dispatched lines to out.
func NewClient(cfg Config, out sink.Sink) *Client {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.BackoffCap == 0 {
		cfg.BackoffCap = defaultBackoffCap
	}
	if cfg.Dial == nil {
		cfg.Dial = defaultDial
	}

	return &Client{
		cfg:    cfg,
		out:    out,
		logger: noopLogger{},
		state:  StateIdle,
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// EnsureConnected establishes the stream connection for the given backend
// base URL if one is not already open or being opened.
//
// The target stream URL is derived via StreamURL; if the base URL cannot be
// transformed, no connection is attempted. A live connection to a different
// URL is closed first so a target change always forces a full reconnect.
func (c *Client) EnsureConnected(baseURL string) {
	target, err := StreamURL(baseURL)
	if err != nil {
		c.logger.Warn("cannot derive stream URL, skipping connect", "base_url", baseURL, "error", err)
		return
	}
	c.connect(target, true)
}

// connect is the single connect path, shared by EnsureConnected and the
// reconnect scheduler. explicit marks a caller-initiated connect, which
// clears a previous manual close.
func (c *Client) connect(target string, explicit bool) {
	c.mu.Lock()
	if explicit {
		c.manualClose = false
		// A reconnect scheduled for a previous target must not fire and
		// re-dial the stale URL behind this connect.
		if c.pending != nil {
			c.pending.Stop()
			c.pending = nil
		}
	} else if c.manualClose {
		c.mu.Unlock()
		return
	}

	// De-duplicate: one attempt in flight, no redundant reconnects to the
	// same target. URL comparison is case-insensitive but otherwise exact.
	if c.state == StateConnecting {
		c.mu.Unlock()
		return
	}
	if c.state == StateOpen && strings.EqualFold(c.url, target) {
		c.mu.Unlock()
		return
	}

	// Target change: take the old connection out of the state so it can be
	// torn down outside the lock.
	oldConn := c.conn
	oldCancel := c.readCancel
	c.conn = nil
	c.readCancel = nil
	c.state = StateConnecting
	c.url = target
	c.mu.Unlock()

	if oldCancel != nil {
		oldCancel()
	}
	if oldConn != nil {
		c.logger.Info("stream target changed, closing previous connection")
		oldConn.Close() //nolint:errcheck // Best-effort close on target change
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	conn, err := c.cfg.Dial(ctx, target)
	cancel()

	if err != nil {
		c.logger.Warn("stream connect failed", "url", target, "error", err)
		c.mu.Lock()
		c.state = StateIdle
		manual := c.manualClose
		c.mu.Unlock()
		if !manual {
			c.scheduleReconnect(target)
		}
		return
	}

	readCtx, readCancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.manualClose {
		// Close(true) raced with the dial; honour it.
		c.state = StateIdle
		c.mu.Unlock()
		readCancel()
		conn.Close() //nolint:errcheck // Connection was never published
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	c.readCancel = readCancel
	c.mu.Unlock()

	c.logger.Info("stream connected", "url", target)
	if c.cfg.OnConnect != nil {
		c.cfg.OnConnect(target)
	}

	go c.readLoop(readCtx, conn, target)
}

// scheduleReconnect arranges a single future connect attempt to target.
// At most one reconnect is pending at a time; the delay grows exponentially
// with the consecutive-failure count and is capped.
func (c *Client) scheduleReconnect(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.manualClose || c.pending != nil {
		return
	}

	delay := backoffDelay(c.attempts, c.cfg.BackoffBase, c.cfg.BackoffCap)
	c.attempts++
	c.logger.Info("scheduling stream reconnect", "url", target, "delay", delay.String(), "attempt", c.attempts)
	if c.cfg.OnReconnectScheduled != nil {
		c.cfg.OnReconnectScheduled(c.attempts, delay)
	}

	c.pending = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.pending = nil
		manual := c.manualClose
		c.mu.Unlock()
		if manual {
			return
		}
		c.connect(target, false)
	})
}

// readLoop receives messages until the connection fails, the server closes
// it, or Close cancels it. It dispatches every complete message and hands
// unexpected disconnects to the reconnect scheduler.
func (c *Client) readLoop(ctx context.Context, conn Conn, target string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadEnd(ctx, conn, target, err)
			return
		}
		c.dispatch(data)
	}
}

// handleReadEnd finalises a terminated read loop and decides whether to
// schedule a reconnect.
func (c *Client) handleReadEnd(ctx context.Context, conn Conn, target string, err error) {
	if ctx.Err() != nil {
		// Cancelled by Close; state was already cleared there.
		c.logger.Debug("stream read loop cancelled", "url", target)
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Info("stream closed by backend", "url", target)
	} else {
		c.logger.Warn("stream disconnected", "url", target, "error", err)
	}

	c.mu.Lock()
	manual := c.manualClose
	if c.conn == conn {
		c.conn = nil
		c.readCancel = nil
		c.state = StateIdle
	}
	c.mu.Unlock()

	if c.cfg.OnDisconnect != nil {
		c.cfg.OnDisconnect(target, err)
	}

	if !manual {
		c.scheduleReconnect(target)
	}
}

// dispatch parses one complete message and routes it to the output sink.
// Unparseable payloads pass through verbatim; nothing is ever dropped.
func (c *Client) dispatch(data []byte) {
	msg := parseMessage(data)
	c.out.WriteLine(msg.Line())
	if msg.Type != "" && c.cfg.OnMessage != nil {
		c.cfg.OnMessage(msg)
	}
}

// Close shuts the connection down. manual marks a caller-requested shutdown,
// which also cancels any pending reconnect and suppresses future automatic
// ones until the next explicit EnsureConnected.
//
// Close is idempotent and safe to call when nothing is connected. Transport
// errors during the close handshake are swallowed; shutdown always completes.
func (c *Client) Close(manual bool) {
	c.mu.Lock()
	if manual {
		c.manualClose = true
		if c.pending != nil {
			c.pending.Stop()
			c.pending = nil
		}
	}
	conn := c.conn
	cancel := c.readCancel
	c.conn = nil
	c.readCancel = nil
	if conn != nil {
		c.state = StateClosing
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		//nolint:errcheck // Best-effort close handshake
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close() //nolint:errcheck // Best-effort close
		c.logger.Info("stream closed", "manual", manual)
	}

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
}

// Snapshot is a point-in-time view of the client state for introspection.
type Snapshot struct {
	State    State  `json:"state"`
	URL      string `json:"url,omitempty"`
	Attempts int    `json:"reconnect_attempts"`
}

// Snapshot returns the current connection state.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:    c.state,
		URL:      c.url,
		Attempts: c.attempts,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
