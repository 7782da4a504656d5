package backend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dellis86/sidekick/internal/stream"
)

// streamConn is an in-memory stream.Conn fed by the test.
type streamConn struct {
	msgs   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newStreamConn() *streamConn {
	return &streamConn{
		msgs:   make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *streamConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.msgs:
		return 1, data, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *streamConn) WriteMessage(int, []byte) error { return nil }

func (c *streamConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func TestService_EnsureReadyEndToEnd(t *testing.T) {
	out := &recorder{}
	prober := &fakeProber{}
	script := writeScript(t, "sleep 30")

	var spawns atomic.Int32
	sup := newTestSupervisor(t, script, prober, out, func(int) { spawns.Add(1) })

	conn := newStreamConn()
	var dials atomic.Int32
	client := stream.NewClient(stream.Config{
		Dial: func(ctx context.Context, streamURL string) (stream.Conn, error) {
			dials.Add(1)
			if streamURL != "ws://127.0.0.1:8765/ws" {
				t.Errorf("dialed %q, want ws://127.0.0.1:8765/ws", streamURL)
			}
			return conn, nil
		},
	}, out)

	svc := NewService("http://127.0.0.1:8765", sup, client)
	defer svc.Shutdown()

	svc.EnsureReady(context.Background())

	waitUntil(t, 5*time.Second, func() bool {
		return client.State() == stream.StateOpen
	})
	if got := spawns.Load(); got != 1 {
		t.Errorf("spawns = %d, want 1", got)
	}
	if got := dials.Load(); got != 1 {
		t.Errorf("dials = %d, want 1", got)
	}

	conn.msgs <- []byte(`{"type":"log","stream":"stdout","message":"ready"}`)

	waitUntil(t, 5*time.Second, func() bool {
		for _, line := range out.all() {
			if line == "[STDOUT] ready" {
				return true
			}
		}
		return false
	})
}

func TestService_EnsureReadyIsRepeatable(t *testing.T) {
	out := &recorder{}
	prober := &fakeProber{}
	script := writeScript(t, "sleep 30")

	var spawns atomic.Int32
	sup := newTestSupervisor(t, script, prober, out, func(int) { spawns.Add(1) })

	var dials atomic.Int32
	client := stream.NewClient(stream.Config{
		Dial: func(ctx context.Context, streamURL string) (stream.Conn, error) {
			dials.Add(1)
			return newStreamConn(), nil
		},
	}, out)

	svc := NewService("http://127.0.0.1:8765", sup, client)
	defer svc.Shutdown()

	for i := 0; i < 4; i++ {
		svc.EnsureReady(context.Background())
	}
	waitUntil(t, 5*time.Second, func() bool {
		return client.State() == stream.StateOpen
	})

	if got := spawns.Load(); got != 1 {
		t.Errorf("spawns = %d from repeated EnsureReady, want 1", got)
	}
	if got := dials.Load(); got != 1 {
		t.Errorf("dials = %d from repeated EnsureReady, want 1", got)
	}
}

func TestService_ShutdownSuppressesReconnect(t *testing.T) {
	out := &recorder{}
	prober := &fakeProber{}
	prober.reachable.Store(true)

	var dials atomic.Int32
	client := stream.NewClient(stream.Config{
		BackoffBase: time.Millisecond,
		BackoffCap:  2 * time.Millisecond,
		Dial: func(ctx context.Context, streamURL string) (stream.Conn, error) {
			dials.Add(1)
			return newStreamConn(), nil
		},
	}, out)

	sup := newTestSupervisor(t, "/nonexistent/python", prober, out, nil)
	svc := NewService("http://127.0.0.1:8765", sup, client)

	svc.EnsureReady(context.Background())
	waitUntil(t, 5*time.Second, func() bool {
		return client.State() == stream.StateOpen
	})

	svc.Shutdown()
	time.Sleep(30 * time.Millisecond)

	if got := dials.Load(); got != 1 {
		t.Errorf("dials = %d after Shutdown, want no reconnect", got)
	}
}
