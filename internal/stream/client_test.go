package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeConn is an in-memory Conn fed by the test.
type fakeConn struct {
	msgs   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		msgs:   make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.msgs:
		return 1, data, nil
	case <-f.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (f *fakeConn) WriteMessage(int, []byte) error { return nil }

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// recorder captures dispatched output lines.
type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) WriteLine(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestEnsureConnected_ConcurrentCallsDialOnce(t *testing.T) {
	var dials atomic.Int32
	conn := newFakeConn()

	client := NewClient(Config{
		Dial: func(ctx context.Context, streamURL string) (Conn, error) {
			dials.Add(1)
			// Hold the state in Connecting long enough for the other
			// callers to observe it.
			time.Sleep(20 * time.Millisecond)
			return conn, nil
		},
	}, &recorder{})
	defer client.Close(true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.EnsureConnected("http://127.0.0.1:8765")
		}()
	}
	wg.Wait()

	waitFor(t, time.Second, func() bool { return client.State() == StateOpen })

	if got := dials.Load(); got != 1 {
		t.Errorf("expected exactly 1 dial, got %d", got)
	}
}

func TestEnsureConnected_OpenSameTargetIsNoop(t *testing.T) {
	var dials atomic.Int32

	client := NewClient(Config{
		Dial: func(ctx context.Context, streamURL string) (Conn, error) {
			dials.Add(1)
			return newFakeConn(), nil
		},
	}, &recorder{})
	defer client.Close(true)

	client.EnsureConnected("http://127.0.0.1:8765")
	waitFor(t, time.Second, func() bool { return client.State() == StateOpen })

	// Same target, including a case-only difference in the host.
	client.EnsureConnected("http://127.0.0.1:8765")
	client.EnsureConnected("HTTP://127.0.0.1:8765")

	if got := dials.Load(); got != 1 {
		t.Errorf("expected 1 dial after repeated connects, got %d", got)
	}
}

func TestEnsureConnected_TargetChangeForcesReconnect(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	conns := []*fakeConn{first, second}
	var dials atomic.Int32

	client := NewClient(Config{
		Dial: func(ctx context.Context, streamURL string) (Conn, error) {
			n := dials.Add(1)
			return conns[n-1], nil
		},
	}, &recorder{})
	defer client.Close(true)

	client.EnsureConnected("http://127.0.0.1:8765")
	waitFor(t, time.Second, func() bool { return client.State() == StateOpen })

	client.EnsureConnected("http://127.0.0.1:9999")
	waitFor(t, time.Second, func() bool {
		return client.State() == StateOpen && dials.Load() == 2
	})

	select {
	case <-first.closed:
	default:
		t.Error("previous connection was not closed on target change")
	}

	if got := client.Snapshot().URL; got != "ws://127.0.0.1:9999/ws" {
		t.Errorf("target URL = %q, want ws://127.0.0.1:9999/ws", got)
	}
}

func TestReconnect_AfterUnexpectedDisconnect(t *testing.T) {
	var dials atomic.Int32
	var mu sync.Mutex
	var conns []*fakeConn

	client := NewClient(Config{
		BackoffBase: time.Millisecond,
		BackoffCap:  5 * time.Millisecond,
		Dial: func(ctx context.Context, streamURL string) (Conn, error) {
			dials.Add(1)
			c := newFakeConn()
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
			return c, nil
		},
	}, &recorder{})
	defer client.Close(true)

	client.EnsureConnected("http://127.0.0.1:8765")
	waitFor(t, time.Second, func() bool { return client.State() == StateOpen })

	// Simulate the backend dropping the connection.
	mu.Lock()
	conns[0].Close()
	mu.Unlock()

	waitFor(t, time.Second, func() bool {
		return dials.Load() == 2 && client.State() == StateOpen
	})

	if got := client.Snapshot().Attempts; got != 0 {
		t.Errorf("attempt counter = %d after successful reconnect, want 0", got)
	}
}

func TestReconnect_CounterGrowsWhileUnreachable(t *testing.T) {
	var dials atomic.Int32
	fail := atomic.Bool{}
	fail.Store(true)

	client := NewClient(Config{
		BackoffBase: time.Millisecond,
		BackoffCap:  2 * time.Millisecond,
		Dial: func(ctx context.Context, streamURL string) (Conn, error) {
			dials.Add(1)
			if fail.Load() {
				return nil, errors.New("connection refused")
			}
			return newFakeConn(), nil
		},
	}, &recorder{})
	defer client.Close(true)

	client.EnsureConnected("http://127.0.0.1:8765")

	waitFor(t, time.Second, func() bool { return dials.Load() >= 3 })
	if got := client.Snapshot().Attempts; got < 2 {
		t.Errorf("attempt counter = %d during outage, want >= 2", got)
	}

	fail.Store(false)
	waitFor(t, time.Second, func() bool { return client.State() == StateOpen })

	if got := client.Snapshot().Attempts; got != 0 {
		t.Errorf("attempt counter = %d after recovery, want 0", got)
	}
}

func TestClose_ManualSuppressesReconnect(t *testing.T) {
	var dials atomic.Int32

	client := NewClient(Config{
		BackoffBase: time.Millisecond,
		BackoffCap:  2 * time.Millisecond,
		Dial: func(ctx context.Context, streamURL string) (Conn, error) {
			dials.Add(1)
			return newFakeConn(), nil
		},
	}, &recorder{})

	client.EnsureConnected("http://127.0.0.1:8765")
	waitFor(t, time.Second, func() bool { return client.State() == StateOpen })

	client.Close(true)

	time.Sleep(30 * time.Millisecond)
	if got := dials.Load(); got != 1 {
		t.Errorf("expected no reconnect after manual close, got %d dials", got)
	}
	if got := client.State(); got != StateIdle {
		t.Errorf("state after manual close = %q, want %q", got, StateIdle)
	}
}

func TestClose_Idempotent(t *testing.T) {
	client := NewClient(Config{
		Dial: func(ctx context.Context, streamURL string) (Conn, error) {
			return newFakeConn(), nil
		},
	}, &recorder{})

	// Close with nothing connected, then twice after connecting.
	client.Close(true)

	client.EnsureConnected("http://127.0.0.1:8765")
	waitFor(t, time.Second, func() bool { return client.State() == StateOpen })

	client.Close(true)
	client.Close(true)
}

func TestEnsureConnected_ReconnectsAfterManualClose(t *testing.T) {
	var dials atomic.Int32

	client := NewClient(Config{
		Dial: func(ctx context.Context, streamURL string) (Conn, error) {
			dials.Add(1)
			return newFakeConn(), nil
		},
	}, &recorder{})
	defer client.Close(true)

	client.EnsureConnected("http://127.0.0.1:8765")
	waitFor(t, time.Second, func() bool { return client.State() == StateOpen })
	client.Close(true)

	// An explicit connect clears the manual-close latch.
	client.EnsureConnected("http://127.0.0.1:8765")
	waitFor(t, time.Second, func() bool {
		return client.State() == StateOpen && dials.Load() == 2
	})
}

func TestDispatch_FormatsAndPassesThrough(t *testing.T) {
	conn := newFakeConn()
	out := &recorder{}

	client := NewClient(Config{
		Dial: func(ctx context.Context, streamURL string) (Conn, error) {
			return conn, nil
		},
	}, out)
	defer client.Close(true)

	client.EnsureConnected("http://127.0.0.1:8765")
	waitFor(t, time.Second, func() bool { return client.State() == StateOpen })

	conn.msgs <- []byte(`{"type":"log","stream":"stdout","message":"first"}`)
	conn.msgs <- []byte(`this is not json`)
	conn.msgs <- []byte(`{"type":"task_completed","task_id":"t-1"}`)

	waitFor(t, time.Second, func() bool { return len(out.all()) == 3 })

	want := []string{
		"[STDOUT] first",
		"this is not json",
		"[TASK] t-1 completed",
	}
	got := out.all()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDispatch_InvokesMessageHandler(t *testing.T) {
	conn := newFakeConn()
	var mu sync.Mutex
	var seen []Message

	client := NewClient(Config{
		Dial: func(ctx context.Context, streamURL string) (Conn, error) {
			return conn, nil
		},
		OnMessage: func(m Message) {
			mu.Lock()
			seen = append(seen, m)
			mu.Unlock()
		},
	}, &recorder{})
	defer client.Close(true)

	client.EnsureConnected("http://127.0.0.1:8765")
	waitFor(t, time.Second, func() bool { return client.State() == StateOpen })

	conn.msgs <- []byte(`{"type":"task_failed","task_id":"t-9","error":"boom"}`)
	conn.msgs <- []byte(`unparseable`)

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if seen[0].Type != TypeTaskFailed || seen[0].TaskID != "t-9" {
		t.Errorf("handler received %+v, want task_failed t-9", seen[0])
	}
}

func TestConnectCallbacks(t *testing.T) {
	conn := newFakeConn()
	var connects, disconnects atomic.Int32

	client := NewClient(Config{
		BackoffBase: time.Millisecond,
		Dial: func(ctx context.Context, streamURL string) (Conn, error) {
			return conn, nil
		},
		OnConnect:    func(string) { connects.Add(1) },
		OnDisconnect: func(string, error) { disconnects.Add(1) },
	}, &recorder{})

	client.EnsureConnected("http://127.0.0.1:8765")
	waitFor(t, time.Second, func() bool { return connects.Load() == 1 })

	conn.Close()
	waitFor(t, time.Second, func() bool { return disconnects.Load() >= 1 })

	client.Close(true)
}

func TestEnsureConnected_InvalidBaseURL(t *testing.T) {
	var dials atomic.Int32

	client := NewClient(Config{
		Dial: func(ctx context.Context, streamURL string) (Conn, error) {
			dials.Add(1)
			return newFakeConn(), nil
		},
	}, &recorder{})

	client.EnsureConnected("not a url")

	if got := dials.Load(); got != 0 {
		t.Errorf("expected no dial for invalid base URL, got %d", got)
	}
	if got := client.State(); got != StateIdle {
		t.Errorf("state = %q, want %q", got, StateIdle)
	}
}

func TestReconnect_SchedulerCallbackReportsDelays(t *testing.T) {
	var mu sync.Mutex
	var delays []time.Duration
	var attempts []int

	client := NewClient(Config{
		BackoffBase: time.Millisecond,
		BackoffCap:  4 * time.Millisecond,
		Dial: func(ctx context.Context, streamURL string) (Conn, error) {
			return nil, errors.New("connection refused")
		},
		OnReconnectScheduled: func(attempt int, delay time.Duration) {
			mu.Lock()
			attempts = append(attempts, attempt)
			delays = append(delays, delay)
			mu.Unlock()
		},
	}, &recorder{})
	defer client.Close(true)

	client.EnsureConnected("http://127.0.0.1:8765")

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delays) >= 4
	})

	mu.Lock()
	defer mu.Unlock()
	wantDelays := []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		4 * time.Millisecond,
	}
	for i, want := range wantDelays {
		if delays[i] != want {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want)
		}
		if attempts[i] != i+1 {
			t.Errorf("attempt[%d] = %d, want %d", i, attempts[i], i+1)
		}
	}
}

func TestEnsureConnected_NewTargetCancelsPendingReconnect(t *testing.T) {
	var oldDials, newDials atomic.Int32
	conn := newFakeConn()

	client := NewClient(Config{
		BackoffBase: 50 * time.Millisecond,
		BackoffCap:  50 * time.Millisecond,
		Dial: func(ctx context.Context, streamURL string) (Conn, error) {
			if streamURL == "ws://127.0.0.1:8765/ws" {
				oldDials.Add(1)
				return nil, errors.New("connection refused")
			}
			newDials.Add(1)
			return conn, nil
		},
	}, &recorder{})
	defer client.Close(true)

	// The failed connect leaves a reconnect pending for the old target.
	client.EnsureConnected("http://127.0.0.1:8765")
	waitFor(t, time.Second, func() bool { return oldDials.Load() == 1 })

	client.EnsureConnected("http://127.0.0.1:9999")
	waitFor(t, time.Second, func() bool { return client.State() == StateOpen })

	// Wait past the old target's backoff delay; its timer must not fire.
	time.Sleep(150 * time.Millisecond)

	if got := oldDials.Load(); got != 1 {
		t.Errorf("old target dials = %d, want 1 (stale reconnect fired)", got)
	}
	if got := client.Snapshot().URL; got != "ws://127.0.0.1:9999/ws" {
		t.Errorf("target URL = %q, want ws://127.0.0.1:9999/ws", got)
	}
	if client.State() != StateOpen {
		t.Errorf("state = %v, want open", client.State())
	}
}

func TestDispatch_WhitespaceFramesPassThrough(t *testing.T) {
	conn := newFakeConn()
	out := &recorder{}

	client := NewClient(Config{
		Dial: func(ctx context.Context, streamURL string) (Conn, error) {
			return conn, nil
		},
	}, out)
	defer client.Close(true)

	client.EnsureConnected("http://127.0.0.1:8765")
	waitFor(t, time.Second, func() bool { return client.State() == StateOpen })

	conn.msgs <- []byte("   ")
	conn.msgs <- []byte("")
	conn.msgs <- []byte(`{"type":"log","message":"after"}`)

	waitFor(t, time.Second, func() bool { return len(out.all()) == 3 })

	want := []string{"   ", "", "[LOG] after"}
	got := out.all()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}
