// Package sink defines the append-only output destination for developer-facing
// lines produced by the supervisor and the event-stream dispatcher.
//
// Sinks are fire-and-forget: writers never receive errors and never block on
// a slow destination. Buffered wraps any sink with a bounded queue consumed
// by a single goroutine, dropping lines on overflow rather than stalling the
// stream read loop.
package sink

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// Sink is an append-only destination for output lines.
//
// Implementations must be safe for concurrent use.
type Sink interface {
	WriteLine(line string)
}

// Console writes lines to an io.Writer, one line per call.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console sink writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// WriteLine writes one line followed by a newline. Write errors are ignored;
// the sink contract is best-effort.
func (c *Console) WriteLine(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line) //nolint:errcheck // Best-effort sink write
}

// Fanout duplicates every line to all child sinks.
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a fan-out over the given sinks. Nil entries are skipped.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// WriteLine forwards the line to every child sink.
func (f *Fanout) WriteLine(line string) {
	for _, s := range f.sinks {
		s.WriteLine(line)
	}
}

// Buffered decouples writers from a slow destination with a bounded queue.
// Lines are delivered in order by a single consumer goroutine; when the
// queue is full the line is dropped and counted.
type Buffered struct {
	inner   Sink
	queue   chan string
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64
	once    sync.Once
}

// NewBuffered wraps inner with a queue of the given size and starts the
// consumer goroutine. Close must be called to release it.
func NewBuffered(inner Sink, size int) *Buffered {
	b := &Buffered{
		inner: inner,
		queue: make(chan string, size),
		done:  make(chan struct{}),
	}
	b.wg.Add(1)
	go b.consume()
	return b
}

// WriteLine enqueues the line without blocking. Full queue drops the line.
func (b *Buffered) WriteLine(line string) {
	select {
	case <-b.done:
	case b.queue <- line:
	default:
		b.dropped.Add(1)
	}
}

// Dropped returns the number of lines dropped due to a full queue.
func (b *Buffered) Dropped() uint64 {
	return b.dropped.Load()
}

// Close stops the consumer after draining queued lines. Idempotent.
func (b *Buffered) Close() {
	b.once.Do(func() {
		close(b.done)
		b.wg.Wait()
	})
}

func (b *Buffered) consume() {
	defer b.wg.Done()
	for {
		select {
		case <-b.done:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case line := <-b.queue:
					b.inner.WriteLine(line)
				default:
					return
				}
			}
		case line := <-b.queue:
			b.inner.WriteLine(line)
		}
	}
}
