package channel

import (
	"context"
	"errors"
	"iter"
	"sync"
)

var (
	// ErrClosed is returned by Write after the channel was completed or failed.
	ErrClosed = errors.New("channel: write to completed channel")
	// ErrWouldBlock is returned by TryNext when the channel is empty but still open.
	ErrWouldBlock = errors.New("channel: no item ready")
)

// Reader is the read capability of a Channel.
type Reader[T any] interface {
	Next(ctx context.Context) (T, bool, error)
	TryNext() (T, bool, error)
	All(ctx context.Context) iter.Seq2[T, error]
	Changed() <-chan struct{}
	Done() <-chan struct{}
	Err() error
}

// Writer is the write capability of a Channel. Only the producer that owns
// the channel should call Complete or Fail.
type Writer[T any] interface {
	Write(ctx context.Context, item T) error
	Complete() bool
	Fail(err error) bool
}

// Channel is an asynchronous FIFO conduit with an explicit terminal signal.
//
// Writers append under the capacity limit; readers suspend until an item is
// queued or the channel is terminal and drained. A channel ends exactly once,
// either completed or failed. Items queued before a failure are still
// delivered; the failure is reported once the queue is empty.
type Channel[T any] struct {
	capacity Capacity

	mu      sync.Mutex
	items   []T
	head    int
	closed  bool
	err     error
	changed chan struct{}
	done    chan struct{}
}

// New creates a channel with the given capacity.
func New[T any](capacity Capacity) *Channel[T] {
	return &Channel[T]{
		capacity: capacity,
		changed:  make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Write queues item, suspending while a bounded channel is full.
func (c *Channel[T]) Write(ctx context.Context, item T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	for {
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		if !c.capacity.IsBounded() || c.lenLocked() < c.capacity.Limit() {
			break
		}
		wait := c.changed
		c.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
	}
	c.items = append(c.items, item)
	c.notifyLocked()
	c.mu.Unlock()
	return nil
}

// Complete marks the channel as finished. It reports whether this call was
// the one that ended the channel.
func (c *Channel[T]) Complete() bool {
	return c.Fail(nil)
}

// Fail marks the channel as failed with err; a nil err completes it. Only the
// first terminal signal takes effect.
func (c *Channel[T]) Fail(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	c.err = err
	close(c.done)
	c.notifyLocked()
	return true
}

// Next returns the next item, suspending until one is queued. It returns
// ok=false once the channel has ended and drained, together with the failure
// if there was one.
func (c *Channel[T]) Next(ctx context.Context) (T, bool, error) {
	for {
		wait := c.Changed()
		item, ok, err := c.TryNext()
		if !errors.Is(err, ErrWouldBlock) {
			return item, ok, err
		}
		select {
		case <-wait:
		case <-ctx.Done():
			var zero T
			return zero, false, ctx.Err()
		}
	}
}

// TryNext is the non-blocking form of Next. It returns ErrWouldBlock when the
// channel is empty and still open.
func (c *Channel[T]) TryNext() (T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if c.lenLocked() > 0 {
		item := c.items[c.head]
		c.items[c.head] = zero
		c.head++
		c.compactLocked()
		c.notifyLocked()
		return item, true, nil
	}
	if c.closed {
		return zero, false, c.err
	}
	return zero, false, ErrWouldBlock
}

// All returns a sequence over the remaining items. Each call starts from the
// current head of the queue. If the channel failed, or ctx ends, the last pair
// yielded carries the error.
func (c *Channel[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, ok, err := c.Next(ctx)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !ok || !yield(item, nil) {
				return
			}
		}
	}
}

// Changed returns a channel that is closed at the next state change: a write,
// a read, or the terminal signal. Capture it before polling to avoid missing
// a wake-up.
func (c *Channel[T]) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// Done is closed once the channel has been completed or failed. Items may
// still be queued.
func (c *Channel[T]) Done() <-chan struct{} { return c.done }

// Err returns the failure recorded by Fail, or nil.
func (c *Channel[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Len returns the number of queued items.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lenLocked()
}

// Capacity returns the configured capacity.
func (c *Channel[T]) Capacity() Capacity { return c.capacity }

// Reader returns the read-only view of the channel.
func (c *Channel[T]) Reader() Reader[T] { return c }

// Writer returns the write-only view of the channel.
func (c *Channel[T]) Writer() Writer[T] { return c }

func (c *Channel[T]) lenLocked() int { return len(c.items) - c.head }

// notifyLocked wakes every goroutine waiting on the current changed channel.
func (c *Channel[T]) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Channel[T]) compactLocked() {
	switch {
	case c.head == len(c.items):
		c.items = c.items[:0]
		c.head = 0
	case c.head >= 32 && c.head*2 >= len(c.items):
		n := copy(c.items, c.items[c.head:])
		clear(c.items[n:])
		c.items = c.items[:n]
		c.head = 0
	}
}
