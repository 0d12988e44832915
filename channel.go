package vex

import (
	"sync"
	"time"
)

// Channel is a typed FIFO used for inter-worker communication, per
// spec.md §4.7. It wraps a native Go channel with explicit sender and
// receiver reference counts so "all senders dropped" / "all receivers
// dropped" are observable conditions, which a bare Go channel alone
// does not expose (a close only signals the former).
type Channel struct {
	ch        chan Value
	mu        sync.Mutex
	senders   int
	receivers int
	closed    bool
}

// NewChannel creates a channel with the given buffer capacity and one
// sender/receiver handle each; AddSender/AddReceiver register more.
func NewChannel(capacity int) *Channel {
	return &Channel{
		ch:        make(chan Value, capacity),
		senders:   1,
		receivers: 1,
	}
}

func (c *Channel) AddSender()   { c.mu.Lock(); c.senders++; c.mu.Unlock() }
func (c *Channel) AddReceiver() { c.mu.Lock(); c.receivers++; c.mu.Unlock() }

// DropSender decrements the sender count; when it reaches zero the
// underlying channel is closed so blocked receivers unblock with
// ok=false rather than hanging forever.
func (c *Channel) DropSender() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.senders--
	if c.senders <= 0 && !c.closed {
		c.closed = true
		close(c.ch)
	}
}

func (c *Channel) DropReceiver() {
	c.mu.Lock()
	c.receivers--
	c.mu.Unlock()
}

// Send enqueues v. It reports an error rather than panicking if every
// sender has already dropped out from under the caller.
func (c *Channel) Send(v Value) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return newLookupError("send on a channel with no senders")
	}
	c.mu.Unlock()
	c.ch <- v
	return nil
}

// Recv dequeues the next value. ok is false once the channel is closed
// and drained, per spec.md §4.7's "all senders dropped" contract.
func (c *Channel) Recv() (Value, bool) {
	v, ok := <-c.ch
	return v, ok
}

// TryRecv dequeues the next value without blocking, per spec.md §4.7's
// try_recv: ok is false both when the channel is empty and when it is
// closed and drained.
func (c *Channel) TryRecv() (Value, bool) {
	select {
	case v, ok := <-c.ch:
		return v, ok
	default:
		return MakeNull(), false
	}
}

// RecvTimeout dequeues the next value, giving up after d elapses. It is
// spec.md §5's one cancellation-adjacent primitive: ok is false on
// either a closed channel or a timeout.
func (c *Channel) RecvTimeout(d time.Duration) (Value, bool) {
	select {
	case v, ok := <-c.ch:
		return v, ok
	case <-time.After(d):
		return MakeNull(), false
	}
}

// ReceiversRemaining reports how many receiver handles are still
// outstanding, used by senders that want to detect a channel nobody is
// listening on anymore (a count of zero).
func (c *Channel) ReceiversRemaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receivers
}
