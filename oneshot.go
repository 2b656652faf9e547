package parkit

import (
	"sync/atomic"
)

// OneShot is a single-message rendezvous: exactly one Send, exactly one
// Recv, in either order. Recv blocks until the message arrives.
//
// Send and Recv may be called from different goroutines; a second Send or
// a Recv after the message was consumed panics, since reuse would hand
// out the same value twice or drop one silently.
//
// It is zero-value usable.
type OneShot[T any] struct {
	_     noCopy
	state uint32
	msg   T
}

const (
	oneShotEmpty    = 0
	oneShotWriting  = 1
	oneShotReady    = 2
	oneShotConsumed = 3
)

// NewOneShot creates a OneShot channel. The zero value is also ready to use.
func NewOneShot[T any]() *OneShot[T] {
	return &OneShot[T]{}
}

// Send stores the message and wakes the receiver if it is already
// blocked. It panics if called more than once.
func (c *OneShot[T]) Send(msg T) {
	// Claim the slot before writing: the message store must complete
	// before the ready state is published.
	if !atomic.CompareAndSwapUint32(&c.state, oneShotEmpty, oneShotWriting) {
		panic("parkit: send on a used OneShot")
	}
	c.msg = msg
	atomic.StoreUint32(&c.state, oneShotReady)
	futexWakeOne(&c.state)
}

// Recv blocks until the message has been sent and returns it. It panics
// if the message was already consumed.
func (c *OneShot[T]) Recv() T {
	for {
		s := atomic.LoadUint32(&c.state)
		switch s {
		case oneShotReady:
			if msg, ok := c.take(); ok {
				return msg
			}
		case oneShotConsumed:
			panic("parkit: receive on a consumed OneShot")
		default:
			futexWait(&c.state, s)
		}
	}
}

// TryRecv returns the message if it has been sent and not yet consumed.
func (c *OneShot[T]) TryRecv() (T, bool) {
	return c.take()
}

func (c *OneShot[T]) take() (T, bool) {
	if atomic.CompareAndSwapUint32(&c.state, oneShotReady, oneShotConsumed) {
		return c.msg, true
	}
	var zero T
	return zero, false
}
