package parkit

import (
	"sync/atomic"
)

// Condvar is a condition variable for use with Mutex.
//
// It is associated with a mutex only for the duration of a Wait call; one
// Condvar can serve different mutexes over its lifetime (though waiters on
// the same condition should share one).
//
// There is no lost-wakeup race: Wait samples the notification counter
// before releasing the mutex and parks only if the counter is still at the
// sampled value, so a notification between the caller's condition check
// and the park is always observed.
//
// It is zero-value usable.
//
// Size: 8 bytes (4 byte counter + 4 byte waiter count).
type Condvar struct {
	_ noCopy
	// counter is a generation stamp: incremented on every notification,
	// never read for its numeric value.
	counter uint32
	// waiters counts goroutines between the sample in Wait and their
	// wakeup; lets NotifyOne/NotifyAll skip the counter bump and the wake
	// call entirely when nobody can be parked.
	waiters uint32
}

// NewCondvar creates a Condvar. The zero value is also ready to use.
func NewCondvar() *Condvar {
	return &Condvar{}
}

// Wait atomically releases the mutex behind guard and blocks the calling
// goroutine until notified, then reacquires the mutex and returns the new
// guard. The input guard is consumed and must not be used again.
//
// Wakeups can be spurious from the caller's point of view (NotifyAll, or a
// notification aimed at a different condition on a shared Condvar), so the
// condition must be re-checked in a loop:
//
//	g := m.Lock()
//	for !ready(g.Value()) {
//		g = Wait(cv, g)
//	}
//
// This is a package-level function rather than a Condvar method because
// Go methods cannot introduce the guard's type parameter.
func Wait[T any](c *Condvar, guard MutexGuard[T]) MutexGuard[T] {
	stamp := atomic.LoadUint32(&c.counter)
	atomic.AddUint32(&c.waiters, 1)

	m := guard.m
	guard.Unlock()

	futexWait(&c.counter, stamp)
	atomic.AddUint32(&c.waiters, ^uint32(0))

	return m.Lock()
}

// NotifyOne wakes at most one goroutine blocked in Wait.
// It is a no-op when no goroutine is waiting.
func (c *Condvar) NotifyOne() {
	if atomic.LoadUint32(&c.waiters) == 0 {
		return
	}
	atomic.AddUint32(&c.counter, 1)
	futexWakeOne(&c.counter)
}

// NotifyAll wakes every goroutine blocked in Wait.
// It is a no-op when no goroutine is waiting.
func (c *Condvar) NotifyAll() {
	if atomic.LoadUint32(&c.waiters) == 0 {
		return
	}
	atomic.AddUint32(&c.counter, 1)
	futexWakeAll(&c.counter)
}
