package parkit

import (
	"sync/atomic"
	"unsafe"

	"github.com/HuaGu-Dragon/parkit/internal/opt"
)

// In-process wait/wake keyed by the address of a uint32 state word, the
// same contract a futex gives: a waiter blocks only if the word still
// holds the expected value at the moment it is queued, and a waker wakes
// whoever is queued on that address at the moment of the wake call.
//
// Waiters are kept in a fixed table of buckets, each a TicketLock-guarded
// FIFO list with a per-waiter runtime semaphore. The value re-check and
// the enqueue happen under the same bucket lock a waker must take before
// scanning, which is what closes the missed-wakeup window: a waker that
// stores the new value and then calls futexWakeOne either finds the
// waiter queued, or the waiter has not locked the bucket yet and its
// re-check is ordered after the store by the bucket lock.

// futexTableSize matches the Go runtime's semaphore table (251 buckets,
// prime to spread addresses).
const futexTableSize = 251

type futexWaiter struct {
	next *futexWaiter
	addr *uint32
	sema opt.Sema
}

type futexBucket struct {
	mu   TicketLock
	head *futexWaiter
	tail *futexWaiter
}

var futexTable [futexTableSize]futexBucket

func futexBucketOf(addr *uint32) *futexBucket {
	// State words are 4-byte aligned; drop the always-zero low bits
	// before reducing so neighboring words land in different buckets.
	return &futexTable[(uintptr(unsafe.Pointer(addr))>>2)%futexTableSize]
}

// futexWait blocks the calling goroutine until a wake on addr, or returns
// immediately if *addr no longer holds expected.
func futexWait(addr *uint32, expected uint32) {
	b := futexBucketOf(addr)
	b.mu.Lock()
	if atomic.LoadUint32(addr) != expected {
		b.mu.Unlock()
		return
	}
	w := &futexWaiter{addr: addr}
	if b.tail == nil {
		b.head = w
	} else {
		b.tail.next = w
	}
	b.tail = w
	b.mu.Unlock()
	w.sema.Acquire()
}

// futexWakeOne wakes the oldest goroutine blocked on addr, if any.
func futexWakeOne(addr *uint32) {
	b := futexBucketOf(addr)
	b.mu.Lock()
	var woken *futexWaiter
	var prev *futexWaiter
	for w := b.head; w != nil; prev, w = w, w.next {
		if w.addr == addr {
			if prev == nil {
				b.head = w.next
			} else {
				prev.next = w.next
			}
			if b.tail == w {
				b.tail = prev
			}
			w.next = nil
			woken = w
			break
		}
	}
	b.mu.Unlock()
	if woken != nil {
		woken.sema.Release()
	}
}

// futexWakeAll wakes every goroutine blocked on addr.
func futexWakeAll(addr *uint32) {
	b := futexBucketOf(addr)
	b.mu.Lock()
	var woken *futexWaiter
	var prev *futexWaiter
	for w := b.head; w != nil; {
		next := w.next
		if w.addr == addr {
			if prev == nil {
				b.head = next
			} else {
				prev.next = next
			}
			if b.tail == w {
				b.tail = prev
			}
			w.next = woken
			woken = w
		} else {
			prev = w
		}
		w = next
	}
	b.mu.Unlock()
	for woken != nil {
		next := woken.next
		woken.sema.Release()
		woken = next
	}
}
