package parkit

import (
	"sync/atomic"
)

// SpinLock is a minimal exclusive lock that never blocks on the lock
// itself: contenders poll with a spin-then-backoff loop instead of
// queueing in the futex table. It is the baseline building block of the
// lock family and a reasonable choice for critical sections of a few
// memory accesses where the holder cannot be descheduled for long.
//
// It is zero-value usable (starts unlocked).
//
// Size: 4 bytes.
type SpinLock struct {
	_      noCopy
	locked atomic.Uint32
}

const (
	spinUnlocked = 0
	spinLocked   = 1
)

// Lock acquires the lock, spinning until it is free.
func (l *SpinLock) Lock() {
	if l.locked.CompareAndSwap(spinUnlocked, spinLocked) {
		return
	}
	l.lockSlow()
}

func (l *SpinLock) lockSlow() {
	var spins int
	for {
		// Load before CAS keeps the line shared while the lock is held,
		// so contenders do not ping-pong the cache line with failed CASes.
		if l.locked.Load() == spinUnlocked &&
			l.locked.CompareAndSwap(spinUnlocked, spinLocked) {
			return
		}
		delay(&spins)
	}
}

// TryLock attempts to acquire the lock without spinning.
// Returns true on success.
func (l *SpinLock) TryLock() bool {
	return l.locked.CompareAndSwap(spinUnlocked, spinLocked)
}

// Unlock releases the lock.
//
// It must only be called by the current holder; the lock does not track
// ownership.
func (l *SpinLock) Unlock() {
	l.locked.Store(spinUnlocked)
}
