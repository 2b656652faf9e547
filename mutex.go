package parkit

import (
	"sync/atomic"
)

// Mutex is an exclusive lock that owns the value it protects.
//
// Lock returns a MutexGuard; the guard is the only way to reach the value,
// and its Unlock is the only way to release the lock. Callers must release
// on every exit path, typically with defer:
//
//	g := m.Lock()
//	defer g.Unlock()
//	*g.Value() = ...
//
// Unlike sync.Mutex it has no fairness/starvation mode: ordering is
// best-effort and a continuously re-acquiring goroutine can starve others
// under pathological scheduling.
//
// It is zero-value usable (unlocked, zero value of T).
type Mutex[T any] struct {
	_     noCopy
	state mutexState
	data  T
}

// mutexState is the three-state futex mutex word, kept separate from the
// generic shell so non-generic internals (lock groups, queue) can reuse
// the same state machine.
//
// state transitions:
//
//	0 (unlocked) -> 1 (locked, no waiters): uncontended CAS in lock.
//	0/1 -> 2 (locked, waiters): any goroutine that ever entered the
//	       contended path; sticky until unlock so no wake is missed.
//	1/2 -> 0: unlock; a wake is issued only when 2 was observed.
type mutexState struct {
	state uint32
}

const (
	mutexUnlocked  = 0
	mutexLocked    = 1
	mutexContended = 2

	// mutexSpinBudget bounds the busy-wait before parking. Spinning
	// absorbs critical sections of a few loads/stores without paying for
	// a futex round trip.
	mutexSpinBudget = 100
)

// NewMutex creates a Mutex protecting value.
func NewMutex[T any](value T) *Mutex[T] {
	return &Mutex[T]{data: value}
}

// Lock acquires the lock, blocking until it is available, and returns the
// guard granting exclusive access to the protected value.
func (m *Mutex[T]) Lock() MutexGuard[T] {
	m.state.lock()
	return MutexGuard[T]{m: m}
}

// With runs fn with exclusive access to the protected value, releasing the
// lock when fn returns (including by panic).
func (m *Mutex[T]) With(fn func(*T)) {
	g := m.Lock()
	defer g.Unlock()
	fn(&m.data)
}

func (m *mutexState) lock() {
	if atomic.CompareAndSwapUint32(&m.state, mutexUnlocked, mutexLocked) {
		return
	}
	m.lockContended()
}

func (m *mutexState) lockContended() {
	// Spin while the lock is held without waiters: the holder is likely
	// between a pair of memory accesses and about to release.
	spins := 0
	for atomic.LoadUint32(&m.state) == mutexLocked && spins < mutexSpinBudget {
		spins++
		runtime_doSpin()
	}

	if atomic.CompareAndSwapUint32(&m.state, mutexUnlocked, mutexLocked) {
		return
	}

	// From here on the word is pinned at 2. The swap both publishes
	// "waiters present" and polls for the unlock: observing 0 means we
	// own the lock, and we deliberately leave 2 behind even if we were
	// the only waiter. The one spurious wake this can cost on a later
	// unlock is the price of never missing one.
	for atomic.SwapUint32(&m.state, mutexContended) != mutexUnlocked {
		futexWait(&m.state, mutexContended)
	}
}

func (m *mutexState) unlock() {
	if atomic.SwapUint32(&m.state, mutexUnlocked) == mutexContended {
		futexWakeOne(&m.state)
	}
}

// MutexGuard grants exclusive access to a Mutex's value for as long as it
// is held. It carries only the back-reference to its mutex; a guard is
// not valid after Unlock (use the guard returned by the next Lock or
// Wait), and must not be copied while held.
type MutexGuard[T any] struct {
	m *Mutex[T]
}

// Value returns the protected value. The pointer must not be retained
// past Unlock.
func (g MutexGuard[T]) Value() *T {
	return &g.m.data
}

// Unlock releases the lock, waking one parked waiter if the lock was
// contended.
func (g MutexGuard[T]) Unlock() {
	g.m.state.unlock()
}
