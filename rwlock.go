package parkit

import (
	"sync/atomic"
)

// RWLock is a reader-writer lock that owns the value it protects: any
// number of concurrent readers, or one exclusive writer.
//
// It is writer-preferred: once a writer starts waiting it marks the state
// word, and readers arriving after that point park instead of piling on,
// so a continuous stream of readers cannot starve a writer.
//
// Read/Write return guards; the guard's Unlock is the only release path
// and must run on every exit path (defer). It is zero-value usable.
type RWLock[T any] struct {
	_     noCopy
	state rwState
	value T
}

// rwState is the reader/writer state machine, non-generic so internals
// (RWLockGroup) can reuse it.
//
// state encoding:
//
//	even s:      s/2 active readers, no writer pending.
//	odd s:       (s-1)/2 active readers and a writer waiting; readers
//	             arriving now must park rather than increment.
//	rwWriteLocked: one writer holds the lock exclusively.
//
// writerWake is a separate generation counter used only as the parking
// address for writers: bumped whenever a writer should re-probe (last
// reader left, or a writer unlocked).
type rwState struct {
	state      uint32
	writerWake uint32
}

const (
	rwWriterPending = 1
	rwReaderUnit    = 2

	// rwWriteLocked is odd, so parked readers need no special case for it.
	rwWriteLocked = ^uint32(0)

	// rwMaxReaders caps the doubled reader count below the write-locked
	// sentinel. Reaching it means on the order of two billion concurrent
	// readers, which is a usage bug, not load.
	rwMaxReaders = rwWriteLocked - rwReaderUnit
)

// NewRWLock creates an RWLock protecting value.
func NewRWLock[T any](value T) *RWLock[T] {
	return &RWLock[T]{value: value}
}

// Read acquires the lock for shared access, blocking while a writer holds
// or waits for the lock, and returns the read guard.
//
// It panics if the reader count would overflow.
func (rw *RWLock[T]) Read() ReadGuard[T] {
	rw.state.rlock()
	return ReadGuard[T]{rw: rw}
}

// Write acquires the lock exclusively, blocking until no readers and no
// other writer hold it, and returns the write guard.
func (rw *RWLock[T]) Write() WriteGuard[T] {
	rw.state.lock()
	return WriteGuard[T]{rw: rw}
}

// View runs fn with shared access to the protected value, releasing the
// lock when fn returns (including by panic).
func (rw *RWLock[T]) View(fn func(*T)) {
	g := rw.Read()
	defer g.Unlock()
	fn(&rw.value)
}

// Update runs fn with exclusive access to the protected value, releasing
// the lock when fn returns (including by panic).
func (rw *RWLock[T]) Update(fn func(*T)) {
	g := rw.Write()
	defer g.Unlock()
	fn(&rw.value)
}

func (rw *rwState) rlock() {
	s := atomic.LoadUint32(&rw.state)
	for {
		if s&rwWriterPending == 0 {
			if s >= rwMaxReaders {
				panic("parkit: RWLock reader count overflow")
			}
			if atomic.CompareAndSwapUint32(&rw.state, s, s+rwReaderUnit) {
				return
			}
			s = atomic.LoadUint32(&rw.state)
			continue
		}
		// Writer holding or pending: park on the state word. The wait
		// returns immediately if the word moved since the load, so a
		// release between the load and here is not missed.
		futexWait(&rw.state, s)
		s = atomic.LoadUint32(&rw.state)
	}
}

func (rw *rwState) runlock() {
	// Landing on 1 means we were the last reader out with a writer
	// pending: hand over.
	if atomic.AddUint32(&rw.state, ^uint32(rwReaderUnit-1)) == rwWriterPending {
		atomic.AddUint32(&rw.writerWake, 1)
		futexWakeOne(&rw.writerWake)
	}
}

func (rw *rwState) lock() {
	for {
		s := atomic.LoadUint32(&rw.state)

		// No active readers: take the lock. s may be 0 or 1; claiming at
		// 1 consumes the pending mark, possibly set by another writer
		// still parked - the unlock wakes it.
		if s <= rwWriterPending {
			if atomic.CompareAndSwapUint32(&rw.state, s, rwWriteLocked) {
				return
			}
			continue
		}

		// Readers active: mark the writer pending so new readers back
		// off, then park on writerWake until the last reader bumps it.
		if s&rwWriterPending == 0 {
			if !atomic.CompareAndSwapUint32(&rw.state, s, s+rwWriterPending) {
				continue
			}
		}

		// Sample the wake generation before re-checking the state; a
		// last-reader handoff between the re-check and the wait bumps
		// the generation and the wait falls through.
		wake := atomic.LoadUint32(&rw.writerWake)
		if atomic.LoadUint32(&rw.state) > rwWriterPending {
			futexWait(&rw.writerWake, wake)
		}
	}
}

func (rw *rwState) unlock() {
	atomic.StoreUint32(&rw.state, 0)
	// Wake one queued writer (writers park on writerWake) and all parked
	// readers (readers park on the state word). The writer CAS racing the
	// woken readers decides who goes first.
	atomic.AddUint32(&rw.writerWake, 1)
	futexWakeOne(&rw.writerWake)
	futexWakeAll(&rw.state)
}

// ReadGuard grants shared access to an RWLock's value. Any number of read
// guards may be alive at once; none may outlive its Unlock.
type ReadGuard[T any] struct {
	rw *RWLock[T]
}

// Value returns the protected value. The caller must not mutate through
// it or retain it past Unlock.
func (g ReadGuard[T]) Value() *T {
	return &g.rw.value
}

// Unlock releases the read lock. If this was the last reader and a writer
// is waiting, the writer is woken.
func (g ReadGuard[T]) Unlock() {
	g.rw.state.runlock()
}

// WriteGuard grants exclusive access to an RWLock's value.
type WriteGuard[T any] struct {
	rw *RWLock[T]
}

// Value returns the protected value. The pointer must not be retained
// past Unlock.
func (g WriteGuard[T]) Value() *T {
	return &g.rw.value
}

// Unlock releases the write lock, waking a queued writer and all parked
// readers.
func (g WriteGuard[T]) Unlock() {
	g.rw.state.unlock()
}
