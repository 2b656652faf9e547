package parkit

import (
	"github.com/llxisdsh/pb"
)

// LockGroup allows exclusive locking on arbitrary keys (string, int,
// struct, etc.) without pre-allocating a lock per key.
//
// Features:
//   - Infinite Keys: locks are materialized on first use.
//   - Auto-Cleanup: an entry is removed when unlocked with no other
//     holder or waiter (reference counted).
//   - Per-key locks are the same futex mutex Mutex is built on, so
//     waiters park instead of spinning.
//
// Usage:
//
//	var group LockGroup[string]
//	group.Lock("user-123")
//	// critical section for user-123
//	group.Unlock("user-123")
type LockGroup[K comparable] struct {
	_ noCopy
	m pb.MapOf[K, *lockGroupEntry]
}

type lockGroupEntry struct {
	mu  mutexState
	ref int32
}

// Lock acquires the lock for key k, blocking until it is available.
func (g *LockGroup[K]) Lock(k K) {
	e, _ := g.m.ProcessEntry(k,
		func(l *pb.EntryOf[K, *lockGroupEntry]) (*pb.EntryOf[K, *lockGroupEntry], *lockGroupEntry, bool) {
			if l != nil {
				l.Value.ref++
				return l, l.Value, true
			}
			e := &lockGroupEntry{ref: 1}
			return &pb.EntryOf[K, *lockGroupEntry]{Value: e}, e, false
		})
	e.mu.lock()
}

// Unlock releases the lock for key k and drops the entry if no one else
// holds or awaits it.
func (g *LockGroup[K]) Unlock(k K) {
	e, ok := g.m.Load(k)
	if !ok {
		return
	}
	e.mu.unlock()

	g.m.ProcessEntry(k,
		func(l *pb.EntryOf[K, *lockGroupEntry]) (*pb.EntryOf[K, *lockGroupEntry], *lockGroupEntry, bool) {
			if l == nil {
				return nil, nil, false
			}
			l.Value.ref--
			if l.Value.ref <= 0 {
				return nil, nil, false // delete
			}
			return l, l.Value, true
		})
}

// RWLockGroup allows shared or exclusive locking on arbitrary keys. It
// matches LockGroup but supports RLock/RUnlock, with the same writer
// preference as RWLock.
type RWLockGroup[K comparable] struct {
	_ noCopy
	m pb.MapOf[K, *rwLockGroupEntry]
}

type rwLockGroupEntry struct {
	mu  rwState
	ref int32
}

// Lock acquires the write lock for key k.
func (g *RWLockGroup[K]) Lock(k K) {
	g.acquire(k).mu.lock()
}

// Unlock releases the write lock for key k.
func (g *RWLockGroup[K]) Unlock(k K) {
	e, ok := g.m.Load(k)
	if !ok {
		return
	}
	e.mu.unlock()
	g.release(k)
}

// RLock acquires the read lock for key k.
func (g *RWLockGroup[K]) RLock(k K) {
	g.acquire(k).mu.rlock()
}

// RUnlock releases the read lock for key k.
func (g *RWLockGroup[K]) RUnlock(k K) {
	e, ok := g.m.Load(k)
	if !ok {
		return
	}
	e.mu.runlock()
	g.release(k)
}

func (g *RWLockGroup[K]) acquire(k K) *rwLockGroupEntry {
	e, _ := g.m.ProcessEntry(k,
		func(l *pb.EntryOf[K, *rwLockGroupEntry]) (*pb.EntryOf[K, *rwLockGroupEntry], *rwLockGroupEntry, bool) {
			if l != nil {
				l.Value.ref++
				return l, l.Value, true
			}
			e := &rwLockGroupEntry{ref: 1}
			return &pb.EntryOf[K, *rwLockGroupEntry]{Value: e}, e, false
		})
	return e
}

func (g *RWLockGroup[K]) release(k K) {
	g.m.ProcessEntry(k,
		func(l *pb.EntryOf[K, *rwLockGroupEntry]) (*pb.EntryOf[K, *rwLockGroupEntry], *rwLockGroupEntry, bool) {
			if l == nil {
				return nil, nil, false
			}
			l.Value.ref--
			if l.Value.ref <= 0 {
				return nil, nil, false // delete
			}
			return l, l.Value, true
		})
}
