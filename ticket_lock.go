package parkit

import (
	"sync/atomic"
)

// TicketLock is a fair, FIFO spin-lock.
//
// Unlike sync.Mutex, which allows "barging" (newcomers can steal the lock),
// TicketLock guarantees that goroutines acquire the lock in the exact order
// they called Lock(). It is the bucket lock of the futex wait table, where
// fairness keeps a burst of wakers from starving a queued waiter.
//
// Implementation:
// The classic "ticket" algorithm.
//   - Lock(): Takes a ticket number. Spins/Sleeps until `serving` == `my_ticket`.
//   - Unlock(): Increments `serving`, allowing the next ticket holder to proceed.
//
// It is recommended for protecting very small critical sections (a few field
// accesses) where strict fairness is required; long critical sections risk a
// lock convoy if the holder is descheduled.
type TicketLock struct {
	_       noCopy
	next    atomic.Uint32
	serving atomic.Uint32
}

// Lock acquires the lock. Blocks until the lock is available.
func (m *TicketLock) Lock() {
	my := m.next.Add(1) - 1
	var spins int
	for {
		if m.serving.Load() == my {
			return
		}
		delay(&spins)
	}
}

// Unlock releases the lock.
func (m *TicketLock) Unlock() {
	m.serving.Add(1)
}
