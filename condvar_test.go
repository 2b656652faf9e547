package parkit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"
)

func TestCondvarSize(t *testing.T) {
	var c Condvar
	if size := unsafe.Sizeof(c); size != 8 {
		t.Errorf("Condvar size = %d, want 8", size)
	}
}

func TestCondvarHandoff(t *testing.T) {
	m := NewMutex(0)
	var cv Condvar

	go func() {
		time.Sleep(20 * time.Millisecond)
		g := m.Lock()
		*g.Value() = 7
		g.Unlock()
		cv.NotifyOne()
	}()

	g := m.Lock()
	for *g.Value() == 0 {
		g = Wait(&cv, g)
	}
	// The returned guard is for the same mutex, and the mutex is held:
	// the value is immediately readable and the state word is non-zero.
	if g.m != m {
		t.Fatal("Wait returned a guard for a different mutex")
	}
	if s := atomic.LoadUint32(&m.state.state); s == mutexUnlocked {
		t.Fatal("mutex not locked after Wait returned")
	}
	if *g.Value() != 7 {
		t.Fatalf("value = %d, want 7", *g.Value())
	}
	g.Unlock()
}

func TestCondvarProducerConsumer(t *testing.T) {
	// Every pushed item is consumed exactly once, no deadlock, for an
	// arbitrary interleaving of pushes and waits.
	const producers = 4
	const consumers = 4
	const perProducer = 2500

	m := NewMutex([]int(nil))
	var cv Condvar
	var consumed atomic.Int64
	var sum atomic.Int64

	var cwg sync.WaitGroup
	cwg.Add(consumers)
	for range consumers {
		go func() {
			defer cwg.Done()
			for {
				g := m.Lock()
				for len(*g.Value()) == 0 {
					g = Wait(&cv, g)
				}
				items := *g.Value()
				v := items[len(items)-1]
				*g.Value() = items[:len(items)-1]
				g.Unlock()
				if v < 0 {
					return
				}
				consumed.Add(1)
				sum.Add(int64(v))
			}
		}()
	}

	var pwg sync.WaitGroup
	pwg.Add(producers)
	for range producers {
		go func() {
			defer pwg.Done()
			for i := 1; i <= perProducer; i++ {
				g := m.Lock()
				*g.Value() = append(*g.Value(), i)
				g.Unlock()
				cv.NotifyOne()
			}
		}()
	}
	pwg.Wait()

	// Poison pills to stop the consumers.
	for range consumers {
		g := m.Lock()
		*g.Value() = append(*g.Value(), -1)
		g.Unlock()
		cv.NotifyOne()
	}
	cwg.Wait()

	if c := consumed.Load(); c != producers*perProducer {
		t.Fatalf("consumed = %d, want %d", c, producers*perProducer)
	}
	wantSum := int64(producers) * perProducer * (perProducer + 1) / 2
	if s := sum.Load(); s != wantSum {
		t.Fatalf("sum = %d, want %d (item lost or duplicated)", s, wantSum)
	}
}

func TestCondvarNotifyAll(t *testing.T) {
	m := NewMutex(false)
	var cv Condvar
	const n = 8

	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			g := m.Lock()
			for !*g.Value() {
				g = Wait(&cv, g)
			}
			g.Unlock()
		}()
	}

	time.Sleep(50 * time.Millisecond) // let them all park

	g := m.Lock()
	*g.Value() = true
	g.Unlock()
	cv.NotifyAll()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("NotifyAll did not wake every waiter")
	}
}

func TestCondvarNotifyNoWaiters(t *testing.T) {
	var cv Condvar
	before := atomic.LoadUint32(&cv.counter)
	cv.NotifyOne()
	cv.NotifyAll()
	if after := atomic.LoadUint32(&cv.counter); after != before {
		t.Fatalf("counter moved from %d to %d with no waiters", before, after)
	}
}
