package parkit

// Queue is an unbounded blocking FIFO queue built on Mutex and Condvar:
// producers push and notify, consumers pop and wait while empty. It is
// the canonical consumer of the two primitives together; for raw
// throughput a buffered channel is usually the better tool.
//
// It is zero-value usable.
type Queue[T any] struct {
	_        noCopy
	mu       Mutex[queueItems[T]]
	notEmpty Condvar
}

type queueItems[T any] struct {
	items []T
	head  int
}

// NewQueue creates a Queue. The zero value is also ready to use.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends v and wakes one blocked consumer.
func (q *Queue[T]) Push(v T) {
	g := q.mu.Lock()
	g.Value().items = append(g.Value().items, v)
	g.Unlock()
	q.notEmpty.NotifyOne()
}

// Pop removes and returns the oldest element, blocking while the queue is
// empty.
func (q *Queue[T]) Pop() T {
	g := q.mu.Lock()
	for {
		if v, ok := g.Value().pop(); ok {
			g.Unlock()
			return v
		}
		g = Wait(&q.notEmpty, g)
	}
}

// TryPop removes and returns the oldest element without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	g := q.mu.Lock()
	defer g.Unlock()
	return g.Value().pop()
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	g := q.mu.Lock()
	defer g.Unlock()
	return len(g.Value().items) - g.Value().head
}

func (s *queueItems[T]) pop() (T, bool) {
	if s.head == len(s.items) {
		var zero T
		return zero, false
	}
	v := s.items[s.head]
	var zero T
	s.items[s.head] = zero // release the reference
	s.head++
	// Reclaim the consumed prefix once it dominates the backing array.
	if s.head > 32 && s.head > len(s.items)/2 {
		n := copy(s.items, s.items[s.head:])
		clear(s.items[n:]) // release the references in the vacated tail
		s.items = s.items[:n]
		s.head = 0
	}
	return v, true
}
