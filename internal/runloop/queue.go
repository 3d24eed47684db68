package runloop

import "sync"

// queue is a blocking FIFO. Close discards anything still queued.
type queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	closed bool
}

func newQueue[T any]() *queue[T] {
	q := &queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue[T]) push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, item)
	q.cond.Signal()
	return true
}

func (q *queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && q.head >= len(q.items) {
		q.cond.Wait()
	}

	var zero T
	if q.closed {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	q.compact()
	return item, true
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

func (q *queue[T]) close() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.closed = true
	q.items = nil
	q.head = 0
	q.cond.Broadcast()
	return true
}

func (q *queue[T]) compact() {
	if q.head == 0 {
		return
	}
	if q.head < 1024 && q.head*2 < len(q.items) {
		return
	}
	remaining := len(q.items) - q.head
	copy(q.items[:remaining], q.items[q.head:])
	q.items = q.items[:remaining]
	q.head = 0
}
