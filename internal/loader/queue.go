package loader

import (
	"context"
	"sync"

	"prdash/internal/domain/pullrequest"
)

type task struct {
	repo pullrequest.RepositoryRef
	pr   pullrequest.Record
}

// fifo is an unbounded first-in first-out task queue. Producers never block.
type fifo struct {
	mu     sync.Mutex
	items  []task
	closed bool
	ready  chan struct{}
}

func newFIFO() *fifo {
	return &fifo{ready: make(chan struct{}, 1)}
}

func (q *fifo) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *fifo) push(t task) {
	q.mu.Lock()
	q.items = append(q.items, t)
	q.mu.Unlock()

	q.signal()
}

// close lets pop drain the remaining items and then report false.
func (q *fifo) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

func (q *fifo) pop(ctx context.Context) (task, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			t := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return t, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return task{}, false
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			return task{}, false
		}
	}
}

// drain removes and returns every queued item.
func (q *fifo) drain() []task {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil

	return items
}
