package tpool

import "sync"

type task struct {
	exec   func() error
	finish func(err error)
}

// queue is the only state shared between the pool and its workers.
// pending, stop and every worker's active flag are guarded by mu.
type queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []*task
	stop    bool
	workers []*worker
	active  int
}

func newQueue(size int) *queue {
	q := &queue{
		workers: make([]*worker, size),
		active:  size,
	}
	q.cond = sync.NewCond(&q.mu)
	for i := range q.workers {
		q.workers[i] = &worker{id: i, active: true}
	}
	return q
}

// push reports false once the queue has been stopped; the task is not kept.
func (q *queue) push(t *task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stop {
		return false
	}
	q.pending = append(q.pending, t)
	q.wake()
	return true
}

// wake must be called with mu held. A signal could land on an inactive
// worker, which would go back to sleep and lose it.
func (q *queue) wake() {
	if q.active < len(q.workers) {
		q.cond.Broadcast()
		return
	}
	q.cond.Signal()
}

// pop must be called with mu held and pending non-empty.
func (q *queue) pop() *task {
	t := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return t
}

// drain must be called with mu held.
func (q *queue) drain() []*task {
	rest := q.pending
	q.pending = nil
	return rest
}

// requestStop stops the queue and hands back the tasks that will never run.
func (q *queue) requestStop() []*task {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stop = true
	rest := q.drain()
	q.cond.Broadcast()
	return rest
}

// activate toggles workers one at a time until count of them are active.
func (q *queue) activate(count int) (previous, current int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	previous = q.active
	count = min(max(count, 1), len(q.workers))
	for _, w := range q.workers {
		if q.active == count {
			break
		}
		if q.active < count {
			if w.activate() {
				q.active++
			}
		} else if w.deactivate() {
			q.active--
		}
	}
	q.cond.Broadcast()
	return previous, q.active
}

func (q *queue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *queue) activeWorkers() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

func (q *queue) snapshot() (active, queued int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active, len(q.pending)
}
