package tpool

import (
	"runtime"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// worker is paired with exactly one goroutine for the life of the pool.
// active is guarded by the queue mutex.
type worker struct {
	id     int
	active bool
}

func (w *worker) activate() bool {
	if w.active {
		return false
	}
	w.active = true
	return true
}

func (w *worker) deactivate() bool {
	if !w.active {
		return false
	}
	w.active = false
	return true
}

func (p *Pool) work(w *worker) {
	defer p.wg.Done()

	if p.config.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	q := p.queue
	for {
		q.mu.Lock()
		for !q.stop && !(w.active && len(q.pending) > 0) {
			q.cond.Wait()
		}
		if q.stop {
			rest := q.drain()
			q.cond.Broadcast()
			q.mu.Unlock()
			p.dropTasks(rest)
			return
		}
		t := q.pop()
		q.mu.Unlock()

		p.execute(w, t)
	}
}

func (p *Pool) execute(w *worker, t *task) {
	start := time.Now()
	err := t.call()
	elapsed := time.Since(start)

	p.metrics.observe(elapsed, err)
	if err != nil {
		p.failed.Add(1)
		p.reportFailure(w, err)
	} else {
		p.completed.Add(1)
	}
	t.finish(err)
}

func (t *task) call() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return t.exec()
}

func (p *Pool) reportFailure(w *worker, err error) {
	if perr, ok := err.(*PanicError); ok {
		p.log.Error(err, "task panicked",
			zap.Int("worker", w.id),
			zap.ByteString("stack", perr.Stack),
		)
	} else {
		p.log.Debug("task failed", zap.Int("worker", w.id), zap.Error(err))
	}

	if herr := p.eventBus.Publish(PoolEventTaskFailed, &PoolEventTaskFailedPayload{
		PoolID: p.id,
		Worker: w.id,
		Err:    err,
		Time:   time.Now(),
	}); herr != nil {
		p.log.Error(herr, "task failed handler")
	}
}
