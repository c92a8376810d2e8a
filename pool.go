package tpool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Pool is a fixed set of worker threads sharing one FIFO queue. The number of
// workers never changes; Activate only changes how many of them claim tasks.
type Pool struct {
	id      string
	config  PoolConfig
	queue   *queue
	spawner spawner
	wg      sync.WaitGroup

	log      *Log
	metrics  *Metrics
	eventBus *EventBus

	schedMu   sync.Mutex
	scheduler *Scheduler
	closed    bool

	closeOnce sync.Once
	closeErr  error

	enqueued  atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

type PoolStats struct {
	Workers       int    `json:"workers"`
	ActiveWorkers int    `json:"active_workers"`
	QueuedTasks   int    `json:"queued_tasks"`
	Enqueued      uint64 `json:"enqueued"`
	Completed     uint64 `json:"completed"`
	Failed        uint64 `json:"failed"`
	Dropped       uint64 `json:"dropped"`
}

// spawner starts the long-running worker loops.
type spawner interface {
	Submit(task func()) error
	ReleaseTimeout(timeout time.Duration) error
}

var newSpawner = func(size int, log *Log) (spawner, error) {
	return ants.NewPool(size,
		ants.WithPreAlloc(true),
		ants.WithNonblocking(true),
		ants.WithDisablePurge(true),
		ants.WithLogger(zap.NewStdLog(log.app)),
		ants.WithPanicHandler(func(r any) {
			log.Error(fmt.Errorf("%v", r), "worker loop panicked")
		}),
	)
}

func NewPool() (*Pool, error) {
	return NewPoolWithConfig(DefaultPoolConfig())
}

func NewPoolWithConfig(config PoolConfig) (*Pool, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	size := config.Workers
	if size == 0 {
		size = LogicalCPUCount()
	}

	p := &Pool{
		id:       uuid.NewString(),
		config:   config,
		queue:    newQueue(size),
		eventBus: NewEventBus(),
	}
	if config.Logger != nil {
		p.log = WrapLogger(config.Logger)
	} else {
		p.log = NewLog(config.Log)
	}
	p.log = p.log.With(zap.String("pool", p.id))

	if err := p.spawn(size); err != nil {
		_ = p.log.Sync()
		return nil, err
	}

	if config.Active > 0 {
		p.queue.activate(config.Active)
	}

	if config.Registerer != nil {
		m, err := newMetrics(config.Registerer, config.MetricsNamespace, p)
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("tpool: register metrics: %w", err), p.Close())
		}
		p.metrics = m
	}

	if config.StatsInterval > 0 {
		p.Every(config.StatsInterval, p.logStats)
	}

	p.log.App("pool started",
		zap.Int("workers", size),
		zap.Int("active", p.ActiveWorkers()),
		zap.Bool("lock_os_thread", config.LockOSThread),
	)
	return p, nil
}

// spawn starts all size worker loops or none of them.
func (p *Pool) spawn(size int) error {
	sp, err := newSpawner(size, p.log)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSpawnWorkers, err)
	}

	for _, w := range p.queue.workers {
		w := w
		p.wg.Add(1)
		if err := sp.Submit(func() { p.work(w) }); err != nil {
			p.wg.Done()
			p.queue.requestStop()
			p.wg.Wait()
			return multierr.Append(
				fmt.Errorf("%w: worker %d of %d: %w", ErrSpawnWorkers, w.id, size, err),
				sp.ReleaseTimeout(p.config.ShutdownTimeout),
			)
		}
	}
	p.spawner = sp
	return nil
}

func (p *Pool) ID() string {
	return p.id
}

// Enqueue schedules fn on the pool. It never blocks beyond a short lock hold.
func (p *Pool) Enqueue(fn func() error) *Future[struct{}] {
	return Submit(p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
}

// Submit schedules fn on p and returns a future for its result. After Close
// the future is already resolved with ErrPoolClosed.
func Submit[T any](p *Pool, fn func() (T, error)) *Future[T] {
	fut := newFuture[T]()

	var out T
	t := &task{
		exec: func() (err error) {
			out, err = fn()
			return err
		},
		finish: func(err error) {
			fut.resolve(out, err)
		},
	}

	if !p.queue.push(t) {
		p.dropTasks([]*task{t})
		return fut
	}
	p.enqueued.Add(1)
	p.metrics.enqueued()
	return fut
}

func (p *Pool) dropTasks(tasks []*task) {
	if len(tasks) == 0 {
		return
	}
	p.dropped.Add(uint64(len(tasks)))
	p.metrics.dropped(len(tasks))
	for _, t := range tasks {
		t.finish(ErrPoolClosed)
	}
}

// Activate clamps count into [1, Workers()] and returns the resulting number
// of active workers. Deactivated workers finish the task they are running.
func (p *Pool) Activate(count int) int {
	previous, active := p.queue.activate(count)
	if previous != active {
		p.log.Debug("workers activated", zap.Int("previous", previous), zap.Int("active", active))
		if err := p.eventBus.Publish(PoolEventActivated, &PoolEventActivatedPayload{
			PoolID:   p.id,
			Previous: previous,
			Active:   active,
			Time:     time.Now(),
		}); err != nil {
			p.log.Error(err, "activated handler")
		}
	}
	return active
}

func (p *Pool) Workers() int {
	return len(p.queue.workers)
}

func (p *Pool) ActiveWorkers() int {
	return p.queue.activeWorkers()
}

// Tasks reports how many tasks are waiting to be claimed.
func (p *Pool) Tasks() int {
	return p.queue.size()
}

func (p *Pool) Stats() PoolStats {
	active, queued := p.queue.snapshot()
	return PoolStats{
		Workers:       p.Workers(),
		ActiveWorkers: active,
		QueuedTasks:   queued,
		Enqueued:      p.enqueued.Load(),
		Completed:     p.completed.Load(),
		Failed:        p.failed.Load(),
		Dropped:       p.dropped.Load(),
	}
}

func (p *Pool) On(eventName int, handler func(payload EventPayload) error) {
	p.eventBus.Subscribe(eventName, handler)
}

// Every runs handler periodically until the pool is closed. Handlers run on
// one scheduler goroutine, not on the workers; enqueue from them for that.
func (p *Pool) Every(interval time.Duration, handler func()) {
	p.schedMu.Lock()
	defer p.schedMu.Unlock()

	if p.closed {
		return
	}
	if p.scheduler == nil {
		p.scheduler = NewScheduler(schedulerResolution(interval))
		p.scheduler.onPanic = func(r any) {
			p.log.Error(fmt.Errorf("%v", r), "scheduled handler panicked")
		}
		p.scheduler.Start()
	}
	p.scheduler.Every(interval, handler)
}

func schedulerResolution(interval time.Duration) time.Duration {
	return min(max(interval/10, time.Millisecond), 100*time.Millisecond)
}

func (p *Pool) logStats() {
	s := p.Stats()
	p.log.App("pool stats",
		zap.Int("workers", s.Workers),
		zap.Int("active", s.ActiveWorkers),
		zap.Int("queued", s.QueuedTasks),
		zap.Uint64("enqueued", s.Enqueued),
		zap.Uint64("completed", s.Completed),
		zap.Uint64("failed", s.Failed),
		zap.Uint64("dropped", s.Dropped),
	)
}

// Close stops every worker and waits for them. Tasks still queued are never
// run; their futures resolve with ErrPoolClosed. Running tasks finish first.
//
// Close waits for the calling worker too when called from a task or from a
// PoolEventTaskFailed handler, and never returns. Use go p.Close() there.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		rest := p.queue.requestStop()
		p.dropTasks(rest)
		p.wg.Wait()

		p.schedMu.Lock()
		p.closed = true
		scheduler := p.scheduler
		p.schedMu.Unlock()
		if scheduler != nil {
			scheduler.Stop()
		}

		var err error
		if p.spawner != nil {
			err = multierr.Append(err, p.spawner.ReleaseTimeout(p.config.ShutdownTimeout))
		}
		p.metrics.unregister()

		p.log.App("pool stopped", zap.Int("dropped", len(rest)), zap.Uint64("completed", p.completed.Load()))
		if herr := p.eventBus.Publish(PoolEventStopped, &PoolEventStoppedPayload{
			PoolID:  p.id,
			Dropped: len(rest),
			Time:    time.Now(),
		}); herr != nil {
			p.log.Error(herr, "stopped handler")
		}

		p.closeErr = multierr.Append(err, p.log.Sync())
	})
	return p.closeErr
}
