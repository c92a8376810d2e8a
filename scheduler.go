package tpool

import (
	"sync"
	"time"
)

// Scheduler runs handlers at fixed intervals on a single goroutine.
type Scheduler struct {
	tasks      []*SchedulerTask
	mu         sync.RWMutex
	resolution time.Duration
	started    bool
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	onPanic    func(r any)
}

type SchedulerTask struct {
	Interval time.Duration
	Next     int64
	Handler  func()
}

func NewScheduler(resolution time.Duration) *Scheduler {
	if resolution <= 0 {
		resolution = time.Millisecond
	}
	return &Scheduler{
		tasks:      make([]*SchedulerTask, 0),
		resolution: resolution,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.resolution)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.quit:
				return
			}
		}
	}()
}

// Stop waits for a handler that is already running to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		started := s.started
		s.started = true
		s.mu.Unlock()

		close(s.quit)
		if started {
			<-s.done
		}
	})
}

func (s *Scheduler) tick() {
	now := time.Now().UnixNano()

	s.mu.Lock()
	due := make([]*SchedulerTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		if now >= t.Next {
			due = append(due, t)
			t.Next = now + int64(t.Interval)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		s.run(t)
	}
}

func (s *Scheduler) run(t *SchedulerTask) {
	defer func() {
		if r := recover(); r != nil && s.onPanic != nil {
			s.onPanic(r)
		}
	}()
	t.Handler()
}

func (s *Scheduler) Every(interval time.Duration, handler func()) {
	s.mu.Lock()
	s.tasks = append(s.tasks, &SchedulerTask{
		Interval: interval,
		Next:     time.Now().UnixNano() + int64(interval),
		Handler:  handler,
	})
	s.mu.Unlock()
}
