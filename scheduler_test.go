package tpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerEvery(t *testing.T) {
	scheduler := NewScheduler(5 * time.Millisecond)
	scheduler.Start()

	var count int64
	scheduler.Every(20*time.Millisecond, func() {
		atomic.AddInt64(&count, 1)
	})

	time.Sleep(150 * time.Millisecond)
	scheduler.Stop()

	if finalCount := atomic.LoadInt64(&count); finalCount < 2 {
		t.Errorf("Expected at least 2 executions, got %d", finalCount)
	}
}

func TestSchedulerMultipleTasks(t *testing.T) {
	scheduler := NewScheduler(5 * time.Millisecond)
	scheduler.Start()

	var count1, count2 int64
	scheduler.Every(20*time.Millisecond, func() {
		atomic.AddInt64(&count1, 1)
	})
	scheduler.Every(60*time.Millisecond, func() {
		atomic.AddInt64(&count2, 1)
	})

	time.Sleep(200 * time.Millisecond)
	scheduler.Stop()

	c1 := atomic.LoadInt64(&count1)
	c2 := atomic.LoadInt64(&count2)
	if c2 < 1 {
		t.Errorf("Task2 count too low: %d", c2)
	}
	if c1 <= c2 {
		t.Errorf("Expected the shorter interval to run more often, got %d and %d", c1, c2)
	}
}

func TestSchedulerStopJoinsRunningHandler(t *testing.T) {
	scheduler := NewScheduler(time.Millisecond)
	scheduler.Start()

	entered := make(chan struct{})
	var once sync.Once
	var finished int64
	scheduler.Every(time.Millisecond, func() {
		once.Do(func() { close(entered) })
		time.Sleep(30 * time.Millisecond)
		atomic.StoreInt64(&finished, 1)
	})

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Handler never ran")
	}

	scheduler.Stop()
	if atomic.LoadInt64(&finished) != 1 {
		t.Error("Stop returned while a handler was still running")
	}
}

func TestSchedulerNoRunsAfterStop(t *testing.T) {
	scheduler := NewScheduler(time.Millisecond)
	scheduler.Start()

	var executed int64
	scheduler.Every(5*time.Millisecond, func() {
		atomic.AddInt64(&executed, 1)
	})

	time.Sleep(30 * time.Millisecond)
	scheduler.Stop()
	afterStop := atomic.LoadInt64(&executed)

	time.Sleep(30 * time.Millisecond)
	if finalCount := atomic.LoadInt64(&executed); finalCount != afterStop {
		t.Errorf("Task executed after stop: %d then %d", afterStop, finalCount)
	}
}

func TestSchedulerStopBeforeStart(t *testing.T) {
	scheduler := NewScheduler(time.Millisecond)

	var executed int64
	scheduler.Every(time.Millisecond, func() {
		atomic.AddInt64(&executed, 1)
	})

	scheduler.Stop()
	scheduler.Stop()
	scheduler.Start()

	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt64(&executed); n != 0 {
		t.Errorf("Expected no executions after Stop, got %d", n)
	}
}

func TestSchedulerRecoversHandlerPanic(t *testing.T) {
	scheduler := NewScheduler(time.Millisecond)

	recovered := make(chan any, 1)
	scheduler.onPanic = func(r any) {
		select {
		case recovered <- r:
		default:
		}
	}

	var after int64
	scheduler.Every(2*time.Millisecond, func() {
		panic("tick")
	})
	scheduler.Every(2*time.Millisecond, func() {
		atomic.AddInt64(&after, 1)
	})
	scheduler.Start()
	defer scheduler.Stop()

	select {
	case r := <-recovered:
		if r != "tick" {
			t.Errorf("Expected panic value tick, got %v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Panic was not reported")
	}

	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt64(&after) == 0 {
		t.Error("A panicking handler stopped the others")
	}
}

func TestSchedulerConcurrentAccess(t *testing.T) {
	scheduler := NewScheduler(5 * time.Millisecond)
	scheduler.Start()

	var wg sync.WaitGroup
	var count int64

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.Every(20*time.Millisecond, func() {
				atomic.AddInt64(&count, 1)
			})
		}()
	}

	wg.Wait()
	time.Sleep(100 * time.Millisecond)
	scheduler.Stop()

	if finalCount := atomic.LoadInt64(&count); finalCount < 10 {
		t.Errorf("Expected at least 10 executions, got %d", finalCount)
	}
}
