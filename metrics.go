package tpool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of one pool. A nil *Metrics is a no-op.
type Metrics struct {
	TasksEnqueued  prometheus.Counter
	TasksCompleted prometheus.Counter
	TasksFailed    prometheus.Counter
	TasksDropped   prometheus.Counter
	TaskDuration   prometheus.Histogram

	reg        prometheus.Registerer
	collectors []prometheus.Collector
}

func newMetrics(reg prometheus.Registerer, namespace string, p *Pool) (*Metrics, error) {
	labels := prometheus.Labels{"pool": p.id}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	gauge := func(name, help string, f func() float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, f)
	}

	m := &Metrics{
		reg:            reg,
		TasksEnqueued:  counter("tasks_enqueued_total", "Total number of tasks enqueued on the pool"),
		TasksCompleted: counter("tasks_completed_total", "Total number of tasks that returned without error"),
		TasksFailed:    counter("tasks_failed_total", "Total number of tasks that returned an error or panicked"),
		TasksDropped:   counter("tasks_dropped_total", "Total number of tasks discarded by pool shutdown"),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "task_duration_seconds",
			Help:        "Histogram of task execution time",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}

	m.collectors = []prometheus.Collector{
		m.TasksEnqueued,
		m.TasksCompleted,
		m.TasksFailed,
		m.TasksDropped,
		m.TaskDuration,
		gauge("workers", "Number of worker threads", func() float64 {
			return float64(p.Workers())
		}),
		gauge("active_workers", "Number of workers allowed to claim tasks", func() float64 {
			return float64(p.ActiveWorkers())
		}),
		gauge("queued_tasks", "Number of tasks waiting in the queue", func() float64 {
			return float64(p.Tasks())
		}),
	}
	for i, c := range m.collectors {
		if err := reg.Register(c); err != nil {
			for _, done := range m.collectors[:i] {
				reg.Unregister(done)
			}
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) unregister() {
	if m == nil {
		return
	}
	for _, c := range m.collectors {
		m.reg.Unregister(c)
	}
}

func (m *Metrics) enqueued() {
	if m != nil {
		m.TasksEnqueued.Inc()
	}
}

func (m *Metrics) dropped(n int) {
	if m != nil {
		m.TasksDropped.Add(float64(n))
	}
}

func (m *Metrics) observe(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.TaskDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.TasksFailed.Inc()
	} else {
		m.TasksCompleted.Inc()
	}
}
