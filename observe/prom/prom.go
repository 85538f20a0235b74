// Package prom exposes scope and task lifecycle metrics through
// Prometheus. Register the observer's collectors on a Registerer and
// install it on a scope with scope.WithObserver.
package prom

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weftrun/weft/scope"
)

// Metrics implements scope.Observer on top of prometheus collectors.
type Metrics struct {
	activeTasks   prometheus.Gauge
	tasksStarted  prometheus.Counter
	tasksFinished *prometheus.CounterVec
	taskDuration  prometheus.Histogram

	scopesCreated   prometheus.Counter
	scopesCancelled prometheus.Counter
	joins           prometheus.Counter
	joinWait        prometheus.Histogram
}

// New builds the observer with the given namespace (may be empty).
func New(namespace string) *Metrics {
	return &Metrics{
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "weft_active_tasks",
			Help:      "Tasks currently executing.",
		}),
		tasksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weft_tasks_started_total",
			Help:      "Tasks that began executing.",
		}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weft_tasks_finished_total",
			Help:      "Tasks that reached a terminal state, by outcome.",
		}, []string{"outcome"}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weft_task_duration_seconds",
			Help:      "Wall-clock task duration.",
			Buckets:   prometheus.DefBuckets,
		}),
		scopesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weft_scopes_created_total",
			Help:      "Scopes created.",
		}),
		scopesCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weft_scopes_cancelled_total",
			Help:      "Scopes cancelled.",
		}),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weft_scope_joins_total",
			Help:      "Completed scope joins.",
		}),
		joinWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weft_scope_join_wait_seconds",
			Help:      "Time spent waiting in Join.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Register registers every collector on r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.activeTasks, m.tasksStarted, m.tasksFinished, m.taskDuration,
		m.scopesCreated, m.scopesCancelled, m.joins, m.joinWait,
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister registers every collector on r, panicking on collision.
func (m *Metrics) MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		m.activeTasks, m.tasksStarted, m.tasksFinished, m.taskDuration,
		m.scopesCreated, m.scopesCancelled, m.joins, m.joinWait,
	)
}

func (m *Metrics) ScopeCreated(_ context.Context) {
	m.scopesCreated.Inc()
}

func (m *Metrics) ScopeCancelled(_ context.Context, _ error) {
	m.scopesCancelled.Inc()
}

func (m *Metrics) ScopeJoined(_ context.Context, wait time.Duration) {
	m.joins.Inc()
	m.joinWait.Observe(wait.Seconds())
}

func (m *Metrics) TaskStarted(_ context.Context, _ scope.TaskInfo) {
	m.activeTasks.Inc()
	m.tasksStarted.Inc()
}

func (m *Metrics) TaskFinished(_ context.Context, _ scope.TaskInfo, dur time.Duration, err error, panicked bool) {
	m.activeTasks.Dec()
	m.taskDuration.Observe(dur.Seconds())
	outcome := "completed"
	switch {
	case panicked:
		outcome = "panicked"
	case scope.IsCancellation(err):
		outcome = "cancelled"
	case err != nil:
		outcome = "failed"
	}
	m.tasksFinished.WithLabelValues(outcome).Inc()
}
