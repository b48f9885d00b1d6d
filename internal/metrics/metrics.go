// Package metrics exposes Prometheus collectors for reminder activity.
//
// All methods are safe on a nil *Metrics so components can run without metrics wired.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "remindd"

type Metrics struct {
	scheduled   *prometheus.CounterVec
	canceled    prometheus.Counter
	failures    *prometheus.CounterVec
	fired       *prometheus.CounterVec
	delivered   *prometheus.CounterVec
	taskEvents  *prometheus.CounterVec
	pendingSize prometheus.Gauge
}

// MustNew registers the collectors with reg (the default registerer when nil).
// Registration errors panic, surfacing duplicate wiring early.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		scheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "scheduled_total",
			Help:      "Reminders handed to the notification facility.",
		}, []string{"kind"}),
		canceled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "cancel_handles_total",
			Help:      "Handles passed to cancel calls, including no-op cancels.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "facility_failures_total",
			Help:      "Facility calls that failed and were swallowed.",
		}, []string{"op"}),
		fired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "facility",
			Name:      "fired_total",
			Help:      "Reminders whose fire time was reached.",
		}, []string{"kind"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "deliveries_total",
			Help:      "Delivery outcomes of fired reminders.",
		}, []string{"result"}),
		taskEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "task_events_total",
			Help:      "Task lifecycle events processed.",
		}, []string{"event"}),
		pendingSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "facility",
			Name:      "pending",
			Help:      "Reminders currently pending in the facility.",
		}),
	}
	reg.MustRegister(m.scheduled, m.canceled, m.failures, m.fired, m.delivered, m.taskEvents, m.pendingSize)
	return m
}

func (m *Metrics) Scheduled(kind string) {
	if m == nil {
		return
	}
	m.scheduled.WithLabelValues(kind).Inc()
}

func (m *Metrics) Canceled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.canceled.Add(float64(n))
}

func (m *Metrics) Failed(op string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(op).Inc()
}

func (m *Metrics) Fired(kind string) {
	if m == nil {
		return
	}
	m.fired.WithLabelValues(kind).Inc()
}

func (m *Metrics) Delivered(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.delivered.WithLabelValues(result).Inc()
}

func (m *Metrics) TaskEvent(event string) {
	if m == nil {
		return
	}
	m.taskEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pendingSize.Set(float64(n))
}
