/*
Package metrics exposes Prometheus instrumentation for the chat coordinator.

Each Metrics value owns its registry so that isolated instances (one per test, one per
process) never collide on collector registration.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatcoord"

// Metrics groups every collector the coordinator updates.
type Metrics struct {
	registry *prometheus.Registry

	OnlineSessions   prometheus.Gauge
	MessagesCreated  *prometheus.CounterVec
	Recalls          prometheus.Counter
	Reactions        *prometheus.CounterVec
	ReadReceipts     prometheus.Counter
	Actions          *prometheus.CounterVec
	Deliveries       prometheus.Counter
	DeliveryFailures prometheus.Counter
	Evictions        prometheus.Counter
	CallerRuns       prometheus.Counter
	WorkerPanics     prometheus.Counter
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		OnlineSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "online_sessions",
			Help: "Number of authenticated live sessions.",
		}),
		MessagesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_created_total",
			Help: "Messages stored, by kind (private or group).",
		}, []string{"kind"}),
		Recalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "recalls_total",
			Help: "Successful message recalls.",
		}),
		Reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reactions_total",
			Help: "Reaction toggles, by type and direction.",
		}, []string{"type", "direction"}),
		ReadReceipts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "read_receipts_total",
			Help: "First-time reads recorded.",
		}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "actions_total",
			Help: "Inbound actions handled, by action and result kind.",
		}, []string{"action", "result"}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "deliveries_total",
			Help: "Frames queued to recipient connections.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "delivery_failures_total",
			Help: "Frames dropped at the send boundary.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "evictions_total",
			Help: "Sessions displaced by a newer login or kicked by an admin.",
		}),
		CallerRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "workpool_caller_runs_total",
			Help: "Tasks executed by the submitting goroutine because the queue was full.",
		}),
		WorkerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "workpool_panics_total",
			Help: "Tasks that panicked inside the worker pool.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OnlineSessions,
		m.MessagesCreated,
		m.Recalls,
		m.Reactions,
		m.ReadReceipts,
		m.Actions,
		m.Deliveries,
		m.DeliveryFailures,
		m.Evictions,
		m.CallerRuns,
		m.WorkerPanics,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
