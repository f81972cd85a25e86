// Package metrics exposes Prometheus instrumentation for the log channels.
//
// Metrics are registered on a private registry rather than the global
// default, so tests and multiple instances never collide. The admin API
// serves them through Handler.
//
// Thread Safety: all operations are safe for concurrent use.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "townylog"

// Metrics holds the channel counters and gauges.
type Metrics struct {
	registry *prometheus.Registry

	// RecordsWritten counts records accepted by a sink.
	// Labels: channel, sink
	RecordsWritten *prometheus.CounterVec

	// RecordsFailed counts sink write failures.
	// Labels: channel, sink
	RecordsFailed *prometheus.CounterVec

	// RecordsDropped counts records emitted on a channel that is not
	// published.
	// Labels: channel
	RecordsDropped *prometheus.CounterVec

	// MoneyTransactions counts transactions emitted on the money channel.
	MoneyTransactions prometheus.Counter

	// Commits counts routing table publications.
	Commits prometheus.Counter

	// ActiveChannels is the number of channels in the published table.
	ActiveChannels prometheus.Gauge
}

// New creates and registers all metrics. When withRuntime is true the Go
// runtime and process collectors are registered as well.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Metrics{
		registry: reg,
		RecordsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "written_total",
			Help:      "Records written to a sink.",
		}, []string{"channel", "sink"}),
		RecordsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "failed_total",
			Help:      "Sink write failures.",
		}, []string{"channel", "sink"}),
		RecordsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "records",
			Name:      "dropped_total",
			Help:      "Records emitted on an unpublished channel.",
		}, []string{"channel"}),
		MoneyTransactions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "money",
			Name:      "transactions_total",
			Help:      "Money transactions emitted on the audit channel.",
		}),
		Commits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "commits_total",
			Help:      "Routing table publications.",
		}),
		ActiveChannels: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "active_channels",
			Help:      "Channels in the published routing table.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveWrite records the outcome of one sink write.
func (m *Metrics) ObserveWrite(channel, sinkName string, err error) {
	if err != nil {
		m.RecordsFailed.WithLabelValues(channel, sinkName).Inc()
		return
	}
	m.RecordsWritten.WithLabelValues(channel, sinkName).Inc()
}

// ObserveCommit records a publication of n channels.
func (m *Metrics) ObserveCommit(n int) {
	m.Commits.Inc()
	m.ActiveChannels.Set(float64(n))
}
