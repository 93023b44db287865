// Package metrics exposes runtime counters via a private
// prometheus.Registry — never the global DefaultRegisterer, since
// several runtime instances can coexist in one test binary's
// multi-rank emulation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics is one runtime instance's counter/gauge/histogram set.
type Metrics struct {
	registry *prometheus.Registry

	MessagesSent     prometheus.Counter
	MessagesReceived prometheus.Counter
	BytesSent        prometheus.Counter
	BytesReceived    prometheus.Counter
	QueueDepth       prometheus.Gauge
	BarrierWait      prometheus.Histogram
}

// New constructs a fresh, privately registered Metrics set.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mpi_messages_sent_total",
			Help: "Total point-to-point messages sent.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mpi_messages_received_total",
			Help: "Total point-to-point messages received.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mpi_bytes_sent_total",
			Help: "Total payload bytes sent.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mpi_bytes_received_total",
			Help: "Total payload bytes received.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mpi_request_queue_depth",
			Help: "Current depth of the unmatched request queue.",
		}),
		BarrierWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mpi_barrier_wait_seconds",
			Help:    "Time spent blocked inside MPI_Barrier.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.MessagesSent, m.MessagesReceived, m.BytesSent, m.BytesReceived, m.QueueDepth, m.BarrierWait)
	return m
}

// Snapshot is a point-in-time read of every metric, for tests and the
// public mpi.Metrics() accessor that don't want to depend on the
// prometheus types directly.
type Snapshot struct {
	MessagesSent     float64
	MessagesReceived float64
	BytesSent        float64
	BytesReceived    float64
	QueueDepth       float64
}

// Snapshot reads the current values out of the registered collectors.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		MessagesSent:     readCounter(m.MessagesSent),
		MessagesReceived: readCounter(m.MessagesReceived),
		BytesSent:        readCounter(m.BytesSent),
		BytesReceived:    readCounter(m.BytesReceived),
		QueueDepth:       readGauge(m.QueueDepth),
	}
}

// Registry returns the private registry backing m, for tests or an
// optional /metrics HTTP handler wiring.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func readCounter(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func readGauge(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
