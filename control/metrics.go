// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus-backed server counters with a no-op fallback.

package control

import (
	"strconv"

	"github.com/momentics/hioload-httpd/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromMetrics implements api.Metrics on a Prometheus registerer.
type PromMetrics struct {
	reg prometheus.Registerer

	active   prometheus.Gauge
	accepted prometheus.Counter
	closed   prometheus.Counter
	requests *prometheus.CounterVec
	sent     prometheus.Counter
	rejected prometheus.Counter
}

var _ api.Metrics = (*PromMetrics)(nil)

// NewMetrics registers the server collectors on reg.
func NewMetrics(reg prometheus.Registerer) *PromMetrics {
	f := promauto.With(reg)
	return &PromMetrics{
		reg: reg,
		active: f.NewGauge(prometheus.GaugeOpts{
			Name: "hioload_connections_active",
			Help: "Connections currently open",
		}),
		accepted: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_connections_accepted_total",
			Help: "Connections accepted and registered",
		}),
		closed: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_connections_closed_total",
			Help: "Connections torn down",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hioload_requests_total",
			Help: "Responses fully sent, by HTTP status",
		}, []string{"status"}),
		sent: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_bytes_sent_total",
			Help: "Bytes written to client sockets",
		}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "hioload_pool_rejections_total",
			Help: "Read-ready connections the worker pool refused",
		}),
	}
}

// RegisterQueueDepth exports fn as the pool queue depth gauge.
func (m *PromMetrics) RegisterQueueDepth(fn func() int) {
	promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "hioload_pool_queue_depth",
		Help: "Tasks queued and not yet started",
	}, func() float64 { return float64(fn()) })
}

func (m *PromMetrics) ConnectionOpened() {
	m.active.Inc()
	m.accepted.Inc()
}

func (m *PromMetrics) ConnectionClosed() {
	m.active.Dec()
	m.closed.Inc()
}

func (m *PromMetrics) RequestServed(status int) {
	m.requests.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *PromMetrics) BytesSent(n int) { m.sent.Add(float64(n)) }

func (m *PromMetrics) SubmissionRejected() { m.rejected.Inc() }

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened()   {}
func (noopMetrics) ConnectionClosed()   {}
func (noopMetrics) RequestServed(int)   {}
func (noopMetrics) BytesSent(int)       {}
func (noopMetrics) SubmissionRejected() {}

// NoopMetrics returns an api.Metrics that discards everything.
func NoopMetrics() api.Metrics { return noopMetrics{} }
