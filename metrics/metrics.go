// Package metrics provides Prometheus metrics for playbot
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for playbot.
//
// A nil *Metrics is valid and records nothing, so components
// can be constructed without metrics in tests.
type Metrics struct {
	// Dispatch metrics
	MessagesTotal     *prometheus.CounterVec
	HandlerCallsTotal *prometheus.CounterVec
	DispatchDuration  prometheus.Histogram
	ReplyLinesTotal   *prometheus.CounterVec

	// Snippet store metrics
	CodeDBWritesTotal *prometheus.CounterVec
	CodeDBEntries     prometheus.Gauge

	// Outbound HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Connection metrics
	ConnectionsTotal *prometheus.CounterVec
}

// New creates all metrics and registers them with reg.
// Passing prometheus.DefaultRegisterer exposes them on promhttp.Handler().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{}

	m.MessagesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playbot_messages_total",
			Help: "Total number of inbound messages by dispatch outcome",
		},
		[]string{"outcome"},
	)

	m.HandlerCallsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playbot_handler_calls_total",
			Help: "Total number of handler invocations by kind and returned flow",
		},
		[]string{"kind", "flow"},
	)

	m.DispatchDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "playbot_dispatch_duration_seconds",
			Help:    "Duration of a full message dispatch in seconds",
			Buckets: []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	m.ReplyLinesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playbot_reply_lines_total",
			Help: "Total number of reply lines by outcome",
		},
		[]string{"outcome"},
	)

	m.CodeDBWritesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playbot_codedb_writes_total",
			Help: "Total number of snippet store writes",
		},
		[]string{"op", "status"},
	)

	m.CodeDBEntries = f.NewGauge(
		prometheus.GaugeOpts{
			Name: "playbot_codedb_entries",
			Help: "Number of keys in the snippet store cache",
		},
	)

	m.HTTPRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playbot_http_requests_total",
			Help: "Total number of outbound HTTP requests",
		},
		[]string{"service", "status"},
	)

	m.HTTPRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playbot_http_request_duration_seconds",
			Help:    "Duration of outbound HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	m.ConnectionsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playbot_irc_connections_total",
			Help: "Total number of IRC connection attempts by result",
		},
		[]string{"result"},
	)

	return m
}

// RecordMessage counts an inbound message: dispatched, dropped, or meta.
func (m *Metrics) RecordMessage(outcome string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(outcome).Inc()
}

// RecordHandler counts a handler invocation. kind is named or fallback.
func (m *Metrics) RecordHandler(kind, flow string) {
	if m == nil {
		return
	}
	m.HandlerCallsTotal.WithLabelValues(kind, flow).Inc()
}

// RecordDispatch observes the duration of one dispatch.
func (m *Metrics) RecordDispatch(duration time.Duration) {
	if m == nil {
		return
	}
	m.DispatchDuration.Observe(duration.Seconds())
}

// RecordReplyLine counts a reply line: sent, too_long, or failed.
func (m *Metrics) RecordReplyLine(outcome string) {
	if m == nil {
		return
	}
	m.ReplyLinesTotal.WithLabelValues(outcome).Inc()
}

// RecordCodeDBWrite counts a snippet store write and updates the entry gauge.
func (m *Metrics) RecordCodeDBWrite(op, status string, entries int) {
	if m == nil {
		return
	}
	m.CodeDBWritesTotal.WithLabelValues(op, status).Inc()
	m.CodeDBEntries.Set(float64(entries))
}

// RecordHTTPRequest records an outbound HTTP request with its status.
func (m *Metrics) RecordHTTPRequest(service, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(service, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordConnection counts an IRC connection attempt by result.
func (m *Metrics) RecordConnection(result string) {
	if m == nil {
		return
	}
	m.ConnectionsTotal.WithLabelValues(result).Inc()
}
