// Package dispatchmetrics exposes the prometheus counters and
// histograms the dispatcher updates, in the style of the teacher's
// proxy/metrics.go: package-level collectors registered once at init.
package dispatchmetrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "dispatch"
	subsystem = "core"
)

var (
	ActiveFlows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_flows",
			Help:      "Concurrent flows currently being dispatched, by network",
		},
		[]string{"network"},
	)
	TotalFlows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "total_flows",
			Help:      "Total flows dispatched, by network and outbound tag",
		},
		[]string{"network", "outbound"},
	)
	DialFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dial_failures",
			Help:      "Pre-dial (connect_tcp_outbound/connect_udp_outbound) failures, by outbound tag",
		},
		[]string{"outbound"},
	)
	HandshakeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handshake_failures",
			Help:      "Outbound handler handshake failures, by outbound tag",
		},
		[]string{"outbound"},
	)
	HandshakeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handshake_duration_seconds",
			Help:      "Time from route pick to a successful outbound handshake",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outbound"},
	)
	BytesRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_relayed_total",
			Help:      "Bytes relayed by direction (uplink/downlink)",
		},
		[]string{"direction"},
	)
)

func init() {
	prometheus.MustRegister(
		ActiveFlows,
		TotalFlows,
		DialFailures,
		HandshakeFailures,
		HandshakeDuration,
		BytesRelayed,
	)
}
