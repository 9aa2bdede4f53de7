package status

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus gauges/counters scraped over /metrics, the
// counterpart read surface to the WebSocket status Hub.
type Metrics struct {
	InputActive   prometheus.Gauge
	ARQDepth      *prometheus.GaugeVec // labeled by output id
	Discontinuity prometheus.Counter
	MuxBitrate    prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics returns the process's Metrics. The first call registers the
// gauges/counters against the default registry; later calls return the
// same Metrics, since the default registry rejects a second registration
// of the same names.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() { metrics = registerMetrics() })
	return metrics
}

// registerMetrics registers and returns the gauges/counters against the
// default registry.
func registerMetrics() *Metrics {
	return &Metrics{
		InputActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "obe",
			Name:      "input_active",
			Help:      "1 if the input adapter is currently producing frames.",
		}),
		ARQDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "obe",
			Name:      "arq_cache_depth",
			Help:      "Current retransmission cache depth per ARQ output.",
		}, []string{"output_id"}),
		Discontinuity: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "obe",
			Name:      "discontinuity_total",
			Help:      "Count of recoverable input drift/discontinuity events.",
		}),
		MuxBitrate: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "obe",
			Name:      "mux_bitrate_bps",
			Help:      "Configured multiplexer bitrate in bits/sec.",
		}),
	}
}
