package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records per-operation outcomes and latency.
type Metrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewMetrics registers the ledger collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Labels: op (submit, revoke, respond), outcome (ok or an error code)
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reputation",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by outcome",
		}, []string{"op", "outcome"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reputation",
			Subsystem: "ledger",
			Name:      "operation_seconds",
			Help:      "Ledger operation latency in seconds, retries included",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"op"}),
	}
}

// observe is a no-op on a nil receiver.
func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, Code(err)).Inc()
	m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
