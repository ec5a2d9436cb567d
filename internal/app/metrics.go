package app

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sync outcomes used as the result label.
const (
	syncResultSuccess = "success"
	syncResultFailure = "failure"
)

// SyncMetrics are the Prometheus series exported by the sync engine.
type SyncMetrics struct {
	runs   *prometheus.CounterVec
	quotes prometheus.Gauge
}

// NewSyncMetrics creates and registers the sync series on reg.
// A nil reg leaves the metrics unregistered, which tests rely on.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quotekeeper",
			Name:      "sync_total",
			Help:      "Sync runs by result.",
		}, []string{"result"}),
		quotes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quotekeeper",
			Name:      "quotes",
			Help:      "Quotes in the local collection after the last sync.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.runs, m.quotes)
	}

	return m
}

func (m *SyncMetrics) observe(result string, count int) {
	if m == nil {
		return
	}

	m.runs.WithLabelValues(result).Inc()

	if result == syncResultSuccess {
		m.quotes.Set(float64(count))
	}
}
