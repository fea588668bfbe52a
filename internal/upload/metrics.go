package upload

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks document transfers.
type Metrics struct {
	Started   prometheus.Counter
	Completed prometheus.Counter
	Failed    *prometheus.CounterVec
	Rejected  *prometheus.CounterVec
	InFlight  prometheus.Gauge
	Duration  prometheus.Histogram
}

// NewMetrics registers the upload metrics with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Started: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboard_uploads_started_total",
			Help: "Total number of document transfers started",
		}),
		Completed: factory.NewCounter(prometheus.CounterOpts{
			Name: "onboard_uploads_completed_total",
			Help: "Total number of document transfers that completed",
		}),
		Failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_uploads_failed_total",
			Help: "Total number of document transfers that failed, by cause",
		}, []string{"cause"}),
		Rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_uploads_rejected_total",
			Help: "Total number of files rejected before transfer, by reason",
		}, []string{"reason"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "onboard_uploads_in_flight",
			Help: "Number of document transfers currently in flight",
		}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "onboard_upload_duration_seconds",
			Help:    "Duration of document transfers",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

func (m *Metrics) incStarted() {
	if m == nil {
		return
	}
	m.Started.Inc()
	m.InFlight.Inc()
}

func (m *Metrics) observeDone(start time.Time, cause string) {
	if m == nil {
		return
	}
	m.InFlight.Dec()
	m.Duration.Observe(time.Since(start).Seconds())
	if cause == "" {
		m.Completed.Inc()
		return
	}
	m.Failed.WithLabelValues(cause).Inc()
}

func (m *Metrics) incRejected(reason string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(reason).Inc()
}
