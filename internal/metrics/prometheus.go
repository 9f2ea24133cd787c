package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements weather.Metrics using Prometheus.
type Recorder struct {
	registrations *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchLatency  prometheus.Histogram
	subscriptions prometheus.Gauge
}

// New creates a recorder whose collectors are registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		registrations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_registrations_total",
				Help: "Dataset registrations, split by whether the fingerprint was new",
			},
			[]string{"result"},
		),
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_fetches_total",
				Help: "Combined upstream fetches by outcome",
			},
			[]string{"result"},
		),
		fetchLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "aggregator_fetch_duration_seconds",
				Help:    "Duration of combined upstream fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		subscriptions: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "aggregator_subscriptions",
				Help: "Active per-dataset subscriptions",
			},
		),
	}
}

func (r *Recorder) RecordRegistration(isNew bool) {
	result := "duplicate"
	if isNew {
		result = "new"
	}
	r.registrations.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordFetch(ok bool, elapsed time.Duration) {
	result := "failure"
	if ok {
		result = "success"
	}
	r.fetches.WithLabelValues(result).Inc()
	r.fetchLatency.Observe(elapsed.Seconds())
}

func (r *Recorder) SetSubscriptions(n int) {
	r.subscriptions.Set(float64(n))
}
