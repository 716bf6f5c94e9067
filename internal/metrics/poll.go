package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// PollMetrics bundles poll loop instrumentation.
type PollMetrics struct {
	SensorPolls  *prometheus.CounterVec
	PollDuration prometheus.Histogram
}

// NewPollMetrics constructs the bundle and registers it on reg.
func NewPollMetrics(reg prometheus.Registerer) *PollMetrics {
	m := &PollMetrics{
		SensorPolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purpleair_sensor_polls_total",
				Help: "Total per-sensor poll attempts by result",
			},
			[]string{"sensor_id", "result"},
		),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "purpleair_poll_duration_seconds",
			Help:    "Whole poll cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.SensorPolls,
		m.PollDuration,
	)
	return m
}
