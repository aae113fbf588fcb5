package autosync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics of the attempts; a nil *Metrics is valid and records nothing.
type Metrics struct {
	Attempts    *prometheus.CounterVec
	Duration    prometheus.Histogram
	Correlation prometheus.Histogram
	Offset      prometheus.Histogram
	Dropped     *prometheus.CounterVec
}

// NewMetrics registers the metrics in reg; prometheus.DefaultRegisterer
// is used if reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lyricsync_attempts_total",
			Help: "Total number of offset detection attempts by result",
		}, []string{"result"}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lyricsync_attempt_duration_seconds",
			Help:    "Wall time of an offset detection attempt",
			Buckets: []float64{0.5, 1, 1.5, 2, 3, 5, 10, 15},
		}),
		Correlation: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lyricsync_correlation",
			Help:    "Correlation of the best lag of the analyzed attempts",
			Buckets: prometheus.LinearBuckets(-1, 0.1, 21),
		}),
		Offset: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lyricsync_offset_seconds",
			Help:    "Detected lyrics offsets",
			Buckets: prometheus.LinearBuckets(-5, 1, 21),
		}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lyricsync_dropped_batches_total",
			Help: "Total number of capture batches dropped because the port was full",
		}, []string{"source"}),
	}
}

func (m *Metrics) observe(o Outcome) {
	if m == nil {
		return
	}
	result := "ok"
	if !o.OK {
		result = string(o.Reason)
	}
	m.Attempts.WithLabelValues(result).Inc()
	m.Duration.Observe(o.Diagnostics.Elapsed.Seconds())
	m.Dropped.WithLabelValues("program").Add(float64(o.Diagnostics.ProgramStats.DroppedBatches))
	m.Dropped.WithLabelValues("mic").Add(float64(o.Diagnostics.MicStats.DroppedBatches))
	if o.OK || o.Reason == ReasonNoCorrelation {
		m.Correlation.Observe(o.Diagnostics.Correlation)
	}
	if o.OK {
		m.Offset.Observe(o.OffsetSeconds)
	}
}
