package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records pipeline observability. A nil *Metrics is a no-op.
type Metrics struct {
	StageLatency *prometheus.HistogramVec
	Outcomes     *prometheus.CounterVec
	Retries      *prometheus.CounterVec
	ReceiptHead  prometheus.Gauge
	BatchSize    prometheus.Histogram
}

// NewMetrics registers the pipeline metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geogov_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),

		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geogov_pipeline_outcomes_total",
			Help: "Artifact outcomes by result and failure kind",
		}, []string{"result", "kind"}),

		Retries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geogov_pipeline_retries_total",
			Help: "Collaborator call retries by stage",
		}, []string{"stage"}),

		ReceiptHead: f.NewGauge(prometheus.GaugeOpts{
			Name: "geogov_receipt_head_seq",
			Help: "Highest committed receipt sequence number",
		}),

		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "geogov_pipeline_batch_size",
			Help:    "Number of artifacts per batch submission",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

func (m *Metrics) observeStage(stage Stage, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(string(stage)).Observe(d.Seconds())
	}
}

func (m *Metrics) succeeded() {
	if m != nil {
		m.Outcomes.WithLabelValues("done", "").Inc()
	}
}

func (m *Metrics) failed(kind Kind) {
	if m != nil {
		m.Outcomes.WithLabelValues("failed", string(kind)).Inc()
	}
}

func (m *Metrics) retried(stage Stage) {
	if m != nil {
		m.Retries.WithLabelValues(string(stage)).Inc()
	}
}

func (m *Metrics) head(seq uint64) {
	if m != nil {
		m.ReceiptHead.Set(float64(seq))
	}
}

func (m *Metrics) batch(n int) {
	if m != nil {
		m.BatchSize.Observe(float64(n))
	}
}
