// Package metrics provides Prometheus metrics for the recognition pipeline.
package metrics

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prediction outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeNoHands  = "no_hands"
	OutcomeFailed   = "failed"
)

// Training statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics contains all collectors for the pipeline and training. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	FramesTotal      *prometheus.CounterVec
	FrameErrors      *prometheus.CounterVec
	PredictionsTotal *prometheus.CounterVec
	Confidence       prometheus.Histogram
	TrainingDuration prometheus.Histogram
	TrainingRuns     *prometheus.CounterVec
	DatasetSamples   prometheus.Gauge
	StagedSamples    prometheus.Gauge
	ModelLoaded      prometheus.Gauge
	SamplesPersisted prometheus.Counter

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry.
func New() (*Metrics, error) {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates the collectors and registers them on registry.
func NewWithRegistry(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mudra_frames_total",
			Help: "Total number of processed frames partitioned by pipeline mode.",
		},
		[]string{"mode"},
	)

	m.FrameErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mudra_frame_errors_total",
			Help: "Total number of skipped frames partitioned by stage.",
		},
		[]string{"stage"},
	)

	m.PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mudra_predictions_total",
			Help: "Total number of per-frame predictions partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	m.Confidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mudra_prediction_confidence",
			Help:    "Raw confidence of per-frame predictions.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	m.TrainingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mudra_training_duration_seconds",
			Help:    "Time taken to train the classifier",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
	)

	m.TrainingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mudra_training_runs_total",
			Help: "Total number of training runs partitioned by status.",
		},
		[]string{"status"},
	)

	m.DatasetSamples = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mudra_dataset_samples",
			Help: "Number of samples in the last trained dataset.",
		},
	)

	m.StagedSamples = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mudra_staged_samples",
			Help: "Number of collected samples not yet persisted.",
		},
	)

	m.ModelLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mudra_model_loaded",
			Help: "Whether a trained model is available (1) or not (0).",
		},
	)

	m.SamplesPersisted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mudra_samples_persisted_total",
			Help: "Total number of staged samples appended to the dataset.",
		},
	)
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.FramesTotal.Describe(ch)
	m.FrameErrors.Describe(ch)
	m.PredictionsTotal.Describe(ch)
	m.Confidence.Describe(ch)
	m.TrainingDuration.Describe(ch)
	m.TrainingRuns.Describe(ch)
	m.DatasetSamples.Describe(ch)
	m.StagedSamples.Describe(ch)
	m.ModelLoaded.Describe(ch)
	m.SamplesPersisted.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.FramesTotal.Collect(ch)
	m.FrameErrors.Collect(ch)
	m.PredictionsTotal.Collect(ch)
	m.Confidence.Collect(ch)
	m.TrainingDuration.Collect(ch)
	m.TrainingRuns.Collect(ch)
	m.DatasetSamples.Collect(ch)
	m.StagedSamples.Collect(ch)
	m.ModelLoaded.Collect(ch)
	m.SamplesPersisted.Collect(ch)
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// ObserveFrame counts a processed frame.
func (m *Metrics) ObserveFrame(mode string) {
	if m == nil {
		return
	}
	m.FramesTotal.WithLabelValues(mode).Inc()
}

// ObserveFrameError counts a frame skipped at the given stage.
func (m *Metrics) ObserveFrameError(stage string) {
	if m == nil {
		return
	}
	m.FrameErrors.WithLabelValues(stage).Inc()
}

// ObservePrediction records a prediction outcome and its raw confidence.
func (m *Metrics) ObservePrediction(outcome string, confidence float64) {
	if m == nil {
		return
	}
	m.PredictionsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeNoHands {
		m.Confidence.Observe(confidence)
	}
}

// ObserveTraining records a training run.
func (m *Metrics) ObserveTraining(status string, d time.Duration, samples int) {
	if m == nil {
		return
	}
	m.TrainingRuns.WithLabelValues(status).Inc()
	if status == StatusSuccess {
		m.TrainingDuration.Observe(d.Seconds())
		m.DatasetSamples.Set(float64(samples))
	}
}

// SetModelLoaded records whether a model is available.
func (m *Metrics) SetModelLoaded(loaded bool) {
	if m == nil {
		return
	}
	if loaded {
		m.ModelLoaded.Set(1)
	} else {
		m.ModelLoaded.Set(0)
	}
}

// SetStaged records the staging buffer size.
func (m *Metrics) SetStaged(n int) {
	if m == nil {
		return
	}
	m.StagedSamples.Set(float64(n))
}

// AddPersisted counts samples appended to the dataset.
func (m *Metrics) AddPersisted(n int) {
	if m == nil {
		return
	}
	m.SamplesPersisted.Add(float64(n))
}
