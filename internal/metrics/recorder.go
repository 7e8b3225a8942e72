// Package metrics exposes cleanup batch activity as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rshade/guildsweep/internal/engine/batch"
)

const namespace = "guildsweep"

// Run results used as the "result" label of runs_total.
const (
	ResultCompleted = "completed"
	ResultCancelled = "cancelled"
	ResultError     = "error"
)

// Recorder implements batch.Recorder on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	entities      *prometheus.CounterVec
	chunks        prometheus.Counter
	chunkEntities prometheus.Histogram
	runs          *prometheus.CounterVec
	lastDuration  prometheus.Gauge
	lastTotal     prometheus.Gauge
}

var _ batch.Recorder = (*Recorder)(nil)

// NewRecorder registers the cleanup metrics on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		entities: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_total",
			Help:      "Entities handled by the cleanup batch, by outcome.",
		}, []string{"outcome"}),
		chunks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Chunks merged into the batch state, including partial ones.",
		}),
		chunkEntities: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_entities",
			Help:      "Entities visited per chunk.",
			Buckets:   []float64{1, 10, 25, 50, 100, 250, 500, 1000},
		}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Cleanup runs by result.",
		}, []string{"result"}),
		lastDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the most recent run.",
		}),
		lastTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_entities",
			Help:      "Snapshot size of the most recent run.",
		}),
	}
}

// Registry returns the registry holding the cleanup metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveChunk counts the outcomes of one merged chunk.
func (r *Recorder) ObserveChunk(result batch.ChunkResult) {
	r.chunks.Inc()
	r.chunkEntities.Observe(float64(result.Attempted))
	r.entities.WithLabelValues(batch.OutcomeSucceeded.String()).Add(float64(result.Succeeded))
	r.entities.WithLabelValues(batch.OutcomeFailed.String()).Add(float64(len(result.Failed)))
	r.entities.WithLabelValues(batch.OutcomeSkipped.String()).Add(float64(result.Skipped))
}

// ObserveSummary records the end of a run.
func (r *Recorder) ObserveSummary(summary batch.Summary) {
	result := ResultCompleted
	if summary.Cancelled {
		result = ResultCancelled
	}
	r.runs.WithLabelValues(result).Inc()
	r.lastDuration.Set(summary.Elapsed.Seconds())
	r.lastTotal.Set(float64(summary.Total))
}

// ObserveError records a run that failed before or outside the batch.
func (r *Recorder) ObserveError() {
	r.runs.WithLabelValues(ResultError).Inc()
}

// WriteTextfile writes all metrics in the text exposition format to path,
// atomically, for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}
