package telemetry

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of gauges describing one report run. They are written
// once at the end in the node-exporter textfile format.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration    *prometheus.GaugeVec
	rows             *prometheus.GaugeVec
	cvError          *prometheus.GaugeVec
	oobError         prometheus.Gauge
	holdoutAccuracy  prometheus.Gauge
	selectedFeatures prometheus.Gauge
}

// NewMetrics registers the run gauges on a private registry labelled with runID.
func NewMetrics(runID string) *Metrics {
	constLabels := prometheus.Labels{"run_id": runID}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "wle_stage_duration_seconds",
			Help:        "Wall time spent in each pipeline stage.",
			ConstLabels: constLabels,
		}, []string{"stage"}),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "wle_rows",
			Help:        "Rows per data set.",
			ConstLabels: constLabels,
		}, []string{"set"}),
		cvError: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "wle_cv_error",
			Help:        "Cross-validated error rate per number of variables.",
			ConstLabels: constLabels,
		}, []string{"n_var"}),
		oobError: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "wle_oob_error",
			Help:        "Out-of-bag error rate of the final forest.",
			ConstLabels: constLabels,
		}),
		holdoutAccuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "wle_holdout_accuracy",
			Help:        "Accuracy on the held-out validation rows.",
			ConstLabels: constLabels,
		}),
		selectedFeatures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "wle_selected_features",
			Help:        "Number of features in the final model.",
			ConstLabels: constLabels,
		}),
	}
	m.registry.MustRegister(m.stageDuration, m.rows, m.cvError, m.oobError, m.holdoutAccuracy, m.selectedFeatures)
	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Set(d.Seconds())
}

func (m *Metrics) SetRows(set string, n int) { m.rows.WithLabelValues(set).Set(float64(n)) }

func (m *Metrics) SetCVError(nVar int, errRate float64) {
	m.cvError.WithLabelValues(strconv.Itoa(nVar)).Set(errRate)
}

func (m *Metrics) SetOOBError(v float64)        { m.oobError.Set(v) }
func (m *Metrics) SetHoldoutAccuracy(v float64) { m.holdoutAccuracy.Set(v) }
func (m *Metrics) SetSelectedFeatures(n int)    { m.selectedFeatures.Set(float64(n)) }

// WriteTextfile writes every gathered metric to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("telemetry: write %s: %w", path, err)
	}
	return nil
}
