// Package observability collects run metrics in a Prometheus registry that is
// dumped to a node_exporter textfile when the batch run ends.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sensorcal"

// Metrics holds the gauges and counters of one calibration run.
type Metrics struct {
	registry *prometheus.Registry

	RowsLoaded     *prometheus.CounterVec // labels: source
	TrainingRows   *prometheus.GaugeVec   // labels: quantity, resolution
	ModelR2        *prometheus.GaugeVec   // labels: quantity, model
	ModelRMSE      *prometheus.GaugeVec   // labels: quantity, model
	SelectedModel  *prometheus.GaugeVec   // labels: quantity, model
	ScrubbedValues *prometheus.CounterVec // labels: quantity
	OutputRows     *prometheus.CounterVec // labels: dataset
	RunDuration    prometheus.Gauge
	LastSuccess    prometheus.Gauge
}

// NewMetrics creates the run metrics and registers them with reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Rows read per data source.",
		}, []string{"source"}),
		TrainingRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "training_rows",
			Help:      "Rows of the training frame after the reference join.",
		}, []string{"quantity", "resolution"}),
		ModelR2: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_r2",
			Help:      "Held-out coefficient of determination per candidate model.",
		}, []string{"quantity", "model"}),
		ModelRMSE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_rmse",
			Help:      "Held-out root mean squared error per candidate model.",
		}, []string{"quantity", "model"}),
		SelectedModel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_selected",
			Help:      "1 for the model used to calibrate a quantity, 0 otherwise.",
		}, []string{"quantity", "model"}),
		ScrubbedValues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrubbed_values_total",
			Help:      "Calibrated values replaced with missing because they were zero or infinite.",
		}, []string{"quantity"}),
		OutputRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_rows_total",
			Help:      "Rows written per output dataset.",
		}, []string{"dataset"}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time at which the last successful run finished.",
		}),
	}

	reg.MustRegister(
		m.RowsLoaded,
		m.TrainingRows,
		m.ModelR2,
		m.ModelRMSE,
		m.SelectedModel,
		m.ScrubbedValues,
		m.OutputRows,
		m.RunDuration,
		m.LastSuccess,
	)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Finish records the run duration and, on success, the finish time.
func (m *Metrics) Finish(started, finished time.Time, success bool) {
	m.RunDuration.Set(finished.Sub(started).Seconds())
	if success {
		m.LastSuccess.Set(float64(finished.Unix()))
	}
}

// WriteTextfile writes every metric in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
