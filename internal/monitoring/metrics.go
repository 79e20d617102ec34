package monitoring

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/modelplex/proxycheck/internal/scenario"
)

// Metrics accumulates scenario results for the node_exporter textfile collector.
type Metrics struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	duration *prometheus.GaugeVec
	lastRun  prometheus.Gauge
	now      func() time.Time
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxycheck_scenario_runs_total",
			Help: "Scenario executions by outcome.",
		}, []string{"scenario", "outcome"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "proxycheck_scenario_duration_seconds",
			Help: "Wall time of the last execution of each scenario.",
		}, []string{"scenario"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proxycheck_last_run_timestamp_seconds",
			Help: "Unix time at which the last scenario finished.",
		}),
		now: time.Now,
	}
	m.registry.MustRegister(m.runs, m.duration, m.lastRun)
	return m
}

// Record implements scenario.Recorder.
func (m *Metrics) Record(result scenario.Result) {
	m.runs.WithLabelValues(result.Info.Name, string(result.Outcome)).Inc()
	if result.Outcome != scenario.OutcomeSkipped {
		m.duration.WithLabelValues(result.Info.Name).Set(result.Duration.Seconds())
	}
	m.lastRun.Set(float64(m.now().Unix()))
}

// WriteFile writes the metrics in Prometheus text format, replacing path atomically.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
