package output

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wesleyorama2/stampede/internal/performance/metrics"
)

const namespace = "stampede"

var quantiles = []struct {
	label string
	value func(metrics.LatencySummary) float64
}{
	{"0.5", func(l metrics.LatencySummary) float64 { return l.P50 }},
	{"0.9", func(l metrics.LatencySummary) float64 { return l.P90 }},
	{"0.95", func(l metrics.LatencySummary) float64 { return l.P95 }},
	{"0.99", func(l metrics.LatencySummary) float64 { return l.P99 }},
}

// NewPrometheusRegistry builds a registry holding the final values of a run.
func NewPrometheusRegistry(summary *metrics.RunSummary) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"scenario": summary.Scenario, "run_id": summary.RunID}

	gauge := func(name, help string, value float64) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		g.Set(value)
		return g
	}

	passed := 0.0
	if summary.Passed {
		passed = 1
	}

	checks := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "checks",
		Help:        "Check outcomes by check name and result.",
		ConstLabels: labels,
	}, []string{"check", "result"})
	for name, count := range summary.Checks {
		checks.WithLabelValues(name, "pass").Set(float64(count.Pass))
		checks.WithLabelValues(name, "fail").Set(float64(count.Fail))
	}

	iterationLatency := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "iteration_duration_milliseconds",
		Help:        "Iteration latency percentiles.",
		ConstLabels: labels,
	}, []string{"quantile"})
	for _, q := range quantiles {
		iterationLatency.WithLabelValues(q.label).Set(q.value(summary.Latency))
	}

	requestLatency := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "request_duration_milliseconds",
		Help:        "Request latency percentiles by request name.",
		ConstLabels: labels,
	}, []string{"request", "quantile"})
	for name, stats := range summary.Requests {
		for _, q := range quantiles {
			requestLatency.WithLabelValues(name, q.label).Set(q.value(stats))
		}
	}

	collectors := []prometheus.Collector{
		gauge("vus", "Configured virtual users.", float64(summary.VUs)),
		gauge("iterations", "Completed iterations.", float64(summary.Iterations)),
		gauge("failed_iterations", "Iterations with an error or a failed check.", float64(summary.FailedIterations)),
		gauge("iteration_errors", "Iterations that returned an error.", float64(summary.Errors)),
		gauge("run_duration_seconds", "Wall-clock duration of the run.", summary.Duration.Seconds()),
		gauge("run_passed", "1 if setup succeeded and every threshold passed.", passed),
		checks,
		iterationLatency,
		requestLatency,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return reg, nil
}

// WritePrometheus writes the run's metrics to path in the Prometheus text
// format, suitable for node_exporter's textfile collector.
func WritePrometheus(path string, summary *metrics.RunSummary) error {
	reg, err := NewPrometheusRegistry(summary)
	if err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
