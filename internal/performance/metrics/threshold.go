package metrics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Threshold metric names.
const (
	MetricChecks            = "checks"
	MetricIterationDuration = "iteration_duration"
	MetricIterations        = "iterations"
)

// ThresholdsConfig holds pass/fail expressions evaluated against a summary.
type ThresholdsConfig struct {
	// Checks thresholds on the check failure rate (e.g. "rate < 0.05")
	Checks []string `yaml:"checks,omitempty" json:"checks,omitempty"`

	// IterationDuration thresholds on iteration latency (e.g. "p95 < 500ms")
	IterationDuration []string `yaml:"iteration_duration,omitempty" json:"iteration_duration,omitempty"`

	// Iterations thresholds on iteration count or rate (e.g. "count > 100")
	Iterations []string `yaml:"iterations,omitempty" json:"iterations,omitempty"`
}

// IsEmpty reports whether no threshold is configured.
func (c *ThresholdsConfig) IsEmpty() bool {
	return c == nil || len(c.Checks)+len(c.IterationDuration)+len(c.Iterations) == 0
}

// ThresholdResult contains the result of a threshold evaluation.
type ThresholdResult struct {
	Metric     string `json:"metric"`
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Value      string `json:"value"`
	Message    string `json:"message,omitempty"`
}

// EvaluateThresholds evaluates every configured expression against summary.
// An expression that cannot be parsed fails.
func EvaluateThresholds(cfg *ThresholdsConfig, summary *RunSummary) []ThresholdResult {
	if cfg == nil {
		return nil
	}

	var results []ThresholdResult

	for _, expr := range cfg.Checks {
		results = append(results, evaluateChecksThreshold(expr, summary))
	}

	for _, expr := range cfg.IterationDuration {
		results = append(results, evaluateDurationThreshold(expr, summary))
	}

	for _, expr := range cfg.Iterations {
		results = append(results, evaluateIterationsThreshold(expr, summary))
	}

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []ThresholdResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// ValidateThreshold checks that expr is well formed for metric.
func ValidateThreshold(metric, expr string) error {
	name, op, value, err := parseThresholdExpression(expr)
	if err != nil {
		return err
	}
	if !validOperator(op) {
		return fmt.Errorf("unknown operator %q", op)
	}

	switch metric {
	case MetricChecks:
		if name != "rate" {
			return fmt.Errorf("%s only supports 'rate', got: %s", metric, name)
		}
		_, err = strconv.ParseFloat(value, 64)
	case MetricIterationDuration:
		if _, ok := durationStat(name, LatencySummary{}); !ok {
			return fmt.Errorf("unknown metric: %s", name)
		}
		_, err = time.ParseDuration(value)
	case MetricIterations:
		if name != "count" && name != "rate" {
			return fmt.Errorf("%s only supports 'count' or 'rate', got: %s", metric, name)
		}
		_, err = strconv.ParseFloat(value, 64)
	default:
		return fmt.Errorf("unknown threshold metric: %s", metric)
	}
	if err != nil {
		return fmt.Errorf("invalid threshold value %q: %w", value, err)
	}
	return nil
}

// evaluateChecksThreshold evaluates a check failure rate expression.
func evaluateChecksThreshold(expr string, summary *RunSummary) ThresholdResult {
	result := ThresholdResult{
		Metric:     MetricChecks,
		Expression: expr,
	}

	// Parse expression like "rate < 0.05"
	metric, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	if metric != "rate" {
		result.Message = fmt.Sprintf("checks only supports 'rate' metric, got: %s", metric)
		return result
	}

	thresholdValue, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	rate := summary.CheckFailureRate()
	result.Value = fmt.Sprintf("%.4f", rate)
	result.Passed = compareValues(rate, op, thresholdValue)

	if !result.Passed {
		result.Message = fmt.Sprintf("check failure rate is %.4f, threshold: %s %.4f", rate, op, thresholdValue)
	}

	return result
}

// evaluateDurationThreshold evaluates an iteration latency expression.
func evaluateDurationThreshold(expr string, summary *RunSummary) ThresholdResult {
	result := ThresholdResult{
		Metric:     MetricIterationDuration,
		Expression: expr,
	}

	// Parse expression like "p95 < 500ms"
	metric, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	actualMillis, ok := durationStat(metric, summary.Latency)
	if !ok {
		result.Message = fmt.Sprintf("unknown metric: %s", metric)
		return result
	}

	thresholdValue, err := time.ParseDuration(valueStr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	actual := time.Duration(actualMillis * float64(time.Millisecond))
	result.Value = actual.String()
	result.Passed = compareValues(float64(actual), op, float64(thresholdValue))

	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %s, threshold: %s %s", metric, actual, op, thresholdValue)
	}

	return result
}

// evaluateIterationsThreshold evaluates an iteration count/rate expression.
func evaluateIterationsThreshold(expr string, summary *RunSummary) ThresholdResult {
	result := ThresholdResult{
		Metric:     MetricIterations,
		Expression: expr,
	}

	// Parse expression like "count > 1000" or "rate > 100"
	metric, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	thresholdValue, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	var actualValue float64
	switch metric {
	case "count":
		actualValue = float64(summary.Iterations)
	case "rate":
		actualValue = summary.IterationRate()
	default:
		result.Message = fmt.Sprintf("iterations only supports 'count' or 'rate' metrics, got: %s", metric)
		return result
	}

	result.Value = fmt.Sprintf("%.2f", actualValue)
	result.Passed = compareValues(actualValue, op, thresholdValue)

	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %.2f, threshold: %s %.2f", metric, actualValue, op, thresholdValue)
	}

	return result
}

// durationStat returns the named latency statistic in milliseconds.
func durationStat(metric string, latency LatencySummary) (float64, bool) {
	switch metric {
	case "min":
		return latency.Min, true
	case "max":
		return latency.Max, true
	case "avg":
		return latency.Mean, true
	case "med", "p50":
		return latency.P50, true
	case "p90":
		return latency.P90, true
	case "p95":
		return latency.P95, true
	case "p99":
		return latency.P99, true
	default:
		return 0, false
	}
}

var thresholdExpr = regexp.MustCompile(`^(\w+)\s*([<>=!]+)\s*(.+)$`)

// parseThresholdExpression parses an expression like "p95 < 500ms".
func parseThresholdExpression(expr string) (metric, op, value string, err error) {
	expr = strings.TrimSpace(expr)

	matches := thresholdExpr.FindStringSubmatch(expr)
	if len(matches) != 4 {
		return "", "", "", fmt.Errorf("invalid expression format: %s", expr)
	}

	return matches[1], matches[2], strings.TrimSpace(matches[3]), nil
}

func validOperator(op string) bool {
	switch op {
	case "<", "<=", ">", ">=", "==", "=", "!=", "<>":
		return true
	default:
		return false
	}
}

// compareValues compares two values using the given operator.
func compareValues(actual float64, op string, threshold float64) bool {
	switch op {
	case "<":
		return actual < threshold
	case "<=":
		return actual <= threshold
	case ">":
		return actual > threshold
	case ">=":
		return actual >= threshold
	case "==", "=":
		return actual == threshold
	case "!=", "<>":
		return actual != threshold
	default:
		return false
	}
}
