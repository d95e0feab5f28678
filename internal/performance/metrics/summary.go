package metrics

import (
	"sort"
	"time"
)

// RunSummary is the result of a run. It is built by Aggregator.Summary,
// completed by the scheduler and not modified afterwards.
type RunSummary struct {
	RunID     string        `json:"runId"`
	Scenario  string        `json:"scenario"`
	VUs       int           `json:"vus"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	Iterations       int64 `json:"iterations"`
	FailedIterations int64 `json:"failedIterations"`
	Errors           int64 `json:"errors"`

	ChecksPassed int64                 `json:"checksPassed"`
	ChecksFailed int64                 `json:"checksFailed"`
	Checks       map[string]CheckCount `json:"checks"`

	// Latency of whole iterations
	Latency LatencySummary `json:"latency"`

	// Requests breaks latency down by request name
	Requests map[string]LatencySummary `json:"requests,omitempty"`

	// ForceStopped counts VUs still running when the grace period expired
	ForceStopped int `json:"forceStopped,omitempty"`

	// Interrupted is set when the run was cancelled before its deadline
	Interrupted bool `json:"interrupted,omitempty"`

	// SetupError is set when the scenario setup failed
	SetupError string `json:"setupError,omitempty"`

	Thresholds []ThresholdResult `json:"thresholds,omitempty"`
	Passed     bool              `json:"passed"`
}

// CheckCount holds the outcomes of one named check.
type CheckCount struct {
	Pass int64 `json:"pass"`
	Fail int64 `json:"fail"`
}

// Total returns the number of recorded outcomes.
func (c CheckCount) Total() int64 {
	return c.Pass + c.Fail
}

// LatencySummary holds latency statistics in milliseconds.
type LatencySummary struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// CheckFailureRate returns the fraction of failed checks, or 0 when no checks
// were recorded.
func (s *RunSummary) CheckFailureRate() float64 {
	total := s.ChecksPassed + s.ChecksFailed
	if total == 0 {
		return 0
	}
	return float64(s.ChecksFailed) / float64(total)
}

// IterationRate returns completed iterations per second.
func (s *RunSummary) IterationRate() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Iterations) / s.Duration.Seconds()
}

// CheckNames returns the check names in sorted order.
func (s *RunSummary) CheckNames() []string {
	names := make([]string, 0, len(s.Checks))
	for name := range s.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RequestNames returns the request names in sorted order.
func (s *RunSummary) RequestNames() []string {
	names := make([]string, 0, len(s.Requests))
	for name := range s.Requests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
