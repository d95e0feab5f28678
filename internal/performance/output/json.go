package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wesleyorama2/stampede/internal/performance/metrics"
)

// Record is the machine-readable run result.
type Record struct {
	Iterations int64                         `json:"iterations"`
	Checks     map[string]metrics.CheckCount `json:"checks"`
	Latency    RecordLatency                 `json:"latency"`
}

// RecordLatency holds iteration latency percentiles in milliseconds.
type RecordLatency struct {
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P99 float64 `json:"p99"`
}

// NewRecord extracts the machine-readable record from summary.
func NewRecord(summary *metrics.RunSummary) Record {
	checks := make(map[string]metrics.CheckCount, len(summary.Checks))
	for name, count := range summary.Checks {
		checks[name] = count
	}

	return Record{
		Iterations: summary.Iterations,
		Checks:     checks,
		Latency: RecordLatency{
			P50: summary.Latency.P50,
			P90: summary.Latency.P90,
			P99: summary.Latency.P99,
		},
	}
}

// WriteJSON writes the record for summary to w.
func WriteJSON(w io.Writer, summary *metrics.RunSummary) error {
	return writeIndented(w, NewRecord(summary))
}

// WriteSummaryJSON writes the complete summary to w.
func WriteSummaryJSON(w io.Writer, summary *metrics.RunSummary) error {
	return writeIndented(w, summary)
}

// WriteJSONFile writes the record to path, or to stdout when path is "-".
func WriteJSONFile(path string, summary *metrics.RunSummary, detailed bool) error {
	write := WriteJSON
	if detailed {
		write = WriteSummaryJSON
	}

	if path == "-" {
		return write(os.Stdout, summary)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f, summary); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeIndented(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
