// Package output renders run summaries: a console report for humans, a JSON
// record for machines and a Prometheus textfile for node_exporter.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/wesleyorama2/stampede/internal/performance/metrics"
)

const (
	boxHorizontal = "━"
	lineWidth     = 56
	iconPass      = "✓"
	iconFail      = "✗"
)

// RunInfo describes a run before it starts.
type RunInfo struct {
	Scenario   string
	BaseURL    string
	VUs        int
	Duration   time.Duration
	Iterations int64
	Pacing     string
}

// ConsoleConfig contains configuration for ConsoleReport.
type ConsoleConfig struct {
	Writer      io.Writer
	Quiet       bool
	ForceColors bool
	NoColor     bool
}

// ConsoleReport prints the run header and the final summary.
type ConsoleReport struct {
	writer io.Writer
	quiet  bool
	colors *ColorScheme
}

// NewConsoleReport creates a console report.
func NewConsoleReport(config ConsoleConfig) *ConsoleReport {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	useColors := !config.NoColor && (config.ForceColors || (isTerminal(config.Writer) && supportsColors()))

	colors := DefaultColorScheme()
	colors.setEnabled(useColors)

	return &ConsoleReport{
		writer: config.Writer,
		quiet:  config.Quiet,
		colors: colors,
	}
}

// PrintHeader prints what is about to run.
func (c *ConsoleReport) PrintHeader(info RunInfo) {
	if c.quiet {
		return
	}

	line := c.colors.Border.Sprint(strings.Repeat(boxHorizontal, lineWidth))
	c.writeln(line)
	c.writeln(fmt.Sprintf("%s - %s", c.colors.Title.Sprint(info.Scenario), "Running"))
	c.writeln(line)

	if info.BaseURL != "" {
		c.writeln(fmt.Sprintf("Target:        %s", c.colors.Value.Sprint(info.BaseURL)))
	}
	c.writeln(fmt.Sprintf("VUs:           %s", c.colors.Value.Sprint(info.VUs)))
	c.writeln(fmt.Sprintf("Duration:      %s", c.colors.Value.Sprint(formatDuration(info.Duration))))
	if info.Iterations > 0 {
		c.writeln(fmt.Sprintf("Iterations:    %s per VU", c.colors.Value.Sprint(formatNumber(info.Iterations))))
	}
	if info.Pacing != "" {
		c.writeln(fmt.Sprintf("Pacing:        %s", c.colors.Value.Sprint(info.Pacing)))
	}
	c.writeln("")
}

// PrintSummary prints the final run summary.
func (c *ConsoleReport) PrintSummary(summary *metrics.RunSummary) {
	if c.quiet {
		// In quiet mode, just print passed/failed status
		if summary.Passed {
			c.writeln(c.colors.Success.Sprint("PASSED"))
		} else {
			c.writeln(c.colors.Error.Sprint("FAILED"))
		}
		return
	}

	line := c.colors.Border.Sprint(strings.Repeat(boxHorizontal, lineWidth))
	status := c.colors.Success.Sprint("Completed " + iconPass)
	switch {
	case summary.SetupError != "":
		status = c.colors.Error.Sprint("Setup failed " + iconFail)
	case !summary.Passed:
		status = c.colors.Error.Sprint("Failed " + iconFail)
	case summary.Interrupted:
		status = c.colors.Warn.Sprint("Interrupted")
	}

	c.writeln("")
	c.writeln(line)
	c.writeln(fmt.Sprintf("%s - %s", c.colors.Title.Sprint(summary.Scenario), status))
	c.writeln(line)
	c.writeln("")

	if summary.SetupError != "" {
		c.writeln(fmt.Sprintf("Setup error:   %s", c.colors.Error.Sprint(summary.SetupError)))
		c.writeln("")
	}

	c.writeln(fmt.Sprintf("Run ID:        %s", c.colors.Dim.Sprint(summary.RunID)))
	c.writeln(fmt.Sprintf("Duration:      %s", c.colors.Value.Sprint(formatDuration(summary.Duration))))
	c.writeln(fmt.Sprintf("VUs:           %s", c.colors.Value.Sprint(summary.VUs)))
	c.writeln(fmt.Sprintf("Iterations:    %s (%.1f/s)",
		c.colors.Value.Sprint(formatNumber(summary.Iterations)), summary.IterationRate()))

	failedRate := 0.0
	if summary.Iterations > 0 {
		failedRate = float64(summary.FailedIterations) / float64(summary.Iterations)
	}
	c.writeln(fmt.Sprintf("Failed:        %s",
		c.colors.rateColor(failedRate).Sprintf("%s (%.1f%%)", formatNumber(summary.FailedIterations), failedRate*100)))
	if summary.ForceStopped > 0 {
		c.writeln(fmt.Sprintf("Force-stopped: %s VUs", c.colors.Warn.Sprint(summary.ForceStopped)))
	}
	c.writeln("")

	if len(summary.Checks) > 0 {
		c.writeln(c.colors.Title.Sprint("Checks:"))
		for _, name := range summary.CheckNames() {
			count := summary.Checks[name]
			icon := c.colors.Success.Sprint(iconPass)
			if count.Fail > 0 {
				icon = c.colors.Error.Sprint(iconFail)
			}
			c.writeln(fmt.Sprintf("  %s %-24s %s passed / %s failed",
				icon, name, formatNumber(count.Pass), formatNumber(count.Fail)))
		}
		c.writeln("")
	}

	if summary.Latency.Count > 0 {
		c.writeln(c.colors.Title.Sprint("Iteration Latency:"))
		c.printLatency("  ", summary.Latency)
		c.writeln("")
	}

	if len(summary.Requests) > 0 {
		c.writeln(c.colors.Title.Sprint("Requests:"))
		for _, name := range summary.RequestNames() {
			stats := summary.Requests[name]
			c.writeln(fmt.Sprintf("  %-28s n=%-8s p50=%-9s p90=%-9s p99=%s",
				name,
				formatNumber(stats.Count),
				c.colors.Latency.Sprint(formatMillis(stats.P50)),
				c.colors.Latency.Sprint(formatMillis(stats.P90)),
				c.colors.Latency.Sprint(formatMillis(stats.P99))))
		}
		c.writeln("")
	}

	if len(summary.Thresholds) > 0 {
		c.writeln(c.colors.Title.Sprint("Thresholds:"))
		for _, t := range summary.Thresholds {
			icon := c.colors.Success.Sprint(iconPass)
			if !t.Passed {
				icon = c.colors.Error.Sprint(iconFail)
			}
			c.writeln(fmt.Sprintf("  %s %s %s (actual: %s)", icon, t.Metric, t.Expression, t.Value))
			if !t.Passed && t.Message != "" {
				c.writeln(fmt.Sprintf("      %s", c.colors.Dim.Sprint(t.Message)))
			}
		}
		c.writeln("")
	}
}

// PrintError reports a fatal error in the named phase.
func (c *ConsoleReport) PrintError(phase string, err error) {
	c.writeln(fmt.Sprintf("%s %s: %v", c.colors.Error.Sprint(iconFail), c.colors.Title.Sprint(phase), err))
}

func (c *ConsoleReport) printLatency(indent string, stats metrics.LatencySummary) {
	rows := []struct {
		label string
		value float64
	}{
		{"Min", stats.Min},
		{"Avg", stats.Mean},
		{"P50", stats.P50},
		{"P90", stats.P90},
		{"P95", stats.P95},
		{"P99", stats.P99},
		{"Max", stats.Max},
	}
	for _, row := range rows {
		c.writeln(fmt.Sprintf("%s%-10s %s", indent, row.label+":", c.colors.Latency.Sprint(formatMillis(row.value))))
	}
}

// writeln writes to the output with a newline.
func (c *ConsoleReport) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatMillis formats a latency given in milliseconds.
func formatMillis(ms float64) string {
	d := time.Duration(ms * float64(time.Millisecond))
	switch {
	case d <= 0:
		return "0ms"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.2fms", ms)
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}

	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}
