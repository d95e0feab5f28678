package output

import "github.com/fatih/color"

// ColorScheme defines the colors used in the console report.
type ColorScheme struct {
	Border    *color.Color
	Title     *color.Color
	Value     *color.Color
	Success   *color.Color
	Warn      *color.Color
	Error     *color.Color
	Latency   *color.Color
	Dim       *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme.
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Border:    color.New(color.FgCyan),
		Title:     color.New(color.Bold),
		Value:     color.New(color.FgCyan),
		Success:   color.New(color.FgGreen),
		Warn:      color.New(color.FgYellow),
		Error:     color.New(color.FgRed),
		Latency:   color.New(color.FgBlue),
		Dim:       color.New(color.Faint),
		Highlight: color.New(color.FgMagenta, color.Bold),
	}
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{s.Border, s.Title, s.Value, s.Success, s.Warn, s.Error, s.Latency, s.Dim, s.Highlight}
}

// setEnabled forces colors on or off regardless of fatih/color's own
// terminal detection, which only looks at stdout.
func (s *ColorScheme) setEnabled(enabled bool) {
	for _, c := range s.all() {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// rateColor picks a color for a failure rate.
func (s *ColorScheme) rateColor(rate float64) *color.Color {
	switch {
	case rate > 0.05:
		return s.Error
	case rate > 0.01:
		return s.Warn
	default:
		return s.Success
	}
}
