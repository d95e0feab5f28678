package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/wesleyorama2/stampede/internal/performance/metrics"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate validates the whole run file.
//
// Returns nil if valid, or a *ValidationErrors containing every problem found.
func (f *RunFile) Validate() error {
	errs := &ValidationErrors{}

	if f.Scenario == "" {
		errs.Add("scenario", "scenario is required")
	}
	if f.VUs <= 0 {
		errs.Add("vus", "vus must be greater than 0")
	}
	if f.Iterations < 0 {
		errs.Add("iterations", "iterations cannot be negative")
	}

	if f.Duration == "" {
		errs.Add("duration", "duration is required")
	} else if d, err := ParseDurationString(f.Duration); err != nil {
		errs.Add("duration", fmt.Sprintf("invalid duration: %v", err))
	} else if d <= 0 {
		errs.Add("duration", "duration must be greater than 0")
	}

	validateOptionalDuration("gracePeriod", f.GracePeriod, errs)
	validateOptionalDuration("setupTimeout", f.SetupTimeout, errs)

	validateBaseURL(f.BaseURL, errs)
	for i, endpoint := range f.Endpoints {
		if endpoint == "" {
			errs.Add(fmt.Sprintf("endpoints[%d]", i), "endpoint cannot be empty")
		}
	}

	if f.Credentials != nil && !f.Credentials.IsZero() && f.Credentials.Username == "" {
		errs.Add("credentials.username", "username is required when a password is set")
	}

	if f.Pacing != nil {
		validatePacing("pacing", f.Pacing, errs)
	}

	validateSettings(&f.Settings, errs)

	if f.Thresholds != nil {
		validateThresholds(f.Thresholds, errs)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateBaseURL(baseURL string, errs *ValidationErrors) {
	if baseURL == "" {
		errs.Add("baseUrl", "baseUrl is required")
		return
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		errs.Add("baseUrl", fmt.Sprintf("invalid URL: %v", err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		errs.Add("baseUrl", fmt.Sprintf("unsupported scheme %q (want http or https)", u.Scheme))
	}
	if u.Host == "" {
		errs.Add("baseUrl", "host is required")
	}
}

// validateOptionalDuration accepts an empty value, which selects the default.
// A zero value would be replaced by that default too, so it is rejected.
func validateOptionalDuration(field, value string, errs *ValidationErrors) {
	if value == "" {
		return
	}
	d, err := ParseDurationString(value)
	if err != nil {
		errs.Add(field, fmt.Sprintf("invalid duration: %v", err))
		return
	}
	if d < 0 {
		errs.Add(field, "duration cannot be negative")
	} else if d == 0 {
		errs.Add(field, "duration must be greater than 0 (omit it to use the default)")
	}
}

// validatePacing validates pacing configuration.
func validatePacing(prefix string, pacing *PacingConfig, errs *ValidationErrors) {
	validTypes := map[string]bool{
		"": true, "none": true, "constant": true, "random": true,
	}

	if !validTypes[pacing.Type] {
		errs.Add(prefix+".type", fmt.Sprintf("invalid pacing type: %s", pacing.Type))
	}

	switch pacing.Type {
	case "constant":
		if pacing.Duration == "" {
			errs.Add(prefix+".duration", "duration is required for constant pacing")
		} else {
			validateNonNegativeDuration(prefix+".duration", pacing.Duration, errs)
		}

	case "random":
		if pacing.Min == "" {
			errs.Add(prefix+".min", "min is required for random pacing")
		} else {
			validateNonNegativeDuration(prefix+".min", pacing.Min, errs)
		}

		if pacing.Max == "" {
			errs.Add(prefix+".max", "max is required for random pacing")
		} else {
			validateNonNegativeDuration(prefix+".max", pacing.Max, errs)
		}

		if pacing.Min != "" && pacing.Max != "" {
			minDur, _ := ParseDurationString(pacing.Min)
			maxDur, _ := ParseDurationString(pacing.Max)
			if minDur > maxDur {
				errs.Add(prefix, "min must be less than or equal to max")
			}
		}
	}
}

// validateSettings validates the HTTP client settings.
func validateSettings(settings *Settings, errs *ValidationErrors) {
	if settings.Timeout < 0 {
		errs.Add("settings.timeout", "timeout cannot be negative")
	}
	if settings.MaxIdleConnsPerHost < 0 {
		errs.Add("settings.maxIdleConnsPerHost", "maxIdleConnsPerHost cannot be negative")
	}
	if settings.MaxConnectionsPerHost < 0 {
		errs.Add("settings.maxConnectionsPerHost", "maxConnectionsPerHost cannot be negative")
	}
	for name := range settings.Headers {
		if strings.TrimSpace(name) == "" {
			errs.Add("settings.headers", "header name cannot be empty")
		}
	}
}

// validateThresholds checks every threshold expression.
func validateThresholds(t *metrics.ThresholdsConfig, errs *ValidationErrors) {
	groups := []struct {
		metric string
		exprs  []string
	}{
		{metrics.MetricChecks, t.Checks},
		{metrics.MetricIterationDuration, t.IterationDuration},
		{metrics.MetricIterations, t.Iterations},
	}

	for _, group := range groups {
		for i, expr := range group.exprs {
			if err := metrics.ValidateThreshold(group.metric, expr); err != nil {
				errs.Add(fmt.Sprintf("thresholds.%s[%d]", group.metric, i), err.Error())
			}
		}
	}
}
