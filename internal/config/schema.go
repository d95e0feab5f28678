// Package config provides the run file: its schema, parsing, defaults and
// validation, and the conversion into the settings the engine runs with.
package config

import (
	"time"

	"github.com/wesleyorama2/stampede/internal/auth"
	"github.com/wesleyorama2/stampede/internal/performance/metrics"
)

// RunFile is the root of a run file.
//
// Example YAML:
//
//	scenario: browse-auth-once
//	vus: 200
//	duration: 1m
//	baseUrl: "http://localhost:8000"
//	credentials:
//	  username: "${STAMPEDE_USERNAME}"
//	  password: "${STAMPEDE_PASSWORD}"
//	pacing:
//	  type: constant
//	  duration: 1s
//	thresholds:
//	  checks:
//	    - "rate < 0.05"
type RunFile struct {
	// Scenario is the name of a registered scenario
	Scenario string `json:"scenario" yaml:"scenario"`

	// VUs is the number of concurrent virtual users
	VUs int `json:"vus" yaml:"vus"`

	// Duration of the run (e.g., "30s", "1m")
	Duration string `json:"duration" yaml:"duration"`

	// Iterations caps the iterations of each VU (0 = no limit)
	Iterations int64 `json:"iterations,omitempty" yaml:"iterations,omitempty"`

	// BaseURL of the system under test
	BaseURL string `json:"baseUrl" yaml:"baseUrl"`

	// Endpoints browsed by the built-in scenarios
	Endpoints []string `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`

	// LoginPath is the login endpoint, relative to BaseURL
	LoginPath string `json:"loginPath,omitempty" yaml:"loginPath,omitempty"`

	// Credentials for the authenticated scenarios
	Credentials *auth.Credentials `json:"credentials,omitempty" yaml:"credentials,omitempty"`

	// Pacing controls the pause between iterations
	Pacing *PacingConfig `json:"pacing,omitempty" yaml:"pacing,omitempty"`

	// GracePeriod is how long VUs may take to stop after draining
	GracePeriod string `json:"gracePeriod,omitempty" yaml:"gracePeriod,omitempty"`

	// SetupTimeout bounds the scenario setup
	SetupTimeout string `json:"setupTimeout,omitempty" yaml:"setupTimeout,omitempty"`

	// Settings for the HTTP client
	Settings Settings `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Thresholds define pass/fail criteria
	Thresholds *metrics.ThresholdsConfig `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	// Output selects the report files
	Output OutputConfig `json:"output,omitempty" yaml:"output,omitempty"`
}

// Settings contains HTTP client settings shared by all VUs.
type Settings struct {
	// Timeout is the per-request timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// MaxIdleConnsPerHost limits idle connections per host
	MaxIdleConnsPerHost int `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`

	// MaxConnectionsPerHost limits connections per host (0 = unlimited)
	MaxConnectionsPerHost int `json:"maxConnectionsPerHost,omitempty" yaml:"maxConnectionsPerHost,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`

	// UserAgent is the User-Agent header
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`

	// Headers are sent with every request
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// PacingConfig controls pacing between iterations.
type PacingConfig struct {
	// Type is the pacing strategy: "none", "constant", "random"
	Type string `json:"type" yaml:"type"`

	// Duration is the wait time for constant pacing
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Min is the minimum wait time for random pacing
	Min string `json:"min,omitempty" yaml:"min,omitempty"`

	// Max is the maximum wait time for random pacing
	Max string `json:"max,omitempty" yaml:"max,omitempty"`
}

// OutputConfig selects the files written after the run.
type OutputConfig struct {
	// JSON is the path of the summary record ("-" for stdout)
	JSON string `json:"json,omitempty" yaml:"json,omitempty"`

	// DetailedJSON writes the full summary instead of the record
	DetailedJSON bool `json:"detailedJson,omitempty" yaml:"detailedJson,omitempty"`

	// Prometheus is the path of a Prometheus textfile
	Prometheus string `json:"prometheus,omitempty" yaml:"prometheus,omitempty"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "null" {
		s = ""
	}
	return d.set(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.set(s)
}

func (d *Duration) set(s string) error {
	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
