package config

import (
	"fmt"

	"github.com/wesleyorama2/stampede/internal/auth"
	stampedehttp "github.com/wesleyorama2/stampede/internal/http"
	"github.com/wesleyorama2/stampede/internal/performance"
	"github.com/wesleyorama2/stampede/internal/scenario"
)

// RunConfig converts the file into the configuration of a run.
func (f *RunFile) RunConfig() (performance.RunConfig, error) {
	duration, err := ParseDurationString(f.Duration)
	if err != nil {
		return performance.RunConfig{}, fmt.Errorf("duration: %w", err)
	}
	grace, err := ParseDurationString(f.GracePeriod)
	if err != nil {
		return performance.RunConfig{}, fmt.Errorf("gracePeriod: %w", err)
	}
	setupTimeout, err := ParseDurationString(f.SetupTimeout)
	if err != nil {
		return performance.RunConfig{}, fmt.Errorf("setupTimeout: %w", err)
	}
	pacing, err := f.Pacing.toPacing()
	if err != nil {
		return performance.RunConfig{}, err
	}

	return performance.RunConfig{
		Scenario:     f.Scenario,
		VUs:          f.VUs,
		Duration:     duration,
		Iterations:   f.Iterations,
		Pacing:       pacing,
		GracePeriod:  grace,
		SetupTimeout: setupTimeout,
		Thresholds:   f.Thresholds,
	}, nil
}

// Target returns the system under test described by the file.
func (f *RunFile) Target() scenario.Target {
	var creds auth.Credentials
	if f.Credentials != nil {
		creds = *f.Credentials
	}
	return scenario.Target{
		BaseURL:     f.BaseURL,
		Endpoints:   f.Endpoints,
		LoginPath:   f.LoginPath,
		Credentials: creds,
	}
}

// ClientConfig returns the HTTP transport settings.
func (f *RunFile) ClientConfig() stampedehttp.ClientConfig {
	config := stampedehttp.DefaultClientConfig()
	config.Timeout = f.Settings.Timeout.GetDuration(config.Timeout)
	if f.Settings.MaxIdleConnsPerHost > 0 {
		config.MaxIdleConnsPerHost = f.Settings.MaxIdleConnsPerHost
	}
	config.MaxConnsPerHost = f.Settings.MaxConnectionsPerHost
	config.InsecureSkipVerify = f.Settings.InsecureSkipVerify
	return config
}

// ExecutorOptions returns the headers sent with every request.
func (f *RunFile) ExecutorOptions() []stampedehttp.Option {
	var options []stampedehttp.Option
	if f.Settings.UserAgent != "" {
		options = append(options, stampedehttp.WithUserAgent(f.Settings.UserAgent))
	}
	for key, value := range f.Settings.Headers {
		options = append(options, stampedehttp.WithHeader(key, value))
	}
	return options
}

func (p *PacingConfig) toPacing() (*performance.PacingConfig, error) {
	if p == nil {
		return nil, nil
	}

	pacing := &performance.PacingConfig{Type: performance.PacingType(p.Type)}
	var err error
	if pacing.Duration, err = ParseDurationString(p.Duration); err != nil {
		return nil, fmt.Errorf("pacing.duration: %w", err)
	}
	if pacing.Min, err = ParseDurationString(p.Min); err != nil {
		return nil, fmt.Errorf("pacing.min: %w", err)
	}
	if pacing.Max, err = ParseDurationString(p.Max); err != nil {
		return nil, fmt.Errorf("pacing.max: %w", err)
	}
	return pacing, nil
}
