package perf

import (
	"context"

	"go.uber.org/zap"

	"github.com/wesleyorama2/stampede/internal/performance"
	"github.com/wesleyorama2/stampede/internal/performance/metrics"
	"github.com/wesleyorama2/stampede/internal/scenario"
)

// Scenario types.
type (
	Scenario        = scenario.Scenario
	SharedContext   = scenario.SharedContext
	IterationResult = scenario.IterationResult
)

// Run configuration and results.
type (
	RunConfig        = performance.RunConfig
	PacingConfig     = performance.PacingConfig
	RunSummary       = metrics.RunSummary
	ThresholdsConfig = metrics.ThresholdsConfig
	ThresholdResult  = metrics.ThresholdResult
)

// Errors returned by Run.
type (
	ConfigError = performance.ConfigError
	SetupError  = performance.SetupError
)

var (
	// ErrFrozen is returned by Register once a run has started.
	ErrFrozen = scenario.ErrFrozen

	// ErrSetupIncomplete is wrapped in the SetupError of a run that ended
	// before its setup finished.
	ErrSetupIncomplete = performance.ErrSetupIncomplete
)

// Pacing types.
const (
	PacingNone     = performance.PacingNone
	PacingConstant = performance.PacingConstant
	PacingRandom   = performance.PacingRandom
)

// NewSharedContext returns a read-only context holding a copy of values.
func NewSharedContext(values map[string]any) SharedContext {
	return scenario.NewSharedContext(values)
}

// Runner registers scenarios and runs them.
//
// Scenarios must be registered before the first Run; the registry is frozen
// once a run starts.
type Runner struct {
	registry *scenario.Registry
	logger   *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used by runs.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a runner with an empty registry.
func NewRunner(options ...Option) *Runner {
	r := &Runner{
		registry: scenario.NewRegistry(),
		logger:   zap.NewNop(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Register adds a scenario.
func (r *Runner) Register(s *Scenario) error {
	return r.registry.Register(s)
}

// Scenarios returns the registered scenario names, sorted.
func (r *Runner) Scenarios() []string {
	return r.registry.Names()
}

// Run runs the scenario named in cfg and returns its summary.
//
// A *ConfigError is returned, without a summary, when cfg is invalid. A
// *SetupError is returned together with the summary when setup failed.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*RunSummary, error) {
	return performance.NewScheduler(r.registry, r.logger).Run(ctx, cfg)
}

// RunScenario runs s with a fresh runner.
func RunScenario(ctx context.Context, s *Scenario, cfg RunConfig, options ...Option) (*RunSummary, error) {
	runner := NewRunner(options...)
	if err := runner.Register(s); err != nil {
		return nil, &ConfigError{Err: err}
	}
	cfg.Scenario = s.Name
	return runner.Run(ctx, cfg)
}
