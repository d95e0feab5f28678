// Package performance drives load: it runs a scenario on a fixed number of
// virtual users for a fixed duration and aggregates the outcome.
package performance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/stampede/internal/performance/metrics"
	"github.com/wesleyorama2/stampede/internal/scenario"
)

const (
	// DefaultGracePeriod bounds how long VUs may take to stop after draining.
	DefaultGracePeriod = 30 * time.Second

	// DefaultSetupTimeout bounds the scenario setup.
	DefaultSetupTimeout = 60 * time.Second
)

// RunConfig describes a single run.
type RunConfig struct {
	// Scenario is the registered scenario name
	Scenario string

	// VUs is the number of concurrent virtual users (> 0)
	VUs int

	// Duration of the run, setup included (> 0)
	Duration time.Duration

	// Iterations caps the iterations of each VU (0 = no limit)
	Iterations int64

	// Pacing between iterations; nil means no pause
	Pacing *PacingConfig

	// GracePeriod after draining before VUs are force-terminated
	// (0 = DefaultGracePeriod)
	GracePeriod time.Duration

	// SetupTimeout bounds setup (0 = DefaultSetupTimeout)
	SetupTimeout time.Duration

	// Thresholds evaluated against the summary (optional)
	Thresholds *metrics.ThresholdsConfig
}

// Validate checks the configuration before any VU starts.
func (c *RunConfig) Validate() error {
	if c.Scenario == "" {
		return &ValidationError{Field: "scenario", Message: "scenario is required"}
	}
	if c.VUs <= 0 {
		return &ValidationError{Field: "vus", Message: "vus must be > 0"}
	}
	if c.Duration <= 0 {
		return &ValidationError{Field: "duration", Message: "duration must be > 0"}
	}
	if c.Iterations < 0 {
		return &ValidationError{Field: "iterations", Message: "iterations must be >= 0"}
	}
	if c.GracePeriod < 0 {
		return &ValidationError{Field: "gracePeriod", Message: "gracePeriod must be >= 0"}
	}
	if c.SetupTimeout < 0 {
		return &ValidationError{Field: "setupTimeout", Message: "setupTimeout must be >= 0"}
	}
	if err := c.Pacing.Validate(); err != nil {
		return err
	}
	if c.Thresholds != nil {
		for metric, exprs := range map[string][]string{
			metrics.MetricChecks:            c.Thresholds.Checks,
			metrics.MetricIterationDuration: c.Thresholds.IterationDuration,
			metrics.MetricIterations:        c.Thresholds.Iterations,
		} {
			for _, expr := range exprs {
				if err := metrics.ValidateThreshold(metric, expr); err != nil {
					return &ValidationError{Field: "thresholds." + metric, Message: err.Error()}
				}
			}
		}
	}
	return nil
}

func (c RunConfig) withDefaults() RunConfig {
	if c.GracePeriod == 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.SetupTimeout == 0 {
		c.SetupTimeout = DefaultSetupTimeout
	}
	return c
}

// Scheduler runs scenarios from a registry.
type Scheduler struct {
	registry *scenario.Registry
	logger   *zap.Logger
}

// NewScheduler creates a scheduler. A nil logger discards logs.
func NewScheduler(registry *scenario.Registry, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		registry: registry,
		logger:   logger,
	}
}

// Run executes cfg and returns its summary.
//
// The registry is frozen first. Exactly cfg.VUs VUs are started; the first
// of them to start launches the scenario setup and all of them wait for it.
// When cfg.Duration has elapsed since Run was called, or ctx is cancelled,
// every VU is drained. VUs still running cfg.GracePeriod after the drain
// signal are force-terminated: their iteration context is cancelled and
// their late results are discarded.
//
// An invalid cfg returns a *ConfigError and no summary. A failed setup
// returns a *SetupError along with a summary reporting zero iterations.
// A setup still running when the run ends is a *SetupError wrapping
// ErrSetupIncomplete. Cancellation of ctx is not an error; the summary is
// marked Interrupted.
func (s *Scheduler) Run(ctx context.Context, cfg RunConfig) (*metrics.RunSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Err: err}
	}

	s.registry.Freeze()
	sc, err := s.registry.Lookup(cfg.Scenario)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	cfg = cfg.withDefaults()

	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID), zap.String("scenario", sc.Name))
	logger.Info("starting run",
		zap.Int("vus", cfg.VUs),
		zap.Duration("duration", cfg.Duration),
		zap.Int64("iterations", cfg.Iterations),
		zap.Stringer("pacing", cfg.Pacing))

	start := time.Now()
	deadline := time.NewTimer(cfg.Duration)
	defer deadline.Stop()

	// Iterations see hardCtx, which ignores the caller's cancellation so
	// draining lets in-flight requests complete. It is cancelled only on
	// force-termination and when Run returns.
	hardCtx, hardCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer hardCancel()

	agg := metrics.NewAggregator()
	barrier := NewSetupBarrier(sc, cfg.SetupTimeout, logger)

	vus := make([]*VirtualUser, cfg.VUs)
	var g errgroup.Group
	for i := range vus {
		vu := NewVirtualUser(i+1, sc, barrier, agg.Shard(i+1), VUOptions{
			Pacing:        cfg.Pacing,
			MaxIterations: cfg.Iterations,
			Logger:        logger,
		})
		vus[i] = vu
		g.Go(func() error {
			return vu.Run(hardCtx)
		})
	}

	finished := make(chan error, 1)
	go func() {
		finished <- g.Wait()
	}()

	interrupted := false
	forceStopped := 0

	select {
	case <-finished:
		logger.Info("all VUs stopped before the deadline")
	case <-deadline.C:
		logger.Info("duration reached, draining VUs")
		forceStopped = s.drain(vus, cfg.GracePeriod, finished, agg, hardCancel, logger)
	case <-ctx.Done():
		interrupted = true
		logger.Info("run cancelled, draining VUs", zap.Error(ctx.Err()))
		forceStopped = s.drain(vus, cfg.GracePeriod, finished, agg, hardCancel, logger)
	}

	end := time.Now()
	summary := agg.Summary()
	summary.RunID = runID
	summary.Scenario = sc.Name
	summary.VUs = cfg.VUs
	summary.StartTime = start
	summary.EndTime = end
	summary.Duration = end.Sub(start)
	summary.ForceStopped = forceStopped
	summary.Interrupted = interrupted

	var setupErr *SetupError
	switch {
	case errors.As(barrier.Err(), &setupErr):
	case !interrupted && !setupFinished(barrier):
		setupErr = &SetupError{Scenario: sc.Name, Err: ErrSetupIncomplete}
	}
	if setupErr != nil {
		summary.SetupError = setupErr.Error()
		summary.Passed = false
		logger.Error("run aborted", zap.Error(setupErr))
		return summary, setupErr
	}

	if !cfg.Thresholds.IsEmpty() {
		summary.Thresholds = metrics.EvaluateThresholds(cfg.Thresholds, summary)
	}
	summary.Passed = metrics.AllPassed(summary.Thresholds)

	logger.Info("run finished",
		zap.Int64("iterations", summary.Iterations),
		zap.Int64("failed_iterations", summary.FailedIterations),
		zap.Float64("check_failure_rate", summary.CheckFailureRate()),
		zap.Duration("elapsed", summary.Duration),
		zap.Bool("passed", summary.Passed))

	return summary, nil
}

func setupFinished(barrier *SetupBarrier) bool {
	select {
	case <-barrier.Done():
		return true
	default:
		return false
	}
}

// drain signals every VU to stop and waits up to grace for them. VUs still
// running afterwards are logged and force-terminated; drain returns how many.
func (s *Scheduler) drain(vus []*VirtualUser, grace time.Duration, finished <-chan error, agg *metrics.Aggregator, terminate context.CancelFunc, logger *zap.Logger) int {
	for _, vu := range vus {
		vu.RequestDrain()
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-finished:
		return 0
	case <-timer.C:
	}

	agg.Close()

	forced := 0
	for _, vu := range vus {
		if vu.State() == VUStateStopped {
			continue
		}
		forced++
		logger.Warn("force-terminating VU after grace period",
			zap.Int("vu", vu.ID),
			zap.Stringer("state", vu.State()),
			zap.Int64("iterations", vu.Iterations()),
			zap.Duration("grace_period", grace))
	}
	terminate()

	return forced
}
