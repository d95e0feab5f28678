package performance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/stampede/internal/performance/metrics"
	"github.com/wesleyorama2/stampede/internal/scenario"
)

// VUState represents the lifecycle state of a Virtual User.
type VUState int32

const (
	// VUStateIdle indicates the VU has been created but not started.
	VUStateIdle VUState = iota
	// VUStateSetup indicates the VU is waiting for the shared setup.
	VUStateSetup
	// VUStateRunning indicates the VU is running iterations.
	VUStateRunning
	// VUStateDraining indicates the VU finishes its current iteration and stops.
	VUStateDraining
	// VUStateStopped indicates the VU has fully stopped.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateSetup:
		return "setup"
	case VUStateRunning:
		return "running"
	case VUStateDraining:
		return "draining"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// VUOptions configures a VirtualUser.
type VUOptions struct {
	// Pacing between iterations; nil means no pause
	Pacing *PacingConfig

	// MaxIterations stops the VU after that many iterations (0 = no limit)
	MaxIterations int64

	Logger *zap.Logger
}

// VirtualUser runs a scenario's iterations in a loop.
//
// A VU goes Idle -> Setup -> Running -> Draining -> Stopped. It waits for the
// run's shared setup before its first iteration, records every iteration into
// its own aggregator shard and stops once drained. Draining never interrupts
// an iteration in progress, but it does cut short the pause between
// iterations.
type VirtualUser struct {
	// Unique identifier for this VU
	ID int

	scenario *scenario.Scenario
	setup    *SetupBarrier
	shard    *metrics.Shard
	opts     VUOptions
	logger   *zap.Logger

	// Lifecycle state (atomic for lock-free reads)
	state atomic.Int32

	// Iteration counter
	iteration atomic.Int64

	// Closed when draining starts
	drainCh chan struct{}

	// Closed when the VU has stopped
	doneCh chan struct{}
}

// NewVirtualUser creates a VU that runs sc after setup completes and records
// its results into shard.
func NewVirtualUser(id int, sc *scenario.Scenario, setup *SetupBarrier, shard *metrics.Shard, opts VUOptions) *VirtualUser {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &VirtualUser{
		ID:       id,
		scenario: sc,
		setup:    setup,
		shard:    shard,
		opts:     opts,
		logger:   logger.With(zap.Int("vu", id)),
		drainCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// State returns the current VU state.
func (vu *VirtualUser) State() VUState {
	return VUState(vu.state.Load())
}

// Iterations returns the number of iterations started.
func (vu *VirtualUser) Iterations() int64 {
	return vu.iteration.Load()
}

// Run starts setup if needed, waits for it and loops over the scenario until
// drained or the iteration cap is reached. ctx is passed to every iteration;
// cancelling it aborts in-flight requests and should be reserved for
// force-termination. Use RequestDrain for a graceful stop.
//
// Run returns a *SetupError when setup failed, and nil otherwise.
func (vu *VirtualUser) Run(ctx context.Context) error {
	defer vu.markStopped()

	if !vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateSetup)) {
		// Drained before it started
		return nil
	}

	vu.setup.Start(ctx)
	select {
	case <-vu.setup.Done():
	case <-vu.drainCh:
		return nil
	case <-ctx.Done():
		return nil
	}

	shared, err := vu.setup.Result()
	if err != nil {
		return err
	}

	if !vu.state.CompareAndSwap(int32(VUStateSetup), int32(VUStateRunning)) {
		return nil
	}

	for {
		if vu.draining() || ctx.Err() != nil {
			return nil
		}

		vu.runIteration(ctx, shared)

		if vu.opts.MaxIterations > 0 && vu.iteration.Load() >= vu.opts.MaxIterations {
			return nil
		}
		if !vu.pause(ctx) {
			return nil
		}
	}
}

// RequestDrain signals the VU to stop after its current iteration.
// It is safe to call more than once and from any goroutine.
func (vu *VirtualUser) RequestDrain() {
	for {
		current := vu.State()
		if current == VUStateDraining || current == VUStateStopped {
			return
		}
		if vu.state.CompareAndSwap(int32(current), int32(VUStateDraining)) {
			close(vu.drainCh)
			return
		}
	}
}

// WaitForStop waits for the VU to stop with a timeout.
//
// Returns true if the VU stopped within the timeout, false otherwise.
func (vu *VirtualUser) WaitForStop(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-vu.doneCh:
		return true
	case <-timer.C:
		return false
	}
}

// Done is closed when the VU has stopped.
func (vu *VirtualUser) Done() <-chan struct{} {
	return vu.doneCh
}

func (vu *VirtualUser) draining() bool {
	return vu.State() == VUStateDraining
}

func (vu *VirtualUser) markStopped() {
	vu.state.Store(int32(VUStateStopped))
	close(vu.doneCh)
}

// runIteration runs one iteration and records its outcome.
func (vu *VirtualUser) runIteration(ctx context.Context, shared scenario.SharedContext) {
	iteration := vu.iteration.Add(1)

	start := time.Now()
	result := vu.iterate(ctx, shared)
	elapsed := time.Since(start)
	result.ElapsedNanos = elapsed.Nanoseconds()

	checks := make([]metrics.CheckSample, 0, len(result.Checks))
	recorded := make(map[string]struct{}, len(result.Checks))
	for _, check := range result.Checks {
		checks = append(checks, metrics.CheckSample{Name: check.Name, Passed: check.Passed})
		recorded[check.Name] = struct{}{}
	}

	if result.Err != nil {
		// Checks the iteration never reached count as failed
		for _, name := range vu.scenario.Checks {
			if _, ok := recorded[name]; !ok {
				checks = append(checks, metrics.CheckSample{Name: name, Passed: false})
			}
		}
		vu.logger.Debug("iteration failed",
			zap.Int64("iteration", iteration),
			zap.Duration("elapsed", elapsed),
			zap.Error(result.Err))
	}

	requests := make([]metrics.RequestSample, len(result.Requests))
	for i, req := range result.Requests {
		requests[i] = metrics.RequestSample{Name: req.Name, Elapsed: req.Elapsed}
	}

	vu.shard.RecordIteration(metrics.IterationRecord{
		Iteration: iteration,
		Elapsed:   elapsed,
		Checks:    checks,
		Requests:  requests,
		Err:       result.Err,
	})
}

// iterate calls the scenario, converting a panic into a failed iteration.
func (vu *VirtualUser) iterate(ctx context.Context, shared scenario.SharedContext) (result scenario.IterationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = scenario.IterationResult{Err: fmt.Errorf("iteration panicked: %v", r)}
		}
	}()
	return vu.scenario.Iterate(ctx, shared)
}

// pause waits for the pacing interval. It returns false if the VU should
// stop instead of starting another iteration.
func (vu *VirtualUser) pause(ctx context.Context) bool {
	wait := vu.opts.Pacing.Next()
	if wait <= 0 {
		return !vu.draining()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return !vu.draining()
	case <-vu.drainCh:
		return false
	case <-ctx.Done():
		return false
	}
}
