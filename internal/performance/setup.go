package performance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wesleyorama2/stampede/internal/scenario"
)

// SetupBarrier runs a scenario's setup at most once per run and hands the
// result to every VU.
//
// The first Start launches setup; later calls are no-ops. Done is closed when
// setup has finished, after which Result returns the same value to every
// caller. The SharedContext is written before Done is closed, so every reader
// that waited on Done observes it.
type SetupBarrier struct {
	scenario *scenario.Scenario
	timeout  time.Duration
	logger   *zap.Logger

	once sync.Once
	done chan struct{}

	shared scenario.SharedContext
	err    error
}

type setupOutcome struct {
	shared scenario.SharedContext
	err    error
}

// NewSetupBarrier creates a barrier for sc. A timeout of zero disables the
// setup timeout.
func NewSetupBarrier(sc *scenario.Scenario, timeout time.Duration, logger *zap.Logger) *SetupBarrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SetupBarrier{
		scenario: sc,
		timeout:  timeout,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches setup if it has not been launched yet.
func (b *SetupBarrier) Start(ctx context.Context) {
	b.once.Do(func() {
		go b.run(ctx)
	})
}

// Done is closed once setup has finished.
func (b *SetupBarrier) Done() <-chan struct{} {
	return b.done
}

// Result returns the outcome of setup. It must only be called after Done
// is closed. The error is a *SetupError.
func (b *SetupBarrier) Result() (scenario.SharedContext, error) {
	return b.shared, b.err
}

// Err returns the setup error, or nil if setup succeeded or has not finished.
func (b *SetupBarrier) Err() error {
	select {
	case <-b.done:
		return b.err
	default:
		return nil
	}
}

// Wait starts setup and blocks until it finishes or ctx is done.
func (b *SetupBarrier) Wait(ctx context.Context) (scenario.SharedContext, error) {
	b.Start(ctx)

	select {
	case <-b.done:
		return b.Result()
	case <-ctx.Done():
		return scenario.SharedContext{}, ctx.Err()
	}
}

func (b *SetupBarrier) run(ctx context.Context) {
	defer close(b.done)

	if b.scenario.Setup == nil {
		return
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	b.logger.Info("running setup")

	// Setup runs in its own goroutine so a setup that ignores ctx cannot hold
	// VUs past the timeout.
	outcome := make(chan setupOutcome, 1)
	go func() {
		shared, err := b.call(ctx)
		outcome <- setupOutcome{shared: shared, err: err}
	}()

	var result setupOutcome
	select {
	case result = <-outcome:
	case <-ctx.Done():
		result.err = fmt.Errorf("setup did not complete: %w", ctx.Err())
	}

	if result.err != nil {
		b.err = &SetupError{Scenario: b.scenario.Name, Err: result.err}
		b.logger.Error("setup failed", zap.Duration("elapsed", time.Since(start)), zap.Error(result.err))
		return
	}

	b.shared = result.shared
	b.logger.Info("setup completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("shared_values", result.shared.Len()))
}

// call runs the setup function, converting a panic into an error.
func (b *SetupBarrier) call(ctx context.Context) (shared scenario.SharedContext, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("setup panicked: %v", r)
		}
	}()
	return b.scenario.Setup(ctx)
}
