package performance_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	stampedehttp "github.com/wesleyorama2/stampede/internal/http"
	"github.com/wesleyorama2/stampede/internal/performance"
	"github.com/wesleyorama2/stampede/internal/performance/metrics"
	"github.com/wesleyorama2/stampede/internal/scenario"
	"github.com/wesleyorama2/stampede/internal/target"
)

const checkOK = "ok"

func newScheduler(t *testing.T, logger *zap.Logger, scenarios ...*scenario.Scenario) (*performance.Scheduler, *scenario.Registry) {
	t.Helper()
	reg := scenario.NewRegistry()
	for _, sc := range scenarios {
		require.NoError(t, reg.Register(sc))
	}
	return performance.NewScheduler(reg, logger), reg
}

func passing(delay time.Duration) scenario.IterateFunc {
	return func(ctx context.Context, _ scenario.SharedContext) scenario.IterationResult {
		time.Sleep(delay)
		var result scenario.IterationResult
		result.AddCheck(checkOK, true)
		return result
	}
}

func TestRunConfig_Validate(t *testing.T) {
	valid := performance.RunConfig{Scenario: "s", VUs: 1, Duration: time.Second}

	tests := []struct {
		name   string
		modify func(*performance.RunConfig)
		field  string
	}{
		{name: "valid", modify: func(*performance.RunConfig) {}},
		{name: "missing scenario", modify: func(c *performance.RunConfig) { c.Scenario = "" }, field: "scenario"},
		{name: "zero vus", modify: func(c *performance.RunConfig) { c.VUs = 0 }, field: "vus"},
		{name: "zero duration", modify: func(c *performance.RunConfig) { c.Duration = 0 }, field: "duration"},
		{name: "negative iterations", modify: func(c *performance.RunConfig) { c.Iterations = -1 }, field: "iterations"},
		{name: "negative grace", modify: func(c *performance.RunConfig) { c.GracePeriod = -time.Second }, field: "gracePeriod"},
		{name: "bad pacing", modify: func(c *performance.RunConfig) {
			c.Pacing = &performance.PacingConfig{Type: "sometimes"}
		}, field: "pacing.type"},
		{name: "bad threshold", modify: func(c *performance.RunConfig) {
			c.Thresholds = &metrics.ThresholdsConfig{Checks: []string{"p95 < 1"}}
		}, field: "thresholds.checks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var validationErr *performance.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestScheduler_ConfigError(t *testing.T) {
	var calls atomic.Int32
	sched, _ := newScheduler(t, zaptest.NewLogger(t), &scenario.Scenario{
		Name: "s",
		Iterate: func(ctx context.Context, _ scenario.SharedContext) scenario.IterationResult {
			calls.Add(1)
			return scenario.IterationResult{}
		},
	})

	t.Run("invalid vus", func(t *testing.T) {
		summary, err := sched.Run(context.Background(), performance.RunConfig{Scenario: "s", VUs: 0, Duration: time.Second})
		var configErr *performance.ConfigError
		require.ErrorAs(t, err, &configErr)
		assert.Nil(t, summary)
	})

	t.Run("unknown scenario", func(t *testing.T) {
		summary, err := sched.Run(context.Background(), performance.RunConfig{Scenario: "missing", VUs: 1, Duration: time.Second})
		var configErr *performance.ConfigError
		require.ErrorAs(t, err, &configErr)
		var notFound *scenario.NotFoundError
		assert.ErrorAs(t, err, &notFound)
		assert.Nil(t, summary)
	})

	assert.Equal(t, int32(0), calls.Load())
}

func TestScheduler_SetupRunsOnce(t *testing.T) {
	const vus = 50
	var setupCalls atomic.Int32
	var sawToken atomic.Int64
	var iterations atomic.Int64

	sched, _ := newScheduler(t, zaptest.NewLogger(t), &scenario.Scenario{
		Name: "once",
		Setup: func(ctx context.Context) (scenario.SharedContext, error) {
			setupCalls.Add(1)
			time.Sleep(50 * time.Millisecond)
			return scenario.NewSharedContext(map[string]any{"token": "t-1"}), nil
		},
		Iterate: func(ctx context.Context, shared scenario.SharedContext) scenario.IterationResult {
			iterations.Add(1)
			if shared.String("token") == "t-1" {
				sawToken.Add(1)
			}
			time.Sleep(5 * time.Millisecond)
			var result scenario.IterationResult
			result.AddCheck(checkOK, true)
			return result
		},
		Checks: []string{checkOK},
	})

	summary, err := sched.Run(context.Background(), performance.RunConfig{
		Scenario:    "once",
		VUs:         vus,
		Duration:    300 * time.Millisecond,
		GracePeriod: 5 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), setupCalls.Load())
	assert.Equal(t, iterations.Load(), sawToken.Load(), "every iteration must see the setup result")
	assert.Equal(t, iterations.Load(), summary.Iterations)
	assert.GreaterOrEqual(t, summary.Iterations, int64(vus))
	assert.Equal(t, vus, summary.VUs)
	assert.NotEmpty(t, summary.RunID)
	assert.True(t, summary.Passed)
}

func TestScheduler_ReturnsWithinBound(t *testing.T) {
	const (
		duration  = 500 * time.Millisecond
		iteration = 100 * time.Millisecond
	)

	sched, _ := newScheduler(t, zaptest.NewLogger(t), &scenario.Scenario{Name: "s", Iterate: passing(iteration)})

	start := time.Now()
	summary, err := sched.Run(context.Background(), performance.RunConfig{
		Scenario:    "s",
		VUs:         10,
		Duration:    duration,
		GracePeriod: time.Second,
	})
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, elapsed, duration)
	assert.Less(t, elapsed, duration+iteration+500*time.Millisecond)
	assert.Equal(t, 0, summary.ForceStopped)
	assert.False(t, summary.Interrupted)
	assert.GreaterOrEqual(t, summary.Duration, duration)
}

func TestScheduler_SetupError(t *testing.T) {
	var iterations atomic.Int32
	setupErr := errors.New("login refused")

	sched, _ := newScheduler(t, zaptest.NewLogger(t), &scenario.Scenario{
		Name: "broken",
		Setup: func(ctx context.Context) (scenario.SharedContext, error) {
			return scenario.SharedContext{}, setupErr
		},
		Iterate: func(ctx context.Context, _ scenario.SharedContext) scenario.IterationResult {
			iterations.Add(1)
			return scenario.IterationResult{}
		},
	})

	start := time.Now()
	summary, err := sched.Run(context.Background(), performance.RunConfig{
		Scenario: "broken",
		VUs:      5,
		Duration: 10 * time.Second,
	})

	var runSetupErr *performance.SetupError
	require.ErrorAs(t, err, &runSetupErr)
	assert.Equal(t, "broken", runSetupErr.Scenario)
	assert.ErrorIs(t, err, setupErr)

	require.NotNil(t, summary)
	assert.Equal(t, int64(0), summary.Iterations)
	assert.NotEmpty(t, summary.SetupError)
	assert.False(t, summary.Passed)
	assert.Equal(t, int32(0), iterations.Load())
	assert.Less(t, time.Since(start), 5*time.Second, "a failed setup ends the run without waiting for the deadline")
}

func TestScheduler_SetupOutlivesDuration(t *testing.T) {
	var iterations atomic.Int32

	// zap.NewNop: the barrier logs the abandoned setup after Run returns
	sched, _ := newScheduler(t, zap.NewNop(), &scenario.Scenario{
		Name: "slow-login",
		Setup: func(ctx context.Context) (scenario.SharedContext, error) {
			select {
			case <-time.After(2 * time.Second):
				return scenario.SharedContext{}, nil
			case <-ctx.Done():
				return scenario.SharedContext{}, ctx.Err()
			}
		},
		Iterate: func(ctx context.Context, _ scenario.SharedContext) scenario.IterationResult {
			iterations.Add(1)
			return scenario.IterationResult{}
		},
	})

	start := time.Now()
	summary, err := sched.Run(context.Background(), performance.RunConfig{
		Scenario:    "slow-login",
		VUs:         3,
		Duration:    200 * time.Millisecond,
		GracePeriod: time.Second,
	})

	var setupErr *performance.SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.ErrorIs(t, err, performance.ErrSetupIncomplete)
	assert.Equal(t, "slow-login", setupErr.Scenario)

	require.NotNil(t, summary)
	assert.Equal(t, int64(0), summary.Iterations)
	assert.NotEmpty(t, summary.SetupError)
	assert.False(t, summary.Passed)
	assert.False(t, summary.Interrupted)
	assert.Equal(t, int32(0), iterations.Load())
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
}

func TestScheduler_CancelledDuringSetupIsInterrupted(t *testing.T) {
	sched, _ := newScheduler(t, zap.NewNop(), &scenario.Scenario{
		Name: "slow-login",
		Setup: func(ctx context.Context) (scenario.SharedContext, error) {
			<-ctx.Done()
			return scenario.SharedContext{}, ctx.Err()
		},
		Iterate: passing(0),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	summary, err := sched.Run(ctx, performance.RunConfig{
		Scenario:    "slow-login",
		VUs:         2,
		Duration:    10 * time.Second,
		GracePeriod: time.Second,
	})
	require.NoError(t, err)
	assert.True(t, summary.Interrupted)
	assert.Empty(t, summary.SetupError)
	assert.Equal(t, int64(0), summary.Iterations)
}

func TestScheduler_SetupPanic(t *testing.T) {
	sched, _ := newScheduler(t, zaptest.NewLogger(t), &scenario.Scenario{
		Name: "panics",
		Setup: func(ctx context.Context) (scenario.SharedContext, error) {
			panic("no credentials")
		},
		Iterate: passing(0),
	})

	summary, err := sched.Run(context.Background(), performance.RunConfig{Scenario: "panics", VUs: 3, Duration: time.Second})
	var setupErr *performance.SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Contains(t, setupErr.Error(), "no credentials")
	assert.Equal(t, int64(0), summary.Iterations)
}

func TestScheduler_IterateAlwaysFails(t *testing.T) {
	tests := []struct {
		name    string
		iterate scenario.IterateFunc
	}{
		{
			name: "returns error",
			iterate: func(ctx context.Context, _ scenario.SharedContext) scenario.IterationResult {
				time.Sleep(time.Millisecond)
				return scenario.IterationResult{Err: errors.New("connection refused")}
			},
		},
		{
			name: "panics",
			iterate: func(ctx context.Context, _ scenario.SharedContext) scenario.IterationResult {
				time.Sleep(time.Millisecond)
				panic("boom")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, _ := newScheduler(t, zaptest.NewLogger(t), &scenario.Scenario{
				Name:    "failing",
				Iterate: tt.iterate,
				Checks:  []string{checkOK},
			})

			summary, err := sched.Run(context.Background(), performance.RunConfig{
				Scenario: "failing",
				VUs:      4,
				Duration: 200 * time.Millisecond,
			})
			require.NoError(t, err)

			require.Greater(t, summary.Iterations, int64(0))
			assert.Equal(t, summary.Iterations, summary.Checks[checkOK].Fail)
			assert.Equal(t, int64(0), summary.Checks[checkOK].Pass)
			assert.Equal(t, summary.Iterations, summary.Errors)
			assert.Equal(t, summary.Iterations, summary.FailedIterations)
		})
	}
}

func TestScheduler_NoAuthEndToEnd(t *testing.T) {
	srv := target.NewServer(target.Options{})
	server := httptest.NewServer(srv)
	defer server.Close()

	exec := stampedehttp.NewExecutor(stampedehttp.DefaultClientConfig())
	defer exec.Close()

	reg := scenario.NewRegistry()
	require.NoError(t, scenario.RegisterBuiltins(reg, scenario.Target{
		BaseURL:   server.URL,
		Endpoints: []string{"/alert_type"},
	}, exec))

	sched := performance.NewScheduler(reg, zaptest.NewLogger(t))
	summary, err := sched.Run(context.Background(), performance.RunConfig{
		Scenario: scenario.NameBrowse,
		VUs:      3,
		Duration: 2 * time.Second,
		Pacing:   &performance.PacingConfig{Type: performance.PacingConstant, Duration: 100 * time.Millisecond},
		Thresholds: &metrics.ThresholdsConfig{
			Checks: []string{"rate == 0"},
		},
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, summary.Iterations, int64(1))
	status := summary.Checks[scenario.CheckStatusOK]
	assert.Equal(t, int64(0), status.Fail)
	assert.Equal(t, summary.Iterations, status.Pass)
	assert.Equal(t, summary.Iterations, srv.Requests())
	assert.Contains(t, summary.Requests, "/alert_type")
	assert.Greater(t, summary.Latency.P50, 0.0)
	assert.True(t, summary.Passed)
}

func TestScheduler_DrainLetsInFlightIterationFinish(t *testing.T) {
	const vus = 5
	var started, completed atomic.Int64
	firstStarted := make(chan struct{})
	var once sync.Once

	sched, _ := newScheduler(t, zaptest.NewLogger(t), &scenario.Scenario{
		Name: "slow",
		Iterate: func(ctx context.Context, _ scenario.SharedContext) scenario.IterationResult {
			started.Add(1)
			once.Do(func() { close(firstStarted) })

			var result scenario.IterationResult
			select {
			case <-time.After(300 * time.Millisecond):
				completed.Add(1)
				result.AddCheck(checkOK, true)
			case <-ctx.Done():
				result.AddCheck(checkOK, false)
				result.Err = ctx.Err()
			}
			return result
		},
		Checks: []string{checkOK},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-firstStarted
		cancel()
	}()

	summary, err := sched.Run(ctx, performance.RunConfig{
		Scenario:    "slow",
		VUs:         vus,
		Duration:    time.Minute,
		GracePeriod: 10 * time.Second,
	})
	require.NoError(t, err)

	assert.True(t, summary.Interrupted)
	assert.GreaterOrEqual(t, summary.Iterations, int64(1))
	assert.Equal(t, started.Load(), summary.Iterations, "every started iteration is recorded")
	assert.Equal(t, started.Load(), completed.Load(), "no in-flight iteration is aborted")
	assert.Equal(t, int64(0), summary.Checks[checkOK].Fail)
	assert.Equal(t, 0, summary.ForceStopped)
}

func TestScheduler_ForceTerminatesStuckVUs(t *testing.T) {
	sched, _ := newScheduler(t, zap.NewNop(), &scenario.Scenario{
		Name: "stuck",
		Iterate: func(ctx context.Context, _ scenario.SharedContext) scenario.IterationResult {
			<-ctx.Done()
			return scenario.IterationResult{Err: ctx.Err()}
		},
	})

	start := time.Now()
	summary, err := sched.Run(context.Background(), performance.RunConfig{
		Scenario:    "stuck",
		VUs:         3,
		Duration:    100 * time.Millisecond,
		GracePeriod: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 3, summary.ForceStopped)
	assert.Equal(t, int64(0), summary.Iterations, "results arriving after the grace period are dropped")
}

func TestScheduler_IterationCapEndsRunEarly(t *testing.T) {
	sched, _ := newScheduler(t, zaptest.NewLogger(t), &scenario.Scenario{Name: "s", Iterate: passing(time.Millisecond)})

	start := time.Now()
	summary, err := sched.Run(context.Background(), performance.RunConfig{
		Scenario:   "s",
		VUs:        2,
		Duration:   10 * time.Second,
		Iterations: 3,
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int64(6), summary.Iterations)
	assert.Equal(t, int64(6), summary.Checks[checkOK].Pass)
}

func TestScheduler_ThresholdFailure(t *testing.T) {
	sched, _ := newScheduler(t, zaptest.NewLogger(t), &scenario.Scenario{
		Name: "half",
		Iterate: func(ctx context.Context, _ scenario.SharedContext) scenario.IterationResult {
			var result scenario.IterationResult
			result.AddCheck("a", true)
			result.AddCheck("b", false)
			return result
		},
	})

	summary, err := sched.Run(context.Background(), performance.RunConfig{
		Scenario:   "half",
		VUs:        1,
		Duration:   time.Second,
		Iterations: 10,
		Thresholds: &metrics.ThresholdsConfig{Checks: []string{"rate < 0.1"}},
	})
	require.NoError(t, err)

	require.Len(t, summary.Thresholds, 1)
	assert.False(t, summary.Thresholds[0].Passed)
	assert.False(t, summary.Passed)
	assert.InDelta(t, 0.5, summary.CheckFailureRate(), 0.0001)
}

func TestScheduler_FreezesRegistry(t *testing.T) {
	sched, reg := newScheduler(t, zaptest.NewLogger(t), &scenario.Scenario{Name: "s", Iterate: passing(0)})

	_, err := sched.Run(context.Background(), performance.RunConfig{Scenario: "s", VUs: 1, Duration: time.Second, Iterations: 1})
	require.NoError(t, err)

	assert.True(t, reg.Frozen())
	assert.ErrorIs(t, reg.Register(&scenario.Scenario{Name: "late", Iterate: passing(0)}), scenario.ErrFrozen)
}
