// Package perf is the library entry point of stampede: register scenarios
// and run them on concurrent virtual users.
//
// # Quick Start
//
//	runner := perf.NewRunner()
//	_ = runner.Register(&perf.Scenario{
//	    Name: "ping",
//	    Iterate: func(ctx context.Context, _ perf.SharedContext) perf.IterationResult {
//	        var result perf.IterationResult
//	        result.AddCheck("pong", ping(ctx) == nil)
//	        return result
//	    },
//	    Checks: []string{"pong"},
//	})
//
//	summary, err := runner.Run(ctx, perf.RunConfig{
//	    Scenario: "ping",
//	    VUs:      10,
//	    Duration: 30 * time.Second,
//	})
//
// # Shared Setup
//
// A scenario's Setup runs once per run, before any VU iterates. Every VU
// receives the same read-only SharedContext. If Setup fails, Run returns a
// *SetupError and no iteration runs:
//
//	Setup: func(ctx context.Context) (perf.SharedContext, error) {
//	    token, err := login(ctx)
//	    if err != nil {
//	        return perf.SharedContext{}, err
//	    }
//	    return perf.NewSharedContext(map[string]any{"token": token}), nil
//	},
//
// # Thresholds
//
// Thresholds turn the summary into a pass/fail result:
//
//	cfg.Thresholds = &perf.ThresholdsConfig{
//	    Checks:            []string{"rate < 0.01"},
//	    IterationDuration: []string{"p95 < 500ms"},
//	}
//
// summary.Passed is false when any threshold fails.
package perf
