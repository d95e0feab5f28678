// Package scenario defines the scenarios virtual users execute and the
// process-wide registry that holds them.
package scenario

import (
	"context"
	"time"
)

// SetupFunc runs once per test run and produces the context shared by all VUs.
type SetupFunc func(ctx context.Context) (SharedContext, error)

// IterateFunc runs one iteration of a scenario.
//
// The returned IterationResult carries the checks evaluated during the
// iteration. A non-nil Err marks the iteration as failed; the VU records it and
// moves on to the next iteration.
type IterateFunc func(ctx context.Context, shared SharedContext) IterationResult

// Scenario is a named pair of one-time setup logic and repeated iteration
// logic. A Scenario must not be modified after it has been registered.
type Scenario struct {
	// Name identifies the scenario in the registry and in reports
	Name string

	// Description is shown by the scenarios command
	Description string

	// Setup is optional; nil means an empty SharedContext
	Setup SetupFunc

	// Iterate is required
	Iterate IterateFunc

	// Checks lists the check names Iterate evaluates. When an iteration
	// fails before evaluating one of them, that check is recorded as failed.
	Checks []string
}

// Check is a named boolean assertion evaluated during an iteration.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// RequestTiming is the latency of one named request made during an iteration.
type RequestTiming struct {
	Name    string        `json:"name"`
	Elapsed time.Duration `json:"elapsed"`
}

// IterationResult is the outcome of a single iteration.
type IterationResult struct {
	// Checks in evaluation order
	Checks []Check

	// ElapsedNanos is the iteration wall time. VirtualUsers overwrite it with
	// their own measurement, so IterateFuncs may leave it zero.
	ElapsedNanos int64

	// Requests made during the iteration (optional)
	Requests []RequestTiming

	// Err is set when the iteration failed
	Err error
}

// AddCheck appends a check to the result and returns whether it passed.
func (r *IterationResult) AddCheck(name string, passed bool) bool {
	r.Checks = append(r.Checks, Check{Name: name, Passed: passed})
	return passed
}

// AddRequest records the latency of a named request.
func (r *IterationResult) AddRequest(name string, elapsed time.Duration) {
	r.Requests = append(r.Requests, RequestTiming{Name: name, Elapsed: elapsed})
}

// SharedContext is the read-only state produced by setup and shared by all
// VUs of a run. It has no mutating methods; NewSharedContext copies its input.
type SharedContext struct {
	values map[string]any
}

// NewSharedContext creates a SharedContext holding a copy of values.
func NewSharedContext(values map[string]any) SharedContext {
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return SharedContext{values: copied}
}

// Get returns the value stored under key.
func (c SharedContext) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// String returns the value stored under key if it is a string.
func (c SharedContext) String(key string) string {
	if s, ok := c.values[key].(string); ok {
		return s
	}
	return ""
}

// Len returns the number of stored values.
func (c SharedContext) Len() int {
	return len(c.values)
}
