// Package metrics accumulates iteration outcomes while a run is in progress
// and produces the RunSummary at the end of it.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram range: 1 microsecond to 1 hour, 3 significant figures.
const (
	histogramMin     = 1
	histogramMax     = 3600000000
	histogramSigFigs = 3
)

// RequestSample is the latency of one named request made during an iteration.
type RequestSample struct {
	Name    string
	Elapsed time.Duration
}

// CheckSample is the outcome of one check evaluated during an iteration.
type CheckSample struct {
	Name   string
	Passed bool
}

// IterationRecord describes a completed iteration.
type IterationRecord struct {
	// Iteration is the VU-local iteration number, starting at 1
	Iteration int64

	// Elapsed is the iteration wall time
	Elapsed time.Duration

	// Checks evaluated during the iteration
	Checks []CheckSample

	// Requests made during the iteration
	Requests []RequestSample

	// Err is set when the iteration failed
	Err error
}

// Aggregator collects results from all VUs of a run.
//
// Each VU writes to its own Shard, so writers never contend with each other.
// Summary merges the shards.
//
// # Thread Safety
//
// Shard may be called concurrently. A Shard may be written by one goroutine
// while Summary runs in another.
type Aggregator struct {
	mu     sync.Mutex
	shards map[int]*Shard
	closed atomic.Bool
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		shards: make(map[int]*Shard),
	}
}

// Shard returns the shard owned by vuID, creating it on first use.
func (a *Aggregator) Shard(vuID int) *Shard {
	a.mu.Lock()
	defer a.mu.Unlock()

	shard, exists := a.shards[vuID]
	if !exists {
		shard = newShard(vuID, &a.closed)
		a.shards[vuID] = shard
	}
	return shard
}

// Close stops accepting writes. Results recorded afterwards are dropped;
// this is used for VUs still running when the grace period expires.
func (a *Aggregator) Close() {
	a.closed.Store(true)
}

// Summary merges every shard into a RunSummary. Each call returns a new value.
func (a *Aggregator) Summary() *RunSummary {
	a.mu.Lock()
	shards := make([]*Shard, 0, len(a.shards))
	for _, shard := range a.shards {
		shards = append(shards, shard)
	}
	a.mu.Unlock()

	sort.Slice(shards, func(i, j int) bool { return shards[i].vu < shards[j].vu })

	summary := &RunSummary{
		Checks:   make(map[string]CheckCount),
		Requests: make(map[string]LatencySummary),
	}

	iterations := newHistogram()
	requests := make(map[string]*hdrhistogram.Histogram)

	for _, shard := range shards {
		shard.mergeInto(summary, iterations, requests)
	}

	summary.Latency = summarize(iterations)
	for name, hist := range requests {
		summary.Requests[name] = summarize(hist)
	}

	return summary
}

// Shard holds the results of a single VU.
type Shard struct {
	vu     int
	closed *atomic.Bool

	mu         sync.Mutex
	iterations int64
	failed     int64
	errors     int64
	lastFailed int64
	checks     map[string]*CheckCount
	latency    *hdrhistogram.Histogram
	requests   map[string]*hdrhistogram.Histogram
}

func newShard(vu int, closed *atomic.Bool) *Shard {
	return &Shard{
		vu:         vu,
		closed:     closed,
		lastFailed: -1,
		checks:     make(map[string]*CheckCount),
		latency:    newHistogram(),
		requests:   make(map[string]*hdrhistogram.Histogram),
	}
}

// RecordCheck records the outcome of one check evaluated during iteration.
func (s *Shard) RecordCheck(iteration int64, name string, passed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return
	}
	s.recordCheck(iteration, name, passed)
}

// recordCheck must be called with mu held.
func (s *Shard) recordCheck(iteration int64, name string, passed bool) {
	count, exists := s.checks[name]
	if !exists {
		count = &CheckCount{}
		s.checks[name] = count
	}

	if passed {
		count.Pass++
		return
	}
	count.Fail++
	s.markFailed(iteration)
}

// RecordIteration records a completed iteration together with its checks.
// The record is kept or dropped as a whole: once the aggregator is closed,
// neither the iteration nor any of its checks is counted.
func (s *Shard) RecordIteration(rec IterationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return
	}

	for _, check := range rec.Checks {
		s.recordCheck(rec.Iteration, check.Name, check.Passed)
	}

	s.iterations++
	if rec.Err != nil {
		s.errors++
		s.markFailed(rec.Iteration)
	}

	_ = s.latency.RecordValue(clampMicros(rec.Elapsed))

	for _, req := range rec.Requests {
		if req.Name == "" {
			continue
		}
		hist, exists := s.requests[req.Name]
		if !exists {
			hist = newHistogram()
			s.requests[req.Name] = hist
		}
		_ = hist.RecordValue(clampMicros(req.Elapsed))
	}
}

// markFailed counts iteration as failed once, however many of its checks
// failed. Must be called with mu held.
func (s *Shard) markFailed(iteration int64) {
	if iteration == s.lastFailed {
		return
	}
	s.lastFailed = iteration
	s.failed++
}

func (s *Shard) mergeInto(summary *RunSummary, iterations *hdrhistogram.Histogram, requests map[string]*hdrhistogram.Histogram) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary.Iterations += s.iterations
	summary.FailedIterations += s.failed
	summary.Errors += s.errors

	for name, count := range s.checks {
		merged := summary.Checks[name]
		merged.Pass += count.Pass
		merged.Fail += count.Fail
		summary.Checks[name] = merged

		summary.ChecksPassed += count.Pass
		summary.ChecksFailed += count.Fail
	}

	iterations.Merge(s.latency)
	for name, hist := range s.requests {
		merged, exists := requests[name]
		if !exists {
			merged = newHistogram()
			requests[name] = merged
		}
		merged.Merge(hist)
	}
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)
}

func clampMicros(d time.Duration) int64 {
	micros := d.Microseconds()
	if micros < histogramMin {
		micros = histogramMin
	}
	if micros > histogramMax {
		micros = histogramMax
	}
	return micros
}

// summarize converts a microsecond histogram into millisecond statistics.
func summarize(hist *hdrhistogram.Histogram) LatencySummary {
	if hist.TotalCount() == 0 {
		return LatencySummary{}
	}

	ms := func(micros int64) float64 { return float64(micros) / 1000 }

	return LatencySummary{
		Count: hist.TotalCount(),
		Min:   ms(hist.Min()),
		Max:   ms(hist.Max()),
		Mean:  hist.Mean() / 1000,
		P50:   ms(hist.ValueAtQuantile(50)),
		P90:   ms(hist.ValueAtQuantile(90)),
		P95:   ms(hist.ValueAtQuantile(95)),
		P99:   ms(hist.ValueAtQuantile(99)),
	}
}
