// Package metrics collects in-process timing for jobwork's hot paths:
// graph build, closure filtering, layering and history navigation.
//
// Collection is on by default and can be disabled with JW_METRICS=0.
//
//	func refine() {
//	    defer metrics.Timer(metrics.ClosureFilter)()
//	    // ...
//	}
package metrics

import (
	"os"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("JW_METRICS") != "0")
}

// Enabled returns whether metrics collection is enabled.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled switches collection on or off.
func SetEnabled(e bool) {
	enabled.Store(e)
}

// TimingMetric accumulates durations for one named operation.
// It is safe for concurrent use.
type TimingMetric struct {
	name    string
	count   atomic.Int64
	totalNs atomic.Int64
	maxNs   atomic.Int64
	minNs   atomic.Int64 // 0 until the first sample
}

func newTimingMetric(name string) *TimingMetric {
	return &TimingMetric{name: name}
}

// Record adds one measurement.
func (m *TimingMetric) Record(d time.Duration) {
	if !enabled.Load() {
		return
	}
	ns := d.Nanoseconds()
	m.count.Add(1)
	m.totalNs.Add(ns)

	for {
		old := m.maxNs.Load()
		if ns <= old || m.maxNs.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.minNs.Load()
		if old != 0 && ns >= old {
			break
		}
		if m.minNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// Name returns the metric name.
func (m *TimingMetric) Name() string {
	return m.name
}

// Count returns the number of recorded measurements.
func (m *TimingMetric) Count() int64 {
	return m.count.Load()
}

// Stats returns a consistent-enough snapshot of the metric.
func (m *TimingMetric) Stats() TimingStats {
	count := m.count.Load()
	total := m.totalNs.Load()
	var avg int64
	if count > 0 {
		avg = total / count
	}
	return TimingStats{
		Name:    m.name,
		Count:   count,
		TotalMs: float64(total) / 1e6,
		AvgMs:   float64(avg) / 1e6,
		MaxMs:   float64(m.maxNs.Load()) / 1e6,
		MinMs:   float64(m.minNs.Load()) / 1e6,
	}
}

// Reset clears all recorded measurements.
func (m *TimingMetric) Reset() {
	m.count.Store(0)
	m.totalNs.Store(0)
	m.maxNs.Store(0)
	m.minNs.Store(0)
}

// TimingStats is a point-in-time view of a TimingMetric.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
}

// Timer returns a function that records the time elapsed since Timer was
// called. Meant for defer.
func Timer(m *TimingMetric) func() {
	if !enabled.Load() || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.Record(time.Since(start))
	}
}

// Global timing metrics.
var (
	GraphBuild    = newTimingMetric("graph_build")
	GraphAnalysis = newTimingMetric("graph_analysis")
	ClosureFilter = newTimingMetric("closure_filter")
	Layering      = newTimingMetric("layering")
	HistoryApply  = newTimingMetric("history_apply")
	DataLoad      = newTimingMetric("data_load")
	UIRender      = newTimingMetric("ui_render")
)

// AllTimingMetrics returns every registered metric.
func AllTimingMetrics() []*TimingMetric {
	return []*TimingMetric{
		GraphBuild,
		GraphAnalysis,
		ClosureFilter,
		Layering,
		HistoryApply,
		DataLoad,
		UIRender,
	}
}

// ResetAll resets every registered metric.
func ResetAll() {
	for _, m := range AllTimingMetrics() {
		m.Reset()
	}
}

// Snapshot returns stats for the metrics that have at least one sample.
func Snapshot() []TimingStats {
	all := AllTimingMetrics()
	out := make([]TimingStats, 0, len(all))
	for _, m := range all {
		if m.Count() > 0 {
			out = append(out, m.Stats())
		}
	}
	return out
}
