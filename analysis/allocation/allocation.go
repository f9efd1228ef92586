// Package allocation implements the AllocationAnalyzer: per-class
// allocation counts and byte totals, a once-per-second rate, and a
// top-10 classes-by-bytes ranking.
package allocation

import (
	"sync"
	"time"

	"github.com/arguslabs/argus/analysis"
	"github.com/arguslabs/argus/event"
)

// ClassStat is one class's entry in the top-10 ranking.
type ClassStat struct {
	ClassName string
	Count     int64
	Bytes     int64
}

// Snapshot is the immutable result of AllocationAnalyzer.Snapshot.
type Snapshot struct {
	TopClasses []ClassStat
	RateBytesPerSec     float64
	PeakRateBytesPerSec float64
}

// Analyzer is the AllocationAnalyzer described in spec.md §4.2.
type Analyzer struct {
	mu            sync.Mutex
	perClassCount map[string]int64
	perClassBytes map[string]int64

	windowStart time.Time
	windowBytes int64
	lastRate    float64
	peakRate    float64
}

// NewAnalyzer creates an empty AllocationAnalyzer with its rate window
// anchored at the given start time (usually time.Now()).
func NewAnalyzer(start time.Time) *Analyzer {
	return &Analyzer{
		perClassCount: make(map[string]int64),
		perClassBytes: make(map[string]int64),
		windowStart:   start,
	}
}

// Record ingests one AllocationEvent.
func (a *Analyzer) Record(e event.AllocationEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.perClassCount[e.ClassName]++
	a.perClassBytes[e.ClassName] += int64(e.AllocationSize)
	a.windowBytes += int64(e.AllocationSize)
}

// Tick closes out the current rate window as of now, updates the
// peak-since-start rate, and returns the just-completed window's rate
// in bytes/sec. Intended to be called once per second by the
// broadcaster (spec.md §4.6 step 5).
func (a *Analyzer) Tick(now time.Time) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	elapsed := now.Sub(a.windowStart).Seconds()
	if elapsed <= 0 {
		return a.lastRate
	}

	rate := float64(a.windowBytes) / elapsed
	a.lastRate = rate
	if rate > a.peakRate {
		a.peakRate = rate
	}
	a.windowBytes = 0
	a.windowStart = now
	return rate
}

// Snapshot returns the top-10 classes by total bytes allocated (ties
// broken by ascending class name), plus the latest and peak rate.
func (a *Analyzer) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	ranked := analysis.TopK(a.perClassBytes, 10)
	top := make([]ClassStat, len(ranked))
	for i, r := range ranked {
		top[i] = ClassStat{ClassName: r.Key, Bytes: r.Count, Count: a.perClassCount[r.Key]}
	}

	return Snapshot{
		TopClasses:          top,
		RateBytesPerSec:     a.lastRate,
		PeakRateBytesPerSec: a.peakRate,
	}
}
