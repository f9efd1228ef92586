// Package gc implements the GCAnalyzer: rolling garbage-collector
// pause counters and a 60-sample pause history.
package gc

import (
	"sync"

	"github.com/arguslabs/argus/analysis"
	"github.com/arguslabs/argus/event"
)

// historySize is the rolling sample window (spec.md §4.2: 60 samples).
const historySize = 60

// PauseSample is one retained history entry.
type PauseSample struct {
	Timestamp  int64 // unix nanos, monotonic source is the event's own timestamp
	PauseNanos int64
	Collector  string
}

// Snapshot is the immutable result of GCAnalyzer.Snapshot.
type Snapshot struct {
	TotalPauses      int64
	TotalPausedNanos int64
	LongPauseCount   int64
	PerCollector     map[string]int64
	History          []PauseSample
}

// Analyzer is the GCAnalyzer described in spec.md §4.2.
type Analyzer struct {
	mu               sync.Mutex
	totalPauses      int64
	totalPausedNanos int64
	longPauseCount   int64
	perCollector     map[string]int64
	history          *analysis.History[PauseSample]
}

// NewAnalyzer creates an empty GCAnalyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		perCollector: make(map[string]int64),
		history:      analysis.NewHistory[PauseSample](historySize),
	}
}

// Record ingests one GCEvent.
func (a *Analyzer) Record(e event.GCEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalPauses++
	a.totalPausedNanos += e.PauseNanos
	a.perCollector[e.Collector]++
	if e.LongPause() {
		a.longPauseCount++
	}

	a.history.Add(PauseSample{
		Timestamp:  e.Timestamp.UnixNano(),
		PauseNanos: e.PauseNanos,
		Collector:  e.Collector,
	})
}

// Snapshot returns the current rolling aggregates and pause history.
func (a *Analyzer) Snapshot() Snapshot {
	a.mu.Lock()
	perCollector := make(map[string]int64, len(a.perCollector))
	for k, v := range a.perCollector {
		perCollector[k] = v
	}
	snap := Snapshot{
		TotalPauses:      a.totalPauses,
		TotalPausedNanos: a.totalPausedNanos,
		LongPauseCount:   a.longPauseCount,
		PerCollector:     perCollector,
	}
	a.mu.Unlock()

	snap.History = a.history.Snapshot()
	return snap
}
