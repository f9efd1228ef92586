// Package cpu implements the CPUAnalyzer: a 60-sample rolling window
// of process/system load, exposing mean and peak over the window.
package cpu

import (
	"sync"

	"github.com/arguslabs/argus/analysis"
	"github.com/arguslabs/argus/event"
)

const historySize = 60

// Sample is one retained history entry.
type Sample struct {
	Timestamp   int64
	ProcessLoad float64
	SystemLoad  float64
}

// Snapshot is the immutable result of CPUAnalyzer.Snapshot.
type Snapshot struct {
	History         []Sample
	MeanProcessLoad float64
	PeakProcessLoad float64
	MeanSystemLoad  float64
	PeakSystemLoad  float64
}

// Analyzer is the CPUAnalyzer described in spec.md §4.2.
type Analyzer struct {
	mu      sync.Mutex
	history *analysis.History[Sample]
}

// NewAnalyzer creates an empty CPUAnalyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{history: analysis.NewHistory[Sample](historySize)}
}

// Record ingests one CPUEvent.
func (a *Analyzer) Record(e event.CPUEvent) {
	a.history.Add(Sample{
		Timestamp:   e.Timestamp.UnixNano(),
		ProcessLoad: e.ProcessLoad,
		SystemLoad:  e.SystemLoad,
	})
}

// Snapshot returns the retained history plus mean/peak over the window.
func (a *Analyzer) Snapshot() Snapshot {
	samples := a.history.Snapshot()
	snap := Snapshot{History: samples}
	if len(samples) == 0 {
		return snap
	}

	var sumProcess, sumSystem float64
	for _, s := range samples {
		sumProcess += s.ProcessLoad
		sumSystem += s.SystemLoad
		if s.ProcessLoad > snap.PeakProcessLoad {
			snap.PeakProcessLoad = s.ProcessLoad
		}
		if s.SystemLoad > snap.PeakSystemLoad {
			snap.PeakSystemLoad = s.SystemLoad
		}
	}
	snap.MeanProcessLoad = sumProcess / float64(len(samples))
	snap.MeanSystemLoad = sumSystem / float64(len(samples))
	return snap
}
