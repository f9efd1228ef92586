// Package carrier implements the CarrierThreadAnalyzer: per-carrier
// active virtual-thread counts, totals, and a saturation estimate.
package carrier

import (
	"sort"
	"sync"

	"github.com/arguslabs/argus/event"
)

// Stats is one carrier's rolling view.
type Stats struct {
	CarrierThread      uint64
	Active             int64
	TotalHosted        int64
	PinnedCount        int64
	MaxActiveObserved  int64
	SaturationEstimate float64 // active / max(active observed)
}

type carrierEntry struct {
	active      int64
	totalHosted int64
	pinnedCount int64
	maxActive   int64
}

// Analyzer is the CarrierThreadAnalyzer described in spec.md §4.2.
// It tracks which carrier currently hosts each thread internally, so
// that an End event (which carries no carrier field of its own) can
// still decrement the right carrier's active count.
type Analyzer struct {
	mu            sync.Mutex
	carriers      map[uint64]*carrierEntry
	threadCarrier map[uint64]uint64
}

// NewAnalyzer creates an empty CarrierThreadAnalyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		carriers:      make(map[uint64]*carrierEntry),
		threadCarrier: make(map[uint64]uint64),
	}
}

func (a *Analyzer) entry(carrierID uint64) *carrierEntry {
	ce, ok := a.carriers[carrierID]
	if !ok {
		ce = &carrierEntry{}
		a.carriers[carrierID] = ce
	}
	return ce
}

// Record ingests one VirtualThreadEvent.
func (a *Analyzer) Record(e event.VirtualThreadEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e.Type {
	case event.Start:
		if e.CarrierThread == 0 {
			return
		}
		a.threadCarrier[e.ThreadID] = e.CarrierThread
		ce := a.entry(e.CarrierThread)
		ce.active++
		ce.totalHosted++
		if ce.active > ce.maxActive {
			ce.maxActive = ce.active
		}

	case event.Pinned:
		carrierID := e.CarrierThread
		if carrierID == 0 {
			carrierID = a.threadCarrier[e.ThreadID]
		}
		if carrierID == 0 {
			return
		}
		a.entry(carrierID).pinnedCount++

	case event.End:
		carrierID, ok := a.threadCarrier[e.ThreadID]
		if !ok {
			return
		}
		delete(a.threadCarrier, e.ThreadID)
		ce := a.entry(carrierID)
		if ce.active > 0 {
			ce.active--
		}
	}
}

// Snapshot returns every carrier's stats, ordered by ascending
// CarrierThread ID for determinism.
func (a *Analyzer) Snapshot() []Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Stats, 0, len(a.carriers))
	for id, ce := range a.carriers {
		var sat float64
		if ce.maxActive > 0 {
			sat = float64(ce.active) / float64(ce.maxActive)
		}
		out = append(out, Stats{
			CarrierThread:      id,
			Active:             ce.active,
			TotalHosted:        ce.totalHosted,
			PinnedCount:        ce.pinnedCount,
			MaxActiveObserved:  ce.maxActive,
			SaturationEstimate: sat,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CarrierThread < out[j].CarrierThread })
	return out
}
