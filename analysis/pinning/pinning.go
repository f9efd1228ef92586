// Package pinning implements the PinningAnalyzer: rolling per-thread
// and per-stack-trace pinning counters, with top-10 hot-spot ranking.
package pinning

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/arguslabs/argus/analysis"
	"github.com/arguslabs/argus/event"
)

// maxStackTraces bounds the distinct stack-trace key space with LRU
// eviction, resolving spec.md §9 Open Question (b): the stack-trace
// key space is unbounded in principle, so a hard cap with LRU on the
// least-recently-seen trace keeps memory bounded.
const maxStackTraces = 2048

// HotSpot attaches its total accumulated duration to a ranked entry.
type HotSpot struct {
	analysis.Ranked
	TotalDuration time.Duration
}

// Snapshot is the immutable result of PinningAnalyzer.Snapshot.
type Snapshot struct {
	TotalPinned   int64
	TotalDuration time.Duration
	MeanDuration  time.Duration
	HotSpots      []HotSpot
}

type stackEntry struct {
	stack         string
	count         int64
	totalDuration time.Duration
}

// Analyzer is the PinningAnalyzer described in spec.md §4.2.
type Analyzer struct {
	mu            sync.Mutex
	cache         *lru.Cache // xxhash(stack) -> *stackEntry, LRU-bounded
	perThread     map[uint64]int64
	totalPinned   int64
	totalDuration time.Duration
}

// NewAnalyzer creates an empty PinningAnalyzer.
func NewAnalyzer() *Analyzer {
	cache, _ := lru.New(maxStackTraces)
	return &Analyzer{
		cache:     cache,
		perThread: make(map[uint64]int64),
	}
}

// Record ingests one VirtualThreadEvent; non-Pinned events are ignored.
func (a *Analyzer) Record(e event.VirtualThreadEvent) {
	if e.Type != event.Pinned {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalPinned++
	a.totalDuration += e.Duration
	a.perThread[e.ThreadID]++

	key := xxhash.Sum64String(e.StackTrace)
	if v, ok := a.cache.Get(key); ok {
		se := v.(*stackEntry)
		se.count++
		se.totalDuration += e.Duration
		return
	}
	a.cache.Add(key, &stackEntry{stack: e.StackTrace, count: 1, totalDuration: e.Duration})
}

// Snapshot returns the current rolling aggregates: total pinned count,
// total and mean pinned duration, and the top-10 hottest stack traces
// (ties broken by ascending stack-trace text, per spec.md §8 invariant 5).
func (a *Analyzer) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	counts := make(map[string]int64, a.cache.Len())
	durations := make(map[string]time.Duration, a.cache.Len())
	for _, k := range a.cache.Keys() {
		v, ok := a.cache.Peek(k)
		if !ok {
			continue
		}
		se := v.(*stackEntry)
		counts[se.stack] += se.count
		durations[se.stack] += se.totalDuration
	}

	ranked := analysis.TopK(counts, 10)
	hotspots := make([]HotSpot, len(ranked))
	for i, r := range ranked {
		hotspots[i] = HotSpot{Ranked: r, TotalDuration: durations[r.Key]}
	}

	var mean time.Duration
	if a.totalPinned > 0 {
		mean = a.totalDuration / time.Duration(a.totalPinned)
	}

	return Snapshot{
		TotalPinned:   a.totalPinned,
		TotalDuration: a.totalDuration,
		MeanDuration:  mean,
		HotSpots:      hotspots,
	}
}

// ThreadCount returns how many times a given thread has been pinned.
func (a *Analyzer) ThreadCount(threadID uint64) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.perThread[threadID]
}
