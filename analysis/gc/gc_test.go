package gc

import (
	"testing"
	"time"

	"github.com/arguslabs/argus/event"
	"github.com/stretchr/testify/assert"
)

func TestRecordAccumulatesCounters(t *testing.T) {
	a := NewAnalyzer()
	a.Record(event.GCEvent{PauseNanos: int64(50 * time.Millisecond), Collector: "G1"})
	a.Record(event.GCEvent{PauseNanos: int64(150 * time.Millisecond), Collector: "G1"})
	a.Record(event.GCEvent{PauseNanos: int64(10 * time.Millisecond), Collector: "Shenandoah"})

	snap := a.Snapshot()
	assert.EqualValues(t, 3, snap.TotalPauses)
	assert.EqualValues(t, 1, snap.LongPauseCount)
	assert.EqualValues(t, 2, snap.PerCollector["G1"])
	assert.EqualValues(t, 1, snap.PerCollector["Shenandoah"])
	assert.Len(t, snap.History, 3)
}

func TestHistoryBoundedAt60(t *testing.T) {
	a := NewAnalyzer()
	for i := 0; i < 70; i++ {
		a.Record(event.GCEvent{PauseNanos: int64(i), Collector: "G1"})
	}
	snap := a.Snapshot()
	assert.Len(t, snap.History, historySize)
	assert.EqualValues(t, 10, snap.History[0].PauseNanos) // oldest 10 evicted
}
