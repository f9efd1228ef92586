package serialize

import (
	"sort"
	"strconv"
	"strings"

	"github.com/arguslabs/argus/analysis/allocation"
	"github.com/arguslabs/argus/analysis/carrier"
	"github.com/arguslabs/argus/analysis/cpu"
	"github.com/arguslabs/argus/analysis/gc"
	"github.com/arguslabs/argus/analysis/pinning"
	"github.com/arguslabs/argus/state"
)

func threadStateObject(ts state.ThreadState) string {
	w := newObjectWriter()
	w.uint("threadId", ts.ThreadID)
	w.strIf("threadName", ts.ThreadName)
	w.uintIfPositive("carrierThread", ts.CarrierThread)
	w.str("state", ts.State.String())
	w.int64Field("startTime", ts.StartTime.UnixNano())
	if !ts.EndTime.IsZero() {
		w.int64Field("endTime", ts.EndTime.UnixNano())
	}
	w.bool_("isPinned", ts.IsPinned)
	if ts.PinnedDuration > 0 {
		w.int64Field("pinnedDuration", ts.PinnedDuration.Nanoseconds())
	}
	return string(w.bytes())
}

// ThreadStateSnapshot encodes a thread-state-snapshot frame: the full
// set of currently-retained ThreadState entries.
func ThreadStateSnapshot(states []state.ThreadState) []byte {
	w := newObjectWriter()
	w.str("type", "thread-state")

	var arr strings.Builder
	arr.WriteByte('[')
	for i, ts := range states {
		if i > 0 {
			arr.WriteByte(',')
		}
		arr.WriteString(threadStateObject(ts))
	}
	arr.WriteByte(']')
	w.raw("threads", arr.String())
	return w.bytes()
}

// GCAnalysis encodes a gc-analysis frame.
func GCAnalysis(s gc.Snapshot) []byte {
	w := newObjectWriter()
	w.str("type", "gc-analysis")
	w.int64Field("totalPauses", s.TotalPauses)
	w.int64Field("totalPausedNanos", s.TotalPausedNanos)
	w.int64Field("longPauseCount", s.LongPauseCount)

	var collectors strings.Builder
	collectors.WriteByte('{')
	names := make([]string, 0, len(s.PerCollector))
	for name := range s.PerCollector {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			collectors.WriteByte(',')
		}
		collectors.WriteByte('"')
		collectors.WriteString(EscapeString(name))
		collectors.WriteString(`":`)
		collectors.WriteString(strconv.FormatInt(s.PerCollector[name], 10))
	}
	collectors.WriteByte('}')
	w.raw("perCollector", collectors.String())

	var history strings.Builder
	history.WriteByte('[')
	for i, p := range s.History {
		if i > 0 {
			history.WriteByte(',')
		}
		ho := newObjectWriter()
		ho.int64Field("timestamp", p.Timestamp)
		ho.int64Field("pauseNanos", p.PauseNanos)
		ho.str("collector", p.Collector)
		history.WriteString(string(ho.bytes()))
	}
	history.WriteByte(']')
	w.raw("history", history.String())

	return w.bytes()
}

// CPUMetrics encodes a cpu-metrics frame.
func CPUMetrics(s cpu.Snapshot) []byte {
	w := newObjectWriter()
	w.str("type", "cpu-metrics")
	w.float("meanProcessLoad", s.MeanProcessLoad)
	w.float("peakProcessLoad", s.PeakProcessLoad)
	w.float("meanSystemLoad", s.MeanSystemLoad)
	w.float("peakSystemLoad", s.PeakSystemLoad)

	var history strings.Builder
	history.WriteByte('[')
	for i, sm := range s.History {
		if i > 0 {
			history.WriteByte(',')
		}
		ho := newObjectWriter()
		ho.int64Field("timestamp", sm.Timestamp)
		ho.float("processLoad", sm.ProcessLoad)
		ho.float("systemLoad", sm.SystemLoad)
		history.WriteString(string(ho.bytes()))
	}
	history.WriteByte(']')
	w.raw("history", history.String())

	return w.bytes()
}

// PinningAnalysis encodes a pinning-analysis frame.
func PinningAnalysis(s pinning.Snapshot) []byte {
	w := newObjectWriter()
	w.str("type", "pinning-analysis")
	w.int64Field("totalPinned", s.TotalPinned)
	w.int64Field("totalDuration", s.TotalDuration.Nanoseconds())
	w.int64Field("meanDuration", s.MeanDuration.Nanoseconds())

	var hotspots strings.Builder
	hotspots.WriteByte('[')
	for i, h := range s.HotSpots {
		if i > 0 {
			hotspots.WriteByte(',')
		}
		ho := newObjectWriter()
		ho.str("stackTrace", h.Key)
		ho.int64Field("count", h.Count)
		ho.int64Field("totalDuration", h.TotalDuration.Nanoseconds())
		hotspots.WriteString(string(ho.bytes()))
	}
	hotspots.WriteByte(']')
	w.raw("hotSpots", hotspots.String())

	return w.bytes()
}

// AllocationAnalysis encodes an allocation-analysis frame.
func AllocationAnalysis(s allocation.Snapshot) []byte {
	w := newObjectWriter()
	w.str("type", "allocation-analysis")
	w.float("rateBytesPerSec", s.RateBytesPerSec)
	w.float("peakRateBytesPerSec", s.PeakRateBytesPerSec)

	var classes strings.Builder
	classes.WriteByte('[')
	for i, c := range s.TopClasses {
		if i > 0 {
			classes.WriteByte(',')
		}
		co := newObjectWriter()
		co.str("className", c.ClassName)
		co.int64Field("count", c.Count)
		co.int64Field("bytes", c.Bytes)
		classes.WriteString(string(co.bytes()))
	}
	classes.WriteByte(']')
	w.raw("topClasses", classes.String())

	return w.bytes()
}

// CarrierStats encodes a carrier-stats frame (supplemental; not named
// in the wire-protocol table but exposed alongside the other analyzer
// snapshots since CarrierThreadAnalyzer has no dedicated frame type
// in spec.md's table).
func CarrierStats(stats []carrier.Stats) []byte {
	w := newObjectWriter()
	w.str("type", "carrier-stats")

	var arr strings.Builder
	arr.WriteByte('[')
	for i, c := range stats {
		if i > 0 {
			arr.WriteByte(',')
		}
		co := newObjectWriter()
		co.uint("carrierThread", c.CarrierThread)
		co.int64Field("active", c.Active)
		co.int64Field("totalHosted", c.TotalHosted)
		co.int64Field("pinnedCount", c.PinnedCount)
		co.int64Field("maxActiveObserved", c.MaxActiveObserved)
		co.float("saturationEstimate", c.SaturationEstimate)
		arr.WriteString(string(co.bytes()))
	}
	arr.WriteByte(']')
	w.raw("carriers", arr.String())

	return w.bytes()
}
