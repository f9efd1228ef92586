// Package event defines the record types that flow from runtime hooks
// through the ring buffers into the broadcaster.
package event

import "time"

// VirtualThreadEventType identifies the kind of virtual-thread observation.
type VirtualThreadEventType int

const (
	Start VirtualThreadEventType = iota
	End
	Pinned
	SubmitFailed
)

// String returns the short wire name used by the serializer.
func (t VirtualThreadEventType) String() string {
	switch t {
	case Start:
		return "START"
	case End:
		return "END"
	case Pinned:
		return "PINNED"
	case SubmitFailed:
		return "SUBMIT_FAILED"
	default:
		return "UNKNOWN"
	}
}

// VirtualThreadEvent is a single observation about a virtual thread's
// lifecycle or its relationship to the carrier thread hosting it.
//
// Copied by value on publish; the ring buffer never mutates a published
// event, and consumers must treat it as immutable.
type VirtualThreadEvent struct {
	Type          VirtualThreadEventType
	ThreadID      uint64
	ThreadName    string // empty if unknown
	CarrierThread uint64 // 0 = none
	Timestamp     time.Time
	Duration      time.Duration // meaningful for End/Pinned, else 0
	StackTrace    string        // only populated for Pinned/SubmitFailed
}

// GCEvent is a single garbage-collector pause observation.
type GCEvent struct {
	Timestamp  time.Time
	PauseNanos int64
	Collector  string
	Cause      string
	HeapBefore uint64
	HeapAfter  uint64
}

// LongPauseThreshold is the pause duration at/above which a GCEvent is
// considered a "long pause" (spec: pauseNanos >= 100ms).
const LongPauseThreshold = 100 * time.Millisecond

// LongPause reports whether this pause met or exceeded LongPauseThreshold.
func (e GCEvent) LongPause() bool {
	return time.Duration(e.PauseNanos) >= LongPauseThreshold
}

// CPUEvent is a single CPU-load sample.
type CPUEvent struct {
	Timestamp          time.Time
	ProcessLoad        float64 // [0,1]
	SystemLoad         float64 // [0,1]
	ThreadCPUTimeNanos uint64
}

// AllocationEvent is a single allocation observation.
type AllocationEvent struct {
	Timestamp      time.Time
	ThreadID       uint64
	ClassName      string
	AllocationSize uint64 // bytes
}
