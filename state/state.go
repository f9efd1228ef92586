// Package state maintains the per-thread finite state machine the
// broadcaster drives from incoming VirtualThreadEvents, plus the
// lightweight registry of currently active thread IDs.
package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/arguslabs/argus/event"
)

// Phase is the lifecycle phase of a single virtual thread.
type Phase int

const (
	Running Phase = iota
	Pinned
	Ended
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "RUNNING"
	case Pinned:
		return "PINNED"
	case Ended:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// ThreadState is the FSM's view of one virtual thread.
//
// Invariant: State == Ended iff EndTime is non-zero. Once IsPinned is
// true it remains true for the entry's lifetime. State only ever
// advances Running -> (Pinned?) -> Ended.
type ThreadState struct {
	ThreadID       uint64
	ThreadName     string
	CarrierThread  uint64 // 0 = none
	State          Phase
	StartTime      time.Time
	EndTime        time.Time     // zero value = not ended
	IsPinned       bool
	PinnedDuration time.Duration // accumulated across repeated PINNED events
}

// DefaultRetention is the grace window an Ended entry survives for
// before Cleanup evicts it (spec: 5s).
const DefaultRetention = 5 * time.Second

// Manager is the concurrent, per-thread FSM. Safe for concurrent use:
// the entry map is guarded by a RWMutex, and the dirty flag is a plain
// atomic test-and-clear boolean, matching the style of the teacher's
// CircuitBreaker (atomic counters guarding a small mutable struct).
type Manager struct {
	mu      sync.RWMutex
	entries map[uint64]*ThreadState
	dirty   atomic.Bool
}

// NewManager creates an empty ThreadStateManager.
func NewManager() *Manager {
	return &Manager{entries: make(map[uint64]*ThreadState)}
}

// Handle applies a VirtualThreadEvent to the FSM per the transition
// table in spec.md §4.3. Events for unknown threads other than Start
// are ignored; events against an Ended thread are ignored.
func (m *Manager) Handle(e event.VirtualThreadEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts, exists := m.entries[e.ThreadID]

	switch e.Type {
	case event.Start:
		if exists {
			return
		}
		m.entries[e.ThreadID] = &ThreadState{
			ThreadID:      e.ThreadID,
			ThreadName:    e.ThreadName,
			CarrierThread: e.CarrierThread,
			State:         Running,
			StartTime:     e.Timestamp,
		}
		m.markDirty()

	case event.Pinned:
		if !exists || ts.State == Ended {
			return
		}
		ts.State = Pinned
		ts.IsPinned = true
		ts.PinnedDuration += e.Duration
		if e.CarrierThread != 0 {
			ts.CarrierThread = e.CarrierThread
		}
		m.markDirty()

	case event.End:
		if !exists {
			return
		}
		if ts.State == Ended {
			return
		}
		ts.State = Ended
		ts.EndTime = e.Timestamp
		m.markDirty()
	}
}

func (m *Manager) markDirty() { m.dirty.Store(true) }

// HasStateChanged reports and clears the dirty flag, letting the
// broadcaster throttle snapshot emission to only when state moved.
func (m *Manager) HasStateChanged() bool {
	return m.dirty.Swap(false)
}

// Get returns a copy of the current state for one thread.
func (m *Manager) Get(threadID uint64) (ThreadState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ts, ok := m.entries[threadID]
	if !ok {
		return ThreadState{}, false
	}
	return *ts, true
}

// Snapshot returns a copy of every currently-retained ThreadState.
func (m *Manager) Snapshot() []ThreadState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ThreadState, 0, len(m.entries))
	for _, ts := range m.entries {
		out = append(out, *ts)
	}
	return out
}

// Cleanup evicts Ended entries whose retention window has elapsed.
func (m *Manager) Cleanup(now time.Time, retention time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, ts := range m.entries {
		if ts.State == Ended && now.Sub(ts.EndTime) > retention {
			delete(m.entries, id)
			evicted++
		}
	}
	return evicted
}

// Count returns the number of entries currently retained.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
