package broadcast

import (
	"sync/atomic"
	"time"

	"github.com/arguslabs/argus/obs"
)

// SubscriberPhase is the state machine from spec.md §4.8.
type SubscriberPhase int32

const (
	Connecting SubscriberPhase = iota
	Replaying
	Live
	Draining
	Stalled
	Closed
)

func (p SubscriberPhase) String() string {
	switch p {
	case Connecting:
		return "CONNECTING"
	case Replaying:
		return "REPLAYING"
	case Live:
		return "LIVE"
	case Draining:
		return "DRAINING"
	case Stalled:
		return "STALLED"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// dropDisconnectThreshold and fullDisconnectWindow implement spec.md
// §4.6's backpressure policy: a subscriber whose cumulative drops pass
// the threshold, or whose queue has stayed full for the window, is
// disconnected.
const (
	dropDisconnectThreshold = 10_000
	fullDisconnectWindow    = 5 * time.Second
)

// Subscriber is one connected dashboard peer. The broadcaster never
// blocks delivering to a Subscriber: Enqueue drops the oldest queued
// frame on overflow rather than wait for the peer's write pump.
type Subscriber struct {
	ID string

	out     chan []byte
	phase   atomic.Int32
	dropped atomic.Uint64
	// fullSinceNanos is 0 when the queue was last seen non-full, else
	// the unix-nanos timestamp of when it was first observed full.
	fullSinceNanos atomic.Int64

	metrics *obs.Metrics
}

// NewSubscriber creates a Subscriber with the given outbound queue
// capacity (spec.md §6 subscriber.queue.capacity). metrics may be nil,
// in which case queue-depth observations are skipped.
func NewSubscriber(id string, queueCapacity int, metrics *obs.Metrics) *Subscriber {
	s := &Subscriber{ID: id, out: make(chan []byte, queueCapacity), metrics: metrics}
	s.phase.Store(int32(Connecting))
	return s
}

// Phase returns the subscriber's current state-machine phase.
func (s *Subscriber) Phase() SubscriberPhase { return SubscriberPhase(s.phase.Load()) }

// SetPhase transitions the subscriber to a new phase.
func (s *Subscriber) SetPhase(p SubscriberPhase) { s.phase.Store(int32(p)) }

// Dropped returns the cumulative count of frames dropped from this
// subscriber's outbound queue.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

// Outbound returns the channel the subscriber's write pump reads from.
func (s *Subscriber) Outbound() <-chan []byte { return s.out }

// Enqueue pushes frame onto the subscriber's outbound queue. If full,
// the oldest queued frame is dropped to make room (never blocks).
// Returns false if the subscriber should be disconnected as a result.
func (s *Subscriber) Enqueue(frame []byte) bool {
	select {
	case s.out <- frame:
		s.fullSinceNanos.Store(0)
		s.observeQueueDepth()
		return true
	default:
	}

	// Queue is full: drop the oldest frame and retry once.
	select {
	case <-s.out:
	default:
	}
	select {
	case s.out <- frame:
	default:
	}
	s.observeQueueDepth()
	s.dropped.Add(1)

	now := time.Now().UnixNano()
	first := s.fullSinceNanos.Load()
	if first == 0 {
		s.fullSinceNanos.Store(now)
		first = now
	}

	if s.dropped.Load() >= dropDisconnectThreshold {
		return false
	}
	if time.Duration(now-first) >= fullDisconnectWindow {
		return false
	}
	return true
}

// observeQueueDepth records the subscriber's current outbound queue
// depth for the subscriber_queue_depth histogram (spec.md §4.7).
func (s *Subscriber) observeQueueDepth() {
	if s.metrics == nil {
		return
	}
	s.metrics.SubscriberQueue.Observe(float64(len(s.out)))
}

// Close marks the subscriber closed; safe to call more than once. The
// outbound channel is left open, so the write pump stops on its own
// done signal or write error, not on Close.
func (s *Subscriber) Close() {
	s.SetPhase(Closed)
}
