// Package broadcast implements the EventBroadcaster: the drain loop
// that pulls records off the ring buffers, feeds the state manager and
// analyzers, serializes each record once, and fans the result out to
// every connected subscriber.
package broadcast

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arguslabs/argus/analysis/allocation"
	"github.com/arguslabs/argus/analysis/carrier"
	"github.com/arguslabs/argus/analysis/cpu"
	"github.com/arguslabs/argus/analysis/gc"
	"github.com/arguslabs/argus/analysis/pinning"
	"github.com/arguslabs/argus/buffer"
	"github.com/arguslabs/argus/event"
	"github.com/arguslabs/argus/obs"
	"github.com/arguslabs/argus/ring"
	"github.com/arguslabs/argus/serialize"
	"github.com/arguslabs/argus/state"
)

// batchMax and pollTimeout implement spec.md §4.6 step 1.
const (
	batchMax    = 1024
	pollTimeout = 10 * time.Millisecond
)

// stateSnapshotInterval, cleanupInterval implement spec.md §4.6 steps 4-5.
const (
	stateSnapshotInterval = 500 * time.Millisecond
	cleanupInterval       = 1 * time.Second
)

// shutdownGrace bounds Stop (spec.md §5: "≤ grace of 2 s").
const shutdownGrace = 2 * time.Second

// Analyzers bundles the five incremental analyzers spec.md §4.2 names.
type Analyzers struct {
	Pinning    *pinning.Analyzer
	Carrier    *carrier.Analyzer
	GC         *gc.Analyzer
	CPU        *cpu.Analyzer
	Allocation *allocation.Analyzer
}

// NewAnalyzers creates a fresh, empty Analyzers bundle.
func NewAnalyzers(start time.Time) *Analyzers {
	return &Analyzers{
		Pinning:    pinning.NewAnalyzer(),
		Carrier:    carrier.NewAnalyzer(),
		GC:         gc.NewAnalyzer(),
		CPU:        cpu.NewAnalyzer(),
		Allocation: allocation.NewAnalyzer(start),
	}
}

// Streams bundles the (optionally nil) ring buffers the broadcaster
// drains. spec.md §6: "the core accepts null for unused streams".
type Streams struct {
	VirtualThread *ring.Buffer[event.VirtualThreadEvent]
	GC            *ring.Buffer[event.GCEvent]
	CPU           *ring.Buffer[event.CPUEvent]
	Allocation    *ring.Buffer[event.AllocationEvent]
}

// Broadcaster is the EventBroadcaster described in spec.md §4.6.
type Broadcaster struct {
	streams Streams

	vtCursor    *ring.Cursor
	gcCursor    *ring.Cursor
	cpuCursor   *ring.Cursor
	allocCursor *ring.Cursor

	// *DroppedSeen track each cursor's last-observed DroppedCount, so
	// EventsDropped is incremented by the delta each poll rather than
	// re-reported as a cumulative total (drainBatches is single-
	// goroutine, so these need no synchronization).
	vtDroppedSeen    uint64
	gcDroppedSeen    uint64
	cpuDroppedSeen   uint64
	allocDroppedSeen uint64

	registry  *state.ActiveThreadsRegistry
	states    *state.Manager
	analyzers *Analyzers

	recent       *buffer.RecentEventsBuffer
	threadEvents *buffer.ThreadEventsBuffer

	subs *SubscriberSet

	retention  time.Duration
	metrics    *obs.Metrics
	log        *zap.Logger
	logLimiter *rate.Limiter

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Options configures a new Broadcaster.
type Options struct {
	Streams           Streams
	RecentCapacity    int
	ThreadPerThread   int
	ThreadMaxThreads  int
	EndedRetention    time.Duration
	Metrics           *obs.Metrics
	Logger            *zap.Logger
}

// New creates a Broadcaster wired to its state containers and
// analyzers, but does not start its drain loop; call Run for that.
func New(opts Options) *Broadcaster {
	b := &Broadcaster{
		streams:      opts.Streams,
		registry:     state.NewActiveThreadsRegistry(),
		states:       state.NewManager(),
		analyzers:    NewAnalyzers(time.Now()),
		recent:       buffer.NewRecentEventsBuffer(opts.RecentCapacity),
		threadEvents: buffer.NewThreadEventsBuffer(opts.ThreadPerThread, opts.ThreadMaxThreads),
		subs:         NewSubscriberSet(),
		retention:    opts.EndedRetention,
		metrics:      opts.Metrics,
		log:          opts.Logger,
		logLimiter:   rate.NewLimiter(rate.Every(time.Second), 5),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
	if b.retention <= 0 {
		b.retention = state.DefaultRetention
	}
	if opts.Streams.VirtualThread != nil {
		b.vtCursor = opts.Streams.VirtualThread.NewCursor()
	}
	if opts.Streams.GC != nil {
		b.gcCursor = opts.Streams.GC.NewCursor()
	}
	if opts.Streams.CPU != nil {
		b.cpuCursor = opts.Streams.CPU.NewCursor()
	}
	if opts.Streams.Allocation != nil {
		b.allocCursor = opts.Streams.Allocation.NewCursor()
	}
	return b
}

// Subscribers exposes the subscriber set for SubscriptionEndpoint to
// add and remove peers against.
func (b *Broadcaster) Subscribers() *SubscriberSet { return b.subs }

// RecentEvents exposes the replay buffer for a newly connecting subscriber.
func (b *Broadcaster) RecentEvents() *buffer.RecentEventsBuffer { return b.recent }

// ThreadEvents returns the serialized frames retained for one thread,
// for the "get-thread-events" inbound command.
func (b *Broadcaster) ThreadEvents(threadID uint64) [][]byte {
	return b.threadEvents.Snapshot(threadID)
}

// StateSnapshot returns the current set of retained ThreadState entries.
func (b *Broadcaster) StateSnapshot() []state.ThreadState {
	return b.states.Snapshot()
}

// GCSnapshot, CPUSnapshot expose synchronous analyzer reads for the
// GET /gc-analysis and GET /cpu-metrics routes (spec.md §4.7).
func (b *Broadcaster) GCSnapshot() gc.Snapshot   { return b.analyzers.GC.Snapshot() }
func (b *Broadcaster) CPUSnapshot() cpu.Snapshot { return b.analyzers.CPU.Snapshot() }

// Run executes the drain loop until Stop is called. It is intended to
// run on its own goroutine; Run blocks until shutdown completes.
func (b *Broadcaster) Run() {
	defer close(b.doneCh)

	stateTicker := time.NewTicker(stateSnapshotInterval)
	defer stateTicker.Stop()
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-b.stopCh:
			b.drainBatches()
			return
		case <-stateTicker.C:
			b.maybeBroadcastStateSnapshot(true)
		case <-cleanupTicker.C:
			b.runCleanupAndSnapshots()
		default:
			b.drainBatches()
			b.maybeBroadcastStateSnapshot(false)
		}
	}
}

// drainBatches runs one pass over every configured stream, per
// spec.md §4.6 step 1-3.
func (b *Broadcaster) drainBatches() {
	if b.streams.VirtualThread != nil {
		batch := b.streams.VirtualThread.PollBatch(b.vtCursor, batchMax, pollTimeout)
		for _, e := range batch {
			b.handleVirtualThreadEvent(e)
		}
		b.recordIn("vt", len(batch))
		b.recordDropped("vt", b.vtCursor, &b.vtDroppedSeen)
	}
	if b.streams.GC != nil {
		batch := b.streams.GC.PollBatch(b.gcCursor, batchMax, pollTimeout)
		for _, e := range batch {
			b.safeRecord("gc", func() { b.analyzers.GC.Record(e) })
		}
		b.recordIn("gc", len(batch))
		b.recordDropped("gc", b.gcCursor, &b.gcDroppedSeen)
	}
	if b.streams.CPU != nil {
		batch := b.streams.CPU.PollBatch(b.cpuCursor, batchMax, pollTimeout)
		for _, e := range batch {
			b.safeRecord("cpu", func() { b.analyzers.CPU.Record(e) })
		}
		b.recordIn("cpu", len(batch))
		b.recordDropped("cpu", b.cpuCursor, &b.cpuDroppedSeen)
	}
	if b.streams.Allocation != nil {
		batch := b.streams.Allocation.PollBatch(b.allocCursor, batchMax, pollTimeout)
		for _, e := range batch {
			b.safeRecord("allocation", func() { b.analyzers.Allocation.Record(e) })
		}
		b.recordIn("allocation", len(batch))
		b.recordDropped("allocation", b.allocCursor, &b.allocDroppedSeen)
	}
}

func (b *Broadcaster) recordIn(stream string, n int) {
	if b.metrics == nil || n == 0 {
		return
	}
	b.metrics.EventsIn.WithLabelValues(stream).Add(float64(n))
}

// recordDropped reports the events_dropped_total delta for one stream's
// cursor since the last drain pass (spec.md §4.7 "per-stream dropped").
func (b *Broadcaster) recordDropped(stream string, cursor *ring.Cursor, lastSeen *uint64) {
	if b.metrics == nil || cursor == nil {
		return
	}
	total := cursor.DroppedCount()
	if total > *lastSeen {
		b.metrics.EventsDropped.WithLabelValues(stream).Add(float64(total - *lastSeen))
		*lastSeen = total
	}
}

func (b *Broadcaster) handleVirtualThreadEvent(e event.VirtualThreadEvent) {
	switch e.Type {
	case event.Start:
		b.registry.Insert(e.ThreadID)
	case event.End:
		b.registry.Remove(e.ThreadID)
	}

	b.safeRecord("state", func() { b.states.Handle(e) })
	b.safeRecord("pinning", func() { b.analyzers.Pinning.Record(e) })
	b.safeRecord("carrier", func() { b.analyzers.Carrier.Record(e) })

	frame, err := b.serializeEvent(e)
	if err != nil {
		if b.metrics != nil {
			b.metrics.SerializationFail.Inc()
		}
		return
	}

	b.recent.Append(frame)
	b.threadEvents.Append(e.ThreadID, frame)

	delivered, evicted := b.subs.Broadcast(frame)
	if b.metrics != nil && delivered > 0 {
		b.metrics.EventsBroadcast.Inc()
	}
	for _, sub := range evicted {
		if b.metrics != nil {
			b.metrics.SubscriberDropped.Add(float64(sub.Dropped()))
		}
		if b.log != nil && b.logLimiter.Allow() {
			b.log.Info("subscriber disconnected on backpressure", zap.String("subscriber", sub.ID))
		}
	}
}

// serializeEvent recovers from any panic in the encoder so a malformed
// record cannot terminate the drain loop (spec.md §7).
func (b *Broadcaster) serializeEvent(e event.VirtualThreadEvent) (frame []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("serialize panic: %v", r)
		}
	}()
	return serialize.VirtualThreadEvent(e), nil
}

// safeRecord wraps one analyzer/state call so a panic there is counted
// and swallowed rather than propagated (spec.md §7 "analyzer internal error").
func (b *Broadcaster) safeRecord(label string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if b.metrics != nil {
				b.metrics.AnalyzerErrors.Inc()
			}
			if b.log != nil {
				b.log.Error("recovered from internal error", zap.String("component", label), zap.Any("panic", r))
			}
		}
	}()
	fn()
}

func (b *Broadcaster) maybeBroadcastStateSnapshot(force bool) {
	if !force && !b.states.HasStateChanged() {
		return
	}
	frame := serialize.ThreadStateSnapshot(b.states.Snapshot())
	b.subs.Broadcast(frame)
}

// runCleanupAndSnapshots implements spec.md §4.6 step 5.
func (b *Broadcaster) runCleanupAndSnapshots() {
	b.states.Cleanup(time.Now(), b.retention)
	b.analyzers.Allocation.Tick(time.Now())

	b.subs.Broadcast(serialize.GCAnalysis(b.analyzers.GC.Snapshot()))
	b.subs.Broadcast(serialize.CPUMetrics(b.analyzers.CPU.Snapshot()))
	b.subs.Broadcast(serialize.PinningAnalysis(b.analyzers.Pinning.Snapshot()))
	b.subs.Broadcast(serialize.AllocationAnalysis(b.analyzers.Allocation.Snapshot()))
	b.subs.Broadcast(serialize.CarrierStats(b.analyzers.Carrier.Snapshot()))
}

// Stop signals the drain loop to exit and waits up to shutdownGrace for
// it to finish, closing every subscriber along the way.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })

	select {
	case <-b.doneCh:
	case <-time.After(shutdownGrace):
	}

	for _, sub := range b.subs.Snapshot() {
		sub.SetPhase(Draining)
		sub.Close()
		b.subs.Remove(sub.ID)
	}
}
