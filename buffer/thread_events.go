package buffer

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultPerThreadCapacity is the default number of frames retained per
// thread (spec.md §4.4: default 100).
const DefaultPerThreadCapacity = 100

// DefaultMaxThreads is the default number of distinct threads tracked
// before the least-recently-used thread's buffer is evicted (spec.md
// §4.4 default 1000; resolves the spec's Open Question on deterministic
// eviction by keying eviction on LRU access order rather than map
// iteration order).
const DefaultMaxThreads = 1000

// ThreadEventsBuffer fans serialized frames out into one bounded FIFO
// per thread, so a "get-thread-events" request can replay only the
// frames that belong to a given virtual thread. Threads beyond
// maxThreads are evicted least-recently-used; reading or appending to
// a thread's buffer counts as a use.
type ThreadEventsBuffer struct {
	mu           sync.Mutex
	perThreadCap int
	cache        *lru.Cache
}

// NewThreadEventsBuffer creates a ThreadEventsBuffer bounded at
// maxThreads distinct threads, each holding perThreadCap frames.
func NewThreadEventsBuffer(perThreadCap, maxThreads int) *ThreadEventsBuffer {
	if perThreadCap <= 0 {
		perThreadCap = DefaultPerThreadCapacity
	}
	if maxThreads <= 0 {
		maxThreads = DefaultMaxThreads
	}

	cache, err := lru.New(maxThreads)
	if err != nil {
		// maxThreads is always > 0 here, so lru.New cannot fail.
		panic(err)
	}
	return &ThreadEventsBuffer{perThreadCap: perThreadCap, cache: cache}
}

// Append adds a serialized frame to threadID's buffer, creating it (and
// possibly evicting the least-recently-used thread's buffer) if needed.
func (b *ThreadEventsBuffer) Append(threadID uint64, frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	buf := b.bufferLocked(threadID)
	buf.Append(frame)
}

// Snapshot returns threadID's retained frames, oldest first. Returns
// nil if the thread has never been recorded or has since been evicted.
func (b *ThreadEventsBuffer) Snapshot(threadID uint64) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.cache.Get(threadID)
	if !ok {
		return nil
	}
	return v.(*RecentEventsBuffer).Snapshot()
}

// ThreadCount returns the number of distinct threads currently tracked.
func (b *ThreadEventsBuffer) ThreadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cache.Len()
}

func (b *ThreadEventsBuffer) bufferLocked(threadID uint64) *RecentEventsBuffer {
	if v, ok := b.cache.Get(threadID); ok {
		return v.(*RecentEventsBuffer)
	}
	buf := NewRecentEventsBuffer(b.perThreadCap)
	b.cache.Add(threadID, buf)
	return buf
}
