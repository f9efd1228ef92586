package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadEventsBufferIsolatesThreads(t *testing.T) {
	b := NewThreadEventsBuffer(10, 10)
	b.Append(1, []byte("t1-a"))
	b.Append(2, []byte("t2-a"))
	b.Append(1, []byte("t1-b"))

	snap1 := b.Snapshot(1)
	require.Len(t, snap1, 2)
	assert.Equal(t, "t1-a", string(snap1[0]))
	assert.Equal(t, "t1-b", string(snap1[1]))

	snap2 := b.Snapshot(2)
	require.Len(t, snap2, 1)
	assert.Equal(t, "t2-a", string(snap2[0]))
}

func TestThreadEventsBufferUnknownThreadReturnsNil(t *testing.T) {
	b := NewThreadEventsBuffer(10, 10)
	assert.Nil(t, b.Snapshot(999))
}

func TestThreadEventsBufferEvictsLeastRecentlyUsedThread(t *testing.T) {
	b := NewThreadEventsBuffer(10, 2)
	b.Append(1, []byte("a"))
	b.Append(2, []byte("a"))
	// touch thread 1 so thread 2 becomes the least-recently-used entry
	b.Snapshot(1)
	b.Append(3, []byte("a"))

	assert.Equal(t, 2, b.ThreadCount())
	assert.NotNil(t, b.Snapshot(1))
	assert.Nil(t, b.Snapshot(2))
	assert.NotNil(t, b.Snapshot(3))
}

func TestThreadEventsBufferPerThreadCapacityBounded(t *testing.T) {
	b := NewThreadEventsBuffer(2, 10)
	b.Append(1, []byte("a"))
	b.Append(1, []byte("b"))
	b.Append(1, []byte("c"))

	snap := b.Snapshot(1)
	require.Len(t, snap, 2)
	assert.Equal(t, "b", string(snap[0]))
	assert.Equal(t, "c", string(snap[1]))
}
