package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriberEnqueueDeliversUnderCapacity(t *testing.T) {
	s := NewSubscriber("s1", 4, nil)
	ok := s.Enqueue([]byte("a"))
	assert.True(t, ok)
	assert.Equal(t, uint64(0), s.Dropped())

	select {
	case frame := <-s.Outbound():
		assert.Equal(t, "a", string(frame))
	default:
		t.Fatal("expected frame on outbound channel")
	}
}

func TestSubscriberEnqueueDropsOldestOnOverflow(t *testing.T) {
	s := NewSubscriber("s1", 1, nil)
	require.True(t, s.Enqueue([]byte("a")))
	require.True(t, s.Enqueue([]byte("b")))

	assert.Equal(t, uint64(1), s.Dropped())
	frame := <-s.Outbound()
	assert.Equal(t, "b", string(frame))
}

func TestSubscriberDisconnectsAtDropThreshold(t *testing.T) {
	s := NewSubscriber("s1", 1, nil)
	require.True(t, s.Enqueue([]byte("seed")))

	var ok bool
	for i := 0; i < dropDisconnectThreshold+1; i++ {
		ok = s.Enqueue([]byte("x"))
	}
	assert.False(t, ok)
}

func TestSubscriberDisconnectsAfterFullWindow(t *testing.T) {
	s := NewSubscriber("s1", 1, nil)
	require.True(t, s.Enqueue([]byte("seed")))
	s.fullSinceNanos.Store(time.Now().Add(-fullDisconnectWindow - time.Second).UnixNano())

	ok := s.Enqueue([]byte("x"))
	assert.False(t, ok)
}
