package broadcast

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arguslabs/argus/event"
	"github.com/arguslabs/argus/obs"
	"github.com/arguslabs/argus/ring"
)

func newTestBroadcaster(t *testing.T) (*Broadcaster, *ring.Buffer[event.VirtualThreadEvent]) {
	t.Helper()
	vt, err := ring.New[event.VirtualThreadEvent](64)
	require.NoError(t, err)

	b := New(Options{
		Streams:          Streams{VirtualThread: vt},
		RecentCapacity:   10,
		ThreadPerThread:  10,
		ThreadMaxThreads: 10,
		EndedRetention:   5 * time.Second,
		Metrics:          obs.New(),
	})
	return b, vt
}

func TestHandleVirtualThreadEventUpdatesRegistryAndBuffers(t *testing.T) {
	b, _ := newTestBroadcaster(t)

	b.handleVirtualThreadEvent(event.VirtualThreadEvent{
		Type: event.Start, ThreadID: 7, ThreadName: "w", Timestamp: time.Unix(0, 0),
	})
	assert.True(t, b.registry.Contains(7))
	assert.Equal(t, 1, b.recent.Len())

	frames := b.ThreadEvents(7)
	require.Len(t, frames, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(frames[0], &decoded))
	assert.Equal(t, "START", decoded["type"])

	b.handleVirtualThreadEvent(event.VirtualThreadEvent{
		Type: event.End, ThreadID: 7, Timestamp: time.Unix(1, 0),
	})
	assert.False(t, b.registry.Contains(7))
}

func TestRunDrainsAndStopsWithinGrace(t *testing.T) {
	b, vt := newTestBroadcaster(t)
	vt.Publish(event.VirtualThreadEvent{Type: event.Start, ThreadID: 1, Timestamp: time.Unix(0, 0)})
	vt.Publish(event.VirtualThreadEvent{Type: event.End, ThreadID: 1, Timestamp: time.Unix(1, 0)})

	go b.Run()

	require.Eventually(t, func() bool {
		return b.recent.Len() == 2
	}, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		b.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return within grace period")
	}
}

func TestSubscriberReceivesBroadcastFrame(t *testing.T) {
	b, vt := newTestBroadcaster(t)
	sub := NewSubscriber("s1", 8, b.metrics)
	b.Subscribers().Add(sub)

	vt.Publish(event.VirtualThreadEvent{Type: event.Start, ThreadID: 3, Timestamp: time.Unix(0, 0)})

	go b.Run()
	defer b.Stop()

	select {
	case frame := <-sub.Outbound():
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(frame, &decoded))
		assert.EqualValues(t, 3, decoded["threadId"])
	case <-time.After(time.Second):
		t.Fatal("subscriber never received broadcast frame")
	}
}
