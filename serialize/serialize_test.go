package serialize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/arguslabs/argus/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeStringSpecScenario6(t *testing.T) {
	// spec.md §8 scenario 6: threadName=a"b\n encodes as a\"b\n
	got := EscapeString("a\"b\n")
	assert.Equal(t, `a\"b\n`, got)
}

func TestEscapeStringNoSpecialCharsIsUnchanged(t *testing.T) {
	assert.Equal(t, "plain", EscapeString("plain"))
}

func decode(t *testing.T, frame []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(frame, &m))
	return m
}

func TestVirtualThreadEventAlwaysEmitsCoreFields(t *testing.T) {
	ts := time.Unix(0, 123).UTC()
	frame := VirtualThreadEvent(event.VirtualThreadEvent{
		Type:      event.Start,
		ThreadID:  7,
		Timestamp: ts,
	})

	m := decode(t, frame)
	assert.Equal(t, "START", m["type"])
	assert.EqualValues(t, 7, m["threadId"])
	assert.EqualValues(t, 123, m["timestamp"])
	assert.NotContains(t, m, "threadName")
	assert.NotContains(t, m, "carrierThread")
	assert.NotContains(t, m, "duration")
	assert.NotContains(t, m, "stackTrace")
}

func TestVirtualThreadEventEmitsPresentOptionalFields(t *testing.T) {
	frame := VirtualThreadEvent(event.VirtualThreadEvent{
		Type:          event.Pinned,
		ThreadID:      7,
		ThreadName:    "worker",
		CarrierThread: 3,
		Duration:      100 * time.Millisecond,
		StackTrace:    "at Foo.bar",
		Timestamp:     time.Unix(1, 0),
	})

	m := decode(t, frame)
	assert.Equal(t, "PINNED", m["type"])
	assert.Equal(t, "worker", m["threadName"])
	assert.EqualValues(t, 3, m["carrierThread"])
	assert.EqualValues(t, 100*time.Millisecond, m["duration"])
	assert.Equal(t, "at Foo.bar", m["stackTrace"])
}

func TestVirtualThreadEventEscapesThreadName(t *testing.T) {
	frame := VirtualThreadEvent(event.VirtualThreadEvent{
		Type:       event.Start,
		ThreadID:   1,
		ThreadName: "a\"b\n",
		Timestamp:  time.Unix(0, 0),
	})

	m := decode(t, frame)
	assert.Equal(t, "a\"b\n", m["threadName"])
}

func TestParseCommandUnknownIsSilentlyTolerated(t *testing.T) {
	c, err := ParseCommand([]byte(`{"command":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, "ping", c.Name)
}

func TestParseCommandGetThreadEvents(t *testing.T) {
	c, err := ParseCommand([]byte(`{"command":"get-thread-events","threadId":42}`))
	require.NoError(t, err)
	assert.Equal(t, "get-thread-events", c.Name)
	assert.EqualValues(t, 42, c.ThreadID)
}
