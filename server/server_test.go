package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arguslabs/argus/broadcast"
	"github.com/arguslabs/argus/event"
	"github.com/arguslabs/argus/obs"
	"github.com/arguslabs/argus/ring"
)

func newTestEndpoint(t *testing.T) (*Endpoint, *ring.Buffer[event.VirtualThreadEvent], *broadcast.Broadcaster) {
	t.Helper()
	vt, err := ring.New[event.VirtualThreadEvent](64)
	require.NoError(t, err)

	metrics := obs.New()
	bc := broadcast.New(broadcast.Options{
		Streams:          broadcast.Streams{VirtualThread: vt},
		RecentCapacity:   10,
		ThreadPerThread:  10,
		ThreadMaxThreads: 10,
		EndedRetention:   5 * time.Second,
		Metrics:          metrics,
	})
	go bc.Run()
	t.Cleanup(bc.Stop)

	e := New("", bc, 8, metrics, nil)
	return e, vt, bc
}

func TestHandleHealth(t *testing.T) {
	e, _, _ := newTestEndpoint(t)
	srv := httptest.NewServer(e.Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{"status":"up"}`, string(body))
}

func TestHandleGCAnalysisReturnsSnapshot(t *testing.T) {
	e, _, _ := newTestEndpoint(t)
	srv := httptest.NewServer(e.Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/gc-analysis")
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "gc-analysis", decoded["type"])
}

func TestEventsEndpointReplaysThenStreamsLive(t *testing.T) {
	e, vt, _ := newTestEndpoint(t)
	vt.Publish(event.VirtualThreadEvent{Type: event.Start, ThreadID: 1, Timestamp: time.Unix(0, 0)})

	require.Eventually(t, func() bool { return e.bc.RecentEvents().Len() == 1 }, time.Second, 5*time.Millisecond)

	srv := httptest.NewServer(e.Mux())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg, &decoded))
	assert.Equal(t, "START", decoded["type"])
}
