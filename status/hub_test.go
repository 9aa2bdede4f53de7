package status

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubCurrentDefaultsToZeroValue(t *testing.T) {
	h := NewHub()
	assert.Equal(t, Snapshot{}, h.Current())
}

func TestHubPublishUpdatesCurrent(t *testing.T) {
	h := NewHub()
	go h.Run()

	snap := Snapshot{InputActive: true, DetectedVideoFormat: "1080i50", ARQDepth: map[int]int{1: 3}}
	h.Publish(snap)

	assert.Equal(t, snap, h.Current())
}

func TestHubServeHTTPSendsSnapshotImmediately(t *testing.T) {
	h := NewHub()
	go h.Run()
	h.Publish(Snapshot{InputActive: true, DetectedVideoFormat: "720p50"})

	server := httptest.NewServer(h)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "720p50")
}

func TestHubBroadcastsToMultipleClients(t *testing.T) {
	h := NewHub()
	go h.Run()

	server := httptest.NewServer(h)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn1, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn1.Close()
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn2.Close()

	// Drain each connection's initial snapshot push before publishing the
	// one under test.
	conn1.SetReadDeadline(time.Now().Add(time.Second))
	conn1.ReadMessage()
	conn2.SetReadDeadline(time.Now().Add(time.Second))
	conn2.ReadMessage()

	h.Publish(Snapshot{InputActive: true, DetectedVideoFormat: "1080p5994"})

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(msg), "1080p5994")
	}
}
