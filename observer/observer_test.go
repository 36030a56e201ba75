package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/systems"
)

type fakeSource struct {
	ix *systems.ObstacleIndex
}

func (f fakeSource) RunID() string                 { return "run-1" }
func (f fakeSource) Index() *systems.ObstacleIndex { return f.ix }

func testIndex(t *testing.T) *systems.ObstacleIndex {
	t.Helper()
	g, err := systems.NewGrid(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, 1)
	require.NoError(t, err)
	ix, err := systems.BuildObstacleIndex(g, []r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}, {X: 0.6, Y: 0.5, Z: 0.5}}, systems.IndexOptions{ExpectedCount: 2})
	require.NoError(t, err)
	return ix
}

func testRecords() []systems.AgentRecord {
	return []systems.AgentRecord{
		{Position: r3.Vec{X: 1, Y: 2, Z: 3}, Direction: r3.Vec{Z: 1}, Flockmates: 1},
		{Position: r3.Vec{X: -1}, Direction: r3.Vec{X: 1}, Obstacles: 4},
	}
}

func startServer(t *testing.T, src Source) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	srv := httptest.NewServer(NewServer(hub, src, 1000).Handler())
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, subscribe string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(subscribe)))
	return conn
}

// waitSubscribed blocks until the hub has registered n subscribers.
func waitSubscribed(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Subscribers() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestParseSubscribe(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"minimal", `{"type":"SUBSCRIBE","protocol_version":"1"}`, false},
		{"binary", `{"type":"SUBSCRIBE","protocol_version":"1","format":"binary","max_hz":5}`, false},
		{"wrong type", `{"type":"HELLO","protocol_version":"1"}`, true},
		{"bad format", `{"type":"SUBSCRIBE","protocol_version":"1","format":"xml"}`, true},
		{"zero rate", `{"type":"SUBSCRIBE","protocol_version":"1","max_hz":0}`, true},
		{"extra field", `{"type":"SUBSCRIBE","protocol_version":"1","chunk":3}`, true},
		{"old version", `{"type":"SUBSCRIBE","protocol_version":"0"}`, true},
		{"not json", `SUBSCRIBE`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSubscribe([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeSubscribe(t *testing.T) {
	sub := SubscribeMsg{MaxHz: 500}
	normalizeSubscribe(&sub, 20)
	assert.Equal(t, FormatJSON, sub.Format)
	assert.Equal(t, 20.0, sub.MaxHz)
}

func TestBinaryFrameRoundTrip(t *testing.T) {
	f := &frame{tick: 42, records: testRecords()}
	tick, recs, err := DecodeBinaryFrame(f.encodeBinary())
	require.NoError(t, err)
	assert.Equal(t, int32(42), tick)
	require.Len(t, recs, 2)
	assert.InDelta(t, 3, recs[0].Position.Z, 1e-6)
	assert.Equal(t, int32(4), recs[1].Obstacles)

	_, _, err = DecodeBinaryFrame([]byte{1, 2})
	assert.Error(t, err)
}

func TestBootstrap(t *testing.T) {
	_, srv := startServer(t, fakeSource{ix: testIndex(t)})

	resp, err := http.Get(srv.URL + "/observer/bootstrap")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var boot BootstrapResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&boot))
	assert.Equal(t, Version, boot.ProtocolVersion)
	assert.Equal(t, "run-1", boot.RunID)
	assert.Equal(t, [3]int{2, 2, 2}, boot.Grid.Resolution)
	assert.Equal(t, 2, boot.Probes)
	require.Len(t, boot.Usage, 8)
	var sum int32
	for _, u := range boot.Usage {
		sum += u
	}
	assert.Equal(t, int32(2), sum)

	resp2, err := http.Post(srv.URL+"/observer/bootstrap", "application/json", nil)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}

func TestStreamJSON(t *testing.T) {
	hub, srv := startServer(t, fakeSource{})
	conn := dial(t, srv, `{"type":"SUBSCRIBE","protocol_version":"1"}`)
	waitSubscribed(t, hub, 1)

	hub.Publish(7, 0.5, testRecords())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)

	var msg FrameMsg
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "FRAME", msg.Type)
	assert.Equal(t, int32(7), msg.Tick)
	require.Len(t, msg.Agents, 2)
	assert.Equal(t, [8]float32{1, 2, 3, 0, 0, 1, 1, 0}, msg.Agents[0])
	assert.Equal(t, int32(7), hub.LastTick())
}

func TestStreamBinary(t *testing.T) {
	hub, srv := startServer(t, fakeSource{})
	conn := dial(t, srv, `{"type":"SUBSCRIBE","protocol_version":"1","format":"binary"}`)
	waitSubscribed(t, hub, 1)

	hub.Publish(3, 0.1, testRecords())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	tick, recs, err := DecodeBinaryFrame(data)
	require.NoError(t, err)
	assert.Equal(t, int32(3), tick)
	assert.Len(t, recs, 2)
}

func TestRejectsBadSubscribe(t *testing.T) {
	hub, srv := startServer(t, fakeSource{})
	conn := dial(t, srv, `{"type":"HELLO"}`)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)
	assert.Equal(t, rejectReason, ce.Text)
	assert.Equal(t, 0, hub.Subscribers())
}

func TestRejectReasonFitsControlFrame(t *testing.T) {
	assert.LessOrEqual(t, len(websocket.FormatCloseMessage(websocket.ClosePolicyViolation, rejectReason)), 125)
}

func TestPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	for i := 0; i < 100; i++ {
		hub.Publish(int32(i), 0, testRecords())
	}
	assert.Equal(t, int32(99), hub.LastTick())
	hub.Close()
	hub.Close()
}
