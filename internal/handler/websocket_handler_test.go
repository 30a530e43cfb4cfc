// internal/handler/websocket_handler_test.go
package handler

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

	"emg-service/internal/model"
	"emg-service/internal/protocol/prototest"
)

type streamFrame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id"`
}

func dialStream(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(env.router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/stream" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until match accepts one or the deadline passes
func readUntil(t *testing.T, conn *websocket.Conn, match func(streamFrame) bool) streamFrame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var frame streamFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if match(frame) {
			return frame
		}
	}
}

func ofType(messageType string) func(streamFrame) bool {
	return func(f streamFrame) bool { return f.Type == messageType }
}

func TestStream_SnapshotOnOpen(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env, "")

	frame := readUntil(t, conn, ofType(MessageTypeSnapshot))

	var snapshot model.UISnapshot
	require.NoError(t, json.Unmarshal(frame.Data, &snapshot))
	assert.Equal(t, model.ConnectionStatusIdle, snapshot.ConnectionState.Status)
	assert.Empty(t, snapshot.Samples)
	assert.False(t, snapshot.TrainingActive)

	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestStream_Ping(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env, "")

	require.NoError(t, conn.WriteJSON(map[string]string{"type": IntentPing, "request_id": "r1"}))

	frame := readUntil(t, conn, ofType(MessageTypePong))
	assert.Equal(t, "r1", frame.RequestID)
}

func TestStream_ConnectIntentAndEvents(t *testing.T) {
	env := newTestEnv(t)
	transport := prototest.NewFakeTransport("192.168.4.1:8080")
	env.factory.push(transport)
	conn := dialStream(t, env, "")
	readUntil(t, conn, ofType(MessageTypeSnapshot))

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":       IntentConnectWifi,
		"request_id": "c1",
		"data":       map[string]interface{}{"host": "192.168.4.1", "port": 8080},
	}))

	frame := readUntil(t, conn, ofType(MessageTypeResponse))
	assert.Equal(t, "c1", frame.RequestID)

	var response IntentResponse
	require.NoError(t, json.Unmarshal(frame.Data, &response))
	assert.True(t, response.Success)
	assert.Equal(t, IntentConnectWifi, response.Intent)
	assert.Equal(t, model.ConnectionStatusConnected, response.State.Status)

	transport.Send("0.5")

	frame = readUntil(t, conn, ofType(string(model.EventSample)))
	var sample model.SampleEventData
	require.NoError(t, json.Unmarshal(frame.Data, &sample))
	assert.Equal(t, model.Sample(0.5), sample.Value)
}

func TestStream_InvalidIntentData(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env, "")
	readUntil(t, conn, ofType(MessageTypeSnapshot))

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": IntentConnectWifi,
		"data": map[string]interface{}{"host": "192.168.4.1", "port": "abc"},
	}))

	frame := readUntil(t, conn, ofType(MessageTypeResponse))
	var response IntentResponse
	require.NoError(t, json.Unmarshal(frame.Data, &response))
	assert.False(t, response.Success)
	assert.Equal(t, "VALIDATION_ERROR", response.Code)
	assert.Equal(t, model.ConnectionStatusIdle, response.State.Status)
	assert.Equal(t, 0, env.factory.createCalls())
}

func TestStream_StartTrainingWhileIdle(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env, "")
	readUntil(t, conn, ofType(MessageTypeSnapshot))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": IntentStartTraining}))

	frame := readUntil(t, conn, ofType(MessageTypeResponse))
	var response IntentResponse
	require.NoError(t, json.Unmarshal(frame.Data, &response))
	assert.False(t, response.Success)
	assert.Equal(t, "NOT_CONNECTED", response.Code)
	assert.False(t, env.ui.TrainingActive())
}

func TestStream_UnknownMessage(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env, "")
	readUntil(t, conn, ofType(MessageTypeSnapshot))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	readUntil(t, conn, ofType(MessageTypeError))

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "reboot"}))
	readUntil(t, conn, ofType(MessageTypeError))
}

func TestStream_EventFilter(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, http.MethodGet, "/ws/stream?events=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	conn := dialStream(t, env, "?events=sample")
	readUntil(t, conn, ofType(MessageTypeSnapshot))

	transport := env.connectWifi(t)
	transport.Send("7")

	// State changes are filtered out, so the first event frame is the sample
	frame := readUntil(t, conn, func(f streamFrame) bool { return f.Type != MessageTypeSnapshot })
	assert.Equal(t, string(model.EventSample), frame.Type)
}

func TestStream_ClientRemovedOnClose(t *testing.T) {
	env := newTestEnv(t)
	conn := dialStream(t, env, "")
	readUntil(t, conn, ofType(MessageTypeSnapshot))
	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	subscribers := env.bus.SubscriberCount()
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	assert.Eventually(t, func() bool { return env.hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return env.bus.SubscriberCount() == subscribers-1 }, 2*time.Second, 10*time.Millisecond)
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, originAllowed(nil, "http://anything"))
	assert.True(t, originAllowed([]string{"http://a"}, ""))
	assert.True(t, originAllowed([]string{"*"}, "http://b"))
	assert.True(t, originAllowed([]string{"http://A"}, "http://a"))
	assert.False(t, originAllowed([]string{"http://a"}, "http://b"))
}

func TestParseEventTypes(t *testing.T) {
	types, err := parseEventTypes(" sample, state_changed ")
	require.NoError(t, err)
	assert.Equal(t, []model.EventType{model.EventSample, model.EventStateChanged}, types)

	types, err = parseEventTypes("")
	require.NoError(t, err)
	assert.Nil(t, types)

	_, err = parseEventTypes("sample,unknown")
	assert.Error(t, err)
}
