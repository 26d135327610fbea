package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainpad/internal/orchestrator"
)

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func TestLogsWebSocketStreamsEntries(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.request(t, http.MethodPost, "/api/network/start", "")
	require.Equal(t, http.StatusOK, rec.Code)

	for _, info := range ts.network.Status().Services {
		ts.runtime.WriteLogs(info.InstanceID, info.Name+" booted\n")
	}

	httpSrv := httptest.NewServer(ts.handler)
	defer httpSrv.Close()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(httpSrv, "/api/logs/stream?services=api-node"), nil)
	require.NoError(t, err)
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var entry orchestrator.LogEntry
	require.NoError(t, ws.ReadJSON(&entry))
	assert.Equal(t, "api-node", entry.Service)
	assert.Equal(t, "api-node booted", entry.Line)
}

func TestLogsWebSocketRequiresRunningNetwork(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.request(t, http.MethodGet, "/api/logs/stream", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEventsWebSocketDeliversLifecycleEvents(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.request(t, http.MethodPost, "/api/network/start", "")
	require.Equal(t, http.StatusOK, rec.Code)

	httpSrv := httptest.NewServer(ts.handler)
	defer httpSrv.Close()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(httpSrv, "/api/events"), nil)
	require.NoError(t, err)
	defer ws.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = ts.network.Stop(t.Context())
	}()

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event orchestrator.Event
	require.NoError(t, ws.ReadJSON(&event))
	assert.NotEmpty(t, event.Type)
}
