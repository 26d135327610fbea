package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainpad/internal/config"
	"chainpad/internal/db"
	"chainpad/internal/network"
	"chainpad/internal/testutil"
)

const testTopology = `
services:
  db-node:
    image: kadena/chainweb-db:latest
    ports:
      - "0:5432"
  api-node:
    image: kadena/chainweb-node:latest
    depends_on: db-node
    ports:
      - "0:1848"
`

type testServer struct {
	server  *Server
	handler http.Handler
	network *network.Manager
	runtime *testutil.MockRuntime
	db      *db.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))

	topoPath := filepath.Join(dir, "devnet.yaml")
	require.NoError(t, os.WriteFile(topoPath, []byte(testTopology), 0644))

	cfg := config.New()
	cfg.Path = filepath.Join(dir, "chainpad.toml")
	cfg.Profiles = map[string]config.Profile{
		"devnet": {
			Type:           config.ProfileTypeDevnet,
			TopologyFile:   topoPath,
			PrimaryService: "api-node",
		},
	}
	cfg.Network.Profile = "devnet"

	database := testutil.SetupTestDB(t)
	rt := testutil.NewMockRuntime()
	netMgr := network.New(cfg, db.NewSessionRepository(database))
	netMgr.SetRuntime(rt)

	srv := New(DefaultConfig(), cfg, netMgr, database)
	ts := &testServer{
		server:  srv,
		handler: srv.Handler(),
		network: netMgr,
		runtime: rt,
		db:      database,
	}
	t.Cleanup(func() {
		if netMgr.Status().Running {
			_ = netMgr.Stop(t.Context())
		}
	})
	return ts
}

func (ts *testServer) request(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestNetworkLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t)

	// Initially not running
	rec := ts.request(t, http.MethodGet, "/api/network", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status network.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Running)

	// Start
	rec = ts.request(t, http.MethodPost, "/api/network/start", `{"profile":"devnet"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Running)
	assert.Equal(t, "devnet", status.Profile)
	assert.Len(t, status.Services, 2)

	// Double start conflicts
	rec = ts.request(t, http.MethodPost, "/api/network/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "NETWORK_ALREADY_RUNNING")

	// Services are listed
	rec = ts.request(t, http.MethodGet, "/api/services", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var services []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &services))
	assert.Len(t, services, 2)

	// Stop
	rec = ts.request(t, http.MethodPost, "/api/network/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Stop again conflicts
	rec = ts.request(t, http.MethodPost, "/api/network/stop", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "NETWORK_NOT_RUNNING")
}

func TestStartUnknownProfileReturns404(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/network/start", `{"profile":"mainnet"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "PROFILE_UNKNOWN")
}

func TestPushTransactionWithoutMining(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/network/start", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// devnet profile has no on-demand mining enabled
	rec = ts.request(t, http.MethodPost, "/api/transactions", `{"chain_id":0,"confirmations":2}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "SCHEDULER_CLOSED")
}

func TestPushTransactionValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/transactions", `{"chain_id":0,"confirmations":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSessions(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Total)

	rec = ts.request(t, http.MethodPost, "/api/network/start", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, db.SessionRunning, resp.Sessions[0].Status)
}

func TestServiceLogsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodPost, "/api/network/start", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/services/api-node/logs?lines=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp LogsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "api-node", resp.Service)

	rec = ts.request(t, http.MethodGet, "/api/services/ghost/logs", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.request(t, http.MethodGet, "/api/services/api-node/logs?lines=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSystemStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Database)
	assert.False(t, resp.Network.Running)
}

func TestGetConfigEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "devnet", resp["default_profile"])
	profiles, ok := resp["profiles"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "devnet", profiles["devnet"])
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
