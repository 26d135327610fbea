package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainpad/internal/network"
)

func TestNewNormalizesURL(t *testing.T) {
	c, err := New("localhost:9833")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9833", c.baseURL)

	c, err = New("http://localhost:9833/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9833", c.baseURL)
}

func TestLifecycleCallsOutliveFlatTimeout(t *testing.T) {
	// Starting a network can take minutes; the flat per-request timeout
	// that bounds quick calls must not apply to lifecycle calls.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		if r.URL.Path == "/api/network/start" {
			json.NewEncoder(w).Encode(network.Status{Running: true, Profile: "devnet"})
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	c.httpClient.Timeout = 50 * time.Millisecond

	status, err := c.StartNetwork(context.Background(), "devnet")
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, "devnet", status.Profile)

	// The same slow daemon trips the quick-call timeout
	err = c.Health(context.Background())
	require.Error(t, err)
}

func TestLifecycleCallsHonorCallerContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	begin := time.Now()
	err = c.StopNetwork(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(begin), 500*time.Millisecond)
}

func TestCallDecodesDaemonError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"code":"NETWORK_ALREADY_RUNNING","message":"network is already running"}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.StartNetwork(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NETWORK_ALREADY_RUNNING")
}
