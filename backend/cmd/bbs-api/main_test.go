package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/itchan-dev/bbs/shared/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Public.Storage = config.StorageMemory
	cfg.Public.JwtTTL = time.Hour
	cfg.Public.Limits = config.Limits{SubjectMaxLen: 120, BodyMaxLen: 2000, MaxBodyBytes: 1 << 16, PostsPerSecond: 1, PostBurst: 1}
	cfg.Private.JwtKey = "test_secret"
	return cfg
}

func TestServeReportsListenerFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	err = serve(context.Background(), testConfig(), ln)
	assert.Error(t, err)
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- serve(ctx, testConfig(), ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunFailsOnBadAddress(t *testing.T) {
	cfg := testConfig()
	cfg.Public.Http.Addr = "127.0.0.1:-1"
	assert.Error(t, run(context.Background(), cfg))
}

func TestUnknownStorage(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cfg := testConfig()
	cfg.Public.Storage = "floppy"
	assert.ErrorContains(t, serve(context.Background(), cfg, ln), "unknown storage")
}
