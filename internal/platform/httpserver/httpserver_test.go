package httpserver

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/platform/config"
	"onboard/internal/platform/logger"
)

func TestNewDefaults(t *testing.T) {
	srv := New(config.Server{Addr: ":0"}, http.NotFoundHandler())
	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, defaultReadHeaderTimeout, srv.ReadHeaderTimeout)

	srv = New(config.Server{Addr: ":0", ReadHeaderTimeout: time.Second}, http.NotFoundHandler())
	assert.Equal(t, time.Second, srv.ReadHeaderTimeout)
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := New(config.Server{Addr: "127.0.0.1:0"}, http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, time.Second, logger.Discard()) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunReportsListenError(t *testing.T) {
	srv := New(config.Server{Addr: "256.0.0.1:bad"}, http.NotFoundHandler())
	err := Run(context.Background(), srv, time.Second, logger.Discard())
	require.Error(t, err)
}
