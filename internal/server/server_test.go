package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypath/studypath/internal/config"
)

func TestStart_StopsOnCancel(t *testing.T) {
	srv := New(config.ServerConfig{Host: "127.0.0.1", Port: 0}, http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStart_ReportsListenError(t *testing.T) {
	srv := New(config.ServerConfig{Host: "256.0.0.1", Port: 8080}, http.NotFoundHandler())

	err := srv.Start(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error")
}
