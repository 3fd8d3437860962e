package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGracefulServer_ServeAndShutdown(t *testing.T) {
	var order []string
	srv := &http.Server{
		Addr: "127.0.0.1:0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "ok")
		}),
	}
	gs := NewGracefulServer("test", srv, &GracefulServerOptions{
		BeforeStop:   func() { order = append(order, "before") },
		ShutdownHook: func() { order = append(order, "after") },
	})
	require.NoError(t, gs.Listen())
	assert.NotEqual(t, "127.0.0.1:0", gs.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx) }()

	resp, err := http.Get("http://" + gs.Addr())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, []string{"before", "after"}, order)
}

func TestGracefulServer_ListenError(t *testing.T) {
	first := NewGracefulServer("a", &http.Server{Addr: "127.0.0.1:0"}, nil)
	require.NoError(t, first.Listen())
	defer first.listener.Close()

	second := NewGracefulServer("b", &http.Server{Addr: first.Addr()}, nil)
	assert.Error(t, second.Serve(context.Background()))
}
