package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"sales-console/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: 2 * time.Second,
		},
	}
}

func TestGracefulServer_ShutdownEndsStreams(t *testing.T) {
	streaming := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		close(streaming)
		<-r.Context().Done()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gs := NewGracefulServer(&http.Server{Handler: mux}, logger, testConfig())

	var hooks atomic.Int32
	gs.RegisterShutdownHook(func(ctx context.Context) error {
		hooks.Add(1)
		return nil
	})
	hookErr := errors.New("flush failed")
	gs.RegisterShutdownHook(func(ctx context.Context) error {
		hooks.Add(1)
		return hookErr
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	go func() { served <- gs.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/stream")
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	defer resp.Body.Close()
	<-streaming

	cancel()

	select {
	case err := <-served:
		if !errors.Is(err, hookErr) {
			t.Errorf("Serve() error = %v, want the failing hook's error", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown hung on an open stream")
	}

	if got := hooks.Load(); got != 2 {
		t.Errorf("hooks run = %d, want 2", got)
	}
}

func TestGracefulServer_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gs := NewGracefulServer(&http.Server{Addr: ln.Addr().String()}, logger, testConfig())

	if err := gs.ListenAndServe(context.Background()); err == nil {
		t.Error("ListenAndServe() on a taken port should fail")
	}
}
