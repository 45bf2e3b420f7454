package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/danmuck/econctl/internal/logging"
	"github.com/danmuck/econctl/internal/observability"
)

// serveMetrics exposes /metrics on addr until the returned server is closed.
func serveMetrics(addr string) (*http.Server, error) {
	observability.RegisterMetrics()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf("econctl metrics server addr=%q err=%v", addr, err)
		}
	}()
	logging.Infof("econctl metrics listening addr=%q", ln.Addr().String())
	return srv, nil
}
