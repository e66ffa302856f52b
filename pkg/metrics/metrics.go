// Package metrics provides the Prometheus registry and endpoint for neo-hunter.
// All metrics are defined in their respective packages (client, pagination,
// feed, ratelimit) to maintain modularity and avoid circular dependencies.
//
// This package provides the HTTP exposition and a reference for all
// available metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by neo-hunter.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server exposes /metrics for the lifetime of a CLI run.
type Server struct {
	srv      *http.Server
	listener net.Listener
}

// Listen binds addr and starts serving /metrics in the background.
func Listen(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: listener,
	}
	go func() {
		_ = s.srv.Serve(listener)
	}()
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - neows_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - neows_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint, retries included
//   - neows_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - neows_retries_total (Counter): Retry attempts after transport failures
//   - neows_retry_backoff_seconds (Histogram): Backoff duration before a retry
//   - neows_retry_exhausted_total (Counter): Requests that exhausted their retry budget
//
// Fetch Metrics (pkg/pagination, pkg/feed):
//   - neows_pages_fetched_total{result} (Counter): Browse pages fetched (ok, failed)
//   - neows_feed_windows_total{result} (Counter): Feed windows fetched (ok, failed)
//
// Quota Metrics (pkg/ratelimit):
//   - neows_rate_limit_remaining (Gauge): Requests remaining in the current quota window
//   - neows_rate_limit_blocks_total (Counter): Requests blocked due to critical quota
//   - neows_rate_limit_throttles_total (Counter): Requests throttled due to low quota
//
// Example Prometheus Queries:
//
//   # Failed page ratio
//   sum(rate(neows_pages_fetched_total{result="failed"}[5m])) /
//   sum(rate(neows_pages_fetched_total[5m]))
//
//   # Quota Status
//   neows_rate_limit_remaining < 20
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(neows_request_duration_seconds_bucket[5m]))
