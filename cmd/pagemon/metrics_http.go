package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serveMetricsHTTP exposes the default Prometheus registry (populated by
// metrics.NewProm's promauto collectors) on addr's "/metrics" path. Runs
// until the process exits; a listen failure is logged, not fatal, since
// the monitor itself should keep running without metrics scraping.
func serveMetricsHTTP(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		pageLog.WithError(err).Warn("metrics http server exited")
	}
}
