/*
Package monitoring provides Prometheus metrics for the control panel client.

# Overview

Metrics cover the API client (request counts and latency per endpoint), the
status event stream (events by name, dropped payloads, reconnects), the
status store (current status/page code, newest CPU sample) and pending
configuration writes. The fake control panel reuses the same set for its
HTTP middleware.

All recording methods are safe on a nil *Metrics, so components can run
without metrics wired in.

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	timer := monitoring.NewTimer(metrics, "config.update")
	// ... perform request ...
	timer.Stop("success")

# Metrics Endpoint

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
*/
package monitoring
