// Package middleware provides observability middleware for beryllium's
// HTTP server.
//
// This package includes:
//   - OpenTelemetry tracing middleware
//   - Prometheus metrics middleware
//
// Both are plain func(http.Handler) http.Handler values and read the chi
// route pattern after the handler runs, so they belong at the top of a chi
// middleware stack.
//
// # OpenTelemetry Middleware
//
// Each request gets a server span in its context. Spans opened further down
// the stack, such as the session binding span, become its children.
//
//	r := chi.NewRouter()
//	r.Use(middleware.OpenTelemetry())
//
// # Prometheus Metrics
//
//   - beryllium_http_requests_total: Requests by route, method and status
//   - beryllium_http_request_duration_seconds: Request duration histogram
//   - beryllium_http_requests_in_flight: Requests being served
//
//	r.Use(middleware.Prometheus(middleware.WithRegistry(reg)))
//	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package middleware
