// Package api hosts the HTTP server, middleware, and handlers for on-demand
// discovery. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/discovery for a fresh LLD manifest, optionally wrapped in
//     {"data": ...} via ?data=true.
package api
