// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Notebook export, import, snapshots and run-all
//   - Cell editing, runs and stops
//   - Markup rendering
//   - Health checks
//   - Prometheus metrics
package http
