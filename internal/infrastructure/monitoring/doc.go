// Package monitoring provides Prometheus metrics and the Gin middleware
// that records per-request HTTP metrics.
package monitoring
