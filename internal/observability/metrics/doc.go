// Package metrics provides centralized Prometheus metrics for the
// newsletter generation pipeline.
//
// Metrics are registered at package init time via promauto and exposed
// through the worker's /metrics endpoint. Helper functions in business.go
// wrap the raw collectors with domain vocabulary so call sites stay short.
package metrics
