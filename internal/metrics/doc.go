// Package metrics exposes gateway traffic as Prometheus collectors.
//
// A Collector owns its own registry so several instances can coexist in
// tests. It implements hub.Metrics and is served by the resource server
// on /metrics.
package metrics
