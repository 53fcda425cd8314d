// Package metrics exposes Prometheus counters and gauges for the
// broker. Metrics live on a private registry rather than the global
// default so the server can be constructed more than once per process.
package metrics
