// Package metrics exposes Prometheus counters and gauges for the
// translation pipeline. Observability only; nothing here is consulted
// for correctness decisions.
package metrics
