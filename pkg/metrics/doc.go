// Package metrics exposes Prometheus collectors for the scheduler, executor,
// pipeline and event bus, plus a small Timer helper for recording operation
// latency. The daemon serves them via Handler on the metrics address.
package metrics
