// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection for client sessions.
//
// Provides concurrent-safe primitives:
//   - MetricsRegistry: named counters and gauges with snapshot reads
//   - DebugProbes: named probe functions dumped on demand
//   - Collector: Prometheus export of a registry snapshot
package control
