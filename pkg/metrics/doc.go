// Package metrics provides Prometheus-compatible metrics for serialmock.
//
// It implements the Prometheus text exposition format (text/plain; version=0.0.4)
// with counters, gauges and histograms. All metrics are safe for concurrent
// use.
//
// The daemon metric set:
//
//   - serialmock_lookups_total: lookups (labels: result = hit, miss)
//   - serialmock_lookup_duration_seconds: match plus synthesis time
//   - serialmock_reloads_total: repeat-file loads (labels: status = ok, error)
//   - serialmock_pairs: pairs currently loaded
//   - serialmock_frames_total: frames on the wire (labels: transport, direction)
//   - serialmock_active_connections: open connections (labels: transport)
//   - serialmock_uptime_seconds, go_goroutines
//
// Usage:
//
//	set := metrics.NewSet(metrics.NewRegistry())
//	set.Lookup(true, elapsed)
//	mux.Handle("/metrics", set.Registry.Handler())
package metrics
