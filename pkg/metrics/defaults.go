package metrics

import (
	"runtime"
	"time"
)

// Label values used by Set.
const (
	ResultHit  = "hit"
	ResultMiss = "miss"

	StatusOK    = "ok"
	StatusError = "error"

	DirectionRx = "rx"
	DirectionTx = "tx"
)

// LookupBuckets are histogram buckets for answer synthesis time, in seconds.
var LookupBuckets = []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01}

// Set is the serialmock metric set. Each daemon creates one over its own
// registry.
type Set struct {
	Registry *Registry

	// LookupsTotal counts lookups. Labels: result (hit, miss).
	LookupsTotal *Counter

	// LookupDuration tracks lookup plus synthesis time in seconds.
	LookupDuration *Histogram

	// ReloadsTotal counts repeat-file loads. Labels: status (ok, error).
	ReloadsTotal *Counter

	// Pairs is the number of ask/answer pairs currently served.
	Pairs *Gauge

	// FramesTotal counts frames on the wire. Labels: transport, direction (rx, tx).
	FramesTotal *Counter

	// ActiveConnections tracks open transport connections. Labels: transport.
	ActiveConnections *Gauge

	// FaultsTotal counts injected faults. Labels: fault (latency, drop, corrupt, truncate).
	FaultsTotal *Counter

	UptimeSeconds *Gauge
	Goroutines    *Gauge
}

// NewSet registers the serialmock metrics on r. Uptime and goroutine count
// are refreshed on every scrape.
func NewSet(r *Registry) *Set {
	s := &Set{
		Registry: r,
		LookupsTotal: r.NewCounter(
			"serialmock_lookups_total",
			"Total number of frames looked up in the pattern table",
			"result",
		),
		LookupDuration: r.NewHistogram(
			"serialmock_lookup_duration_seconds",
			"Time spent matching a frame and synthesizing the answer",
			LookupBuckets,
		),
		ReloadsTotal: r.NewCounter(
			"serialmock_reloads_total",
			"Total number of repeat-file loads",
			"status",
		),
		Pairs: r.NewGauge(
			"serialmock_pairs",
			"Number of ask/answer pairs currently loaded",
		),
		FramesTotal: r.NewCounter(
			"serialmock_frames_total",
			"Total number of frames received and sent",
			"transport", "direction",
		),
		ActiveConnections: r.NewGauge(
			"serialmock_active_connections",
			"Number of open transport connections",
			"transport",
		),
		FaultsTotal: r.NewCounter(
			"serialmock_faults_total",
			"Total number of injected faults",
			"fault",
		),
		UptimeSeconds: r.NewGauge(
			"serialmock_uptime_seconds",
			"Time since the daemon started",
		),
		Goroutines: r.NewGauge(
			"go_goroutines",
			"Number of goroutines that currently exist",
		),
	}

	start := time.Now()
	r.OnScrape(func() {
		_ = s.UptimeSeconds.Set(time.Since(start).Seconds())
		_ = s.Goroutines.Set(float64(runtime.NumGoroutine()))
	})
	return s
}

// Frame counts one frame for transport in direction. A nil Set is a no-op.
func (s *Set) Frame(transport, direction string) {
	if s == nil {
		return
	}
	if vec, err := s.FramesTotal.WithLabels(transport, direction); err == nil {
		_ = vec.Inc()
	}
}

// Connection adjusts the open connection gauge by delta. A nil Set is a no-op.
func (s *Set) Connection(transport string, delta int) {
	if s == nil {
		return
	}
	if vec, err := s.ActiveConnections.WithLabels(transport); err == nil {
		if delta > 0 {
			vec.Inc()
		} else {
			vec.Dec()
		}
	}
}

// Lookup records one lookup result and its duration. A nil Set is a no-op.
func (s *Set) Lookup(hit bool, d time.Duration) {
	if s == nil {
		return
	}
	result := ResultMiss
	if hit {
		result = ResultHit
	}
	if vec, err := s.LookupsTotal.WithLabels(result); err == nil {
		_ = vec.Inc()
	}
	if vec, err := s.LookupDuration.WithLabels(); err == nil {
		vec.Observe(d.Seconds())
	}
}

// Reload records a load attempt and, on success, the new pair count.
// A nil Set is a no-op.
func (s *Set) Reload(err error, pairs int) {
	if s == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	if vec, e := s.ReloadsTotal.WithLabels(status); e == nil {
		_ = vec.Inc()
	}
	if err == nil {
		_ = s.Pairs.Set(float64(pairs))
	}
}

// Fault counts one injected fault. A nil Set is a no-op.
func (s *Set) Fault(kind string) {
	if s == nil {
		return
	}
	if vec, err := s.FaultsTotal.WithLabels(kind); err == nil {
		_ = vec.Inc()
	}
}
