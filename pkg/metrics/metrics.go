package metrics

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrLabelCountMismatch is returned when the number of label values doesn't match the defined labels.
var ErrLabelCountMismatch = errors.New("label count mismatch")

// ErrNegativeCounterValue is returned when attempting to add a negative value to a counter.
var ErrNegativeCounterValue = errors.New("counter cannot be decreased")

// ErrDuplicateMetric is returned when registering a metric with a name that is already registered.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// atomicFloat64 stores the bits of a float64 as a uint64 for atomic access.
type atomicFloat64 struct {
	bits uint64
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(atomic.LoadUint64(&a.bits))
}

func (a *atomicFloat64) Store(val float64) {
	atomic.StoreUint64(&a.bits, math.Float64bits(val))
}

func (a *atomicFloat64) Add(delta float64) {
	for {
		old := atomic.LoadUint64(&a.bits)
		next := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(&a.bits, old, math.Float64bits(next)) {
			return
		}
	}
}

// MetricType represents the type of a metric.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric is the interface implemented by all metric types.
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	// Collect returns all samples for exposition.
	Collect() []Sample
}

// Sample represents a single metric sample with labels.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// series is one label combination of a counter or gauge.
type series struct {
	labels map[string]string
	value  atomicFloat64
}

// family holds the series of a single-valued metric keyed by label values.
type family struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]*series
}

func (f *family) init(name, help string, labelNames []string) {
	f.name = name
	f.help = help
	f.labelNames = labelNames
	f.values = make(map[string]*series)
}

func (f *family) Name() string { return f.name }
func (f *family) Help() string { return f.help }

func (f *family) get(kind string, values []string) (*series, error) {
	if len(values) != len(f.labelNames) {
		return nil, fmt.Errorf("%w: %s %s expected %d labels, got %d", ErrLabelCountMismatch, kind, f.name, len(f.labelNames), len(values))
	}

	key := labelsKey(values)
	f.mu.RLock()
	s, ok := f.values[key]
	f.mu.RUnlock()
	if ok {
		return s, nil
	}

	labels := make(map[string]string, len(f.labelNames))
	for i, name := range f.labelNames {
		labels[name] = values[i]
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok = f.values[key]; !ok {
		s = &series{labels: labels}
		f.values[key] = s
	}
	return s, nil
}

func (f *family) Collect() []Sample {
	f.mu.RLock()
	defer f.mu.RUnlock()

	samples := make([]Sample, 0, len(f.values))
	for _, s := range f.values {
		samples = append(samples, Sample{Name: f.name, Labels: s.labels, Value: s.value.Load()})
	}
	return samples
}

// Counter is a monotonically increasing metric.
type Counter struct {
	family
}

// Type returns the metric type.
func (c *Counter) Type() MetricType { return MetricTypeCounter }

// WithLabels returns the series for the given label values.
func (c *Counter) WithLabels(values ...string) (*CounterVec, error) {
	s, err := c.get("counter", values)
	if err != nil {
		return nil, err
	}
	return &CounterVec{s: s}, nil
}

// Inc increments an unlabeled counter by 1.
func (c *Counter) Inc() error {
	vec, err := c.WithLabels()
	if err != nil {
		return err
	}
	return vec.Inc()
}

// CounterVec is one label combination of a Counter.
type CounterVec struct {
	s *series
}

// Inc increments the counter by 1.
func (v *CounterVec) Inc() error {
	return v.Add(1)
}

// Add adds delta to the counter. delta must not be negative.
func (v *CounterVec) Add(delta float64) error {
	if delta < 0 {
		return ErrNegativeCounterValue
	}
	v.s.value.Add(delta)
	return nil
}

// Gauge is a metric that can go up and down.
type Gauge struct {
	family
}

// Type returns the metric type.
func (g *Gauge) Type() MetricType { return MetricTypeGauge }

// WithLabels returns the series for the given label values.
func (g *Gauge) WithLabels(values ...string) (*GaugeVec, error) {
	s, err := g.get("gauge", values)
	if err != nil {
		return nil, err
	}
	return &GaugeVec{s: s}, nil
}

// Set sets an unlabeled gauge.
func (g *Gauge) Set(value float64) error {
	vec, err := g.WithLabels()
	if err != nil {
		return err
	}
	vec.Set(value)
	return nil
}

// GaugeVec is one label combination of a Gauge.
type GaugeVec struct {
	s *series
}

func (v *GaugeVec) Set(value float64) { v.s.value.Store(value) }
func (v *GaugeVec) Inc()              { v.s.value.Add(1) }
func (v *GaugeVec) Dec()              { v.s.value.Add(-1) }

// Histogram tracks the distribution of observed values.
type Histogram struct {
	name       string
	help       string
	labelNames []string
	buckets    []float64
	mu         sync.RWMutex
	values     map[string]*histogramValue
}

type histogramValue struct {
	labels map[string]string
	counts []uint64
	sum    atomicFloat64
	count  uint64
}

func newHistogram(name, help string, buckets []float64, labelNames []string) *Histogram {
	sorted := make([]float64, len(buckets))
	copy(sorted, buckets)
	sort.Float64s(sorted)
	if len(sorted) == 0 || !math.IsInf(sorted[len(sorted)-1], 1) {
		sorted = append(sorted, math.Inf(1))
	}
	return &Histogram{
		name:       name,
		help:       help,
		labelNames: labelNames,
		buckets:    sorted,
		values:     make(map[string]*histogramValue),
	}
}

func (h *Histogram) Name() string     { return h.name }
func (h *Histogram) Help() string     { return h.help }
func (h *Histogram) Type() MetricType { return MetricTypeHistogram }

// WithLabels returns the series for the given label values.
func (h *Histogram) WithLabels(values ...string) (*HistogramVec, error) {
	if len(values) != len(h.labelNames) {
		return nil, fmt.Errorf("%w: histogram %s expected %d labels, got %d", ErrLabelCountMismatch, h.name, len(h.labelNames), len(values))
	}

	key := labelsKey(values)
	h.mu.RLock()
	hv, ok := h.values[key]
	h.mu.RUnlock()

	if !ok {
		labels := make(map[string]string, len(h.labelNames))
		for i, name := range h.labelNames {
			labels[name] = values[i]
		}
		h.mu.Lock()
		if hv, ok = h.values[key]; !ok {
			hv = &histogramValue{labels: labels, counts: make([]uint64, len(h.buckets))}
			h.values[key] = hv
		}
		h.mu.Unlock()
	}

	return &HistogramVec{h: h, hv: hv}, nil
}

// Collect returns cumulative bucket samples plus _sum and _count.
func (h *Histogram) Collect() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	samples := make([]Sample, 0, (len(h.buckets)+2)*len(h.values))
	for _, hv := range h.values {
		var cumulative uint64
		for i, bound := range h.buckets {
			cumulative += atomic.LoadUint64(&hv.counts[i])
			labels := make(map[string]string, len(hv.labels)+1)
			for k, v := range hv.labels {
				labels[k] = v
			}
			labels["le"] = formatFloat(bound)
			samples = append(samples, Sample{Name: h.name + "_bucket", Labels: labels, Value: float64(cumulative)})
		}
		samples = append(samples,
			Sample{Name: h.name + "_sum", Labels: hv.labels, Value: hv.sum.Load()},
			Sample{Name: h.name + "_count", Labels: hv.labels, Value: float64(atomic.LoadUint64(&hv.count))},
		)
	}
	return samples
}

// HistogramVec is one label combination of a Histogram.
type HistogramVec struct {
	h  *Histogram
	hv *histogramValue
}

// Observe records a value.
func (v *HistogramVec) Observe(value float64) {
	for i, bound := range v.h.buckets {
		if value <= bound {
			atomic.AddUint64(&v.hv.counts[i], 1)
			break
		}
	}
	v.hv.sum.Add(value)
	atomic.AddUint64(&v.hv.count, 1)
}

// Registry holds all registered metrics.
type Registry struct {
	mu       sync.RWMutex
	metrics  []Metric
	names    map[string]struct{}
	onScrape []func()
}

// NewRegistry creates a new metric registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// NewCounter creates and registers a new counter.
func (r *Registry) NewCounter(name, help string, labels ...string) *Counter {
	c := &Counter{}
	c.init(name, help, labels)
	r.register(c)
	return c
}

// NewGauge creates and registers a new gauge.
func (r *Registry) NewGauge(name, help string, labels ...string) *Gauge {
	g := &Gauge{}
	g.init(name, help, labels)
	r.register(g)
	return g
}

// NewHistogram creates and registers a new histogram with the given buckets.
func (r *Registry) NewHistogram(name, help string, buckets []float64, labels ...string) *Histogram {
	h := newHistogram(name, help, buckets, labels)
	r.register(h)
	return h
}

// OnScrape registers fn to run before every exposition.
func (r *Registry) OnScrape(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onScrape = append(r.onScrape, fn)
}

// register panics on a duplicate name, since duplicates produce invalid
// Prometheus output.
func (r *Registry) register(m Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.names[m.Name()]; exists {
		panic(fmt.Sprintf("%s: %s", ErrDuplicateMetric, m.Name()))
	}
	r.names[m.Name()] = struct{}{}
	r.metrics = append(r.metrics, m)
}

// WriteTo writes every metric in Prometheus text format.
func (r *Registry) WriteTo(w io.Writer) {
	r.mu.RLock()
	metrics := make([]Metric, len(r.metrics))
	copy(metrics, r.metrics)
	hooks := make([]func(), len(r.onScrape))
	copy(hooks, r.onScrape)
	r.mu.RUnlock()

	for _, fn := range hooks {
		fn()
	}
	for _, m := range metrics {
		writeMetric(w, m)
	}
}

// Handler returns an http.Handler that serves the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WriteTo(w)
	})
}

func writeMetric(w io.Writer, m Metric) {
	samples := m.Collect()
	if len(samples) == 0 {
		return
	}
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return formatLabels(samples[i].Labels) < formatLabels(samples[j].Labels)
	})

	_, _ = fmt.Fprintf(w, "# HELP %s %s\n", m.Name(), escapeHelp(m.Help()))
	_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", m.Name(), m.Type())
	for _, s := range samples {
		if len(s.Labels) == 0 {
			_, _ = fmt.Fprintf(w, "%s %s\n", s.Name, formatFloat(s.Value))
			continue
		}
		_, _ = fmt.Fprintf(w, "%s{%s} %s\n", s.Name, formatLabels(s.Labels), formatFloat(s.Value))
	}
}

// formatLabels formats labels as key="value",key="value" in key order.
func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + `="` + escapeLabelValue(labels[k]) + `"`
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	s := fmt.Sprintf("%g", v)
	if v == float64(int64(v)) && !strings.ContainsAny(s, ".e") {
		return fmt.Sprintf("%.0f", v)
	}
	return s
}

func escapeHelp(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "\n", "\\n")
}

func escapeLabelValue(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return strings.ReplaceAll(s, "\n", "\\n")
}

func labelsKey(values []string) string {
	return strings.Join(values, "\x00")
}
