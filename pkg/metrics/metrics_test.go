package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	t.Run("without labels", func(t *testing.T) {
		r := NewRegistry()
		c := r.NewCounter("test_counter", "A test counter")

		_ = c.Inc()
		_ = c.Inc()

		samples := c.Collect()
		if len(samples) != 1 {
			t.Fatalf("expected 1 sample, got %d", len(samples))
		}
		if samples[0].Value != 2 {
			t.Errorf("expected value 2, got %f", samples[0].Value)
		}
	})

	t.Run("with labels", func(t *testing.T) {
		r := NewRegistry()
		c := r.NewCounter("frames", "Frames", "transport", "direction")

		vec, err := c.WithLabels("tcp", "rx")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_ = vec.Inc()
		vec, _ = c.WithLabels("tcp", "rx")
		_ = vec.Inc()
		vec, _ = c.WithLabels("mqtt", "tx")
		_ = vec.Add(5)

		found := make(map[string]float64)
		for _, s := range c.Collect() {
			found[s.Labels["transport"]+"_"+s.Labels["direction"]] = s.Value
		}
		if found["tcp_rx"] != 2 {
			t.Errorf("expected tcp_rx=2, got %f", found["tcp_rx"])
		}
		if found["mqtt_tx"] != 5 {
			t.Errorf("expected mqtt_tx=5, got %f", found["mqtt_tx"])
		}
	})

	t.Run("wrong label count returns error", func(t *testing.T) {
		r := NewRegistry()
		c := r.NewCounter("test", "test", "label1", "label2")
		_, err := c.WithLabels("only_one")
		if !errors.Is(err, ErrLabelCountMismatch) {
			t.Errorf("expected ErrLabelCountMismatch, got %v", err)
		}
	})

	t.Run("negative add returns error", func(t *testing.T) {
		r := NewRegistry()
		c := r.NewCounter("test", "test")
		vec, _ := c.WithLabels()
		if err := vec.Add(-1); !errors.Is(err, ErrNegativeCounterValue) {
			t.Errorf("expected ErrNegativeCounterValue, got %v", err)
		}
	})
}

func TestGauge(t *testing.T) {
	r := NewRegistry()
	g := r.NewGauge("conns", "Connections", "transport")

	vec, err := g.WithLabels("websocket")
	if err != nil {
		t.Fatal(err)
	}
	vec.Inc()
	vec.Inc()
	vec.Dec()

	samples := g.Collect()
	if len(samples) != 1 || samples[0].Value != 1 {
		t.Fatalf("samples = %+v, want one sample of 1", samples)
	}

	vec.Set(7)
	if v := g.Collect()[0].Value; v != 7 {
		t.Errorf("after Set value = %f, want 7", v)
	}
}

func TestHistogram(t *testing.T) {
	r := NewRegistry()
	h := r.NewHistogram("latency", "Latency", []float64{0.5, 0.1})
	vec, err := h.WithLabels()
	if err != nil {
		t.Fatal(err)
	}
	vec.Observe(0.05)
	vec.Observe(0.2)
	vec.Observe(3)

	got := make(map[string]float64)
	for _, s := range h.Collect() {
		got[s.Name+"/"+s.Labels["le"]] = s.Value
	}
	want := map[string]float64{
		"latency_bucket/0.1":  1,
		"latency_bucket/0.5":  2,
		"latency_bucket/+Inf": 3,
		"latency_count/":      3,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %f, want %f", k, got[k], v)
		}
	}
	if sum := got["latency_sum/"]; sum < 3.24 || sum > 3.26 {
		t.Errorf("sum = %f, want 3.25", sum)
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.NewCounter("dup", "first")
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate metric name")
		}
	}()
	r.NewGauge("dup", "second")
}

func TestHandler_Exposition(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("serialmock_test_total", "Test\ncounter", "result")
	vec, _ := c.WithLabels(`a"b`)
	_ = vec.Inc()
	r.NewGauge("empty_gauge", "never set")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain; version=0.0.4") {
		t.Errorf("Content-Type = %q", ct)
	}
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		"# HELP serialmock_test_total Test\\ncounter\n",
		"# TYPE serialmock_test_total counter\n",
		`serialmock_test_total{result="a\"b"} 1` + "\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "empty_gauge") {
		t.Error("metrics without samples should not be written")
	}
}

func TestSet(t *testing.T) {
	s := NewSet(NewRegistry())

	s.Lookup(true, time.Microsecond)
	s.Lookup(false, time.Microsecond)
	s.Lookup(false, time.Microsecond)
	s.Reload(nil, 12)
	s.Reload(errors.New("bad line"), 0)
	s.Frame("tcp", DirectionRx)
	s.Connection("tcp", +1)
	s.Fault("drop")
	s.Fault("drop")

	var sb strings.Builder
	s.Registry.WriteTo(&sb)
	out := sb.String()

	for _, want := range []string{
		`serialmock_lookups_total{result="hit"} 1`,
		`serialmock_lookups_total{result="miss"} 2`,
		`serialmock_reloads_total{status="ok"} 1`,
		`serialmock_reloads_total{status="error"} 1`,
		"serialmock_pairs 12",
		`serialmock_frames_total{direction="rx",transport="tcp"} 1`,
		`serialmock_active_connections{transport="tcp"} 1`,
		`serialmock_faults_total{fault="drop"} 2`,
		"serialmock_lookup_duration_seconds_count 3",
		"# TYPE serialmock_uptime_seconds gauge",
		"# TYPE go_goroutines gauge",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSet_NilIsNoop(t *testing.T) {
	var s *Set
	s.Lookup(true, 0)
	s.Reload(nil, 1)
	s.Frame("tcp", DirectionTx)
	s.Connection("tcp", -1)
	s.Fault("latency")
}

func TestConcurrentUpdates(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("concurrent", "c", "worker")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				vec, _ := c.WithLabels("w")
				_ = vec.Inc()
			}
		}()
	}
	wg.Wait()

	if v := c.Collect()[0].Value; v != 8000 {
		t.Errorf("value = %f, want 8000", v)
	}
}
