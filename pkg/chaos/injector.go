package chaos

import (
	"errors"
	"fmt"
	mathrand "math/rand/v2"
	"sync"
	"time"

	"github.com/getmockd/serialmock/internal/matching"
	"github.com/getmockd/serialmock/pkg/function"
	"github.com/getmockd/serialmock/pkg/metrics"
	"github.com/getmockd/serialmock/pkg/template"
)

// Responder answers one frame. It mirrors transport.Responder.
type Responder interface {
	Respond(frame []byte) ([]byte, bool)
}

// Injector decides and applies faults. It is safe for concurrent use.
type Injector struct {
	config  *Config
	global  *Faults
	rules   []compiledRule
	metrics *metrics.Set

	// sleep is replaced in tests.
	sleep func(time.Duration)

	mu    sync.Mutex
	rng   *mathrand.Rand
	stats Stats
}

type compiledRule struct {
	ask    *template.Template // nil matches any frame
	when   *condition         // nil matches any frame
	faults Faults
}

func (r *compiledRule) matches(in *template.Template, frame []byte) bool {
	if r.ask != nil && !matching.Equal(r.ask, in) {
		return false
	}
	return r.when == nil || r.when.eval(frame)
}

// Plan is the outcome of rolling the faults for one frame.
type Plan struct {
	Delay time.Duration
	Drop  bool

	Corrupt     bool
	CorruptRate float64 // fraction of bytes to corrupt, at least one

	Truncate bool
	Keep     float64 // fraction of bytes kept when truncating
}

// Empty reports whether the plan injects nothing.
func (p Plan) Empty() bool {
	return p.Delay == 0 && !p.Drop && !p.Corrupt && !p.Truncate
}

// NewInjector compiles cfg. rng drives every roll; nil seeds one from the
// clock.
func NewInjector(cfg *Config, rng *mathrand.Rand) (*Injector, error) {
	if cfg == nil {
		return nil, errors.New("chaos config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = function.NewRand(uint64(time.Now().UnixNano()))
	}

	i := &Injector{
		config: cfg,
		global: cfg.Global,
		sleep:  time.Sleep,
		rng:    rng,
		stats:  Stats{ByType: make(map[FaultType]int64)},
	}
	if i.global == nil && cfg.Profile != "" {
		p, _ := GetProfile(cfg.Profile)
		i.global = p.Faults.clone()
	}

	for idx, rule := range cfg.Rules {
		cr := compiledRule{faults: rule.Faults}
		if rule.Ask != "" {
			ask, err := template.Parse(rule.Ask)
			if err != nil {
				return nil, fmt.Errorf("rules[%d]: %w", idx, err)
			}
			cr.ask = ask
		}
		if rule.When != "" {
			cond, err := compileCondition(rule.When)
			if err != nil {
				return nil, fmt.Errorf("rules[%d]: %w", idx, err)
			}
			cr.when = cond
		}
		i.rules = append(i.rules, cr)
	}
	return i, nil
}

// WithMetrics counts injected faults in set.
func (i *Injector) WithMetrics(set *metrics.Set) *Injector {
	i.metrics = set
	return i
}

// Enabled reports whether injection is on.
func (i *Injector) Enabled() bool {
	return i.config.Enabled
}

// Plan rolls the faults that apply to frame.
func (i *Injector) Plan(frame []byte) Plan {
	if !i.Enabled() {
		return Plan{}
	}

	faults := i.global
	in := template.FromBytes(frame)
	for idx := range i.rules {
		if i.rules[idx].matches(in, frame) {
			// A matching rule preempts the global faults even if none fire.
			faults = &i.rules[idx].faults
			break
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.stats.Frames++
	if faults == nil {
		return Plan{}
	}

	var p Plan
	if f := faults.Latency; f != nil && i.roll(f.Probability) {
		minDur, maxDur, _ := f.bounds()
		p.Delay = minDur
		if maxDur > minDur {
			p.Delay += time.Duration(i.rng.Int64N(int64(maxDur - minDur)))
		}
		i.count(FaultLatency)
	}
	if f := faults.Drop; f != nil && i.roll(f.Probability) {
		p.Drop = true
		i.count(FaultDrop)
		// nothing else is visible on a dropped answer
		return p
	}
	if f := faults.Corrupt; f != nil && i.roll(f.Probability) {
		p.Corrupt = true
		p.CorruptRate = f.Rate
		i.count(FaultCorrupt)
	}
	if f := faults.Truncate; f != nil && i.roll(f.Probability) {
		p.Truncate = true
		p.Keep = f.MinPercent + i.rng.Float64()*(f.MaxPercent-f.MinPercent)
		i.count(FaultTruncate)
	}
	return p
}

// roll must be called with mu held.
func (i *Injector) roll(probability float64) bool {
	return probability > 0 && i.rng.Float64() < probability
}

// count must be called with mu held.
func (i *Injector) count(t FaultType) {
	i.stats.Injected++
	i.stats.ByType[t]++
	i.metrics.Fault(string(t))
}

// Apply returns answer with the plan's corruption and truncation applied.
// answer is not modified.
func (i *Injector) Apply(p Plan, answer []byte) []byte {
	if p.Drop {
		return nil
	}
	out := append([]byte(nil), answer...)
	if len(out) == 0 {
		return out
	}

	if p.Corrupt {
		n := min(len(out), max(1, int(p.CorruptRate*float64(len(out)))))
		i.mu.Lock()
		for _, idx := range i.rng.Perm(len(out))[:n] {
			out[idx] ^= 1 << i.rng.IntN(8)
		}
		i.mu.Unlock()
	}
	if p.Truncate {
		keep := int(p.Keep * float64(len(out)))
		if keep >= len(out) {
			keep = len(out) - 1
		}
		out = out[:keep]
	}
	return out
}

// Wrap returns a Responder that injects faults into next's answers. Unknown
// asks pass through untouched. If next explains misses, so does the result.
func (i *Injector) Wrap(next Responder) *WrappedResponder {
	return &WrappedResponder{injector: i, next: next}
}

// WrappedResponder is a Responder with fault injection.
type WrappedResponder struct {
	injector *Injector
	next     Responder
}

// Respond answers frame through the wrapped Responder, then applies faults.
// A dropped answer reports a match with no bytes to send.
func (w *WrappedResponder) Respond(frame []byte) ([]byte, bool) {
	answer, ok := w.next.Respond(frame)
	if !ok {
		return nil, false
	}

	p := w.injector.Plan(frame)
	if p.Empty() {
		return answer, true
	}
	if p.Delay > 0 {
		w.injector.sleep(p.Delay)
	}
	return w.injector.Apply(p, answer), true
}

// Explain forwards to the wrapped Responder when it can explain misses.
func (w *WrappedResponder) Explain(frame []byte) []matching.NearMiss {
	if ex, ok := w.next.(interface {
		Explain([]byte) []matching.NearMiss
	}); ok {
		return ex.Explain(frame)
	}
	return nil
}

// Stats returns a copy of the fault counters.
func (i *Injector) Stats() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := Stats{
		Frames:   i.stats.Frames,
		Injected: i.stats.Injected,
		ByType:   make(map[FaultType]int64, len(i.stats.ByType)),
	}
	for k, v := range i.stats.ByType {
		out.ByType[k] = v
	}
	return out
}
