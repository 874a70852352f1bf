// Package repeater answers incoming frames from a loaded repeat file.
//
// A Repeater owns one pattern table. Load swaps in a new repeat file
// atomically; a file that fails to load leaves the previous one serving.
// Respond is safe to call from every transport goroutine at once.
package repeater

import (
	"fmt"
	"log/slog"
	mathrand "math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getmockd/serialmock/internal/matching"
	"github.com/getmockd/serialmock/pkg/logging"
	"github.com/getmockd/serialmock/pkg/metrics"
	"github.com/getmockd/serialmock/pkg/repeatfile"
	"github.com/getmockd/serialmock/pkg/table"
	"github.com/getmockd/serialmock/pkg/template"
	"github.com/getmockd/serialmock/pkg/util"
)

// nearMissLimit is the number of candidate asks logged for an unknown ask.
const nearMissLimit = 3

// Option configures a Repeater.
type Option func(*Repeater)

// WithLogger sets the logger. The default discards output.
func WithLogger(log *slog.Logger) Option {
	return func(r *Repeater) {
		if log != nil {
			r.log = log
		}
	}
}

// WithRand sets the random source for @rand slots.
func WithRand(rng *mathrand.Rand) Option {
	return func(r *Repeater) { r.table.SetRand(rng) }
}

// WithMetrics records lookups and reloads in set.
func WithMetrics(set *metrics.Set) Option {
	return func(r *Repeater) { r.metrics = set }
}

// Stats is a snapshot of repeater activity.
type Stats struct {
	Enabled  bool      `json:"enabled"`
	Path     string    `json:"path,omitempty"`
	Grammar  string    `json:"grammar,omitempty"`
	Pairs    int       `json:"pairs"`
	Hits     uint64    `json:"hits"`
	Misses   uint64    `json:"misses"`
	Reloads  uint64    `json:"reloads"`
	Failures uint64    `json:"failures"`
	LoadedAt time.Time `json:"loadedAt,omitzero"`
}

// Repeater answers frames from the active repeat file.
type Repeater struct {
	log     *slog.Logger
	metrics *metrics.Set
	table   *table.Table

	// mu guards the active file. Respond holds it for reading so a grammar
	// switch is never observed halfway.
	mu       sync.RWMutex
	enabled  bool
	grammar  template.Grammar
	ascii    map[string]string
	path     string
	pairs    int
	loadedAt time.Time

	hits     atomic.Uint64
	misses   atomic.Uint64
	reloads  atomic.Uint64
	failures atomic.Uint64
}

// New creates a Repeater with nothing loaded.
func New(opts ...Option) *Repeater {
	r := &Repeater{
		log:   logging.Nop(),
		table: table.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads the repeat file at path and makes it active.
func (r *Repeater) Load(path string) error {
	f, err := repeatfile.Load(path)
	if err != nil {
		r.loadFailed(path, err)
		return err
	}
	return r.LoadFile(f)
}

// LoadFile makes an already parsed repeat file active.
func (r *Repeater) LoadFile(f *repeatfile.File) error {
	var ascii map[string]string
	if f.Grammar == template.GrammarASCII {
		ascii = make(map[string]string, len(f.ASCII))
		for _, p := range f.ASCII {
			ascii[p.Ask] = p.Answer
		}
	}

	r.mu.Lock()
	if f.Grammar == template.GrammarASCII {
		r.table.Clear()
	} else if err := r.table.Replace(f.Pairs); err != nil {
		r.mu.Unlock()
		err = fmt.Errorf("%s: %w", f.Path, err)
		r.loadFailed(f.Path, err)
		return err
	}
	r.enabled = true
	r.grammar = f.Grammar
	r.ascii = ascii
	r.path = f.Path
	r.pairs = f.Len()
	r.loadedAt = time.Now()
	r.mu.Unlock()

	r.reloads.Add(1)
	r.metrics.Reload(nil, f.Len())
	r.log.Info("repeat file loaded",
		"path", f.Path,
		"grammar", f.Grammar.String(),
		"pairs", f.Len(),
	)
	return nil
}

func (r *Repeater) loadFailed(path string, err error) {
	r.failures.Add(1)
	r.metrics.Reload(err, 0)
	r.log.Error("repeat file rejected", "path", path, "error", err, "serving", r.activePath())
}

func (r *Repeater) activePath() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.path
}

// Enabled reports whether a repeat file has been loaded.
func (r *Repeater) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled
}

// Respond returns the answer for incoming. It returns false for an unknown
// ask or when nothing is loaded.
func (r *Repeater) Respond(incoming []byte) ([]byte, bool) {
	start := time.Now()

	r.mu.RLock()
	if !r.enabled {
		r.mu.RUnlock()
		return nil, false
	}
	grammar := r.grammar
	var (
		answer []byte
		ok     bool
	)
	if grammar == template.GrammarASCII {
		var s string
		if s, ok = r.ascii[string(incoming)]; ok {
			answer = []byte(s)
		}
	} else {
		answer, ok = r.table.Lookup(incoming)
	}
	r.mu.RUnlock()

	r.metrics.Lookup(ok, time.Since(start))
	if ok {
		r.hits.Add(1)
		r.log.Debug("ask answered", logging.Frame("rx", incoming), logging.Frame("tx", answer))
		return answer, true
	}

	r.misses.Add(1)
	r.logMiss(grammar, incoming)
	return nil, false
}

func (r *Repeater) logMiss(grammar template.Grammar, incoming []byte) {
	if grammar == template.GrammarASCII {
		r.log.Info("unknown ask", "rx", util.TruncateString(string(incoming), util.MaxLogFrameSize))
		return
	}

	attrs := []any{logging.Frame("rx", incoming)}
	if misses := r.table.NearMisses(incoming, nearMissLimit); len(misses) > 0 {
		best := misses[0]
		attrs = append(attrs,
			"closest", best.Ask,
			"closestPair", best.Index+1,
			"reason", best.Reason,
		)
	}
	r.log.Info("unknown ask", attrs...)
}

// Explain ranks the loaded asks against an unknown frame. ASCII files have
// no near-miss view and return nil.
func (r *Repeater) Explain(incoming []byte) []matching.NearMiss {
	r.mu.RLock()
	ascii := r.grammar == template.GrammarASCII
	r.mu.RUnlock()
	if ascii {
		return nil
	}
	return r.table.NearMisses(incoming, nearMissLimit)
}

// Stats returns a snapshot of the repeater counters.
func (r *Repeater) Stats() Stats {
	r.mu.RLock()
	s := Stats{
		Enabled:  r.enabled,
		Path:     r.path,
		Pairs:    r.pairs,
		LoadedAt: r.loadedAt,
	}
	if r.enabled {
		s.Grammar = r.grammar.String()
	}
	r.mu.RUnlock()

	s.Hits = r.hits.Load()
	s.Misses = r.misses.Load()
	s.Reloads = r.reloads.Load()
	s.Failures = r.failures.Load()
	return s
}
