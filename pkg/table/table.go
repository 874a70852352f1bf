package table

import (
	"errors"
	"fmt"
	mathrand "math/rand/v2"
	"sync"

	"github.com/getmockd/serialmock/internal/matching"
	"github.com/getmockd/serialmock/pkg/template"
)

// Errors returned by Replace.
var (
	ErrDuplicateAsk = errors.New("duplicate ask")
	ErrNilTemplate  = errors.New("ask and answer are required")
)

// Pair is one ask/answer entry.
type Pair struct {
	Ask    *template.Template
	Answer *template.Template
}

// Table is a thread-safe ask/answer pattern table.
type Table struct {
	mu    sync.RWMutex
	pairs []Pair

	// rngMu guards rng; *rand.Rand is not safe for concurrent use.
	rngMu sync.Mutex
	rng   *mathrand.Rand
}

// New creates an empty Table.
func New() *Table {
	return &Table{}
}

// SetRand installs the source used for @rand slots. nil selects the global
// generator.
func (t *Table) SetRand(rng *mathrand.Rand) {
	t.rngMu.Lock()
	defer t.rngMu.Unlock()
	t.rng = rng
}

// Clear removes all pairs.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pairs = nil
}

// TryAdd appends a pair. Returns false if an equal ask is already stored or
// either template is nil.
func (t *Table) TryAdd(ask, answer *template.Template) bool {
	if ask == nil || answer == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if indexOf(t.pairs, ask) >= 0 {
		return false
	}
	t.pairs = append(t.pairs, Pair{Ask: ask, Answer: answer})
	return true
}

// Replace atomically swaps the table content for pairs. Validation happens
// before the swap; on error the current content is kept.
func (t *Table) Replace(pairs []Pair) error {
	next := make([]Pair, 0, len(pairs))
	for i, p := range pairs {
		if p.Ask == nil || p.Answer == nil {
			return fmt.Errorf("pair %d: %w", i, ErrNilTemplate)
		}
		if j := indexOf(next, p.Ask); j >= 0 {
			return fmt.Errorf("%w: pair %d matches the ask of pair %d", ErrDuplicateAsk, i, j)
		}
		next = append(next, p)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pairs = next
	return nil
}

// Len returns the number of pairs.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pairs)
}

// Pairs returns a copy of the stored pairs in insertion order.
func (t *Table) Pairs() []Pair {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Pair, len(t.pairs))
	copy(out, t.pairs)
	return out
}

// Lookup finds the first ask matching buf and returns the synthesized answer.
// A miss returns nil, false.
func (t *Table) Lookup(buf []byte) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := find(t.pairs, buf)
	if !ok {
		return nil, false
	}

	t.rngMu.Lock()
	defer t.rngMu.Unlock()
	return Synthesize(p.Ask, p.Answer, buf, t.rng), true
}

// LookupWith is Lookup with an explicit random source. The caller owns rng.
func (t *Table) LookupWith(buf []byte, rng *mathrand.Rand) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := find(t.pairs, buf)
	if !ok {
		return nil, false
	}
	return Synthesize(p.Ask, p.Answer, buf, rng), true
}

// NearMisses explains a miss by ranking the stored asks against buf.
func (t *Table) NearMisses(buf []byte, topN int) []matching.NearMiss {
	t.mu.RLock()
	asks := make([]*template.Template, len(t.pairs))
	for i, p := range t.pairs {
		asks[i] = p.Ask
	}
	t.mu.RUnlock()

	return matching.CollectNearMisses(asks, buf, topN)
}

func find(pairs []Pair, buf []byte) (Pair, bool) {
	in := template.FromBytes(buf)
	for _, p := range pairs {
		if matching.Equal(p.Ask, in) {
			return p, true
		}
	}
	return Pair{}, false
}

func indexOf(pairs []Pair, ask *template.Template) int {
	for i, p := range pairs {
		if matching.Equal(p.Ask, ask) {
			return i
		}
	}
	return -1
}
