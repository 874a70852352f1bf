package testing

import (
	"context"
	mathrand "math/rand/v2"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/getmockd/serialmock/internal/matching"
	"github.com/getmockd/serialmock/pkg/function"
	"github.com/getmockd/serialmock/pkg/repeatfile"
	"github.com/getmockd/serialmock/pkg/table"
	"github.com/getmockd/serialmock/pkg/template"
	"github.com/getmockd/serialmock/pkg/transport"
)

// DefaultGapTolerance is the frame gap used by test devices. It is shorter
// than the daemon default to keep tests fast.
const DefaultGapTolerance = 10 * time.Millisecond

// pair is a registered ask/answer with its test options.
type pair struct {
	ask       *template.Template
	answer    *template.Template
	delay     time.Duration
	remaining int // -1 means unlimited
}

// Device is a test helper emulating a serial device over TCP.
type Device struct {
	t   testing.TB
	gap time.Duration

	mu      sync.Mutex
	pairs   []*pair
	frames  []Frame
	rng     *mathrand.Rand
	server  *transport.TCPServer
	addr    string
	started bool
}

// New creates a new device for testing.
func New(t testing.TB) *Device {
	t.Helper()
	return &Device{t: t, gap: DefaultGapTolerance}
}

// WithSeed makes @rand slots reproducible.
func (d *Device) WithSeed(seed uint64) *Device {
	d.mu.Lock()
	d.rng = function.NewRand(seed)
	d.mu.Unlock()
	return d
}

// WithGapTolerance sets the idle time that ends a frame. Call before Start.
func (d *Device) WithGapTolerance(gap time.Duration) *Device {
	d.gap = gap
	return d
}

// On starts a pair for ask. Complete it with Reply.
func (d *Device) On(ask string) *PairBuilder {
	d.t.Helper()
	return &PairBuilder{device: d, ask: ask, times: -1}
}

// LoadFile adds every pair of a hex repeat file. ASCII files are rejected.
func (d *Device) LoadFile(path string) {
	d.t.Helper()

	f, err := repeatfile.Load(path)
	if err != nil {
		d.t.Fatalf("failed to load repeat file: %v", err)
		return
	}
	if f.Grammar == template.GrammarASCII {
		d.t.Fatalf("%s: ASCII repeat files are not supported by Device", path)
		return
	}
	for _, p := range f.Pairs {
		d.add(&pair{ask: p.Ask, answer: p.Answer, remaining: -1})
	}
}

func (d *Device) add(p *pair) {
	d.t.Helper()

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.pairs {
		if matching.Equal(existing.ask, p.ask) {
			d.t.Errorf("ask %s overlaps the registered ask %s", p.ask, existing.ask)
			return
		}
	}
	d.pairs = append(d.pairs, p)
}

// Start starts listening and returns the address, e.g. "127.0.0.1:40123".
// Pairs may still be added afterwards.
func (d *Device) Start() string {
	d.t.Helper()

	d.mu.Lock()
	if d.started {
		addr := d.addr
		d.mu.Unlock()
		return addr
	}
	d.mu.Unlock()

	srv, err := transport.NewTCPServer(transport.TCPConfig{
		Address:      "127.0.0.1:0",
		GapTolerance: d.gap,
	}, transport.ResponderFunc(d.respond))
	if err != nil {
		d.t.Fatalf("failed to create device: %v", err)
		return ""
	}
	if err := srv.Start(context.Background()); err != nil {
		d.t.Fatalf("failed to start device: %v", err)
		return ""
	}

	d.mu.Lock()
	d.server = srv
	d.addr = srv.Addr()
	d.started = true
	d.mu.Unlock()

	d.t.Cleanup(d.Stop)
	return d.addr
}

// Stop stops the device. It is safe to call more than once.
func (d *Device) Stop() {
	d.mu.Lock()
	srv := d.server
	d.server = nil
	d.started = false
	d.mu.Unlock()

	if srv != nil {
		_ = srv.Stop(context.Background(), 2*time.Second)
	}
}

// Addr returns the listen address, or "" before Start.
func (d *Device) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// Reset clears all pairs and the frame log.
func (d *Device) Reset() {
	d.mu.Lock()
	d.pairs = nil
	d.frames = nil
	d.mu.Unlock()
}

// Frames returns the received frames, oldest first.
func (d *Device) Frames() []Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Frame, len(d.frames))
	copy(out, d.frames)
	return out
}

// Exchange sends frame on a fresh connection and returns the answer, or nil
// if none arrives within timeout.
func (d *Device) Exchange(frame []byte, timeout time.Duration) []byte {
	d.t.Helper()

	conn, err := net.Dial("tcp", d.Start())
	if err != nil {
		d.t.Fatalf("failed to connect to device: %v", err)
		return nil
	}
	defer conn.Close()

	if _, err := conn.Write(frame); err != nil {
		d.t.Fatalf("failed to write frame: %v", err)
		return nil
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, transport.DefaultMaxFrame)
	n, err := conn.Read(buf)
	if err != nil {
		return nil
	}
	return buf[:n]
}

func (d *Device) respond(frame []byte) ([]byte, bool) {
	in := template.FromBytes(frame)

	d.mu.Lock()
	rec := Frame{Rx: append([]byte(nil), frame...), At: time.Now(), Pair: -1}
	var (
		answer []byte
		delay  time.Duration
	)
	for i, p := range d.pairs {
		if p.remaining == 0 || !matching.Equal(p.ask, in) {
			continue
		}
		if p.remaining > 0 {
			p.remaining--
		}
		answer = table.Synthesize(p.ask, p.answer, frame, d.rng)
		delay = p.delay
		rec.Pair = i
		rec.Tx = answer
		break
	}
	d.frames = append(d.frames, rec)
	d.mu.Unlock()

	if answer == nil {
		return nil, false
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	return answer, true
}
