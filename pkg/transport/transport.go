package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getmockd/serialmock/internal/matching"
	"github.com/getmockd/serialmock/pkg/logging"
	"github.com/getmockd/serialmock/pkg/metrics"
	"github.com/getmockd/serialmock/pkg/requestlog"
	"github.com/getmockd/serialmock/pkg/util"
)

// Error is a simple error type for transport errors.
type Error string

// Error implements the error interface.
func (e Error) Error() string { return string(e) }

const (
	// ErrAlreadyRunning is returned by Start on a running handler.
	ErrAlreadyRunning = Error("transport is already running")

	// ErrNilResponder is returned by constructors given a nil Responder.
	ErrNilResponder = Error("responder cannot be nil")
)

// DefaultMaxFrame bounds a single frame on every transport.
const DefaultMaxFrame = 64 * 1024

// Responder answers one frame. The repeater implements it.
type Responder interface {
	Respond(frame []byte) ([]byte, bool)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(frame []byte) ([]byte, bool)

// Respond calls f.
func (f ResponderFunc) Respond(frame []byte) ([]byte, bool) { return f(frame) }

// Explainer is implemented by responders that can say why a frame missed.
// The frame history stores its result for unknown asks.
type Explainer interface {
	Explain(frame []byte) []matching.NearMiss
}

// Handler is a transport lifecycle.
type Handler interface {
	// Name identifies the transport in logs and metrics ("tcp", "websocket", "mqtt").
	Name() string

	// Addr returns the listen address, resolved once started.
	Addr() string

	// Start begins listening. It returns once the listener is ready.
	Start(ctx context.Context) error

	// Stop closes the listener and open connections, waiting at most
	// timeout for connection goroutines to exit.
	Stop(ctx context.Context, timeout time.Duration) error
}

// Option configures a transport.
type Option func(*base)

// WithLogger sets the logger. The default discards output.
func WithLogger(log *slog.Logger) Option {
	return func(b *base) {
		if log != nil {
			b.log = log
		}
	}
}

// WithMetrics counts frames and connections in set.
func WithMetrics(set *metrics.Set) Option {
	return func(b *base) { b.metrics = set }
}

// WithFrameLog records every received frame in log.
func WithFrameLog(log requestlog.Logger) Option {
	return func(b *base) { b.frames = log }
}

// base holds what every transport shares.
type base struct {
	name      string
	responder Responder
	log       *slog.Logger
	metrics   *metrics.Set
	frames    requestlog.Logger
}

func newBase(name string, r Responder, opts []Option) base {
	b := base{name: name, responder: r, log: logging.Nop()}
	for _, opt := range opts {
		opt(&b)
	}
	b.log = b.log.With("transport", name)
	return b
}

// handle answers frame, recording it in metrics.
func (b *base) handle(conn string, frame []byte) ([]byte, bool) {
	b.metrics.Frame(b.name, metrics.DirectionRx)
	b.log.Debug("frame received", "conn", conn, logging.Frame("rx", frame))
	start := time.Now()
	answer, ok := b.responder.Respond(frame)
	if ok {
		b.metrics.Frame(b.name, metrics.DirectionTx)
	}
	if b.frames != nil {
		b.record(conn, frame, answer, ok, time.Since(start))
	}
	return answer, ok
}

func (b *base) record(conn string, frame, answer []byte, ok bool, took time.Duration) {
	entry := &requestlog.Entry{
		Timestamp:  time.Now(),
		Transport:  b.name,
		Conn:       conn,
		Frame:      logging.HexDumpLimit(frame, util.MaxHistoryFrameSize),
		FrameSize:  len(frame),
		Matched:    ok,
		DurationUs: took.Microseconds(),
	}
	if ok {
		entry.Answer = logging.HexDumpLimit(answer, util.MaxHistoryFrameSize)
	} else if ex, isExplainer := b.responder.(Explainer); isExplainer {
		for _, nm := range ex.Explain(frame) {
			entry.NearMisses = append(entry.NearMisses, requestlog.NearMissInfo{
				Pair:            nm.Index + 1,
				Ask:             nm.Ask,
				MatchPercentage: nm.MatchPercentage,
				Reason:          nm.Reason,
			})
		}
	}
	b.frames.Log(entry)
}

// waitGroup waits for wg or until timeout elapses or ctx is done.
func waitGroup(ctx context.Context, wg *sync.WaitGroup, timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Group starts and stops a set of transports together.
type Group struct {
	mu       sync.Mutex
	handlers []Handler
	started  []Handler
}

// NewGroup creates a group of handlers.
func NewGroup(handlers ...Handler) *Group {
	return &Group{handlers: handlers}
}

// Add appends a handler. It must be called before Start.
func (g *Group) Add(h Handler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers = append(g.handlers, h)
}

// Handlers returns the handlers in start order.
func (g *Group) Handlers() []Handler {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Handler, len(g.handlers))
	copy(out, g.handlers)
	return out
}

// Start starts every handler in order. If one fails, the ones already
// started are stopped again.
func (g *Group) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, h := range g.handlers {
		if err := h.Start(ctx); err != nil {
			for i := len(g.started) - 1; i >= 0; i-- {
				_ = g.started[i].Stop(ctx, time.Second)
			}
			g.started = nil
			return fmt.Errorf("failed to start %s transport: %w", h.Name(), err)
		}
		g.started = append(g.started, h)
	}
	return nil
}

// Stop stops the started handlers in reverse order.
func (g *Group) Stop(ctx context.Context, timeout time.Duration) error {
	g.mu.Lock()
	started := g.started
	g.started = nil
	g.mu.Unlock()

	var errs []error
	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Stop(ctx, timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s transport: %w", started[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}
