package transport

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/getmockd/serialmock/internal/id"
	"github.com/getmockd/serialmock/pkg/requestlog"
)

// ErrPTYUnsupported is returned by PTYServer.Start on platforms without
// pseudo-terminals.
var ErrPTYUnsupported = errors.New("pseudo-terminals are not supported on this platform")

// PTYConfig configures a PTYServer.
type PTYConfig struct {
	// Link, when set, is a symlink created to the terminal device, giving
	// clients a stable path such as /tmp/ttyMOCK0. An existing symlink is
	// replaced.
	Link string

	// GapTolerance is the idle time after which buffered bytes form a frame.
	GapTolerance time.Duration

	// MaxFrame flushes a frame once it reaches this size.
	MaxFrame int
}

// PTYServer exposes the repeater as a pseudo-terminal. Serial tools open its
// device path as if it were a real port; bytes are passed through raw.
type PTYServer struct {
	base
	config PTYConfig

	mu   sync.Mutex
	term *ptyPair
	wg   sync.WaitGroup
}

var _ Handler = (*PTYServer)(nil)

// ptyPair is an open pseudo-terminal. The server keeps its own handle on the
// device side so the terminal survives clients closing it.
type ptyPair struct {
	master *os.File
	device *os.File
	path   string
}

func (p *ptyPair) close() {
	_ = p.master.Close()
	_ = p.device.Close()
}

// NewPTYServer creates a pseudo-terminal transport answering through r.
func NewPTYServer(cfg PTYConfig, r Responder, opts ...Option) (*PTYServer, error) {
	if r == nil {
		return nil, ErrNilResponder
	}
	if cfg.GapTolerance <= 0 {
		cfg.GapTolerance = DefaultGapTolerance
	}
	if cfg.MaxFrame <= 0 {
		cfg.MaxFrame = DefaultMaxFrame
	}
	return &PTYServer{
		base:   newBase(requestlog.TransportPTY, r, opts),
		config: cfg,
	}, nil
}

// Name returns "pty".
func (s *PTYServer) Name() string { return s.name }

// Addr returns the link if configured, else the device path once started.
func (s *PTYServer) Addr() string {
	if s.config.Link != "" {
		return s.config.Link
	}
	return s.Path()
}

// Path returns the terminal device path, or "" before Start.
func (s *PTYServer) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.term == nil {
		return ""
	}
	return s.term.path
}

// Start opens the pseudo-terminal and begins answering frames on it.
func (s *PTYServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.term != nil {
		return ErrAlreadyRunning
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	term, err := openPTY()
	if err != nil {
		return err
	}
	if s.config.Link != "" {
		if err := replaceSymlink(term.path, s.config.Link); err != nil {
			term.close()
			return err
		}
	}
	s.term = term

	connID := id.Conn(s.name)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.metrics.Connection(s.name, +1)
		defer s.metrics.Connection(s.name, -1)
		s.serveStream(connID, term.master, s.config.GapTolerance, s.config.MaxFrame)
		s.log.Debug("terminal closed", "conn", connID)
	}()

	s.log.Info("listening", "device", term.path, "link", s.config.Link, "gapTolerance", s.config.GapTolerance)
	return nil
}

// Stop closes the terminal and removes the link.
func (s *PTYServer) Stop(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	term := s.term
	s.term = nil
	s.mu.Unlock()

	if term == nil {
		return nil
	}
	term.close()
	if s.config.Link != "" {
		_ = os.Remove(s.config.Link)
	}
	return waitGroup(ctx, &s.wg, timeout)
}

func replaceSymlink(target, link string) error {
	if fi, err := os.Lstat(link); err == nil {
		if fi.Mode()&os.ModeSymlink == 0 {
			return &os.PathError{Op: "link", Path: link, Err: errors.New("exists and is not a symlink")}
		}
		if err := os.Remove(link); err != nil {
			return err
		}
	}
	return os.Symlink(target, link)
}
