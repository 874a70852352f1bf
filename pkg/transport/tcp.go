package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/getmockd/serialmock/internal/id"
	"github.com/getmockd/serialmock/pkg/requestlog"
)

// DefaultGapTolerance is the idle time that ends a TCP frame.
const DefaultGapTolerance = 20 * time.Millisecond

// TCPConfig configures a TCPServer.
type TCPConfig struct {
	// Address is the listen address, e.g. ":7000". Port 0 picks a free port.
	Address string

	// GapTolerance is the idle time after which buffered bytes form a frame.
	GapTolerance time.Duration

	// MaxFrame flushes a frame once it reaches this size.
	MaxFrame int

	// TLS, when set, wraps every connection in a TLS server session.
	TLS *tls.Config
}

// TCPServer serves raw byte streams, one frame per idle gap.
type TCPServer struct {
	base
	config TCPConfig

	mu       sync.Mutex
	listener net.Listener
	conns    map[string]net.Conn
	wg       sync.WaitGroup
}

var _ Handler = (*TCPServer)(nil)

// NewTCPServer creates a TCP transport answering through r.
func NewTCPServer(cfg TCPConfig, r Responder, opts ...Option) (*TCPServer, error) {
	if r == nil {
		return nil, ErrNilResponder
	}
	if cfg.GapTolerance <= 0 {
		cfg.GapTolerance = DefaultGapTolerance
	}
	if cfg.MaxFrame <= 0 {
		cfg.MaxFrame = DefaultMaxFrame
	}
	return &TCPServer{
		base:   newBase(requestlog.TransportTCP, r, opts),
		config: cfg,
		conns:  make(map[string]net.Conn),
	}, nil
}

// Name returns "tcp".
func (s *TCPServer) Name() string { return s.name }

// Addr returns the bound address once started, the configured one before.
func (s *TCPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

// Start listens and accepts connections in the background.
func (s *TCPServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrAlreadyRunning
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.Address)
	if err != nil {
		return err
	}
	if s.config.TLS != nil {
		ln = tls.NewListener(ln, s.config.TLS)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop(ln)

	s.log.Info("listening", "address", ln.Addr().String(), "gapTolerance", s.config.GapTolerance, "tls", s.config.TLS != nil)
	return nil
}

// Stop closes the listener and every open connection.
func (s *TCPServer) Stop(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return nil
	}
	_ = s.listener.Close()
	s.listener = nil
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	return waitGroup(ctx, &s.wg, timeout)
}

func (s *TCPServer) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Error("accept failed", "error", err)
			}
			return
		}

		connID := id.Conn(s.name)
		s.mu.Lock()
		if s.listener == nil {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
		s.conns[connID] = conn
		s.wg.Add(1)
		s.mu.Unlock()

		go s.serveConn(connID, conn)
	}
}

func (s *TCPServer) serveConn(connID string, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.conns, connID)
		s.mu.Unlock()
		s.metrics.Connection(s.name, -1)
		s.log.Info("connection closed", "conn", connID)
	}()

	s.metrics.Connection(s.name, +1)
	s.log.Info("connection opened", "conn", connID, "remote", conn.RemoteAddr().String())

	s.serveStream(connID, conn, s.config.GapTolerance, s.config.MaxFrame)
}
