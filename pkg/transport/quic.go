package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/getmockd/serialmock/internal/id"
	"github.com/getmockd/serialmock/pkg/requestlog"
)

// QUICProtocol is the ALPN protocol clients must offer.
const QUICProtocol = "serialmock"

// ErrTLSRequired is returned by NewQUICServer without a TLS configuration.
var ErrTLSRequired = errors.New("quic requires a TLS configuration")

// QUICConfig configures a QUICServer.
type QUICConfig struct {
	// Address is the UDP listen address, e.g. ":7002".
	Address string

	// GapTolerance is the idle time after which buffered bytes form a frame.
	GapTolerance time.Duration

	// MaxFrame flushes a frame once it reaches this size.
	MaxFrame int

	// IdleTimeout closes connections without traffic. Keep-alives are sent
	// at half this period.
	IdleTimeout time.Duration

	// TLS is required. NextProtos is set to QUICProtocol.
	TLS *tls.Config
}

// QUICServer serves frames over QUIC. Every bidirectional stream is an
// independent byte stream framed like a TCP connection.
type QUICServer struct {
	base
	config QUICConfig

	mu       sync.Mutex
	listener *quic.Listener
	closers  map[string]func()
	wg       sync.WaitGroup
}

var _ Handler = (*QUICServer)(nil)

// NewQUICServer creates a QUIC transport answering through r.
func NewQUICServer(cfg QUICConfig, r Responder, opts ...Option) (*QUICServer, error) {
	if r == nil {
		return nil, ErrNilResponder
	}
	if cfg.TLS == nil {
		return nil, ErrTLSRequired
	}
	if cfg.GapTolerance <= 0 {
		cfg.GapTolerance = DefaultGapTolerance
	}
	if cfg.MaxFrame <= 0 {
		cfg.MaxFrame = DefaultMaxFrame
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Second
	}
	tlsCfg := cfg.TLS.Clone()
	tlsCfg.NextProtos = []string{QUICProtocol}
	cfg.TLS = tlsCfg

	return &QUICServer{
		base:    newBase(requestlog.TransportQUIC, r, opts),
		config:  cfg,
		closers: make(map[string]func()),
	}, nil
}

// Name returns "quic".
func (s *QUICServer) Name() string { return s.name }

// Addr returns the bound UDP address once started, the configured one before.
func (s *QUICServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

// Start binds the UDP socket and begins accepting connections.
func (s *QUICServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return ErrAlreadyRunning
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ln, err := quic.ListenAddr(s.config.Address, s.config.TLS, &quic.Config{
		MaxIdleTimeout:  s.config.IdleTimeout,
		KeepAlivePeriod: s.config.IdleTimeout / 2,
	})
	if err != nil {
		return err
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop(ln)

	s.log.Info("listening", "address", ln.Addr().String(), "gapTolerance", s.config.GapTolerance)
	return nil
}

// Stop closes the listener and every open connection.
func (s *QUICServer) Stop(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return nil
	}
	_ = s.listener.Close()
	s.listener = nil
	for _, closeConn := range s.closers {
		closeConn()
	}
	s.mu.Unlock()

	return waitGroup(ctx, &s.wg, timeout)
}

func (s *QUICServer) acceptLoop(ln *quic.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept(context.Background())
		if err != nil {
			if !errors.Is(err, quic.ErrServerClosed) {
				s.log.Error("accept failed", "error", err)
			}
			return
		}

		connID := id.Conn(s.name)
		ctx, cancel := context.WithCancel(context.Background())
		closeConn := func() {
			cancel()
			_ = conn.CloseWithError(0, "server stopped")
		}

		s.mu.Lock()
		if s.listener == nil {
			s.mu.Unlock()
			closeConn()
			return
		}
		s.closers[connID] = closeConn
		s.wg.Add(1)
		s.mu.Unlock()

		s.metrics.Connection(s.name, +1)
		s.log.Info("connection opened", "conn", connID, "remote", conn.RemoteAddr().String())

		go func() {
			defer s.wg.Done()
			defer func() {
				closeConn()
				s.mu.Lock()
				delete(s.closers, connID)
				s.mu.Unlock()
				s.metrics.Connection(s.name, -1)
				s.log.Info("connection closed", "conn", connID)
			}()

			var streams sync.WaitGroup
			defer streams.Wait()
			for n := 0; ; n++ {
				st, err := conn.AcceptStream(ctx)
				if err != nil {
					return
				}
				streams.Add(1)
				go func(streamID string) {
					defer streams.Done()
					defer func() { _ = st.Close() }()
					s.serveStream(streamID, st, s.config.GapTolerance, s.config.MaxFrame)
				}(id.Stream(connID, n))
			}
		}()
	}
}
