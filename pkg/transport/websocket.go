package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	ws "github.com/coder/websocket"

	"github.com/getmockd/serialmock/internal/id"
	"github.com/getmockd/serialmock/pkg/httputil"
	"github.com/getmockd/serialmock/pkg/requestlog"
)

// DefaultWebSocketPath is the upgrade path used when none is configured.
const DefaultWebSocketPath = "/ws"

// WebSocketConfig configures a WebSocketServer.
type WebSocketConfig struct {
	// Address is the listen address, e.g. ":7001".
	Address string

	// Path is the WebSocket upgrade path.
	Path string

	// MaxFrame is the read limit per message.
	MaxFrame int

	// Status, when set, adds its entries to the /healthz body.
	Status func() map[string]any

	// History, when set, is served under /frames and /frames/stream.
	History requestlog.SubscribableStore

	// TLS, when set, serves wss:// and https://.
	TLS *tls.Config
}

// WebSocketServer treats every WebSocket message as one frame. It also
// serves /metrics, /healthz and the frame history on the same listener.
type WebSocketServer struct {
	base
	config WebSocketConfig

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	conns    map[string]*ws.Conn
	wg       sync.WaitGroup
}

var _ Handler = (*WebSocketServer)(nil)

// NewWebSocketServer creates a WebSocket transport answering through r.
func NewWebSocketServer(cfg WebSocketConfig, r Responder, opts ...Option) (*WebSocketServer, error) {
	if r == nil {
		return nil, ErrNilResponder
	}
	if cfg.Path == "" {
		cfg.Path = DefaultWebSocketPath
	}
	if cfg.MaxFrame <= 0 {
		cfg.MaxFrame = DefaultMaxFrame
	}
	return &WebSocketServer{
		base:   newBase(requestlog.TransportWebSocket, r, opts),
		config: cfg,
		conns:  make(map[string]*ws.Conn),
	}, nil
}

// Name returns "websocket".
func (s *WebSocketServer) Name() string { return s.name }

// Addr returns the bound address once started, the configured one before.
func (s *WebSocketServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

// Path returns the upgrade path.
func (s *WebSocketServer) Path() string { return s.config.Path }

// Handler returns the HTTP handler with the upgrade, metrics, health and
// history routes.
func (s *WebSocketServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.serveWS)
	mux.HandleFunc("/healthz", s.serveHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Registry.Handler())
	}
	if s.config.History != nil {
		mux.HandleFunc("/frames", s.serveFrames)
		mux.HandleFunc("/frames/stream", s.serveFrameStream)
	}
	return mux
}

// Start listens and serves HTTP in the background.
func (s *WebSocketServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
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
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", "error", err)
		}
	}()

	s.log.Info("listening", "address", ln.Addr().String(), "path", s.config.Path, "tls", s.config.TLS != nil)
	return nil
}

// Stop shuts the HTTP server down and closes open WebSocket connections.
func (s *WebSocketServer) Stop(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	srv := s.server
	if srv == nil {
		s.mu.Unlock()
		return nil
	}
	s.server = nil
	s.listener = nil
	conns := make([]*ws.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	// Hijacked connections are not tracked by http.Server.Shutdown.
	for _, c := range conns {
		_ = c.Close(ws.StatusGoingAway, "server shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close()
		return err
	}
	return waitGroup(ctx, &s.wg, timeout)
}

func (s *WebSocketServer) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    ws.CompressionDisabled,
	})
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(int64(s.config.MaxFrame))

	connID := id.Conn(s.name)
	if !s.track(connID, conn) {
		return
	}

	defer func() {
		s.metrics.Connection(s.name, -1)
		s.log.Info("connection closed", "conn", connID)
		s.untrack(connID)
	}()

	s.metrics.Connection(s.name, +1)
	s.log.Info("connection opened", "conn", connID, "remote", r.RemoteAddr)

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if status := ws.CloseStatus(err); status != ws.StatusNormalClosure && status != ws.StatusGoingAway {
				s.log.Debug("read ended", "conn", connID, "error", err)
			}
			_ = conn.CloseNow()
			return
		}

		answer, ok := s.handle(connID, data)
		if !ok || len(answer) == 0 {
			continue
		}
		if err := conn.Write(ctx, ws.MessageBinary, answer); err != nil {
			s.log.Warn("write failed", "conn", connID, "error", err)
			_ = conn.CloseNow()
			return
		}
	}
}

// track registers conn so Stop can close it. It returns false, closing conn,
// when the server is already stopping.
func (s *WebSocketServer) track(connID string, conn *ws.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		_ = conn.Close(ws.StatusGoingAway, "server shutting down")
		return false
	}
	s.conns[connID] = conn
	s.wg.Add(1)
	return true
}

func (s *WebSocketServer) untrack(connID string) {
	s.mu.Lock()
	delete(s.conns, connID)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *WebSocketServer) serveHealth(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}

	s.mu.Lock()
	body := map[string]any{
		"status":      "ok",
		"connections": len(s.conns),
	}
	s.mu.Unlock()
	if s.config.Status != nil {
		for k, v := range s.config.Status() {
			body[k] = v
		}
	}

	httputil.WriteOK(w, body)
}
