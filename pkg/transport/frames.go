package transport

import (
	"context"
	"net/http"
	"strconv"

	ws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/getmockd/serialmock/internal/id"
	"github.com/getmockd/serialmock/pkg/httputil"
	"github.com/getmockd/serialmock/pkg/requestlog"
)

// FramesResponse is the body of GET /frames.
type FramesResponse struct {
	Frames []*requestlog.Entry `json:"frames"`
	Count  int                 `json:"count"`
	Total  int                 `json:"total"`
}

// serveFrames lists the frame history (GET) or clears it (DELETE).
//
// Query parameters: transport, conn, matched (true|false), limit, offset.
func (s *WebSocketServer) serveFrames(w http.ResponseWriter, r *http.Request) {
	if !httputil.AllowMethods(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	history := s.config.History

	if r.Method == http.MethodDelete {
		history.Clear()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	filter, err := parseFrameFilter(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	frames := history.List(filter)
	httputil.WriteOK(w, FramesResponse{
		Frames: frames,
		Count:  len(frames),
		Total:  history.Count(),
	})
}

func parseFrameFilter(r *http.Request) (*requestlog.Filter, error) {
	q := r.URL.Query()
	filter := &requestlog.Filter{
		Transport: q.Get("transport"),
		Conn:      q.Get("conn"),
	}

	if v := q.Get("matched"); v != "" {
		matched, err := strconv.ParseBool(v)
		if err != nil {
			return nil, Error("matched must be true or false")
		}
		filter.Matched = &matched
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, Error("limit must be a non-negative integer")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, Error("offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}

// serveFrameStream pushes every new history entry as a JSON text message
// until the client goes away or the server stops.
func (s *WebSocketServer) serveFrameStream(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    ws.CompressionDisabled,
	})
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	connID := id.Conn("stream")
	if !s.track(connID, conn) {
		return
	}
	defer s.untrack(connID)

	sub, unsubscribe := s.config.History.Subscribe()
	defer unsubscribe()

	// CloseRead discards client messages and cancels ctx once the peer closes.
	ctx := conn.CloseRead(r.Context())
	s.log.Debug("frame stream opened", "conn", connID, "remote", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			_ = conn.CloseNow()
			return
		case entry, ok := <-sub:
			if !ok {
				_ = conn.Close(ws.StatusNormalClosure, "")
				return
			}
			if err := writeEntry(ctx, conn, entry); err != nil {
				_ = conn.CloseNow()
				return
			}
		}
	}
}

func writeEntry(ctx context.Context, conn *ws.Conn, entry *requestlog.Entry) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, entry)
}
