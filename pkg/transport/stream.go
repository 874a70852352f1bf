package transport

import (
	"errors"
	"io"
	"net"
	"time"
)

// writeTimeout bounds writing one answer or history entry.
const writeTimeout = 5 * time.Second

// stream is a byte stream with deadlines. TCP connections, QUIC streams and
// pseudo-terminals all qualify.
type stream interface {
	io.ReadWriter
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// serveStream cuts rw into frames and answers each one. A frame ends when no
// byte arrives for gap or when it reaches maxFrame bytes. It returns when rw
// fails or reaches EOF, answering any bytes still buffered first.
func (b *base) serveStream(connID string, rw stream, gap time.Duration, maxFrame int) {
	buf := make([]byte, 4096)
	var frame []byte

	for {
		if len(frame) > 0 {
			_ = rw.SetReadDeadline(time.Now().Add(gap))
		} else {
			_ = rw.SetReadDeadline(time.Time{})
		}

		n, err := rw.Read(buf)
		if n > 0 {
			frame = append(frame, buf[:n]...)
			if len(frame) >= maxFrame {
				if !b.flush(connID, rw, frame) {
					return
				}
				frame = nil
			}
		}
		if err == nil {
			continue
		}

		if isTimeout(err) {
			if !b.flush(connID, rw, frame) {
				return
			}
			frame = nil
			continue
		}

		if len(frame) > 0 {
			b.flush(connID, rw, frame)
		}
		return
	}
}

// flush answers one frame. It returns false if the stream is unusable.
func (b *base) flush(connID string, rw stream, frame []byte) bool {
	if len(frame) == 0 {
		return true
	}
	answer, ok := b.handle(connID, frame)
	if !ok || len(answer) == 0 {
		return true
	}
	_ = rw.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := rw.Write(answer); err != nil {
		b.log.Warn("write failed", "conn", connID, "error", err)
		return false
	}
	return true
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
