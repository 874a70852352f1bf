package transport

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/serialmock/internal/matching"
	"github.com/getmockd/serialmock/pkg/requestlog"
)

// explainingResponder answers like echoUpper and explains misses.
type explainingResponder struct{}

func (explainingResponder) Respond(frame []byte) ([]byte, bool) { return echoUpper(frame) }

func (explainingResponder) Explain([]byte) []matching.NearMiss {
	return []matching.NearMiss{{Index: 0, Ask: "0x01 $1", MatchPercentage: 50, Reason: "byte 0 expected 0x01, got 0x02"}}
}

func TestHandle_RecordsFrames(t *testing.T) {
	history := requestlog.NewMemoryStore(10)
	b := newBase("tcp", explainingResponder{}, []Option{WithFrameLog(history)})

	_, ok := b.handle("tcp-1", []byte{0x01, 0x42})
	require.True(t, ok)
	_, ok = b.handle("tcp-1", []byte{0x02, 0x42})
	require.False(t, ok)

	entries := history.List(nil)
	require.Len(t, entries, 2)

	miss, hit := entries[0], entries[1]
	assert.True(t, hit.Matched)
	assert.Equal(t, "01 42", hit.Frame)
	assert.Equal(t, "AA 42", hit.Answer)
	assert.Equal(t, 2, hit.FrameSize)
	assert.Equal(t, "tcp", hit.Transport)
	assert.Equal(t, "tcp-1", hit.Conn)
	assert.Empty(t, hit.NearMisses)

	assert.False(t, miss.Matched)
	assert.Empty(t, miss.Answer)
	require.Len(t, miss.NearMisses, 1)
	assert.Equal(t, 1, miss.NearMisses[0].Pair)
	assert.Equal(t, "0x01 $1", miss.NearMisses[0].Ask)
}

func TestHandle_PlainResponderHasNoNearMisses(t *testing.T) {
	history := requestlog.NewMemoryStore(10)
	b := newBase("mqtt", echoUpper, []Option{WithFrameLog(history)})

	_, ok := b.handle("client", []byte{0x09})
	require.False(t, ok)
	entries := history.List(nil)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].NearMisses)
}

func TestWebSocketServer_Frames(t *testing.T) {
	history := requestlog.NewMemoryStore(10)
	s := startWS(t, echoUpper, WebSocketConfig{History: history}, WithFrameLog(history))

	tcp := startTCP(t, echoUpper, 10*time.Millisecond, WithFrameLog(history))
	conn, err := net.Dial("tcp", tcp.Addr())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte{0x01, 0x05})
	require.NoError(t, err)
	readAnswer(t, conn, 2)
	_, err = conn.Write([]byte{0x07})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return history.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	get := func(query string) FramesResponse {
		t.Helper()
		resp, err := http.Get("http://" + s.Addr() + "/frames" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out FramesResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	all := get("")
	assert.Equal(t, 2, all.Count)
	assert.Equal(t, 2, all.Total)
	assert.Equal(t, "07", all.Frames[0].Frame)

	misses := get("?matched=false")
	require.Equal(t, 1, misses.Count)
	assert.Equal(t, "07", misses.Frames[0].Frame)

	assert.Equal(t, 1, get("?transport=tcp&limit=1").Count)
	assert.Equal(t, 0, get("?transport=mqtt").Count)

	resp, err := http.Get("http://" + s.Addr() + "/frames?matched=maybe")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, "http://"+s.Addr()+"/frames", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, history.Count())

	resp, err = http.Post("http://"+s.Addr()+"/frames", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebSocketServer_FramesDisabled(t *testing.T) {
	s := startWS(t, echoUpper, WebSocketConfig{})

	resp, err := http.Get("http://" + s.Addr() + "/frames")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketServer_FrameStream(t *testing.T) {
	history := requestlog.NewMemoryStore(10)
	s := startWS(t, echoUpper, WebSocketConfig{History: history}, WithFrameLog(history))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, _, err := ws.Dial(ctx, "ws://"+s.Addr()+"/frames/stream", nil)
	require.NoError(t, err)
	defer stream.CloseNow()

	frames, _, err := ws.Dial(ctx, "ws://"+s.Addr()+s.Path(), nil)
	require.NoError(t, err)
	defer frames.CloseNow()

	// the subscription is registered after the upgrade completes
	require.Eventually(t, func() bool { return history.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, frames.Write(ctx, ws.MessageBinary, []byte{0x01, 0x09}))
	_, _, err = frames.Read(ctx)
	require.NoError(t, err)

	var got requestlog.Entry
	require.NoError(t, wsjson.Read(ctx, stream, &got))

	assert.Equal(t, "websocket", got.Transport)
	assert.Equal(t, "01 09", got.Frame)
	assert.Equal(t, "AA 09", got.Answer)
	assert.True(t, got.Matched)

	require.NoError(t, s.Stop(context.Background(), 2*time.Second))
	var next requestlog.Entry
	assert.Error(t, wsjson.Read(ctx, stream, &next))
}
