package cli

import (
	"context"
	cryptotls "crypto/tls"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/getmockd/serialmock/pkg/chaos"
	"github.com/getmockd/serialmock/pkg/config"
	"github.com/getmockd/serialmock/pkg/logging"
	"github.com/getmockd/serialmock/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(repeatFile string) *config.Config {
	cfg := config.Default()
	cfg.RepeatFile = repeatFile
	cfg.TCP.Address = "127.0.0.1:0"
	cfg.TCP.GapTolerance = config.Duration(10 * time.Millisecond)
	cfg.ShutdownTimeout = config.Duration(2 * time.Second)
	return cfg
}

// startServe runs serve in the background and returns the daemon once its
// transports listen.
func startServe(t *testing.T, cfg *config.Config) (*daemon, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan *daemon, 1)
	done := make(chan error, 1)

	go func() {
		done <- serve(ctx, cfg, logging.Nop(), func(d *daemon) { ready <- d })
	}()

	select {
	case d := <-ready:
		return d, func() {
			cancel()
			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Error("serve did not return")
			}
		}
	case err := <-done:
		cancel()
		t.Fatalf("serve failed: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("serve did not become ready")
	}
	return nil, nil
}

func exchange(t *testing.T, addr string, frame []byte) []byte {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(frame)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestServe_AnswersOverTCP(t *testing.T) {
	path := writeFile(t, t.TempDir(), "meter.txt", meterFile)
	d, stop := startServe(t, testConfig(path))
	defer stop()

	addr := d.Addrs()["tcp"]
	require.NotEmpty(t, addr)

	got := exchange(t, addr, []byte{0x10, 0x58, 0xFC, 0x5B, 0x16})
	assert.Equal(t, []byte{0x68, 0x0D, 0x0D, 0x68, 0x08, 0xFC, 0x00, 0x04, 0xA0, 0x00, 0xB1, 0x00, 0xA0, 0x00, 0x10, 0x20, 0x01, 0x92, 0x16}, got)

	st := d.repeater.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, 1, st.Pairs)
}

func TestServe_WatchReloads(t *testing.T) {
	path := writeFile(t, t.TempDir(), "device.txt", "0x01\n0xAA\n")

	cfg := testConfig(path)
	cfg.Watch = true
	cfg.WatchInterval = config.Duration(10 * time.Millisecond)
	cfg.Debounce = config.Duration(20 * time.Millisecond)

	d, stop := startServe(t, cfg)
	defer stop()
	addr := d.Addrs()["tcp"]

	assert.Equal(t, []byte{0xAA}, exchange(t, addr, []byte{0x01}))

	// A broken edit is rejected and the old pairs keep answering.
	require.NoError(t, os.WriteFile(path, []byte("0x01\n0xBB\n0x02\n"), 0o644))
	require.Eventually(t, func() bool { return d.repeater.Stats().Failures == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []byte{0xAA}, exchange(t, addr, []byte{0x01}))

	require.NoError(t, os.WriteFile(path, []byte("0x01\n0xBB\n0x02 0x02\n0xCC\n"), 0o644))
	require.Eventually(t, func() bool { return d.repeater.Stats().Reloads == 2 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []byte{0xBB}, exchange(t, addr, []byte{0x01}))
	assert.Equal(t, []byte{0xCC}, exchange(t, addr, []byte{0x02, 0x02}))
	assert.Equal(t, 2, d.repeater.Stats().Pairs)
}

func TestServe_AllTransports(t *testing.T) {
	path := writeFile(t, t.TempDir(), "meter.txt", meterFile)

	cfg := testConfig(path)
	cfg.WebSocket.Enabled = true
	cfg.WebSocket.Address = "127.0.0.1:0"
	cfg.MQTT.Enabled = true
	cfg.MQTT.Address = "127.0.0.1:0"
	cfg.QUIC.Enabled = true
	cfg.QUIC.Address = "127.0.0.1:0"
	cfg.Seed = 42

	d, stop := startServe(t, cfg)
	defer stop()

	addrs := d.Addrs()
	assert.Len(t, addrs, 4)
	assert.Equal(t, []string{"quic"}, d.tlsTransports())
	for name, addr := range addrs {
		_, port, err := net.SplitHostPort(addr)
		require.NoError(t, err, name)
		assert.NotEqual(t, "0", port, "%s resolved its port", name)
	}
}

func TestServe_FrameHistory(t *testing.T) {
	path := writeFile(t, t.TempDir(), "meter.txt", meterFile)

	cfg := testConfig(path)
	cfg.WebSocket.Enabled = true
	cfg.WebSocket.Address = "127.0.0.1:0"

	d, stop := startServe(t, cfg)
	defer stop()

	exchange(t, d.Addrs()["tcp"], []byte{0x10, 0x58, 0xFC, 0x5B, 0x16})
	require.Eventually(t, func() bool { return d.history.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + d.Addrs()["websocket"] + "/frames?transport=tcp")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out transport.FramesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "10 58 FC 5B 16", out.Frames[0].Frame)
	assert.True(t, out.Frames[0].Matched)
}

func TestServe_HistoryDisabled(t *testing.T) {
	path := writeFile(t, t.TempDir(), "meter.txt", meterFile)
	cfg := testConfig(path)
	cfg.History = 0

	d, stop := startServe(t, cfg)
	defer stop()
	assert.Nil(t, d.history)
}

func TestServe_ChaosDropsAnswers(t *testing.T) {
	path := writeFile(t, t.TempDir(), "meter.txt", meterFile)
	cfg := testConfig(path)
	cfg.WebSocket.Enabled = true
	cfg.WebSocket.Address = "127.0.0.1:0"
	cfg.Chaos.Enabled = true
	cfg.Chaos.Profile = "offline"

	d, stop := startServe(t, cfg)
	defer stop()
	require.NotNil(t, d.chaos)

	conn, err := net.Dial("tcp", d.Addrs()["tcp"])
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte{0x10, 0x58, 0xFC, 0x5B, 0x16})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, err = conn.Read(make([]byte, 32))
	require.Error(t, err, "the answer is dropped")

	require.Eventually(t, func() bool {
		return d.chaos.Stats().ByType[chaos.FaultDrop] == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(1), d.repeater.Stats().Hits)

	resp, err := http.Get("http://" + d.Addrs()["websocket"] + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Contains(t, health, "chaos")
	assert.Contains(t, health, "repeater")
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "serialmock.log")
	log, closeLog, err := newLogger(config.LogConfig{Level: "debug", Format: "text", File: path}, os.Stderr)
	require.NoError(t, err)
	log.Debug("frame", logging.Frame("rx", []byte{0x01, 0xFF}))
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rx":"01 FF"`)

	_, _, err = newLogger(config.LogConfig{File: filepath.Join(t.TempDir(), "missing", "x.log")}, os.Stderr)
	assert.Error(t, err)
}

func TestServe_TLS(t *testing.T) {
	path := writeFile(t, t.TempDir(), "meter.txt", meterFile)
	cfg := testConfig(path)
	cfg.TCP.TLS.Enabled = true

	d, stop := startServe(t, cfg)
	defer stop()
	assert.Equal(t, []string{"tcp"}, d.tlsTransports())

	conn, err := cryptotls.Dial("tcp", d.Addrs()["tcp"], &cryptotls.Config{InsecureSkipVerify: true, MinVersion: cryptotls.VersionTLS12}) //nolint:gosec
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{0x10, 0x58, 0xFC, 0x5B, 0x16})
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 19)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, byte(0x92), buf[17])
}
