package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitEvent(t *testing.T, ch <-chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertQuiet(t *testing.T, ch <-chan Event, d time.Duration) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(d):
	}
}

func TestWatcher_Modified(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocol.txt")
	require.NoError(t, os.WriteFile(path, []byte("0x01\n0x02\n"), 0o644))

	w := New(path, 10*time.Millisecond, 50*time.Millisecond)
	events := w.Start(context.Background())
	defer w.Stop()

	assertQuiet(t, events, 100*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("0x01\n0x03 0x04\n"), 0o644))
	ev := waitEvent(t, events, 2*time.Second)
	assert.Equal(t, Modified, ev.Type)
	assert.Equal(t, path, ev.Path)
	assert.NoError(t, ev.Error)
	assert.False(t, ev.ModTime.IsZero())
}

func TestWatcher_DebounceCollapsesBurst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocol.txt")
	require.NoError(t, os.WriteFile(path, []byte("0x01\n"), 0o644))

	w := New(path, 10*time.Millisecond, 150*time.Millisecond)
	events := w.Start(context.Background())
	defer w.Stop()

	content := "0x01\n"
	for i := 0; i < 4; i++ {
		content += "0x02\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	ev := waitEvent(t, events, 2*time.Second)
	assert.Equal(t, Modified, ev.Type)
	assertQuiet(t, events, 300*time.Millisecond)
}

func TestWatcher_CreatedAndDeleted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.txt")

	w := New(path, 10*time.Millisecond, 20*time.Millisecond)
	events := w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("PING\nPONG\n"), 0o644))
	assert.Equal(t, Created, waitEvent(t, events, 2*time.Second).Type)

	require.NoError(t, os.Remove(path))
	assert.Equal(t, Deleted, waitEvent(t, events, 2*time.Second).Type)
}

func TestWatcher_StopClosesChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.txt")
	w := New(path, 10*time.Millisecond, 0)
	events := w.Start(context.Background())
	require.NotNil(t, events)
	assert.Nil(t, w.Start(context.Background()), "second Start on a running watcher")

	w.Stop()
	_, ok := <-events
	assert.False(t, ok)

	w.Stop()

	events = w.Start(context.Background())
	require.NotNil(t, events, "restart after Stop")
	w.Stop()
}

func TestWatcher_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := New(filepath.Join(t.TempDir(), "p.txt"), 10*time.Millisecond, 0)
	events := w.Start(ctx)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestNew_Defaults(t *testing.T) {
	w := New("x", 0, -1)
	assert.Equal(t, DefaultInterval, w.interval)
	assert.Equal(t, time.Duration(0), w.debounce)
	assert.Equal(t, "x", w.Path())
}
