// Package watch polls a single file and reports settled changes.
//
// Editors often write a file in several steps. A change is reported only
// after the file has stayed unchanged for the debounce period, so one save
// produces one event.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"
)

// Defaults used when New is given zero durations.
const (
	DefaultInterval = 500 * time.Millisecond
	DefaultDebounce = 250 * time.Millisecond
)

// Event types.
const (
	Modified = "modified"
	Created  = "created"
	Deleted  = "deleted"
)

// Event represents a settled change of the watched file.
type Event struct {
	Path    string
	Type    string
	ModTime time.Time
	Error   error
}

type snapshot struct {
	exists  bool
	modTime time.Time
	size    int64
}

func (s snapshot) equal(o snapshot) bool {
	return s.exists == o.exists && s.size == o.size && s.modTime.Equal(o.modTime)
}

// Watcher polls one path.
type Watcher struct {
	path     string
	interval time.Duration
	debounce time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a watcher for path.
func New(path string, interval, debounce time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if debounce < 0 {
		debounce = 0
	}
	return &Watcher{path: path, interval: interval, debounce: debounce}
}

// Path returns the watched path.
func (w *Watcher) Path() string { return w.path }

// Start begins polling. The returned channel is closed when ctx is done or
// Stop is called. Calling Start on a running watcher returns nil.
func (w *Watcher) Start(ctx context.Context) <-chan Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true

	events := make(chan Event, 4)
	base, err := stat(w.path)
	go w.loop(ctx, base, err, events, w.stopCh, w.doneCh)
	return events
}

// Stop stops the watcher and waits for the poll loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.running = false
	doneCh := w.doneCh
	w.mu.Unlock()

	<-doneCh
}

func (w *Watcher) loop(ctx context.Context, last snapshot, statErr error, events chan<- Event, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	defer close(events)
	defer func() {
		w.mu.Lock()
		if w.doneCh == doneCh {
			w.running = false
		}
		w.mu.Unlock()
	}()

	send := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-stopCh:
			return false
		case <-ctx.Done():
			return false
		}
	}

	if statErr != nil && !send(Event{Path: w.path, Error: statErr}) {
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// reported is the state last announced; pending holds a change that has
	// not settled yet.
	reported := last
	var (
		pending   bool
		changedAt time.Time
	)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cur, err := stat(w.path)
			if err != nil {
				if !send(Event{Path: w.path, Error: err}) {
					return
				}
				continue
			}

			if !cur.equal(last) {
				last = cur
				pending = true
				changedAt = now
				continue
			}
			if !pending || now.Sub(changedAt) < w.debounce {
				continue
			}

			pending = false
			if cur.equal(reported) {
				continue
			}
			ev := Event{Path: w.path, Type: changeType(reported, cur), ModTime: cur.modTime}
			reported = cur
			if !send(ev) {
				return
			}
		}
	}
}

func changeType(before, after snapshot) string {
	switch {
	case !after.exists:
		return Deleted
	case !before.exists:
		return Created
	default:
		return Modified
	}
}

func stat(path string) (snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return snapshot{}, nil
		}
		return snapshot{}, err
	}
	return snapshot{exists: true, modTime: info.ModTime(), size: info.Size()}, nil
}
