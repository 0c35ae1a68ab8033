package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/whattodo/core/internal/infrastructure/logger"
)

// Event reports that files under the storage directory changed. Area names
// the storage area touched, or is empty when the change could not be tied to
// one (sqlite files, watcher errors).
type Event struct {
	Area string
}

// DefaultWatchDelay is how long a burst of file changes is coalesced before
// an event is sent.
const DefaultWatchDelay = 100 * time.Millisecond

// Watch streams change events for the storage directory base until ctx is
// cancelled. Events are coalesced per area over delay and dropped when the
// consumer is not keeping up; the next event triggers a full reload anyway.
func Watch(ctx context.Context, base string, delay time.Duration, log *logger.Logger) (<-chan Event, error) {
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("storage-watch")

	base = filepath.Clean(base)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	dirs, err := watchDirs(base)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	events := make(chan Event, 16)

	go func() {
		// The throttle timer may fire after the loop exits, so sends and the
		// final close share a lock.
		var sendMu sync.Mutex
		closed := false
		defer func() {
			sendMu.Lock()
			closed = true
			close(events)
			sendMu.Unlock()
		}()
		defer watcher.Close()

		send := func(ev Event) {
			sendMu.Lock()
			defer sendMu.Unlock()
			if closed {
				return
			}
			select {
			case events <- ev:
			default:
			}
		}

		throttle := newThrottle(delay)
		defer throttle.stop()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnw("Watcher error", "error", err)
				throttle.enqueue("", send)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}

				area, skip := areaForPath(base, evt.Name)
				if skip {
					continue
				}

				if evt.Op&fsnotify.Create == fsnotify.Create && filepath.Dir(evt.Name) == base {
					if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
						if err := watcher.Add(evt.Name); err != nil {
							log.Warnw("Failed to watch new area", "path", evt.Name, "error", err)
						}
					}
				}

				throttle.enqueue(area, send)
			}
		}
	}()

	return events, nil
}

// watchDirs returns base and its immediate subdirectories, one per diskv area.
func watchDirs(base string) ([]string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage directory: %w", err)
	}
	dirs := []string{base}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			dirs = append(dirs, filepath.Join(base, e.Name()))
		}
	}
	return dirs, nil
}

// areaForPath maps a changed path to its area. Hidden entries such as the
// diskv temp directory are skipped.
func areaForPath(base, path string) (area string, skip bool) {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == "." {
		return "", false
	}
	first := strings.Split(rel, string(os.PathSeparator))[0]
	if strings.HasPrefix(first, ".") {
		return "", true
	}
	if first == rel {
		// A file directly under base: the sqlite database or its journal, or
		// a newly created area directory.
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return first, false
		}
		return "", false
	}
	return first, false
}

type throttle struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	pending map[string]struct{}
}

func newThrottle(delay time.Duration) *throttle {
	if delay <= 0 {
		delay = DefaultWatchDelay
	}
	return &throttle{delay: delay, pending: map[string]struct{}{}}
}

func (t *throttle) enqueue(area string, send func(Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pending[area] = struct{}{}
	if t.timer == nil {
		t.timer = time.AfterFunc(t.delay, func() { t.flush(send) })
	}
}

func (t *throttle) flush(send func(Event)) {
	t.mu.Lock()
	pending := t.pending
	t.pending = map[string]struct{}{}
	t.timer = nil
	t.mu.Unlock()

	for area := range pending {
		send(Event{Area: area})
	}
}

func (t *throttle) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
