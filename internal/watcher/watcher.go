// Package watcher is a best-effort local file-event source. It never
// drives a sync action directly — it only makes the sync loop's next poll
// happen sooner, and that poll still re-derives the action from the
// three-way diff. Real-time push is explicitly out of scope; this is an
// optimization over the inter-cycle sleep, not a replacement for polling.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

const (
	defaultIgnoreTimeout   = time.Second
	defaultCleanupInterval = 15 * time.Second
	eventBufferSize        = 256
	defaultDebounceTimeout = 50 * time.Millisecond
	pollInterval           = 250 * time.Millisecond
)

// FilterFunc reports whether an event for path should be dropped before
// debouncing (used to filter out ignored-file noise).
type FilterFunc func(path string) bool

// Watcher emits a debounced stream of changed paths under a root directory.
type Watcher struct {
	root            string
	debounceTimeout time.Duration
	cleanupInterval time.Duration
	filter          FilterFunc

	rawEvents chan notify.EventInfo
	out       chan string
	usingOS   bool

	ignoreMu sync.Mutex
	ignore   map[string]time.Time

	debounceMu  sync.Mutex
	pendingPath map[string]struct{}
	eventTimers map[string]*time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a Watcher rooted at root. Call Start to begin emitting.
func New(root string, filter FilterFunc) *Watcher {
	return &Watcher{
		root:            root,
		debounceTimeout: defaultDebounceTimeout,
		cleanupInterval: defaultCleanupInterval,
		filter:          filter,
		ignore:          make(map[string]time.Time),
		pendingPath:     make(map[string]struct{}),
		eventTimers:     make(map[string]*time.Timer),
		done:            make(chan struct{}),
	}
}

// Start begins watching, preferring the OS notification backend and
// falling back to polling if the recursive watch can't be established.
func (w *Watcher) Start(ctx context.Context) error {
	w.rawEvents = make(chan notify.EventInfo, eventBufferSize)
	w.out = make(chan string, eventBufferSize)

	recursivePath := w.root + "/..."
	if err := notify.Watch(recursivePath, w.rawEvents, notify.Write, notify.Create, notify.Remove); err != nil {
		if fallbackErr := notify.Watch(w.root, w.rawEvents, notify.Write, notify.Create, notify.Remove); fallbackErr != nil {
			slog.Warn("watcher: notify backend unavailable, polling instead", "dir", w.root, "error", err)
			w.wg.Add(1)
			go w.poll(ctx)
		} else {
			w.usingOS = true
			slog.Warn("watcher: recursive watch failed, using non-recursive watch", "dir", w.root, "error", err)
		}
	} else {
		w.usingOS = true
	}

	w.wg.Add(1)
	go w.filterAndDebounce(ctx)

	w.wg.Add(1)
	go w.cleanupIgnoreList(ctx)

	return nil
}

// Stop halts all watcher goroutines and closes the Changes channel.
func (w *Watcher) Stop() {
	close(w.done)
	if w.usingOS && w.rawEvents != nil {
		notify.Stop(w.rawEvents)
	}
	w.wg.Wait()
}

// Changes returns the channel of debounced, relative-to-nothing absolute
// paths that changed. Each path may arrive more than once across the
// watcher's lifetime; it is a hint, not a guarantee of exactly-once delivery.
func (w *Watcher) Changes() <-chan string {
	return w.out
}

// IgnoreOnce suppresses the next event for path for the default timeout,
// used by the executor to avoid re-triggering on its own writes.
func (w *Watcher) IgnoreOnce(path string) {
	w.IgnoreOnceFor(path, defaultIgnoreTimeout)
}

// IgnoreOnceFor suppresses the next event for path for the given duration.
func (w *Watcher) IgnoreOnceFor(path string, timeout time.Duration) {
	w.ignoreMu.Lock()
	defer w.ignoreMu.Unlock()
	w.ignore[path] = time.Now().Add(timeout)
}

func (w *Watcher) consumeIgnore(path string) bool {
	w.ignoreMu.Lock()
	defer w.ignoreMu.Unlock()

	expiry, ok := w.ignore[path]
	if !ok {
		return false
	}
	delete(w.ignore, path)
	return time.Now().Before(expiry)
}

type pollSig struct {
	modTime int64
	size    int64
}

func (w *Watcher) poll(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	snapshot := make(map[string]pollSig)
	scan := func() {
		_ = filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			sig := pollSig{modTime: info.ModTime().UnixNano(), size: info.Size()}
			if prev, ok := snapshot[path]; !ok || prev != sig {
				snapshot[path] = sig
				select {
				case w.rawEvents <- notify.EventInfo(pollEvent{path: path}):
				default:
				}
			}
			return nil
		})
	}
	scan()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			scan()
		}
	}
}

type pollEvent struct{ path string }

func (e pollEvent) Event() notify.Event { return notify.Write }
func (e pollEvent) Path() string        { return e.path }
func (e pollEvent) Sys() interface{}    { return nil }

func (w *Watcher) filterAndDebounce(ctx context.Context) {
	defer func() {
		w.debounceMu.Lock()
		for path, timer := range w.eventTimers {
			timer.Stop()
			if _, ok := w.pendingPath[path]; ok {
				select {
				case w.out <- path:
				default:
				}
			}
		}
		w.debounceMu.Unlock()
		w.wg.Done()
		close(w.out)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.rawEvents:
			if !ok {
				return
			}
			path := event.Path()
			if w.filter != nil && w.filter(path) {
				continue
			}
			w.debounce(path)
		}
	}
}

func (w *Watcher) debounce(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.eventTimers[path]; ok {
		timer.Stop()
	}
	w.pendingPath[path] = struct{}{}
	w.eventTimers[path] = time.AfterFunc(w.debounceTimeout, func() { w.flush(path) })
}

func (w *Watcher) flush(path string) {
	w.debounceMu.Lock()
	if _, ok := w.pendingPath[path]; !ok {
		w.debounceMu.Unlock()
		return
	}
	delete(w.pendingPath, path)
	delete(w.eventTimers, path)
	w.debounceMu.Unlock()

	if w.consumeIgnore(path) {
		return
	}

	select {
	case w.out <- path:
	default:
		slog.Warn("watcher: dropped event, channel full", "path", path)
	}
}

func (w *Watcher) cleanupIgnoreList(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			w.ignoreMu.Lock()
			now := time.Now()
			for path, expiry := range w.ignore {
				if now.After(expiry) {
					delete(w.ignore, path)
				}
			}
			w.ignoreMu.Unlock()
		}
	}
}
