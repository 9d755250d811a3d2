package index

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"agentmail-search/internal/logging"
)

// ActivationWatcher watches one engine's active_schema pointer file and
// notifies subscribers when activation changes, so a long-lived searcher
// can pick up a newly activated schema without polling.
type ActivationWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	layout      Layout
	debounceDur time.Duration
	lastSeen    string
	notifyCh    chan string
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewActivationWatcher creates a watcher for layout's engine directory.
// notifyCh receives the newly active schema_hash after each settled change;
// sends are non-blocking and drop if the channel is full, so a slow
// consumer never stalls the watch loop.
func NewActivationWatcher(layout Layout, notifyCh chan string) (*ActivationWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &ActivationWatcher{
		watcher:     w,
		layout:      layout,
		debounceDur: 200 * time.Millisecond,
		notifyCh:    notifyCh,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching the engine directory. Non-blocking; the watch
// loop runs in a goroutine until Stop is called or ctx is cancelled.
func (w *ActivationWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := w.layout.engineDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.Get(logging.CategoryIndex).Warn("ActivationWatcher: failed to create engine dir %s: %v (continuing anyway)", dir, err)
	}
	if err := w.watcher.Add(dir); err != nil {
		logging.Get(logging.CategoryIndex).Warn("ActivationWatcher: initial watch failed (dir may not exist yet): %v", err)
	} else {
		logging.Index("ActivationWatcher: watching %s", dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the watch loop to exit.
func (w *ActivationWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryIndex).Error("ActivationWatcher: error closing watcher: %v", err)
	}
}

func (w *ActivationWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	pointerPath := w.layout.activationPointerPath()
	debounce := time.NewTimer(w.debounceDur)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != pointerPath {
				continue
			}
			if !pending {
				pending = true
				debounce.Reset(w.debounceDur)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryIndex).Error("ActivationWatcher error: %v", err)
		case <-debounce.C:
			if pending {
				pending = false
				w.checkAndNotify()
			}
		}
	}
}

func (w *ActivationWatcher) checkAndNotify() {
	schema, err := w.layout.ActiveSchema()
	if err != nil {
		logging.Get(logging.CategoryIndex).Warn("ActivationWatcher: failed to read active schema: %v", err)
		return
	}

	w.mu.Lock()
	changed := schema != w.lastSeen
	w.lastSeen = schema
	w.mu.Unlock()

	if !changed || schema == "" {
		return
	}
	select {
	case w.notifyCh <- schema:
	default:
	}
}

// LastSeen returns the last schema_hash observed by the watcher.
func (w *ActivationWatcher) LastSeen() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastSeen
}

// IsWatching reports whether the watch loop is currently running.
func (w *ActivationWatcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
