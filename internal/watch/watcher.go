// Package watch re-runs selection when inspectable files change.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"filemarker/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long a path must stay quiet before it is reported.
	Debounce time.Duration
	// Ignore lists directory base names (glob patterns) that are not watched.
	Ignore []string
	// Filter reports whether a changed file is of interest. Nil accepts all.
	Filter func(path string) bool
	// OnChange receives each settled batch of changed files, sorted.
	OnChange func(ctx context.Context, files []string)
}

// Stats tracks watcher activity.
type Stats struct {
	Events        int
	Batches       int
	Errors        int
	WatchedDirs   int
	LastEventTime time.Time
	LastEventPath string
}

// Watcher watches a directory tree and batches changes to interesting files.
type Watcher struct {
	mu      sync.RWMutex
	watcher *fsnotify.Watcher
	root    string
	opts    Options
	pending map[string]time.Time
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	stats   Stats
}

// New creates a Watcher rooted at root.
func New(root string, opts Options) (*Watcher, error) {
	if opts.OnChange == nil {
		return nil, errors.New("watch: OnChange is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher: fw,
		root:    root,
		opts:    opts,
		pending: make(map[string]time.Time),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start registers the directory tree and begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		w.watcher.Close()
		return err
	}
	logging.Watch("Watching %s (%d dirs, debounce %s)", w.root, w.Stats().WatchedDirs, w.opts.Debounce)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
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
		logging.WatchError("Error closing watcher: %v", err)
	}
	logging.Watch("Watcher stopped")
}

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching reports whether the event loop is running.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Watcher) ignored(name string) bool {
	for _, pattern := range w.opts.Ignore {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			logging.WatchError("Failed to watch %s: %v", path, err)
			return nil
		}
		w.mu.Lock()
		w.stats.WatchedDirs++
		w.mu.Unlock()
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.opts.Debounce / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("Context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("Watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// removed or renamed away; nothing left to inspect
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) && !w.ignored(filepath.Base(event.Name)) {
			if err := w.addTree(event.Name); err != nil {
				logging.WatchError("Failed to watch new dir %s: %v", event.Name, err)
			}
		}
		return
	}
	if w.opts.Filter != nil && !w.opts.Filter(event.Name) {
		return
	}

	logging.WatchDebug("%s %s", event.Op, event.Name)
	w.mu.Lock()
	now := time.Now()
	w.pending[event.Name] = now
	w.stats.Events++
	w.stats.LastEventTime = now
	w.stats.LastEventPath = event.Name
	w.mu.Unlock()
}

// flush reports the paths that have settled past the debounce window.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.opts.Debounce {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	if len(settled) > 0 {
		w.stats.Batches++
	}
	w.mu.Unlock()

	if len(settled) == 0 {
		return
	}
	sort.Strings(settled)
	logging.Watch("%d files changed", len(settled))
	w.opts.OnChange(ctx, settled)
}
