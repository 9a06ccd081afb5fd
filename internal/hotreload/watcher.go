package hotreload

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports changes to a set of files. It watches their parent
// directories so files replaced by rename (as most editors and config
// management tools do) keep being observed.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	files   map[string]struct{}
	dirs    map[string]struct{}
	events  chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex

	isWatching bool
	stopped    bool
}

// Event represents a file system event
type Event struct {
	Path string
	Op   fsnotify.Op
}

// NewWatcher creates a new file watcher
func NewWatcher(logger *zap.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		watcher: fsWatcher,
		logger:  logger,
		files:   make(map[string]struct{}),
		dirs:    make(map[string]struct{}),
		events:  make(chan Event, 100),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Add starts observing a file
func (w *Watcher) Add(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	dir := filepath.Dir(absPath)
	if _, ok := w.dirs[dir]; !ok {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.dirs[dir] = struct{}{}
	}

	w.files[absPath] = struct{}{}
	w.logger.Debug("Added watch path", zap.String("path", absPath))
	return nil
}

// Files returns the observed files
func (w *Watcher) Files() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	files := make([]string, 0, len(w.files))
	for f := range w.files {
		files = append(files, f)
	}
	return files
}

// Events returns the channel for file system events
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins watching for file system events
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.isWatching || w.stopped {
		w.mu.Unlock()
		return
	}
	w.isWatching = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.watch()
	w.logger.Info("File watcher started")
}

// Stop stops watching and releases the underlying watcher. It is safe to
// call whether or not Start was called.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.isWatching = false
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
	close(w.events)
	if err := w.watcher.Close(); err != nil {
		w.logger.Error("Failed to close file watcher", zap.Error(err))
	}
	w.logger.Info("File watcher stopped")
}

// watch is the main event loop for the watcher
func (w *Watcher) watch() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !w.relevant(event) {
				continue
			}

			w.logger.Debug("File system event",
				zap.String("path", event.Name),
				zap.String("operation", event.Op.String()),
			)

			select {
			case w.events <- Event{Path: event.Name, Op: event.Op}:
			case <-w.ctx.Done():
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", zap.Error(err))
		}
	}
}

// relevant keeps content changes to observed files and drops editor
// temporaries and permission-only changes
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}

	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".tmp") {
		return false
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.files[filepath.Clean(event.Name)]
	return ok
}

// IsWatching returns whether the watcher is currently active
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isWatching
}
