// Package watcher feeds files from watched directories into the ingestion
// pipeline via fsnotify, with per-file debouncing.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Config describes what to watch.
type Config struct {
	// Roots are the directories to watch. Missing directories are created.
	Roots []string
	// Extensions filters which files trigger callbacks (empty = all).
	Extensions []string
	// Recursive includes subdirectories, present and future.
	Recursive bool
	// Debounce is how long a file must be quiet before it is ingested.
	Debounce time.Duration
}

// Watcher invokes OnIngest for created/modified files and OnRemove for
// deleted ones. Rapid write bursts collapse into a single OnIngest call.
type Watcher struct {
	cfg      Config
	onIngest func(path string)
	onRemove func(path string)
	logger   *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	pending  map[string]*time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher over cfg.Roots.
func New(cfg Config, onIngest, onRemove func(path string), logger *zap.Logger) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		cfg:      cfg,
		onIngest: onIngest,
		onRemove: onRemove,
		logger:   logger,
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
}

// Start begins watching. It returns once the watch is established; events are
// handled on a background goroutine until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	for _, root := range w.cfg.Roots {
		if err := w.watchTreeLocked(root); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			w.mu.Unlock()
			return err
		}
	}
	w.started = true
	w.mu.Unlock()

	w.logger.Info("watching directories",
		zap.Strings("roots", w.cfg.Roots),
		zap.Strings("extensions", w.cfg.Extensions),
		zap.Bool("recursive", w.cfg.Recursive))

	go w.loop(ctx, fsw)
	return nil
}

// loop holds its own fsnotify reference; Stop nils w.fsw concurrently and the
// closed channels are what signal shutdown here.
func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watch error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.newDirectory(path)
			return
		}
		if w.matches(path) {
			w.schedule(path)
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancel(path)
		if w.matches(path) && w.onRemove != nil {
			w.onRemove(path)
		}
	}
}

// newDirectory extends the watch to a directory created after Start, then
// ingests any files already inside it (they may predate the watch).
func (w *Watcher) newDirectory(dir string) {
	if !w.cfg.Recursive {
		return
	}
	w.mu.Lock()
	if w.fsw != nil {
		if err := w.watchTreeLocked(dir); err != nil {
			w.logger.Warn("watch new directory", zap.String("path", dir), zap.Error(err))
		}
	}
	w.mu.Unlock()
	w.syncDirectory(dir)
}

// schedule (re)arms the debounce timer for a path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if w.onIngest != nil {
			w.onIngest(path)
		}
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) matches(path string) bool {
	if len(w.cfg.Extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range w.cfg.Extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// watchTreeLocked adds root (and its subdirectories when recursive) to the
// fsnotify watch. Missing roots are created so a fresh deployment works.
func (w *Watcher) watchTreeLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	if !w.cfg.Recursive {
		return w.fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// SyncExistingFiles ingests every matching file already present under the
// watched roots. Call after Start to pick up files that predate the watch.
func (w *Watcher) SyncExistingFiles() {
	for _, root := range w.cfg.Roots {
		w.syncDirectory(root)
	}
}

func (w *Watcher) syncDirectory(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if w.matches(path) && w.onIngest != nil {
			w.onIngest(path)
		}
		return nil
	})
}

// Stop halts watching and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
