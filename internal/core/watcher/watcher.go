package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"apexintel/internal/engine/parser"
	"apexintel/internal/shared/observability"
	"apexintel/internal/shared/util"
)

// Watcher follows the workspace for Apex source changes and delivers
// debounced path batches. Editors drive most updates through the document
// lifecycle; the watcher covers changes made outside the editor, such as
// deploy tooling rewriting classes on disk.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	exclude   []glob.Glob
	onChange  func([]string)

	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer
}

func New(debounce time.Duration, excludePatterns []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}

	exclude, err := util.CompileGlobs(excludePatterns)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsw,
		debounce:  debounce,
		exclude:   exclude,
		onChange:  onChange,
		pending:   make(map[string]time.Time),
	}, nil
}

// Watch registers the roots recursively and starts the event loop.
func (w *Watcher) Watch(roots []string) error {
	for _, root := range roots {
		if err := w.watchRecursive(root); err != nil {
			return err
		}
	}
	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if w.excluded(path + "/") {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.excluded(event.Name + "/") {
						if err := w.watchRecursive(event.Name); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.scheduleExisting(event.Name)
						}
					}
					continue
				}
			}

			if !parser.IsApexPath(event.Name) || w.excluded(event.Name) {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = time.Now()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	if len(paths) > 0 {
		w.onChange(paths)
	}
}

func (w *Watcher) excluded(path string) bool {
	if util.MatchRel(w.exclude, path) {
		return true
	}
	// Bare-name patterns like "*.bak" still apply to deeply nested files.
	return util.MatchRel(w.exclude, filepath.Base(path))
}

func (w *Watcher) scheduleExisting(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if parser.IsApexPath(path) && !w.excluded(path) {
			w.scheduleChange(path)
		}
		return nil
	})
}

func (w *Watcher) Close() error {
	if w.timer != nil {
		w.timer.Stop()
	}
	return w.fsWatcher.Close()
}
