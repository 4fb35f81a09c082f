package indexing

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/slicegraph/slicegraph/internal/config"
)

const defaultWatchDebounce = 500 * time.Millisecond

// Watcher triggers an incremental IndexRepo run after a burst of file
// system changes settles, grounded on the teacher's FileWatcher/
// eventDebouncer pair (internal/indexing/watcher.go): one fsnotify watcher
// per repo root, directories added recursively up front and as they
// appear, events coalesced behind a single reset-on-activity timer rather
// than reindexing per event.
type Watcher struct {
	fs       *fsnotify.Watcher
	pipeline *Pipeline
	repoCfg  config.RepoConfig
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	timer *time.Timer

	onReindexed func(Stats, error)
}

// NewWatcher builds a watcher for repoCfg against pipeline. Call Start to
// begin watching and Stop to release the underlying fsnotify handle.
func NewWatcher(pipeline *Pipeline, repoCfg config.RepoConfig, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{fs: fw, pipeline: pipeline, repoCfg: repoCfg, debounce: debounce, ctx: ctx, cancel: cancel}, nil
}

// OnReindexed registers a callback invoked after each debounced
// incremental reindex completes (successfully or not).
func (w *Watcher) OnReindexed(cb func(Stats, error)) {
	w.onReindexed = cb
}

// Start adds watches for every non-ignored directory under the repo root
// and begins processing fsnotify events.
func (w *Watcher) Start() error {
	if err := w.addWatches(w.repoCfg.RootPath); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop cancels the watcher's event loop and closes the fsnotify handle.
func (w *Watcher) Stop() {
	w.cancel()
	_ = w.fs.Close()
	w.wg.Wait()
}

func (w *Watcher) addWatches(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)
		if relPath != "." && matchesAny(w.repoCfg.Ignore, relPath+"/") {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			logger.Debugf("watcher: failed to add watch for %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Debugf("watcher: fsnotify error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	info, err := os.Stat(event.Name)
	if err == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			relPath, relErr := filepath.Rel(w.repoCfg.RootPath, event.Name)
			if relErr == nil && !matchesAny(w.repoCfg.Ignore, filepath.ToSlash(relPath)+"/") {
				if err := w.fs.Add(event.Name); err != nil {
					logger.Debugf("watcher: failed to add watch for new directory %s: %v", event.Name, err)
				}
			}
		}
		return
	}

	relPath, err := filepath.Rel(w.repoCfg.RootPath, event.Name)
	if err != nil {
		return
	}
	relPath = filepath.ToSlash(relPath)
	if matchesAny(w.repoCfg.Ignore, relPath) {
		return
	}
	if filepath.Ext(relPath) == "" {
		return
	}

	w.scheduleReindex()
}

func (w *Watcher) scheduleReindex() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.runReindex)
}

func (w *Watcher) runReindex() {
	stats, err := w.pipeline.IndexRepo(w.ctx, w.repoCfg, 0, ModeIncremental, nil)
	if w.onReindexed != nil {
		w.onReindexed(stats, err)
	}
}
