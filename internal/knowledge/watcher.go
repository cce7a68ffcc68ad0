package knowledge

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"patternmind/internal/logging"
)

// Staler is the part of the cache the watcher drives.
type Staler interface {
	MarkStale(projectID string)
}

// ManifestWatcher watches project directories for dependency manifest
// changes and marks the affected snapshot stale, so the next read refreshes
// early instead of waiting out the staleness window.
type ManifestWatcher struct {
	cache   Staler
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	projects map[string]string // watched directory -> project id

	done chan struct{}
	wg   sync.WaitGroup
}

// NewManifestWatcher starts a watcher over the given cache. Callers must
// Close it to release the inotify handles and stop the event loop.
func NewManifestWatcher(cache Staler) (*ManifestWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &ManifestWatcher{
		cache:    cache,
		watcher:  fsWatcher,
		projects: make(map[string]string),
		done:     make(chan struct{}),
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Watch registers a project directory. Manifest writes under it invalidate
// the project's snapshot.
func (w *ManifestWatcher) Watch(projectID, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := w.watcher.Add(abs); err != nil {
		return err
	}

	w.mu.Lock()
	w.projects[abs] = projectID
	w.mu.Unlock()

	logging.KnowledgeDebug("Watching manifests: project=%s dir=%s", projectID, abs)
	return nil
}

// Close stops the event loop and releases the watcher.
func (w *ManifestWatcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *ManifestWatcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			if !isManifest(event.Name) {
				continue
			}

			w.mu.Lock()
			projectID, known := w.projects[filepath.Dir(event.Name)]
			w.mu.Unlock()
			if !known {
				continue
			}

			logging.Knowledge("Manifest changed: project=%s file=%s op=%s", projectID, filepath.Base(event.Name), event.Op)
			w.cache.MarkStale(projectID)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryKnowledge).Warn("Manifest watcher error: %v", err)
		}
	}
}

func isManifest(path string) bool {
	base := filepath.Base(path)
	for _, name := range manifestNames {
		if base == name {
			return true
		}
	}
	return false
}
