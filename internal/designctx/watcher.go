package designctx

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher keeps an FSStore index current while workers write artifacts.
type Watcher struct {
	store   *FSStore
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch starts watching the store's output root. New task directories are
// added to the watch set as they appear; file events update the index
// without a full rescan.
func Watch(store *FSStore) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fw.Add(store.Root()); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", store.Root(), err)
	}
	// Watch existing task directories too.
	for _, taskID := range store.taskIDs() {
		_ = fw.Add(store.TaskDir(taskID))
	}

	w := &Watcher{
		store:   store,
		watcher: fw,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// loop consumes filesystem events until Close is called.
func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[designctx] watcher error: %v", err)
		}
	}
}

// handle applies one filesystem event to the index.
func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.store.Root(), event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	switch len(parts) {
	case 1:
		// A new task directory appeared under the root.
		if event.Op&fsnotify.Create != 0 {
			_ = w.watcher.Add(event.Name)
		}
	case 2:
		taskID, name := parts[0], parts[1]
		switch {
		case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
			w.store.record(taskID, name)
		case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
			w.store.remove(taskID, name)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

// taskIDs lists the task ids currently indexed.
func (s *FSStore) taskIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	return ids
}
