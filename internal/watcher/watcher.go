// Package watcher publishes out-of-band volume changes to the event
// broadcaster, so clients see edits made directly on the filesystem.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/volkit/volkit/internal/events"
	"github.com/volkit/volkit/internal/logging"
	"github.com/volkit/volkit/internal/vfs"
)

// Watcher watches the volume root recursively with fsnotify.
type Watcher struct {
	root        string
	broadcaster *events.Broadcaster
	fsw         *fsnotify.Watcher
}

// New creates a watcher for root. Directories added later are picked up
// from their create events.
func New(root string, broadcaster *events.Broadcaster) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{root: root, broadcaster: broadcaster, fsw: fsw}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Start consumes filesystem events until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		defer w.fsw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				w.handle(event)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				logging.Warn("volume watcher error", zap.Error(err))
			}
		}
	}()
}

func (w *Watcher) handle(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if vfs.IsReservedName(name) || strings.HasSuffix(name, ".tmp") {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	relPath := filepath.ToSlash(rel)

	switch {
	case event.Has(fsnotify.Create):
		// New directories must be added to the watch set.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				logging.Warn("failed to watch new directory",
					zap.String("path", relPath), zap.Error(err))
			}
		}
		w.publish(events.EventCreate, relPath)
	case event.Has(fsnotify.Write):
		w.publish(events.EventModify, relPath)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.publish(events.EventDelete, relPath)
	}
}

func (w *Watcher) publish(eventType, relPath string) {
	w.broadcaster.Publish(events.Event{Type: eventType, Path: relPath})
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees are not watched
		}
		if !d.IsDir() {
			return nil
		}
		if vfs.IsReservedName(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}
