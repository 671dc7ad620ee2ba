package binding

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch observes root for binding files changed by other processes and republishes them as
// events to the store's subscribers until ctx is cancelled. Workspace directories created
// while watching are picked up automatically.
//
// Writes made through this Store are reported twice while watching: once by Write and once
// by the file system notification.
func (s *Store) Watch(ctx context.Context, root string) error {
	if err := s.files.MkdirAll(root); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}
	entries, err := s.files.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.Add(filepath.Join(root, e.Name())); err != nil {
				s.logger.WarnContext(ctx, "watcher: add dir failed", "dir", e.Name(), "error", err)
			}
		}
	}

	s.logger.InfoContext(ctx, "watcher: started", "root", root)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "watcher: stopped")
			return nil

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.WarnContext(ctx, "watcher: error", "error", err)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			s.handleFSEvent(ctx, w, root, ev)
		}
	}
}

func (s *Store) handleFSEvent(ctx context.Context, w *fsnotify.Watcher, root string, ev fsnotify.Event) {
	parent := filepath.Dir(ev.Name)

	// Workspace directory directly under root
	if parent == filepath.Clean(root) {
		switch {
		case ev.Has(fsnotify.Create):
			if info, err := s.files.Stat(ev.Name); err == nil && info.IsDir() {
				if err := w.Add(ev.Name); err != nil {
					s.logger.WarnContext(ctx, "watcher: add dir failed", "dir", ev.Name, "error", err)
				}
				// The binding file may have been written before the watch was registered.
				if s.files.Exists(filepath.Join(ev.Name, BindingFileName)) {
					s.subscribers.publish(Event{Kind: BindingUpdated, LocalBindingKey: filepath.Base(ev.Name)})
				}
			}
		case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
			s.subscribers.publish(Event{Kind: BindingDeleted, LocalBindingKey: filepath.Base(ev.Name)})
		}
		return
	}

	if filepath.Base(ev.Name) != BindingFileName {
		return
	}

	key := s.paths.LocalBindingKey(ev.Name)
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		s.logger.DebugContext(ctx, "watcher: binding changed", "key", key)
		s.subscribers.publish(Event{Kind: BindingUpdated, LocalBindingKey: key})
	case ev.Has(fsnotify.Remove):
		s.logger.DebugContext(ctx, "watcher: binding removed", "key", key)
		s.subscribers.publish(Event{Kind: BindingDeleted, LocalBindingKey: key})
	}
}
