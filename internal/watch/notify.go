package watch

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// notifySource delivers changes from native OS notifications via
// fsnotify (inotify on Linux, kqueue on BSD/macOS,
// ReadDirectoryChangesW on Windows). Directory roots are subscribed
// recursively; newly created subdirectories are subscribed on the fly
// so a removed-and-recreated tree keeps producing events.
//
// Known limitation: a removed root loses its subscription for good.
// fsnotify drops the watch when the root itself disappears, and a
// later recreation at the same path is not re-added (only directories
// created inside a still-watched tree are). Callers that must survive
// root replacement should use the polling source instead.
type notifySource struct {
	fw     *fsnotify.Watcher
	logger *slog.Logger

	events chan Change
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

func newNotifySource(paths []string, logger *slog.Logger) (*notifySource, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	for _, p := range paths {
		info, statErr := os.Stat(p)
		if statErr != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watching %q: %w", p, statErr)
		}

		if info.IsDir() {
			if addErr := addRecursive(fw, p); addErr != nil {
				_ = fw.Close()
				return nil, fmt.Errorf("watching %q: %w", p, addErr)
			}
		} else if addErr := fw.Add(p); addErr != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watching %q: %w", p, addErr)
		}
	}

	s := &notifySource{
		fw:     fw,
		logger: logger,
		events: make(chan Change, 64),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.translate()

	return s, nil
}

// translate drains fsnotify and forwards Changes until the source is
// closed. Dedup is not this layer's job; every translatable raw event
// is forwarded.
func (s *notifySource) translate() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return

		case event, ok := <-s.fw.Events:
			if !ok {
				return
			}

			kind, relevant := translateOp(event.Op)
			if !relevant {
				continue
			}

			// A directory created inside a watched tree must be
			// subscribed too, or changes below it go unseen.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addRecursive(s.fw, event.Name)
				}
			}

			s.emit(Change{Kind: kind, Path: event.Name})

		case err, ok := <-s.fw.Errors:
			if !ok {
				return
			}

			select {
			case s.errors <- err:
			case <-s.done:
				return
			}
		}
	}
}

func (s *notifySource) emit(c Change) {
	select {
	case s.events <- c:
	case <-s.done:
	}
}

func (s *notifySource) Events() <-chan Change { return s.events }

func (s *notifySource) Errors() <-chan error { return s.errors }

func (s *notifySource) Close() error {
	close(s.done)
	err := s.fw.Close()
	s.wg.Wait()
	close(s.events)
	close(s.errors)

	return err
}

// translateOp maps an fsnotify op onto a change kind. A rename shows up
// as Rename for the old path and Create for the new one, which maps
// cleanly to Deleted + Added. Chmod-only events carry no content change
// and are dropped.
func translateOp(op fsnotify.Op) (Kind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return Added, true
	case op.Has(fsnotify.Write):
		return Modified, true
	case op.Has(fsnotify.Remove):
		return Deleted, true
	case op.Has(fsnotify.Rename):
		return Deleted, true
	default:
		return 0, false
	}
}

// addRecursive walks root and adds all directories to the watcher.
func addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return fw.Add(path)
		}

		return nil
	})
}
