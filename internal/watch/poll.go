package watch

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultPollDelay is the snapshot interval used when polling is active
// and no explicit delay was configured.
const DefaultPollDelay = 300 * time.Millisecond

// fileMeta is the per-file state tracked between polling snapshots.
type fileMeta struct {
	modTime time.Time
	size    int64
}

// pollSource approximates filesystem notifications by re-walking the
// watched roots every delay and diffing against the previous snapshot:
// a new path is Added, a missing one Deleted, a changed mtime or size
// Modified. Transient create+delete cycles faster than the delay are
// invisible by construction.
type pollSource struct {
	paths  []string
	delay  time.Duration
	prev   map[string]fileMeta
	logger *slog.Logger

	events chan Change
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

func newPollSource(paths []string, delay time.Duration, logger *slog.Logger) (*pollSource, error) {
	if delay <= 0 {
		delay = DefaultPollDelay
	}

	s := &pollSource{
		paths:  paths,
		delay:  delay,
		logger: logger,
		events: make(chan Change, 64),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}

	// The baseline snapshot establishes "no changes yet". Taking it
	// before returning means the source is live once open succeeds.
	s.prev = s.snapshot()

	s.wg.Add(1)
	go s.loop()

	return s, nil
}

func (s *pollSource) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.delay)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.scan()
		}
	}
}

// scan takes a fresh snapshot and emits one change per differing entry.
func (s *pollSource) scan() {
	next := s.snapshot()

	for path, meta := range next {
		old, existed := s.prev[path]
		if !existed {
			s.emit(Change{Kind: Added, Path: path})
		} else if old.modTime != meta.modTime || old.size != meta.size {
			s.emit(Change{Kind: Modified, Path: path})
		}
	}

	for path := range s.prev {
		if _, still := next[path]; !still {
			s.emit(Change{Kind: Deleted, Path: path})
		}
	}

	s.prev = next
}

// snapshot records (mtime, size) for every readable file under the
// watched roots. Unreadable entries are skipped rather than failing the
// whole scan; a root that vanished simply contributes nothing, so its
// files show up as deletions.
func (s *pollSource) snapshot() map[string]fileMeta {
	files := make(map[string]fileMeta)

	for _, root := range s.paths {
		info, err := os.Stat(root)
		if err != nil {
			continue
		}

		if !info.IsDir() {
			files[root] = fileMeta{modTime: info.ModTime(), size: info.Size()}
			continue
		}

		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}

				return nil
			}

			if d.IsDir() {
				return nil
			}

			fi, statErr := d.Info()
			if statErr != nil {
				return nil
			}

			files[path] = fileMeta{modTime: fi.ModTime(), size: fi.Size()}

			return nil
		})
	}

	return files
}

func (s *pollSource) emit(c Change) {
	select {
	case s.events <- c:
	case <-s.done:
	}
}

func (s *pollSource) Events() <-chan Change { return s.events }

func (s *pollSource) Errors() <-chan error { return s.errors }

func (s *pollSource) Close() error {
	close(s.done)
	s.wg.Wait()
	close(s.events)
	close(s.errors)

	return nil
}
