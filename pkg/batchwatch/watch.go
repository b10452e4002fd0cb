// Package batchwatch provides a public Go API for watching filesystem
// paths and receiving debounced batches of changes.
//
// This package exposes the batchwatch engine as a library, allowing
// programmatic use without the CLI.
//
// Basic usage:
//
//	batches, err := batchwatch.Watch(ctx, []string{"./src"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for changes := range batches {
//	    fmt.Println(changes.Sorted())
//	}
//
// With options:
//
//	batches, err := batchwatch.Watch(ctx, []string{"./src"},
//	    batchwatch.WithDebounce(500*time.Millisecond),
//	    batchwatch.WithFilter(batchwatch.ExtensionFilter(".go")),
//	)
//
// For single-session control (one debounced batch per call) use
// NewWatcher and the Watcher's Watch method directly.
package batchwatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/hupe1980/batchwatch/internal/watch"
)

// Core types re-exported for library consumers.
type (
	// Kind classifies a change as added, modified, or deleted.
	Kind = watch.Kind

	// Change is one (kind, path) pair.
	Change = watch.Change

	// ChangeSet is a deduplicated batch of changes from one window.
	ChangeSet = watch.ChangeSet

	// FilterFunc decides whether a change is kept in a batch.
	FilterFunc = watch.FilterFunc

	// Flag is a single-shot cooperative stop latch.
	Flag = watch.Flag

	// Watcher is the underlying engine handle.
	Watcher = watch.Watcher

	// Params configures one Watcher.Watch session.
	Params = watch.Params

	// Result is the terminal state of one session.
	Result = watch.Result

	// Outcome says how a session ended.
	Outcome = watch.Outcome
)

// Change kinds.
const (
	Added    = watch.Added
	Modified = watch.Modified
	Deleted  = watch.Deleted
)

// Session outcomes.
const (
	Ready    = watch.Ready
	TimedOut = watch.TimedOut
	Stopped  = watch.Stopped
	Signaled = watch.Signaled
)

// Sentinel errors.
var (
	ErrNotFound        = watch.ErrNotFound
	ErrWatchInProgress = watch.ErrWatchInProgress
	ErrClosed          = watch.ErrClosed
)

// ExtensionFilter keeps only paths with one of the given extensions.
func ExtensionFilter(extensions ...string) FilterFunc {
	return watch.ExtensionFilter(extensions...)
}

// DefaultFilter returns the standard noise filter (VCS metadata, editor
// temp files, caches) with optional extra ignored directory names and
// path prefixes.
func DefaultFilter(extraDirs, ignorePaths []string) FilterFunc {
	return watch.NewDefaultFilter(extraDirs, ignorePaths).Keep
}

// Option configures Watch and NewWatcher.
// Use the With* functions to create Options.
type Option func(*options)

type options struct {
	debounce     time.Duration
	step         time.Duration
	pollDelay    time.Duration
	forcePolling bool
	debug        bool
	filter       FilterFunc
	logger       *slog.Logger
}

func defaultOptions() *options {
	return &options{
		debounce: 1600 * time.Millisecond,
		step:     50 * time.Millisecond,
	}
}

// WithDebounce sets the grouping window for each batch.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// WithStep sets the engine poll granularity.
func WithStep(d time.Duration) Option {
	return func(o *options) { o.step = d }
}

// WithFilter installs an inclusion predicate for candidate changes.
func WithFilter(f FilterFunc) Option {
	return func(o *options) { o.filter = f }
}

// WithForcePolling disables native OS notifications in favor of
// snapshot polling.
func WithForcePolling() Option {
	return func(o *options) { o.forcePolling = true }
}

// WithPollDelay sets the snapshot interval used when polling.
func WithPollDelay(d time.Duration) Option {
	return func(o *options) { o.pollDelay = d }
}

// WithDebug enables raw event and state transition tracing.
func WithDebug() Option {
	return func(o *options) { o.debug = true }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewWatcher constructs an engine handle for direct session control.
// The caller owns the handle and must Close it.
func NewWatcher(paths []string, opts ...Option) (*Watcher, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return watch.New(paths, watch.Options{
		Debug:        o.debug,
		ForcePolling: o.forcePolling,
		PollDelay:    o.pollDelay,
		Logger:       o.logger,
	})
}

// Watch streams debounced change batches for paths until ctx is done,
// the process is interrupted, or the engine fails. The returned channel
// delivers only non-empty batches and is closed when the stream ends;
// the watcher is released automatically.
func Watch(ctx context.Context, paths []string, opts ...Option) (<-chan ChangeSet, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	w, err := watch.New(paths, watch.Options{
		Debug:        o.debug,
		ForcePolling: o.forcePolling,
		PollDelay:    o.pollDelay,
		Logger:       o.logger,
	})
	if err != nil {
		return nil, err
	}

	ch := make(chan ChangeSet)
	stop := watch.ContextStop(ctx)

	go func() {
		defer close(ch)
		defer w.Close()

		logger := o.logger
		if logger == nil {
			logger = slog.Default()
		}

		for {
			res, watchErr := w.Watch(watch.Params{
				Debounce: o.debounce,
				Step:     o.step,
				Stop:     stop,
				Filter:   o.filter,
			})
			if watchErr != nil {
				logger.Error("watch stream failed", slog.String("error", watchErr.Error()))
				return
			}

			if res.Outcome != watch.Ready {
				return
			}

			if res.Changes.Len() == 0 {
				continue
			}

			select {
			case ch <- res.Changes:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}
