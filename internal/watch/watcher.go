package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// Sentinel errors returned by construction and Watch.
var (
	// ErrNotFound is returned by New when a watch path does not exist.
	ErrNotFound = errors.New("watch path not found")

	// ErrWatchInProgress is returned when Watch is called while another
	// Watch on the same Watcher has not returned yet.
	ErrWatchInProgress = errors.New("watch already in progress")

	// ErrClosed is returned by Watch after Close has been called.
	ErrClosed = errors.New("watcher is closed")
)

// Options configures a Watcher.
type Options struct {
	// Debug traces every raw event and state transition to the logger
	// at debug level.
	Debug bool

	// ForcePolling skips native OS notifications and uses the polling
	// source even where native notifications would work.
	ForcePolling bool

	// PollDelay is the snapshot interval when polling is active.
	// Defaults to DefaultPollDelay.
	PollDelay time.Duration

	// Logger is used for structured logging. Defaults to slog.Default.
	Logger *slog.Logger
}

// Watcher owns a live subscription to one or more filesystem roots and
// turns the raw event stream into debounced change batches via Watch.
//
// A background goroutine drains the event source for the whole lifetime
// of the handle, so changes that happen between two Watch calls are
// buffered and delivered on the next call, never lost. One Watch may be
// in flight at a time; concurrent calls are rejected with
// ErrWatchInProgress.
type Watcher struct {
	paths   []string
	source  eventSource
	polling bool
	logger  *slog.Logger
	debug   bool

	sessionMu sync.Mutex // held for the duration of one Watch call

	mu      sync.Mutex // guards pending, srcErr, closed
	pending []Change
	srcErr  error
	closed  bool

	sigCh     chan os.Signal
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New validates paths, opens the event source, registers SIGINT/SIGTERM
// handling, and starts the background drain goroutine. It returns only
// once the subscription is active, so no early events are missed.
//
// Every path must exist; a missing path fails construction with an
// error wrapping ErrNotFound before any goroutine starts.
func New(paths []string, opts Options) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("at least one watch path is required")
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.PollDelay <= 0 {
		opts.PollDelay = DefaultPollDelay
	}

	absPaths := make([]string, 0, len(paths))

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", p, err)
		}

		if _, statErr := os.Stat(abs); statErr != nil {
			if errors.Is(statErr, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %q", ErrNotFound, p)
			}

			return nil, fmt.Errorf("stat %q: %w", p, statErr)
		}

		absPaths = append(absPaths, abs)
	}

	source, err := openSource(absPaths, opts.ForcePolling, opts.PollDelay, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening event source: %w", err)
	}

	_, polling := source.(*pollSource)

	w := &Watcher{
		paths:   absPaths,
		source:  source,
		polling: polling,
		logger:  opts.Logger,
		debug:   opts.Debug,
		sigCh:   make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}

	// Signal handling is scoped to the handle: registered here,
	// deregistered in Close.
	signal.Notify(w.sigCh, syscall.SIGINT, syscall.SIGTERM)

	w.wg.Add(1)
	go w.drain()

	return w, nil
}

// Paths returns the absolute watched root paths.
func (w *Watcher) Paths() []string {
	return w.paths
}

// Polling reports whether the polling source is active, either forced
// or as automatic fallback.
func (w *Watcher) Polling() bool {
	return w.polling
}

// drain moves every raw event from the source into the pending buffer.
// It runs for the lifetime of the handle so events keep accumulating
// even while no Watch call is waiting. Coalescing of duplicates happens
// later, at ChangeSet level; nothing is discarded here.
func (w *Watcher) drain() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case c, ok := <-w.source.Events():
			if !ok {
				return
			}

			w.trace("raw event",
				slog.String("kind", c.Kind.String()),
				slog.String("path", c.Path),
			)

			w.mu.Lock()
			w.pending = append(w.pending, c)
			w.mu.Unlock()

		case err, ok := <-w.source.Errors():
			if !ok {
				return
			}

			w.logger.Error("event source error", slog.String("error", err.Error()))

			w.mu.Lock()
			if w.srcErr == nil {
				w.srcErr = err
			}
			w.mu.Unlock()
		}
	}
}

// take removes and returns everything buffered so far.
func (w *Watcher) take() []Change {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := w.pending
	w.pending = nil

	return out
}

// takeErr returns the first recorded source error, if any. The error
// sticks: the caller is expected to close and rebuild the watcher.
func (w *Watcher) takeErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.srcErr
}

// Outcome says how a Watch call ended.
type Outcome int

const (
	// Ready means the debounce window closed and Result.Changes holds
	// the accumulated batch.
	Ready Outcome = iota

	// TimedOut means no change arrived within Params.Timeout.
	TimedOut

	// Stopped means the caller's StopSignal was observed.
	Stopped

	// Signaled means the process received SIGINT or SIGTERM.
	Signaled
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case TimedOut:
		return "timed out"
	case Stopped:
		return "stopped"
	case Signaled:
		return "signaled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Params configures a single Watch call.
type Params struct {
	// Debounce is the grouping window: once the first change arrives,
	// the batch is returned after this much time. Must be positive.
	Debounce time.Duration

	// Step is the poll granularity for new events, stop checks, and
	// timeout checks. Must be positive. Cancellation latency is bounded
	// by Step.
	Step time.Duration

	// Timeout bounds the wait for the first change only; once a change
	// has arrived, Debounce takes over and Timeout no longer applies.
	// Zero means wait indefinitely.
	Timeout time.Duration

	// Stop is polled every Step; when set, Watch returns Stopped
	// immediately, discarding any partially accumulated batch.
	// Optional.
	Stop StopSignal

	// Filter decides whether a candidate (kind, path) pair is kept.
	// Optional; nil keeps everything.
	Filter FilterFunc
}

// Result is the terminal state of one Watch call. Changes is non-nil
// only for Ready outcomes; it may still be empty when the filter
// dropped every candidate, in which case callers typically just call
// Watch again.
type Result struct {
	Outcome Outcome
	Changes ChangeSet
}

// Watch blocks until a debounced batch of changes is ready, the stop
// signal is set, the process is interrupted, or the timeout elapses
// with no changes. It may be called repeatedly on the same Watcher; the
// underlying subscription persists across calls. A non-nil error means
// the engine itself broke (subscription lost, bad parameters), as
// opposed to "nothing changed".
func (w *Watcher) Watch(p Params) (Result, error) {
	if !w.sessionMu.TryLock() {
		return Result{}, ErrWatchInProgress
	}
	defer w.sessionMu.Unlock()

	if p.Debounce <= 0 {
		return Result{}, fmt.Errorf("debounce must be positive, got %s", p.Debounce)
	}

	if p.Step <= 0 {
		return Result{}, fmt.Errorf("step must be positive, got %s", p.Step)
	}

	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()

	if closed {
		return Result{}, ErrClosed
	}

	start := time.Now()
	changes := make(ChangeSet)

	var windowStart time.Time

	timer := time.NewTimer(p.Step)
	defer timer.Stop()

	for {
		select {
		case <-w.done:
			return Result{}, ErrClosed

		case sig := <-w.sigCh:
			w.trace("state transition",
				slog.String("state", "signaled"),
				slog.String("signal", sig.String()),
			)

			return Result{Outcome: Signaled}, nil

		case <-timer.C:
		}

		if err := w.takeErr(); err != nil {
			return Result{}, fmt.Errorf("event source failed: %w", err)
		}

		// A stop request beats a partial batch: the caller is shutting
		// down and does not want stale changes delivered afterwards.
		if p.Stop != nil && p.Stop.IsSet() {
			w.trace("state transition", slog.String("state", "stopped"))
			return Result{Outcome: Stopped}, nil
		}

		drained := w.take()

		for _, c := range drained {
			if p.Filter == nil || p.Filter(c.Kind, c.Path) {
				changes.Add(c)
			}
		}

		now := time.Now()

		if windowStart.IsZero() {
			if len(drained) > 0 {
				windowStart = now

				w.trace("state transition", slog.String("state", "accumulating"))
			} else if p.Timeout > 0 && now.Sub(start) >= p.Timeout {
				w.trace("state transition", slog.String("state", "timed out"))
				return Result{Outcome: TimedOut}, nil
			}
		} else if now.Sub(windowStart) >= p.Debounce {
			w.trace("state transition",
				slog.String("state", "ready"),
				slog.Int("changes", changes.Len()),
			)

			return Result{Outcome: Ready, Changes: changes}, nil
		}

		timer.Reset(p.Step)
	}
}

// Poll is the Watch variant for embedding in cooperative schedulers: it
// never waits indefinitely, so Params.Timeout must be positive.
func (w *Watcher) Poll(p Params) (Result, error) {
	if p.Timeout <= 0 {
		return Result{}, fmt.Errorf("poll requires a positive timeout, got %s", p.Timeout)
	}

	return w.Watch(p)
}

// Close releases the OS subscription, deregisters signal handling, and
// joins the background goroutine. Safe to call from any goroutine;
// repeated calls return the first result.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()

		signal.Stop(w.sigCh)
		close(w.done)
		w.closeErr = w.source.Close()
		w.wg.Wait()
	})

	return w.closeErr
}

func (w *Watcher) trace(msg string, args ...any) {
	if w.debug {
		w.logger.Debug(msg, args...)
	}
}
