// Package run supervises a command: it starts the command, watches a
// set of paths, and restarts the command whenever a debounced batch of
// file changes arrives. The batch that triggered a restart is handed to
// the new process via the BATCHWATCH_CHANGES environment variable as a
// JSON array of [kind, path] pairs.
package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/hupe1980/batchwatch/internal/watch"
)

// ChangesEnvVar carries the JSON-encoded batch that triggered the
// current process start. It holds "[]" on the first start.
const ChangesEnvVar = "BATCHWATCH_CHANGES"

// Options configures the supervisor.
type Options struct {
	// Debounce is the grouping window for file changes.
	Debounce time.Duration

	// Step is the engine poll granularity.
	Step time.Duration

	// Filter decides which changes count. Nil keeps everything.
	Filter watch.FilterFunc

	// ForcePolling and PollDelay are passed through to the watcher.
	ForcePolling bool
	PollDelay    time.Duration

	// Debug enables engine event tracing.
	Debug bool

	// SigintTimeout is how long to wait after SIGINT before killing.
	SigintTimeout time.Duration

	// SigkillTimeout is how long to wait for the kill to take effect.
	SigkillTimeout time.Duration

	// Callback, when set, is invoked with each batch before the restart.
	Callback func(watch.ChangeSet)

	// Logger is used for structured logging.
	Logger *slog.Logger

	// Out is the writer for user-facing status lines.
	Out io.Writer
}

// DefaultOptions returns sensible supervisor defaults.
func DefaultOptions() Options {
	return Options{
		Debounce:       1600 * time.Millisecond,
		Step:           50 * time.Millisecond,
		SigintTimeout:  5 * time.Second,
		SigkillTimeout: time.Second,
		Logger:         slog.Default(),
		Out:            os.Stderr,
	}
}

// Run starts command, restarts it on every non-empty change batch under
// paths, and blocks until the context is cancelled or a SIGINT/SIGTERM
// arrives. It returns the number of restarts performed.
func Run(ctx context.Context, command []string, paths []string, opts Options) (int, error) {
	if len(command) == 0 {
		return 0, errors.New("no command to run")
	}

	opts = opts.withDefaults()

	w, err := watch.New(paths, watch.Options{
		Debug:        opts.Debug,
		ForcePolling: opts.ForcePolling,
		PollDelay:    opts.PollDelay,
		Logger:       opts.Logger,
	})
	if err != nil {
		return 0, err
	}
	defer w.Close()

	proc, err := startProcess(command, "[]")
	if err != nil {
		return 0, err
	}

	stop := watch.ContextStop(ctx)
	reloads := 0

	for {
		res, watchErr := w.Watch(watch.Params{
			Debounce: opts.Debounce,
			Step:     opts.Step,
			Stop:     stop,
			Filter:   opts.Filter,
		})
		if watchErr != nil {
			opts.stopProcess(proc)
			return reloads, watchErr
		}

		switch res.Outcome {
		case watch.Ready:
			if res.Changes.Len() == 0 {
				continue
			}

			if opts.Callback != nil {
				opts.Callback(res.Changes)
			}

			fmt.Fprintf(opts.Out, "[%s] %d change(s) detected, restarting\n",
				time.Now().Format("15:04:05"), res.Changes.Len())

			encoded, encErr := EncodeChanges(res.Changes)
			if encErr != nil {
				opts.stopProcess(proc)
				return reloads, encErr
			}

			opts.stopProcess(proc)

			proc, err = startProcess(command, encoded)
			if err != nil {
				return reloads, err
			}

			reloads++

		case watch.Stopped, watch.Signaled:
			fmt.Fprintf(opts.Out, "\nshutting down (%s)\n", res.Outcome)
			opts.stopProcess(proc)

			return reloads, nil

		case watch.TimedOut:
			// No timeout is configured above; keep waiting regardless.
			continue
		}
	}
}

// withDefaults fills in the zero fields of a hand-built Options so
// that stopProcess always has a real grace period to work with.
func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	if o.Out == nil {
		o.Out = io.Discard
	}

	if o.SigintTimeout <= 0 {
		o.SigintTimeout = 5 * time.Second
	}

	if o.SigkillTimeout <= 0 {
		o.SigkillTimeout = time.Second
	}

	return o
}

// process tracks a running command and its exit.
type process struct {
	cmd    *exec.Cmd
	waitCh chan error
}

func startProcess(command []string, encodedChanges string) (*process, error) {
	cmd := exec.Command(command[0], command[1:]...) //nolint:gosec
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), ChangesEnvVar+"="+encodedChanges)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %q: %w", command[0], err)
	}

	p := &process{cmd: cmd, waitCh: make(chan error, 1)}

	go func() {
		p.waitCh <- cmd.Wait()
	}()

	return p, nil
}

// stopProcess asks the process to exit with an interrupt, escalating to
// a kill after SigintTimeout.
func (o Options) stopProcess(p *process) {
	select {
	case <-p.waitCh:
		// Already exited on its own.
		return
	default:
	}

	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		_ = p.cmd.Process.Kill()
		<-p.waitCh

		return
	}

	select {
	case <-p.waitCh:
		return
	case <-time.After(o.SigintTimeout):
		o.Logger.Warn("process did not exit after interrupt, sending kill",
			slog.Int("pid", p.cmd.Process.Pid))
	}

	_ = p.cmd.Process.Kill()

	select {
	case <-p.waitCh:
	case <-time.After(o.SigkillTimeout):
		o.Logger.Error("process still alive after kill",
			slog.Int("pid", p.cmd.Process.Pid))
	}
}

// EncodeChanges serializes a batch as a JSON array of [kind, path]
// pairs, ordered by path for stable output.
func EncodeChanges(set watch.ChangeSet) (string, error) {
	pairs := make([][2]string, 0, set.Len())

	for _, c := range set.Sorted() {
		pairs = append(pairs, [2]string{c.Kind.String(), c.Path})
	}

	data, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("encoding changes: %w", err)
	}

	return string(data), nil
}

// DecodeChanges parses the value of ChangesEnvVar back into a
// ChangeSet. An empty string decodes as an empty set.
func DecodeChanges(s string) (watch.ChangeSet, error) {
	set := make(watch.ChangeSet)

	if s == "" {
		return set, nil
	}

	var pairs [][2]string
	if err := json.Unmarshal([]byte(s), &pairs); err != nil {
		return nil, fmt.Errorf("decoding changes: %w", err)
	}

	for _, pair := range pairs {
		kind, err := watch.ParseKind(pair[0])
		if err != nil {
			return nil, err
		}

		set.Add(watch.Change{Kind: kind, Path: pair[1]})
	}

	return set, nil
}
