package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/batchwatch/internal/config"
	"github.com/hupe1980/batchwatch/internal/logging"
	"github.com/hupe1980/batchwatch/internal/watch"
)

// Supported batch output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

type watchOptions struct {
	timeout    time.Duration
	filter     string
	ignoreDirs []string
	format     string
	once       bool
	debug      bool
}

func newWatchCommand() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <path>...",
		Short: "Watch paths and print debounced change batches",
		Long: `Watch monitors one or more files or directories and prints each
debounced batch of changes as it becomes ready.

Rapid bursts of events are grouped by the --debounce window and
deduplicated, so saving a file twice in quick succession yields a
single batch. Editor temp files, VCS metadata, and similar noise are
dropped by the default filter; use --filter all to see everything or
--filter ext=.go,.md to keep only certain extensions.

Batches print as one "kind path" line per change by default. Use
--format json or --format yaml for machine-readable output, and
--once to exit after the first batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.DurationVar(&opts.timeout, "timeout", 0, "give up if no change arrives in time (0 waits forever)")
	f.StringVar(&opts.filter, "filter", "default", "change filter: default, all, or ext=.go,.md")
	f.StringSliceVar(&opts.ignoreDirs, "ignore-dir", nil, "extra directory names to ignore")
	f.StringVar(&opts.format, "format", formatText, "batch output format: text, json, yaml")
	f.BoolVar(&opts.once, "once", false, "exit after the first batch")
	f.BoolVar(&opts.debug, "debug", false, "trace raw events and session outcomes")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, paths []string, opts *watchOptions) error {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	filter, err := parseFilter(opts.filter, opts.ignoreDirs)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	switch opts.format {
	case formatText, formatJSON, formatYAML:
	default:
		return &ExitError{Code: 2, Err: fmt.Errorf("invalid format %q: must be one of text, json, yaml", opts.format)}
	}

	w, err := watch.New(paths, watch.Options{
		Debug:        opts.debug,
		ForcePolling: cfg.ForcePolling,
		PollDelay:    cfg.PollDelay,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	stop := watch.ContextStop(ctx)
	out := cmd.OutOrStdout()

	for {
		res, err := w.Watch(watch.Params{
			Debounce: cfg.Debounce,
			Step:     cfg.Step,
			Timeout:  opts.timeout,
			Stop:     stop,
			Filter:   filter,
		})
		if err != nil {
			return err
		}

		switch res.Outcome {
		case watch.Ready:
			if res.Changes.Len() == 0 {
				continue
			}

			if err := printBatch(out, res.Changes, opts.format); err != nil {
				return err
			}

			if opts.once {
				return nil
			}

		case watch.TimedOut:
			fmt.Fprintln(cmd.ErrOrStderr(), "no changes detected before timeout")

			return nil

		case watch.Stopped, watch.Signaled:
			return nil
		}
	}
}

// parseFilter maps the --filter flag value to an inclusion predicate.
// A nil result keeps everything.
func parseFilter(spec string, extraDirs []string) (watch.FilterFunc, error) {
	switch {
	case spec == "all":
		// "all" disables the noise rules entirely; extra ignore dirs
		// still apply on their own.
		if len(extraDirs) == 0 {
			return nil, nil
		}

		return watch.IgnoreDirsFilter(extraDirs...), nil

	case spec == "default" || spec == "":
		return watch.NewDefaultFilter(extraDirs, nil).Keep, nil

	case strings.HasPrefix(spec, "ext="):
		exts := strings.Split(strings.TrimPrefix(spec, "ext="), ",")
		for i, e := range exts {
			exts[i] = strings.TrimSpace(e)
		}

		return watch.ExtensionFilter(exts...), nil

	default:
		return nil, fmt.Errorf("invalid filter %q: must be default, all, or ext=<extensions>", spec)
	}
}

// changeRecord is the serialized form of one change in json/yaml output.
type changeRecord struct {
	Kind string `json:"kind" yaml:"kind"`
	Path string `json:"path" yaml:"path"`
}

func batchRecords(set watch.ChangeSet) []changeRecord {
	records := make([]changeRecord, 0, set.Len())

	for _, c := range set.Sorted() {
		records = append(records, changeRecord{Kind: c.Kind.String(), Path: c.Path})
	}

	return records
}

// printBatch writes one batch to out. Text prints one "kind path" line
// per change; json prints a compact array per batch; yaml prints each
// batch as its own document.
func printBatch(out io.Writer, set watch.ChangeSet, format string) error {
	switch format {
	case formatJSON:
		data, err := json.Marshal(batchRecords(set))
		if err != nil {
			return fmt.Errorf("encoding batch: %w", err)
		}

		_, err = fmt.Fprintln(out, string(data))

		return err

	case formatYAML:
		data, err := yaml.Marshal(batchRecords(set))
		if err != nil {
			return fmt.Errorf("encoding batch: %w", err)
		}

		_, err = fmt.Fprintf(out, "---\n%s", data)

		return err

	default: // text
		for _, c := range set.Sorted() {
			if _, err := fmt.Fprintln(out, c.String()); err != nil {
				return err
			}
		}

		return nil
	}
}
