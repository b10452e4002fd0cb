package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/batchwatch/internal/config"
	"github.com/hupe1980/batchwatch/internal/logging"
	"github.com/hupe1980/batchwatch/internal/run"
)

type runOptions struct {
	paths          []string
	filter         string
	ignoreDirs     []string
	sigintTimeout  time.Duration
	sigkillTimeout time.Duration
	debug          bool
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [flags] -- <command> [args...]",
		Short: "Run a command and restart it on file changes",
		Long: `Run starts a command and restarts it whenever a debounced batch of
file changes arrives under the watched paths (the current directory
by default).

On each restart the process is asked to exit with an interrupt first,
escalating to a kill after --sigint-timeout. The batch that triggered
the restart is passed to the new process in the ` + run.ChangesEnvVar + `
environment variable as a JSON array of [kind, path] pairs; it holds
[] on the first start.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&opts.paths, "path", []string{"."}, "paths to watch")
	f.StringVar(&opts.filter, "filter", "default", "change filter: default, all, or ext=.go,.md")
	f.StringSliceVar(&opts.ignoreDirs, "ignore-dir", nil, "extra directory names to ignore")
	f.DurationVar(&opts.sigintTimeout, "sigint-timeout", 5*time.Second, "wait after interrupt before killing")
	f.DurationVar(&opts.sigkillTimeout, "sigkill-timeout", time.Second, "wait for the kill to take effect")
	f.BoolVar(&opts.debug, "debug", false, "trace raw events and session outcomes")

	return cmd
}

func runRun(ctx context.Context, cmd *cobra.Command, command []string, opts *runOptions) error {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	filter, err := parseFilter(opts.filter, opts.ignoreDirs)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	runOpts := run.DefaultOptions()
	runOpts.Debounce = cfg.Debounce
	runOpts.Step = cfg.Step
	runOpts.Filter = filter
	runOpts.ForcePolling = cfg.ForcePolling
	runOpts.PollDelay = cfg.PollDelay
	runOpts.Debug = opts.debug
	runOpts.SigintTimeout = opts.sigintTimeout
	runOpts.SigkillTimeout = opts.sigkillTimeout
	runOpts.Logger = logger
	runOpts.Out = cmd.ErrOrStderr()

	_, err = run.Run(ctx, command, opts.paths, runOpts)

	return err
}
