// Package cli implements the kppmap command-line interface using Cobra.
// Each subcommand runs one pipeline stage; errors map onto exit codes
// through errdefs.ExitCode.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notargets/kppmap/config"
	"github.com/notargets/kppmap/errdefs"
	"github.com/notargets/kppmap/logging"
	"github.com/notargets/kppmap/pipeline"
)

// app carries the global flags and the state built from them before a
// subcommand runs
type app struct {
	configPath string
	debug      bool
	logLevel   string

	stdout io.Writer
	stderr io.Writer

	// started is set once flags and arguments have been accepted
	started bool
	log     *zap.Logger
	p       *pipeline.Pipeline
}

func newRootCmd(a *app, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "kppmap",
		Short: "Per-cell workload aggregation and rank reassignment",
		Long: `kppmap turns the per-cell cost diagnostics of a rank-partitioned solver
into a cell -> rank index, per-interval cost tables, per-rank bottleneck
costs, and migration plans for new assignments.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "TOML configuration file")
	flags.BoolVarP(&a.debug, "debug", "d", false, "debug logging and strict shape assertions")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newConvertCmd(a),
		newAggregateCmd(a),
		newRemapCmd(a),
		newDumpCmd(a),
		newCompareCmd(a),
		newHistogramCmd(a),
	)
	return root
}

// setup loads the configuration and builds the logger and pipeline
func (a *app) setup(cmd *cobra.Command, args []string) error {
	a.started = true

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	log, run, err := logging.NewStderr(cfg.Logging, logging.Options{Debug: a.debug, Level: a.logLevel})
	if err != nil {
		return err
	}
	a.log = log.Named(cmd.Name())
	a.log.Debug("starting",
		zap.String("run", run),
		zap.String("config", a.configPath),
		zap.Strings("args", args))

	a.p, err = pipeline.New(cfg, a.log)
	return err
}

// Run executes the command line args and returns the process exit code
func Run(version string, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := newRootCmd(a, version)
	root.SetArgs(args)

	err := root.Execute()
	if a.log != nil {
		_ = a.log.Sync()
	}
	if err == nil {
		return errdefs.ExitSuccess
	}
	// Anything cobra rejects before setup is a usage error
	if !a.started && !errors.Is(err, errdefs.ErrInvalidArguments) {
		err = fmt.Errorf("%v: %w", err, errdefs.ErrInvalidArguments)
	}
	fmt.Fprintln(stderr, "Error:", err)
	return errdefs.ExitCode(err)
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	os.Exit(Run(version, os.Args[1:], os.Stdout, os.Stderr))
}
