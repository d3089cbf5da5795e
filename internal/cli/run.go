package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/emberforge/furnace/internal/artifact"
	"github.com/emberforge/furnace/internal/config"
	"github.com/emberforge/furnace/internal/furnace"
	"github.com/emberforge/furnace/internal/sandbox"
	"github.com/emberforge/furnace/internal/store"
	"github.com/emberforge/furnace/internal/verdict"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Database string

	// Runner allows overriding the sandbox runner (for testing).
	// If nil, the runner is selected from the sandbox engine config.
	Runner sandbox.Runner
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <artifact-dir>",
		Short: "Run an artifact through the tier pipeline",
		Long: `Run a five-file artifact package through the escalating tier pipeline.

Tiers execute strictly in order (T0 self-test, T1 isolation, T2 degradation,
T3 compaction, T4 restart) and the pipeline stops at the first failure. The
terminal verdict is appended exactly once to the outcome log.

Exit codes: 0 for SURVIVOR_PHASE_0, 1 for any KILLED verdict.

Example:
  furnace run ./submissions/counter
  furnace run --config furnace.yaml --db /var/lib/furnace/outcomes.db ./pkg`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to config file (YAML)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to outcome log (overrides config)")

	return cmd
}

func runPipeline(opts *RunOptions, pkgPath string, cmd *cobra.Command) error {
	logger := newLogger(opts.Verbose)
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	logger.Info("opening outcome log", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open outcome log", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing outcome log", "error", closeErr)
		}
	}()

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	// Load and validate the package before any sandbox exists. A loader
	// rejection is a terminal preflight verdict, recorded like any other.
	logger.Info("loading artifact package", "path", pkgPath)
	pkg, err := artifact.Load(pkgPath)
	if err != nil {
		var loadErr *artifact.LoadError
		if errors.As(err, &loadErr) {
			v := preflightVerdict(pkgPath, loadErr)
			if appendErr := st.AppendVerdict(ctx, v); appendErr != nil {
				return WrapExitError(ExitCommandError, "failed to record verdict", appendErr)
			}
			if outErr := emitVerdict(formatter, v); outErr != nil {
				return WrapExitError(ExitCommandError, "failed to write output", outErr)
			}
			return NewExitError(ExitFailure, loadErr.Error())
		}
		return WrapExitError(ExitCommandError, "failed to load artifact package", err)
	}
	logger.Info("artifact loaded", "artifact", pkg.ID())

	runner := opts.Runner
	if runner == nil {
		if cfg.Sandbox.Engine == "exec" {
			runner = sandbox.NewExecRunner(cfg.Sandbox.Timeout)
		} else {
			runner = sandbox.NewDockerRunner(cfg.Sandbox, logger)
		}
	}

	ctrl := furnace.NewController(runner, cfg, logger)
	if opts.Format == "text" {
		ctrl.Progress = func(tr verdict.TierResult) {
			fmt.Fprintln(cmd.OutOrStdout(), verdict.ProgressLine(tr))
		}
	}

	v := ctrl.Run(ctx, pkg)

	if err := st.AppendVerdict(ctx, v); err != nil {
		return WrapExitError(ExitCommandError, "failed to record verdict", err)
	}
	if err := emitVerdict(formatter, v); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	if !v.Survived() {
		return NewExitError(ExitFailure, fmt.Sprintf("verdict: %s", v.Code))
	}
	return nil
}

// preflightVerdict builds the terminal verdict for a package the loader
// rejected. No tier ran and no sandbox was created.
func preflightVerdict(pkgPath string, loadErr *artifact.LoadError) *verdict.Verdict {
	runID, err := uuid.NewV7()
	if err != nil {
		runID = uuid.New()
	}
	return &verdict.Verdict{
		RunID:      runID.String(),
		ArtifactID: filepath.Base(pkgPath),
		Code:       verdict.KilledPreflight,
		Reason:     loadErr.Reason,
		StartedAt:  time.Now().UTC(),
	}
}

func emitVerdict(f *OutputFormatter, v *verdict.Verdict) error {
	if f.Format == "json" {
		return f.Success(v)
	}
	_, err := fmt.Fprint(f.Writer, verdict.RenderBlock(v))
	return err
}

// newLogger configures the process logger on stderr so stdout stays
// reserved for verdict output.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// signalContext derives a context cancelled on SIGINT/SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("received signal, cancelling run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
