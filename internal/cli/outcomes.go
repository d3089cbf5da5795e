package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emberforge/furnace/internal/config"
	"github.com/emberforge/furnace/internal/store"
	"github.com/emberforge/furnace/internal/verdict"
)

// OutcomesOptions holds flags for the outcomes command.
type OutcomesOptions struct {
	*RootOptions
	Config   string
	Database string
	Artifact string
	Limit    int
}

// NewOutcomesCommand creates the outcomes command.
func NewOutcomesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OutcomesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "outcomes [run-id]",
		Short: "Inspect the outcome log",
		Long: `List recorded verdicts, newest first, or show a single run by ID.

Example:
  furnace outcomes --db furnace.db
  furnace outcomes --db furnace.db --artifact counter@1.0.0 --limit 10
  furnace outcomes --db furnace.db 0198f2c0-5b3a-7000-8000-000000000000`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runOutcomes(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to config file (YAML)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to outcome log (overrides config)")
	cmd.Flags().StringVar(&opts.Artifact, "artifact", "", "filter by artifact ID")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum entries to return (0 = all)")

	return cmd
}

func runOutcomes(opts *OutcomesOptions, runID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open outcome log", err)
	}
	defer st.Close()

	ctx := cmd.Context()

	if runID != "" {
		outcome, err := st.GetOutcome(ctx, runID)
		if err == store.ErrNotFound {
			if outErr := formatter.Error("NOT_FOUND", fmt.Sprintf("no outcome for run %s", runID)); outErr != nil {
				return WrapExitError(ExitCommandError, "failed to write output", outErr)
			}
			return NewExitError(ExitFailure, "outcome not found")
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read outcome log", err)
		}
		if opts.Format == "json" {
			return formatter.Success(outcome)
		}
		return formatter.Success(strings.TrimRight(renderOutcomeLine(outcome), "\n"))
	}

	outcomes, err := st.ListOutcomes(ctx, opts.Artifact, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read outcome log", err)
	}
	if opts.Format == "json" {
		return formatter.Success(outcomes)
	}

	if len(outcomes) == 0 {
		return formatter.Success("no outcomes recorded")
	}
	var b strings.Builder
	for i, o := range outcomes {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderOutcomeLine(&o))
	}
	return formatter.Success(b.String())
}

func renderOutcomeLine(o *store.Outcome) string {
	line := fmt.Sprintf("%s  %s  %-24s %s",
		o.RecordedAt.UTC().Format("2006-01-02 15:04:05"),
		o.Verdict.RunID,
		o.Verdict.ArtifactID,
		o.Verdict.Code,
	)
	if o.Verdict.Reason != verdict.ReasonNone {
		line += "  " + string(o.Verdict.Reason)
	}
	return line
}
