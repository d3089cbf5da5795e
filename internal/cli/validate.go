package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emberforge/furnace/internal/artifact"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// validationResult is the JSON payload for a successful validation.
type validationResult struct {
	Artifact       string            `json:"artifact"`
	Implementation string            `json:"implementation"`
	Selftest       string            `json:"selftest"`
	Operations     map[string]string `json:"operations"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <artifact-dir>",
		Short: "Validate an artifact package without running it",
		Long: `Check a package against the format and manifest rules: exactly five files,
the three fixed names present, a well-formed manifest, and a complete
three-operation contract. No sandbox is created.

Example:
  furnace validate ./submissions/counter`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, pkgPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	pkg, err := artifact.Load(pkgPath)
	if err != nil {
		var loadErr *artifact.LoadError
		if errors.As(err, &loadErr) {
			if outErr := formatter.Error(string(loadErr.Reason), loadErr.Message); outErr != nil {
				return WrapExitError(ExitCommandError, "failed to write output", outErr)
			}
			return NewExitError(ExitFailure, loadErr.Error())
		}
		return WrapExitError(ExitCommandError, "failed to load artifact package", err)
	}

	result := validationResult{
		Artifact:       pkg.ID(),
		Implementation: pkg.Manifest.Implementation,
		Selftest:       pkg.Manifest.Selftest,
		Operations: map[string]string{
			artifact.OpIngest:  describeOp(pkg.Contract.Ingest),
			artifact.OpCompact: describeOp(pkg.Contract.Compact),
			artifact.OpAudit:   describeOp(pkg.Contract.Audit),
		},
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "OK %s\n", result.Artifact)
	fmt.Fprintf(&b, "  implementation : %s\n", result.Implementation)
	fmt.Fprintf(&b, "  selftest       : %s\n", result.Selftest)
	fmt.Fprintf(&b, "  ingest         : %s\n", result.Operations[artifact.OpIngest])
	fmt.Fprintf(&b, "  compact        : %s\n", result.Operations[artifact.OpCompact])
	fmt.Fprintf(&b, "  audit          : %s", result.Operations[artifact.OpAudit])
	return formatter.Success(b.String())
}

func describeOp(b artifact.Binding) string {
	return fmt.Sprintf("%s/%d", b.Symbol, b.Arity)
}
