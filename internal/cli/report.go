package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/proofdex/proofdex/internal/artifact"
	"github.com/proofdex/proofdex/internal/dict"
	"github.com/proofdex/proofdex/internal/proof"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report <analysis-dir> <file> <fn>",
		Short: "Render a function's proof obligations",
		Long: `Loads a function's obligation artifacts and renders the listing:
open obligations first, then decided ones, each with its index,
source line, predicate, and status.

Example:
  proofdex report /tmp/demo io.c read_all`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, args[0], args[1], args[2], cmd)
		},
	}
	return cmd
}

func runReport(opts *ReportOptions, dir, file, fn string, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	layout := artifact.NewLayout(dir)

	g, err := artifact.LoadGlobalDeclarations(layout)
	if artifact.IsNotFound(err) {
		g = dict.NewGlobalDeclarations()
	} else if err != nil {
		return WrapExitError(ExitCommandError, "load global declarations", err)
	}

	d, err := artifact.LoadDictionary(layout, file, g.ResolveFunc())
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("load dictionary for %s", file), err)
	}
	f, err := artifact.LoadProofs(layout, file, fn, d)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("load obligations for %s", fn), err)
	}

	listing := proof.RenderReport(fn, f.AllObligations(), d.ResolveFunc(), g.ResolveFunc())
	return out.SuccessText(listing)
}
