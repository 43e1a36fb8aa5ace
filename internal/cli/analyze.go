package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/proofdex/proofdex/internal/artifact"
	"github.com/proofdex/proofdex/internal/harness"
	"github.com/proofdex/proofdex/internal/ledger"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	AnalysisDir string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <scenario.yaml>",
		Short: "Run the convergence loop over a scenario",
		Long: `Drives the generation/convergence loop described by a scenario
file: parsed function bodies plus scripted checker verdicts.
With --analysis, artifacts and the status ledger are written
under the analysis directory.

Exit code 1 means the run found violations or did not converge
within the round bound.

Example:
  proofdex analyze ./scenarios/chain.yaml --analysis /tmp/demo`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.AnalysisDir, "analysis", "", "write artifacts and ledger under this directory")
	return cmd
}

// analyzeSummary is the JSON payload of a completed analysis.
type analyzeSummary struct {
	Scenario   string   `json:"scenario"`
	Rounds     int      `json:"rounds"`
	Converged  bool     `json:"converged"`
	Dirty      []string `json:"dirty,omitempty"`
	Open       int      `json:"open"`
	Discharged int      `json:"discharged"`
	Violated   int      `json:"violated"`
	Dead       int      `json:"dead"`
}

func runAnalyze(opts *AnalyzeOptions, scenarioPath string, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := harness.LoadScenario(scenarioPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load scenario", err)
	}

	var runOpts harness.Options
	if opts.AnalysisDir != "" {
		layout := artifact.NewLayout(opts.AnalysisDir)
		led, err := ledger.Open(layout.LedgerPath())
		if err != nil {
			return WrapExitError(ExitCommandError, "open ledger", err)
		}
		defer led.Close()
		runOpts.Ledger = led
		runOpts.SaveTo = &layout
	}

	res, err := harness.RunWithOptions(s, runOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "run scenario", err)
	}

	summary := analyzeSummary{
		Scenario:   s.Name,
		Rounds:     res.Rounds,
		Converged:  res.NonConvergence == nil,
		Open:       res.Open,
		Discharged: res.Discharged,
		Violated:   res.Violated,
		Dead:       res.Dead,
	}
	if res.NonConvergence != nil {
		summary.Dirty = res.NonConvergence.Dirty
	}

	if opts.Format == "json" {
		if err := out.Success(summary); err != nil {
			return err
		}
	} else {
		var b strings.Builder
		fmt.Fprintf(&b, "%s: %d round(s)", summary.Scenario, summary.Rounds)
		if summary.Converged {
			b.WriteString(", converged\n")
		} else {
			fmt.Fprintf(&b, ", NOT converged (dirty: %s)\n", strings.Join(summary.Dirty, ", "))
		}
		fmt.Fprintf(&b, "discharged=%d violated=%d open=%d dead=%d\n",
			summary.Discharged, summary.Violated, summary.Open, summary.Dead)
		for _, rep := range res.Reports {
			b.WriteString("\n")
			b.WriteString(rep)
		}
		if err := out.SuccessText(b.String()); err != nil {
			return err
		}
	}

	if !summary.Converged {
		return &ExitError{Code: ExitFailure, Message: "analysis did not converge"}
	}
	if summary.Violated > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d obligation(s) violated", summary.Violated)}
	}
	return nil
}
