package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/proofdex/proofdex/internal/artifact"
	"github.com/proofdex/proofdex/internal/dict"
	"github.com/proofdex/proofdex/internal/ledger"
	"github.com/proofdex/proofdex/internal/proof"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats <analysis-dir> [file...]",
		Short: "Show dictionary sizes and obligation status tallies",
		Long: `Prints the table sizes of each named file dictionary and, when a
status ledger exists, the obligation tally of the latest run.

Example:
  proofdex stats /tmp/demo io.c main.c`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(opts, args[0], args[1:], cmd)
		},
	}
	return cmd
}

type fileStats struct {
	File   string           `json:"file"`
	Tables []dict.TableStat `json:"tables"`
}

type runStatsData struct {
	RunID      string `json:"run_id"`
	Rounds     int    `json:"rounds"`
	Open       int    `json:"open"`
	Discharged int    `json:"discharged"`
	Violated   int    `json:"violated"`
	Dead       int    `json:"dead"`
}

type statsSummary struct {
	Files []fileStats   `json:"files,omitempty"`
	Run   *runStatsData `json:"run,omitempty"`
}

func runStats(opts *StatsOptions, dir string, files []string, cmd *cobra.Command) error {
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

	var summary statsSummary
	for _, file := range files {
		d, err := artifact.LoadDictionary(layout, file, g.ResolveFunc())
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("load dictionary for %s", file), err)
		}
		summary.Files = append(summary.Files, fileStats{File: file, Tables: d.Stats()})
	}

	if run, err := latestRunStats(cmd, layout); err != nil {
		return err
	} else if run != nil {
		summary.Run = run
	}

	if opts.Format == "json" {
		return out.Success(summary)
	}

	var b strings.Builder
	for _, fs := range summary.Files {
		fmt.Fprintf(&b, "%s:", fs.File)
		for _, t := range fs.Tables {
			fmt.Fprintf(&b, " %s=%d", t.Category, t.Size)
		}
		b.WriteString("\n")
	}
	if summary.Run != nil {
		fmt.Fprintf(&b, "run %s: %d round(s), discharged=%d violated=%d open=%d dead=%d\n",
			summary.Run.RunID, summary.Run.Rounds,
			summary.Run.Discharged, summary.Run.Violated, summary.Run.Open, summary.Run.Dead)
	}
	if b.Len() == 0 {
		b.WriteString("nothing to report\n")
	}
	return out.SuccessText(b.String())
}

func latestRunStats(cmd *cobra.Command, layout artifact.Layout) (*runStatsData, error) {
	if _, err := os.Stat(layout.LedgerPath()); err != nil {
		return nil, nil
	}
	led, err := ledger.Open(layout.LedgerPath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open ledger", err)
	}
	defer led.Close()

	ctx := cmd.Context()
	runID, err := led.LatestRun(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read ledger", err)
	}
	if runID == "" {
		return nil, nil
	}

	data := &runStatsData{RunID: runID}
	if data.Rounds, err = led.Rounds(ctx, runID); err != nil {
		return nil, WrapExitError(ExitCommandError, "read ledger", err)
	}
	rows, err := led.RunStatuses(ctx, runID)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read ledger", err)
	}

	// Tally each obligation's final decision: the last round wins.
	final := make(map[string]proof.Status)
	for _, r := range rows {
		key := fmt.Sprintf("%s/%s/%s/%d", r.File, r.Fn, r.Kind, r.POIndex)
		final[key] = r.Status
	}
	for _, st := range final {
		switch st {
		case proof.StatusOpen:
			data.Open++
		case proof.StatusDischarged:
			data.Discharged++
		case proof.StatusViolated:
			data.Violated++
		case proof.StatusDead:
			data.Dead++
		}
	}
	return data, nil
}
