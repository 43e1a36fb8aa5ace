package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/proofdex/proofdex/internal/artifact"
	"github.com/proofdex/proofdex/internal/contract"
	"github.com/proofdex/proofdex/internal/dict"
	"github.com/proofdex/proofdex/internal/ir"
)

// LinkOptions holds flags for the link command.
type LinkOptions struct {
	*RootOptions
	AnalysisDir string
}

// NewLinkCommand creates the link command.
func NewLinkCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LinkOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "link <manifest.cue>",
		Short: "Link per-file declarations into the global namespace",
		Long: `Walks the manifest's files in order, merges their struct and
variable declarations into the global dictionary, and writes
globaldefinitions.json. Structurally identical structs from
different files collapse to one global key; static variables are
kept apart per file.

Example:
  proofdex link ./proofdex.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.AnalysisDir, "analysis", "", "analysis directory (defaults to the manifest's)")
	return cmd
}

func runLink(opts *LinkOptions, manifestPath string, cmd *cobra.Command) error {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	m, err := contract.LoadManifest(manifestPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "load manifest", err)
	}
	dir := opts.AnalysisDir
	if dir == "" {
		dir = m.AnalysisDir
	}
	if dir == "" {
		return WrapExitError(ExitCommandError, "no analysis directory", fmt.Errorf("set analysis in the manifest or pass --analysis"))
	}
	layout := artifact.NewLayout(dir)

	g := dict.NewGlobalDeclarations()
	linked := 0
	for _, file := range m.Files {
		local, err := artifact.LoadDictionary(layout, file, g.ResolveFunc())
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("load dictionary for %s", file), err)
		}
		decls, err := artifact.LoadFileDeclarations(layout, file)
		if artifact.IsNotFound(err) {
			out.VerboseLog("no declarations for %s, skipping", file)
			continue
		}
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("load declarations for %s", file), err)
		}

		c, _ := m.ContractFor(file)
		comps := filterHidden(decls.Compinfos, c)

		if err := g.IndexFileCompinfos(file, local, comps); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("link structs of %s", file), err)
		}
		if err := g.IndexFileVarinfos(file, local, decls.Varinfos); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("link variables of %s", file), err)
		}
		for _, td := range decls.Typedefs {
			gix, err := g.ImportType(file, local, td.TypeIx)
			if err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("import typedef %s of %s", td.Name, file), err)
			}
			if _, err := g.AddTypeDef(td.Name, gix); err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("register typedef %s of %s", td.Name, file), err)
			}
		}
		linked++
		slog.Debug("linked file", "file", file,
			"compinfos", len(comps), "varinfos", len(decls.Varinfos), "typedefs", len(decls.Typedefs))
	}

	if err := artifact.SaveGlobalDeclarations(layout, g); err != nil {
		return WrapExitError(ExitCommandError, "write global declarations", err)
	}

	if opts.Format == "json" {
		return out.Success(map[string]any{
			"linked_files": linked,
			"stats":        strings.TrimRight(g.Stats(), "\n"),
		})
	}
	return out.SuccessText(fmt.Sprintf("linked %d file(s)\n%s", linked, g.Stats()))
}

// filterHidden drops structs and fields the file's contract hides from
// linking.
func filterHidden(comps []ir.CompDecl, c contract.FileContract) []ir.CompDecl {
	hiddenStruct := make(map[string]bool, len(c.HiddenStructs))
	for _, name := range c.HiddenStructs {
		hiddenStruct[name] = true
	}
	hiddenField := make(map[string]bool, len(c.HiddenFields))
	for _, f := range c.HiddenFields {
		hiddenField[f] = true
	}

	var out []ir.CompDecl
	for _, comp := range comps {
		if hiddenStruct[comp.Name] {
			continue
		}
		kept := comp
		kept.Fields = nil
		for _, f := range comp.Fields {
			if hiddenField[comp.Name+"."+f.Name] {
				continue
			}
			kept.Fields = append(kept.Fields, f)
		}
		out = append(out, kept)
	}
	return out
}
