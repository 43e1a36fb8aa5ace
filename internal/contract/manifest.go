// Package contract compiles the project manifest: the ordered file list
// the analysis walks, the convergence round bound, and the per-file
// contracts (hidden declarations and assumed function summaries).
// Manifests are CUE; compilation uses the CUE Go API directly.
package contract

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/proofdex/proofdex/internal/ir"
)

// DefaultRoundBound caps convergence rounds when the manifest is silent.
const DefaultRoundBound = 12

// AssumedPredicate is one predicate a contract asserts without proof,
// applied to a named parameter of the summarized function.
type AssumedPredicate struct {
	Tag string
	Arg string
}

// FunctionSummary is an externally supplied contract for a function whose
// body is not analyzed.
type FunctionSummary struct {
	Fn      string
	Assumes []AssumedPredicate
}

// FileContract hides declarations from linking and supplies summaries for
// functions of one file.
type FileContract struct {
	File          string
	HiddenStructs []string
	HiddenFields  []string // "struct.field"
	Summaries     []FunctionSummary
}

// Manifest is the compiled project manifest.
type Manifest struct {
	Project     string
	AnalysisDir string
	Files       []string // analysis order
	RoundBound  int
	Contracts   []FileContract
}

// Digest hashes the manifest identity: project name plus ordered files.
func (m Manifest) Digest() (string, error) {
	return ir.ManifestDigest(m.Project, m.Files)
}

// ContractFor returns the contract for file, if declared.
func (m Manifest) ContractFor(file string) (FileContract, bool) {
	for _, c := range m.Contracts {
		if c.File == file {
			return c, true
		}
	}
	return FileContract{}, false
}

// LoadManifest reads and compiles a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	return CompileManifest(v)
}

// CompileManifest parses a CUE value into a Manifest. The value is the
// manifest struct itself:
//
//	project: "demo"
//	analysis: "/tmp/demo-analysis"
//	files: ["io.c", "main.c"]
func CompileManifest(v cue.Value) (*Manifest, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &Manifest{RoundBound: DefaultRoundBound}

	project := v.LookupPath(cue.ParsePath("project"))
	if !project.Exists() {
		return nil, &CompileError{Field: "project", Message: "project is required", Pos: v.Pos()}
	}
	name, err := project.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	m.Project = name

	analysis := v.LookupPath(cue.ParsePath("analysis"))
	if analysis.Exists() {
		dir, err := analysis.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m.AnalysisDir = dir
	}

	files := v.LookupPath(cue.ParsePath("files"))
	if !files.Exists() {
		return nil, &CompileError{Field: "files", Message: "files is required", Pos: v.Pos()}
	}
	m.Files, err = parseStringList(files, "files")
	if err != nil {
		return nil, err
	}
	if len(m.Files) == 0 {
		return nil, &CompileError{Field: "files", Message: "at least one file is required", Pos: files.Pos()}
	}
	seen := make(map[string]bool, len(m.Files))
	for _, f := range m.Files {
		if seen[f] {
			return nil, &CompileError{Field: "files", Message: fmt.Sprintf("duplicate file %q", f), Pos: files.Pos()}
		}
		seen[f] = true
	}

	bound := v.LookupPath(cue.ParsePath("rounds"))
	if bound.Exists() {
		n, err := bound.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if n < 1 {
			return nil, &CompileError{Field: "rounds", Message: "round bound must be positive", Pos: bound.Pos()}
		}
		m.RoundBound = int(n)
	}

	contracts := v.LookupPath(cue.ParsePath("contracts"))
	if contracts.Exists() {
		m.Contracts, err = parseContracts(contracts, seen)
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

func parseContracts(v cue.Value, files map[string]bool) ([]FileContract, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []FileContract
	for iter.Next() {
		sel := iter.Selector()
		file := sel.String()
		if sel.IsString() {
			file = sel.Unquoted()
		}
		if !files[file] {
			return nil, &CompileError{
				Field:   "contracts",
				Message: fmt.Sprintf("contract for %q names a file not in files", file),
				Pos:     iter.Value().Pos(),
			}
		}
		c := FileContract{File: file}
		cv := iter.Value()

		if hs := cv.LookupPath(cue.ParsePath("hidden_structs")); hs.Exists() {
			c.HiddenStructs, err = parseStringList(hs, "hidden_structs")
			if err != nil {
				return nil, err
			}
		}
		if hf := cv.LookupPath(cue.ParsePath("hidden_fields")); hf.Exists() {
			c.HiddenFields, err = parseStringList(hf, "hidden_fields")
			if err != nil {
				return nil, err
			}
		}
		if sv := cv.LookupPath(cue.ParsePath("summaries")); sv.Exists() {
			c.Summaries, err = parseSummaries(sv)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func parseSummaries(v cue.Value) ([]FunctionSummary, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []FunctionSummary
	for iter.Next() {
		sv := iter.Value()
		fn := sv.LookupPath(cue.ParsePath("fn"))
		if !fn.Exists() {
			return nil, &CompileError{Field: "summaries", Message: "fn is required", Pos: sv.Pos()}
		}
		s := FunctionSummary{}
		s.Fn, err = fn.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if av := sv.LookupPath(cue.ParsePath("assumes")); av.Exists() {
			aiter, err := av.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for aiter.Next() {
				a, err := parseAssumed(aiter.Value())
				if err != nil {
					return nil, err
				}
				s.Assumes = append(s.Assumes, a)
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func parseAssumed(v cue.Value) (AssumedPredicate, error) {
	tag := v.LookupPath(cue.ParsePath("tag"))
	arg := v.LookupPath(cue.ParsePath("arg"))
	if !tag.Exists() || !arg.Exists() {
		return AssumedPredicate{}, &CompileError{
			Field:   "assumes",
			Message: "tag and arg are required",
			Pos:     v.Pos(),
		}
	}
	t, err := tag.String()
	if err != nil {
		return AssumedPredicate{}, formatCUEError(err)
	}
	if !ir.KnownPredicateTags[t] {
		return AssumedPredicate{}, &CompileError{
			Field:   "assumes",
			Message: fmt.Sprintf("unknown predicate tag %q", t),
			Pos:     tag.Pos(),
		}
	}
	a, err := arg.String()
	if err != nil {
		return AssumedPredicate{}, formatCUEError(err)
	}
	return AssumedPredicate{Tag: t, Arg: a}, nil
}

func parseStringList(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{
				Field:   field,
				Message: "entries must be strings",
				Pos:     iter.Value().Pos(),
			}
		}
		out = append(out, s)
	}
	return out, nil
}
