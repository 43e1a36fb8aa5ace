package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proofdex/proofdex/internal/artifact"
	"github.com/proofdex/proofdex/internal/dict"
	"github.com/proofdex/proofdex/internal/ir"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeScenario(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: cli-demo
manifest:
  project: demo
  files: [main.c]
functions:
  - file: main.c
    fn: main
    body:
      - {line: 3, deref: p}
verdicts:
  - {action: discharge}
`), 0o644))
	return path
}

func TestRootRejectsInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "stats", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestAnalyzeTextOutput(t *testing.T) {
	dir := t.TempDir()
	stdout, _, err := execute(t, "analyze", writeScenario(t, dir))
	require.NoError(t, err)
	assert.Contains(t, stdout, "cli-demo: 1 round(s), converged")
	assert.Contains(t, stdout, "discharged=2")
	assert.Contains(t, stdout, "not-null(p) (discharged)")
}

func TestAnalyzeJSONOutput(t *testing.T) {
	dir := t.TempDir()
	stdout, _, err := execute(t, "--format", "json", "analyze", writeScenario(t, dir))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "cli-demo", data["scenario"])
	assert.Equal(t, true, data["converged"])
	assert.EqualValues(t, 2, data["discharged"])
}

func TestAnalyzeViolationExitsNonZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: cli-violation
manifest:
  project: demo
  files: [main.c]
functions:
  - file: main.c
    fn: main
    body:
      - {line: 3, divide: n}
verdicts:
  - {action: violate}
`), 0o644))

	_, _, err := execute(t, "analyze", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestAnalyzeWritesArtifactsAndStatsReadsThem(t *testing.T) {
	dir := t.TempDir()
	analysis := filepath.Join(dir, "analysis")

	_, _, err := execute(t, "analyze", writeScenario(t, dir), "--analysis", analysis)
	require.NoError(t, err)

	stdout, _, err := execute(t, "stats", analysis, "main.c")
	require.NoError(t, err)
	assert.Contains(t, stdout, "main.c:")
	assert.Contains(t, stdout, "expressions=")
	assert.Contains(t, stdout, "discharged=2")

	stdout, _, err = execute(t, "report", analysis, "main.c", "main")
	require.NoError(t, err)
	assert.Contains(t, stdout, "main\n")
	assert.Contains(t, stdout, "not-null(p) (discharged)")
}

func TestReportMissingArtifacts(t *testing.T) {
	_, _, err := execute(t, "report", t.TempDir(), "ghost.c", "main")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLinkMergesDeclarations(t *testing.T) {
	dir := t.TempDir()
	analysis := filepath.Join(dir, "analysis")
	layout := artifact.NewLayout(analysis)

	manifest := filepath.Join(dir, "proofdex.cue")
	require.NoError(t, os.WriteFile(manifest, []byte(`
project:  "demo"
analysis: "`+analysis+`"
files: ["a.c", "b.c"]
`), 0o644))

	// Both files declare the same one-field struct; the linker should
	// collapse them to a single global key.
	for _, file := range []string{"a.c", "b.c"} {
		g := dict.NewGlobalDeclarations()
		d := dict.NewDictionary(file, g.ResolveFunc())
		tint, err := d.Intern("types", []string{ir.TagInt, "int"}, nil)
		require.NoError(t, err)
		require.NoError(t, artifact.SaveDictionary(layout, d))
		require.NoError(t, artifact.SaveFileDeclarations(layout, artifact.FileDeclarations{
			File: file,
			Compinfos: []ir.CompDecl{{
				Key: 1, Name: "point", Struct: true,
				Fields: []ir.FieldDecl{{Name: "x", TypeIx: tint}},
			}},
			Varinfos: []ir.VarDecl{{VID: 1, Name: "origin", Storage: "n", TypeIx: tint}},
		}))
	}

	stdout, _, err := execute(t, "link", manifest)
	require.NoError(t, err)
	assert.Contains(t, stdout, "linked 2 file(s)")

	g, err := artifact.LoadGlobalDeclarations(layout)
	require.NoError(t, err)
	_, err = g.Compinfo(0)
	require.NoError(t, err)
	_, err = g.Compinfo(1)
	require.Error(t, err, "identical structs collapse to one global key")
	assert.Equal(t, "point", g.CompinfoName(0))
	_, ok := g.VarinfoByName("origin")
	assert.True(t, ok)
}
