package contract

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, src string) (*Manifest, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileManifest(v)
}

func TestCompileManifestMinimal(t *testing.T) {
	m, err := compile(t, `
project: "demo"
files: ["io.c", "main.c"]
`)
	require.NoError(t, err)
	assert.Equal(t, "demo", m.Project)
	assert.Equal(t, []string{"io.c", "main.c"}, m.Files)
	assert.Equal(t, DefaultRoundBound, m.RoundBound)
	assert.Empty(t, m.Contracts)
}

func TestCompileManifestFull(t *testing.T) {
	m, err := compile(t, `
project:  "demo"
analysis: "/tmp/demo-analysis"
files: ["io.c", "main.c"]
rounds: 4
contracts: {
	"io.c": {
		hidden_structs: ["impl_state"]
		hidden_fields:  ["buffer.scratch"]
		summaries: [{
			fn: "read_all"
			assumes: [{tag: "not-null", arg: "buf"}]
		}]
	}
}
`)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/demo-analysis", m.AnalysisDir)
	assert.Equal(t, 4, m.RoundBound)

	c, ok := m.ContractFor("io.c")
	require.True(t, ok)
	assert.Equal(t, []string{"impl_state"}, c.HiddenStructs)
	assert.Equal(t, []string{"buffer.scratch"}, c.HiddenFields)
	require.Len(t, c.Summaries, 1)
	assert.Equal(t, "read_all", c.Summaries[0].Fn)
	assert.Equal(t, []AssumedPredicate{{Tag: "not-null", Arg: "buf"}}, c.Summaries[0].Assumes)

	_, ok = m.ContractFor("main.c")
	assert.False(t, ok)
}

func TestCompileManifestRejectsMissingProject(t *testing.T) {
	_, err := compile(t, `files: ["io.c"]`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "project", ce.Field)
}

func TestCompileManifestRejectsDuplicateFiles(t *testing.T) {
	_, err := compile(t, `
project: "demo"
files: ["io.c", "io.c"]
`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message, "duplicate")
}

func TestCompileManifestRejectsUnknownContractFile(t *testing.T) {
	_, err := compile(t, `
project: "demo"
files: ["io.c"]
contracts: "ghost.c": {}
`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "contracts", ce.Field)
}

func TestCompileManifestRejectsUnknownPredicateTag(t *testing.T) {
	_, err := compile(t, `
project: "demo"
files: ["io.c"]
contracts: "io.c": summaries: [{fn: "f", assumes: [{tag: "is-sparkly", arg: "x"}]}]
`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message, "is-sparkly")
}

func TestCompileManifestRejectsNonPositiveRounds(t *testing.T) {
	_, err := compile(t, `
project: "demo"
files: ["io.c"]
rounds: 0
`)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "rounds", ce.Field)
}

func TestManifestDigestTracksFileOrder(t *testing.T) {
	a, err := compile(t, `
project: "demo"
files: ["io.c", "main.c"]
`)
	require.NoError(t, err)
	b, err := compile(t, `
project: "demo"
files: ["main.c", "io.c"]
`)
	require.NoError(t, err)

	da, err := a.Digest()
	require.NoError(t, err)
	db, err := b.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, da, db)
}
